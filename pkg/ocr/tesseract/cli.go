// Package tesseract provides ocr.Engine implementations backed by Tesseract.
//
// CLI runs the tesseract binary once per page, so the OpenMP thread limit
// is set in the child environment of every call. Client links libtesseract
// through gosseract and avoids the process start, at the cost of a cgo
// build and a thread limit shared with the whole process.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gardar/scanxml/pkg/hocr"
	"github.com/gardar/scanxml/pkg/ocr"
)

// DefaultBinary is the executable looked up in PATH.
const DefaultBinary = "tesseract"

// CLI runs the tesseract command line tool.
type CLI struct {
	Binary  string // Absolute path of the executable
	TempDir string // Directory for per-page work files, os.TempDir when empty
}

// NewCLI locates binary (DefaultBinary when empty) in PATH.
func NewCLI(binary string) (*CLI, error) {
	if binary == "" {
		binary = DefaultBinary
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("tesseract binary: %w", err)
	}
	return &CLI{Binary: path}, nil
}

func (c *CLI) Name() string { return "tesseract" }

// Recognize writes img as PNG, runs tesseract with the txt and hocr
// configs and reads both outputs back. Confidence is the mean x_wconf of
// the hOCR words, -1 when the hOCR cannot be read.
func (c *CLI) Recognize(ctx context.Context, img image.Image, opts ocr.Options) (ocr.PageResult, error) {
	opts = opts.WithDefaults()

	dir, err := os.MkdirTemp(c.TempDir, "scanxml-page-")
	if err != nil {
		return ocr.PageResult{}, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "page.png")
	if err := writePNG(input, img); err != nil {
		return ocr.PageResult{}, err
	}
	outbase := filepath.Join(dir, "page")

	cmd := exec.CommandContext(ctx, c.Binary, c.args(input, outbase, opts)...)
	cmd.Env = append(os.Environ(), "OMP_THREAD_LIMIT="+strconv.Itoa(opts.ThreadLimit))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ocr.PageResult{}, ctx.Err()
		}
		return ocr.PageResult{}, fmt.Errorf("run tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	text, err := os.ReadFile(outbase + ".txt")
	if err != nil {
		return ocr.PageResult{}, fmt.Errorf("read text output: %w", err)
	}
	result := ocr.PageResult{Text: string(text), Confidence: -1}
	if data, err := os.ReadFile(outbase + ".hocr"); err == nil {
		result.Confidence = confidence(data)
	}
	return result, nil
}

func (c *CLI) args(input, outbase string, opts ocr.Options) []string {
	args := []string{input, outbase, "-l", opts.Language}
	if opts.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(opts.DPI))
	}
	return append(args, "txt", "hocr")
}

// confidence scores hOCR output, -1 when it cannot be parsed.
func confidence(data []byte) float64 {
	doc, err := hocr.ParseHOCR(data)
	if err != nil {
		return -1
	}
	return hocr.MeanConfidence(doc)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create page image: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode page image: %w", err)
	}
	return f.Close()
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page image: %w", err)
	}
	return buf.Bytes(), nil
}

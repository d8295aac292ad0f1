// Package source lists the documents of an input directory and loads their
// page images.
//
// Two layouts are supported, selected by Mode:
//
// - ModeImages: every leaf directory is a document, each raster image in it
// (jpg, jpeg, png, tif, tiff) is a page, pages ordered by filename
// - ModePDF: every PDF file is a document, pages are rasterized on demand
//
// Listing is cheap and restartable: Documents re-walks the directory on every
// call. Page images are only decoded when Entry.Load is called, so a caller
// that loads one entry at a time keeps a single document in memory.
package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"path/filepath"
	"strings"
)

// Mode selects the input layout.
type Mode string

const (
	ModePDF    Mode = "pdf"
	ModeImages Mode = "img"
)

// DefaultDPI is the rasterization resolution for PDF pages.
const DefaultDPI = 300

// ErrUnknownMode is returned for a mode outside ModePDF and ModeImages.
var ErrUnknownMode = errors.New("unknown input mode")

// ParseMode resolves a configuration value. "images" and "image" are
// accepted as aliases of "img".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pdf":
		return ModePDF, nil
	case "img", "image", "images":
		return ModeImages, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Page is one page image and its 1-based position in the document.
type Page struct {
	Number int
	Image  image.Image
}

// Entry is one document of the input directory.
type Entry interface {
	// Name is the document name: the folder name or the file name without
	// its extension.
	Name() string
	// Path is the file or directory the document was read from.
	Path() string
	// Load decodes or rasterizes the pages in document order.
	Load(ctx context.Context) ([]Page, error)
	// TableOfContents renders the document outline, or toc.NotAvailable.
	TableOfContents() (string, error)
}

// ImageSource lists the documents under a root directory.
type ImageSource interface {
	Documents(root string) ([]Entry, error)
}

// Options configures New.
type Options struct {
	DPI int // Rasterization resolution in PDF mode, DefaultDPI when zero
}

// New returns the ImageSource for mode.
func New(mode Mode, opts Options) (ImageSource, error) {
	switch mode {
	case ModePDF:
		return NewPDFSource(opts.DPI), nil
	case ModeImages:
		return NewDirectorySource(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// walk visits root recursively in lexical order, skipping hidden entries.
func walk(root string, fn func(path string, d fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		return fn(path, d)
	})
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

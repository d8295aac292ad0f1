package tesseract

import (
	"context"
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"

	"github.com/gardar/scanxml/pkg/ocr"
)

// Client recognizes pages in-process with libtesseract. A gosseract client
// is not safe for concurrent use, so every call gets its own.
type Client struct {
	newClient func() *gosseract.Client
}

// NewClient returns the in-process engine.
func NewClient() *Client {
	return &Client{newClient: gosseract.NewClient}
}

func (e *Client) Name() string { return "gosseract" }

// Recognize ignores opts.ThreadLimit: libtesseract reads OMP_THREAD_LIMIT
// once per process, set it in the environment before starting.
func (e *Client) Recognize(ctx context.Context, img image.Image, opts ocr.Options) (ocr.PageResult, error) {
	opts = opts.WithDefaults()
	if err := ctx.Err(); err != nil {
		return ocr.PageResult{}, err
	}

	data, err := encodePNG(img)
	if err != nil {
		return ocr.PageResult{}, err
	}

	c := e.newClient()
	defer c.Close()

	if err := c.SetLanguage(opts.Language); err != nil {
		return ocr.PageResult{}, fmt.Errorf("set language: %w", err)
	}
	if opts.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(opts.DPI)); err != nil {
			return ocr.PageResult{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return ocr.PageResult{}, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return ocr.PageResult{}, fmt.Errorf("recognize text: %w", err)
	}
	result := ocr.PageResult{Text: text, Confidence: -1}
	if h, err := c.HOCRText(); err == nil {
		result.Confidence = confidence([]byte(h))
	}
	return result, nil
}

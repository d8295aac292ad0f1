// Package ocr defines the recognition engine contract and dispatches the
// pages of one document to an engine over a bounded worker pool.
//
// Engines live in subpackages (tesseract) and in gdocai. RecognizeDocument
// runs at most `concurrency` recognitions at once and returns results in
// page order whatever the completion order was.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"
)

// DefaultLanguage is the Tesseract language code used when none is set.
const DefaultLanguage = "fra"

// DefaultConcurrency is the number of pages recognized at the same time.
const DefaultConcurrency = 10

// DefaultThreadLimit is the number of threads one recognition may use.
const DefaultThreadLimit = 1

// LowConfidence is the mean word confidence (0-100) under which a page is
// reported as suspicious.
const LowConfidence = 60.0

// ErrNoEngine is returned when RecognizeDocument is called without engine.
var ErrNoEngine = errors.New("no OCR engine")

// Options configures one recognition call.
type Options struct {
	Language    string // Tesseract language code, DefaultLanguage when empty
	ThreadLimit int    // Threads allowed to the engine for this call, DefaultThreadLimit when zero
	DPI         int    // Resolution hint of the image, zero when unknown
}

// WithDefaults fills the zero fields of o.
func (o Options) WithDefaults() Options {
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.ThreadLimit <= 0 {
		o.ThreadLimit = DefaultThreadLimit
	}
	return o
}

// PageResult is the recognized text of one page.
type PageResult struct {
	Index      int     // Zero-based page position in the document
	Text       string  // Raw text as returned by the engine
	Confidence float64 // Mean word confidence 0-100, negative when the engine gives none
}

// Engine recognizes the text of a page image. Implementations must be safe
// for concurrent use.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, opts Options) (PageResult, error)
}

// RecognizeDocument recognizes every page with engine, at most concurrency
// pages at a time (DefaultConcurrency when <= 0). The i-th result belongs
// to the i-th page. The first failure cancels the remaining pages and is
// returned; pages are not retried.
func RecognizeDocument(ctx context.Context, engine Engine, pages []image.Image, opts Options, concurrency int) ([]PageResult, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	opts = opts.WithDefaults()

	results := make([]PageResult, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, img := range pages {
		// Stop scheduling once a page failed or the caller gave up.
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := engine.Recognize(gctx, img, opts)
			if err != nil {
				return fmt.Errorf("%s: page %d: %w", engine.Name(), i+1, err)
			}
			res.Index = i
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Texts returns the text of each result, in order.
func Texts(results []PageResult) []string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return texts
}

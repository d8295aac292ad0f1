// Package gdocai recognizes page images with Google Document AI.
//
// Each page is sent as its own image/png raw document to an OCR processor.
// The response text becomes the page text and the token confidences, read
// through the hOCR page model, become the page confidence.
//
// Main Functions:
//
// - NewEngine: Connects to the processor and returns an ocr.Engine
// - ProcessRequest: Builds the request sending raw bytes to a processor
// - PageFromProto: Converts a Document AI page to an hOCR page
//
// Usage Requirements:
//
// - Google Cloud project with Document AI API enabled
// - Document AI processor configured for OCR
// - Authentication via Config.CredentialsFile or GOOGLE_APPLICATION_CREDENTIALS
package gdocai

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/gardar/scanxml/pkg/ocr"
)

// processFunc sends one request and returns the processed document
type processFunc func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.Document, error)

// Engine is an ocr.Engine backed by a Document AI processor. The
// underlying gRPC client is safe for concurrent use.
type Engine struct {
	cfg     Config
	client  *documentai.DocumentProcessorClient
	process processFunc
}

// NewEngine validates cfg and connects to its processor. Close releases
// the connection.
func NewEngine(ctx context.Context, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := NewClient(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, client: client}
	e.process = func(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.Document, error) {
		resp, err := client.ProcessDocument(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to process document: %w", err)
		}
		return resp.Document, nil
	}
	return e, nil
}

func (e *Engine) Name() string { return "documentai" }

// Recognize sends img to the processor. opts.Language is passed as a
// language hint; ThreadLimit and DPI do not apply to a remote engine.
func (e *Engine) Recognize(ctx context.Context, img image.Image, opts ocr.Options) (ocr.PageResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ocr.PageResult{}, fmt.Errorf("encode page image: %w", err)
	}

	req := ProcessRequest(buf.Bytes(), "image/png", &e.cfg)
	if opts.Language != "" {
		req.ProcessOptions = &documentaipb.ProcessOptions{
			OcrConfig: &documentaipb.OcrConfig{
				Hints: &documentaipb.OcrConfig_Hints{LanguageHints: []string{languageHint(opts.Language)}},
			},
		}
	}

	doc, err := e.process(ctx, req)
	if err != nil {
		return ocr.PageResult{}, err
	}

	result := ocr.PageResult{Text: pageText(doc), Confidence: -1}
	if len(doc.GetPages()) > 0 {
		page := PageFromProto(doc.Pages[0], doc.Text)
		if len(page.Words()) > 0 {
			result.Confidence = page.MeanConfidence()
		}
	}
	return result, nil
}

// Close releases the processor connection.
func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

// languageHint maps Tesseract language codes to the BCP-47 codes Document AI
// expects. Unknown codes are passed through.
func languageHint(lang string) string {
	switch lang {
	case "fra":
		return "fr"
	case "eng":
		return "en"
	case "deu":
		return "de"
	case "ara":
		return "ar"
	case "ita":
		return "it"
	case "spa":
		return "es"
	}
	return lang
}

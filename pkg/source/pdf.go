package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/gardar/scanxml/pkg/textnorm"
	"github.com/gardar/scanxml/pkg/toc"
)

// PDFSource reads documents stored as one PDF file per document.
type PDFSource struct {
	DPI int
}

// NewPDFSource returns the ModePDF source rasterizing at dpi
// (DefaultDPI when dpi <= 0).
func NewPDFSource(dpi int) *PDFSource {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &PDFSource{DPI: dpi}
}

// Documents returns one entry per PDF file under root, in lexical path order.
func (s *PDFSource) Documents(root string) ([]Entry, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	var entries []Entry
	err := walk(root, func(path string, d fs.DirEntry) error {
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		entries = append(entries, &pdfEntry{path: path, dpi: s.DPI})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return entries, nil
}

type pdfEntry struct {
	path string
	dpi  int
}

func (e *pdfEntry) Name() string { return textnorm.StripExt(filepath.Base(e.path)) }

func (e *pdfEntry) Path() string { return e.path }

// Load rasterizes every page with MuPDF at the configured resolution.
func (e *pdfEntry) Load(ctx context.Context) ([]Page, error) {
	doc, err := fitz.New(e.path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", e.path, err)
	}
	defer doc.Close()

	n := doc.NumPage()
	pages := make([]Page, 0, n)
	for i := 0; i < n; i++ {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(i, float64(e.dpi))
		if err != nil {
			return nil, fmt.Errorf("rasterize page %d of %s: %w", i+1, e.path, err)
		}
		pages = append(pages, Page{Number: i + 1, Image: img})
	}
	return pages, nil
}

func (e *pdfEntry) TableOfContents() (string, error) {
	return toc.ExtractFile(e.path)
}

package source

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/tiff"

	"github.com/gardar/scanxml/pkg/toc"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
}

// DirectorySource reads documents laid out as one directory of page images
// per document.
type DirectorySource struct{}

// NewDirectorySource returns the ModeImages source.
func NewDirectorySource() *DirectorySource {
	return &DirectorySource{}
}

// Documents returns one entry per leaf directory under root, root included
// when it has no subdirectory. A leaf without images is still a document.
func (s *DirectorySource) Documents(root string) ([]Entry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat input: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input %s is not a directory", root)
	}

	var entries []Entry
	err = walk(root, func(path string, d fs.DirEntry) error {
		if !d.IsDir() {
			return nil
		}
		leaf, err := isLeaf(path)
		if err != nil {
			return err
		}
		if leaf {
			entries = append(entries, &dirEntry{dir: path})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return entries, nil
}

func isLeaf(dir string) (bool, error) {
	children, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	for _, c := range children {
		if c.IsDir() && !isHidden(c.Name()) {
			return false, nil
		}
	}
	return true, nil
}

type dirEntry struct {
	dir string
}

func (e *dirEntry) Name() string { return filepath.Base(e.dir) }

func (e *dirEntry) Path() string { return e.dir }

// pagePaths lists the page images of the directory sorted by filename.
func (e *dirEntry) pagePaths() ([]string, error) {
	children, err := os.ReadDir(e.dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", e.dir, err)
	}
	var paths []string
	for _, c := range children {
		if c.IsDir() || isHidden(c.Name()) {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(c.Name()))] {
			paths = append(paths, c.Name())
		}
	}
	sort.Strings(paths)
	for i, name := range paths {
		paths[i] = filepath.Join(e.dir, name)
	}
	return paths, nil
}

func (e *dirEntry) Load(ctx context.Context) ([]Page, error) {
	paths, err := e.pagePaths()
	if err != nil {
		return nil, err
	}
	pages := make([]Page, 0, len(paths))
	for i, path := range paths {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}
		img, err := decodeImage(path)
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Number: i + 1, Image: img})
	}
	return pages, nil
}

// TableOfContents is always toc.NotAvailable: image folders carry no outline.
func (e *dirEntry) TableOfContents() (string, error) {
	return toc.NotAvailable, nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open page image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode page image %s: %w", path, err)
	}
	return img, nil
}

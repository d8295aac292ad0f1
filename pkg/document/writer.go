package document

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Extension is the suffix of every output file.
const Extension = ".xml"

// Writer stores records as <Dir>/<title>.xml.
type Writer struct {
	Dir string
}

// NewWriter creates dir if needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{Dir: dir}, nil
}

// Path is the output file of the document called title.
func (w *Writer) Path(title string) string {
	return filepath.Join(w.Dir, title+Extension)
}

// Exists reports whether the document was already written.
func (w *Writer) Exists(title string) (bool, error) {
	_, err := os.Stat(w.Path(title))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Write serializes tags and stores them under title. The file appears
// complete or not at all: data goes to a temporary file in Dir that is
// synced and renamed over the target.
func (w *Writer) Write(title string, tags []Tag) (string, error) {
	data, err := Marshal(tags)
	if err != nil {
		return "", err
	}
	path := w.Path(title)

	tmp, err := os.CreateTemp(w.Dir, "."+filepath.Base(title)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return "", fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return "", fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return "", fmt.Errorf("rename %s: %w", path, err)
	}
	return path, nil
}

// Package importer turns data files into flat rows of named string fields.
package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned for file extensions the importer cannot read.
var ErrUnsupported = errors.New("unsupported file type")

// Row is one imported record: field name to value.
type Row map[string]string

// Extensions lists the file extensions the importer reads.
var Extensions = []string{".json", ".yaml", ".yml", ".csv", ".xlsx"}

// Importer reads rows from data files.
type Importer struct{}

// NewImporter returns a new Importer.
func NewImporter() *Importer {
	return &Importer{}
}

// Supports reports whether ext (with leading dot, any case) can be imported.
func (im *Importer) Supports(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Import reads the file at path and returns its rows.
func (im *Importer) Import(path string) ([]Row, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return im.ImportBytes(content, ext)
}

// ImportBytes parses content based on the given extension.
// ext should include the leading dot (e.g. ".csv").
func (im *Importer) ImportBytes(content []byte, ext string) ([]Row, error) {
	switch strings.ToLower(ext) {
	case ".json":
		return importJSON(content)
	case ".yaml", ".yml":
		return importYAML(content)
	case ".csv":
		return importCSV(content)
	case ".xlsx":
		return importExcel(content)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

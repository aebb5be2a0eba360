// Package extract provides text extraction from uploaded document formats.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when a document's declared format is not
// one of the supported, text-extractable formats.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ErrCorruptDocument is returned when a document of a supported format cannot
// be parsed.
var ErrCorruptDocument = errors.New("corrupt document")

// Extractor extracts plain text from document files. Extraction is a pure
// transformation: reading order is preserved and page/section boundaries are
// flattened into a single linear stream.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether ext (with leading dot, case-insensitive) is an
// extractable format.
func (e *Extractor) Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".xlsx", ".txt", ".md", ".rst":
		return true
	}
	return false
}

// Extract reads the file at path and returns its text content. The format is
// taken from the file extension.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on the declared extension.
// ext should include the leading dot (e.g. ".pdf"). Unknown extensions yield
// ErrUnsupportedFormat; parse failures yield an error wrapping ErrCorruptDocument.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".txt", ".md", ".rst":
		return extractPlain(content)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

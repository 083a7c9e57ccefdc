// Package extract provides text extraction from PDF documents.
package extract

import (
	"fmt"
	"os"
)

// Extractor extracts plain text from PDF files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractPages reads the PDF at path and returns its text content as an
// ordered sequence of page texts. Returns an error if the file cannot be
// read or is not a parseable PDF.
func (e *Extractor) ExtractPages(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return extractPDFPages(content)
}

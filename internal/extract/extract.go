// Package extract turns uploaded files into plain text pages. PDF extraction
// reads the text layer first and falls back to OCR for scanned documents.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/docdex-io/docdex/internal/domain"
)

// Format is a supported document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatText Format = "text"
)

// Page is one page of extracted text. Plain-text documents have exactly one page.
type Page struct {
	Number int
	Text   string
}

// Document is the extraction output.
type Document struct {
	Format Format
	Pages  []Page
}

var pdfMagic = []byte("%PDF-")

// textExtensions maps recognized plain-text extensions.
var textExtensions = map[string]bool{
	".txt":  true,
	".text": true,
	".md":   true,
}

// DetectFormat determines the document format from the filename extension and
// content signature. An extension that contradicts the content is rejected:
// a .txt file starting with a PDF header is mislabeled, not plain text.
func DetectFormat(filename string, data []byte) (Format, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	looksPDF := bytes.HasPrefix(data, pdfMagic)

	switch {
	case ext == ".pdf":
		if !looksPDF {
			return "", fmt.Errorf("file %q has .pdf extension but no PDF signature: %w",
				filename, domain.ErrValidation)
		}
		return FormatPDF, nil
	case textExtensions[ext]:
		if looksPDF {
			return "", fmt.Errorf("file %q has text extension but PDF content: %w",
				filename, domain.ErrValidation)
		}
		if !isPlainText(data) {
			return "", fmt.Errorf("file %q is not valid text: %w", filename, domain.ErrValidation)
		}
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported file extension %q: %w", ext, domain.ErrUnsupportedFormat)
	}
}

// isPlainText accepts valid UTF-8 without NUL bytes.
func isPlainText(data []byte) bool {
	if !utf8.Valid(data) {
		return false
	}
	return !bytes.ContainsRune(data, 0)
}

// Extractor extracts text from supported formats.
type Extractor struct {
	ocr    OCR
	logger *zap.Logger
}

// New creates an extractor. ocr may be nil, which disables the scanned-PDF
// fallback.
func New(ocr OCR, logger *zap.Logger) *Extractor {
	return &Extractor{ocr: ocr, logger: logger}
}

// Extract detects the format and extracts text pages. An extractable document
// with no text at all is an extraction error, not an empty success.
func (e *Extractor) Extract(ctx context.Context, filename string, data []byte) (Document, error) {
	format, err := DetectFormat(filename, data)
	if err != nil {
		return Document{}, err
	}

	var pages []Page
	switch format {
	case FormatPDF:
		pages, err = e.extractPDF(ctx, filename, data)
	case FormatText:
		pages, err = extractText(data)
	}
	if err != nil {
		return Document{}, err
	}

	if !hasText(pages) {
		return Document{}, fmt.Errorf("file %q contains no extractable text: %w",
			filename, domain.ErrExtraction)
	}
	return Document{Format: format, Pages: pages}, nil
}

func hasText(pages []Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}

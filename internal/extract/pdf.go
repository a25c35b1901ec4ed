package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	ledongpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"

	"github.com/docdex-io/docdex/internal/domain"
)

// extractPDF reads the text layer page by page. If the document has no text
// layer at all (a scanned PDF), it falls back to OCR over embedded images.
func (e *Extractor) extractPDF(ctx context.Context, filename string, data []byte) ([]Page, error) {
	reader, err := ledongpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf %q: %v: %w", filename, err, domain.ErrExtraction)
	}

	total := reader.NumPage()
	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			// A broken text stream on one page does not fail the document.
			e.logger.Warn("pdf text layer unreadable",
				zap.String("file", filename), zap.Int("page", i), zap.Error(err))
			text = ""
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	if hasText(pages) {
		return pages, nil
	}

	if e.ocr == nil {
		return pages, nil
	}
	e.logger.Info("pdf has no text layer, running ocr", zap.String("file", filename))
	return e.ocrPDF(ctx, filename, data, total)
}

// ocrPDF extracts embedded page images and runs OCR on each, attributing the
// recognized text back to its page.
func (e *Extractor) ocrPDF(ctx context.Context, filename string, data []byte, totalPages int) ([]Page, error) {
	imagesByPage, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("extract pdf images %q: %v: %w", filename, err, domain.ErrExtraction)
	}

	texts := make(map[int][]string, totalPages)
	for _, pageImages := range imagesByPage {
		objNrs := make([]int, 0, len(pageImages))
		for objNr := range pageImages {
			objNrs = append(objNrs, objNr)
		}
		sort.Ints(objNrs)

		for _, objNr := range objNrs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			img := pageImages[objNr]
			raw, err := io.ReadAll(img)
			if err != nil {
				e.logger.Warn("failed to read pdf image",
					zap.String("file", filename), zap.Int("page", img.PageNr), zap.Error(err))
				continue
			}

			text, err := e.ocr.Recognize(ctx, raw)
			if err != nil {
				e.logger.Warn("ocr failed for pdf image",
					zap.String("file", filename), zap.Int("page", img.PageNr), zap.Error(err))
				continue
			}
			if strings.TrimSpace(text) != "" {
				texts[img.PageNr] = append(texts[img.PageNr], text)
			}
		}
	}

	pages := make([]Page, 0, totalPages)
	for i := 1; i <= totalPages; i++ {
		pages = append(pages, Page{Number: i, Text: strings.Join(texts[i], "\n")})
	}
	return pages, nil
}

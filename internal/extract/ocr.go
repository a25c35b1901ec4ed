package extract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// OCR recognizes text in a raster image.
type OCR interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// Tesseract is the gosseract-backed OCR engine.
type Tesseract struct {
	languages []string
}

// NewTesseract creates an OCR engine. languages defaults to English.
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{languages: languages}
}

// Recognize runs Tesseract on one image. A fresh client per call: gosseract
// clients are not safe for concurrent use.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("set ocr language: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("set ocr image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr recognize: %w", err)
	}
	return text, nil
}

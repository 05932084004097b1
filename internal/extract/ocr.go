//go:build ocr

package extract

import (
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractOCR implements OCR via the Tesseract engine. Requires Tesseract to
// be installed on the system and the "ocr" build tag:
//
//	go build -tags ocr
type TesseractOCR struct {
	client *gosseract.Client
}

// NewOCR creates a Tesseract-backed OCR engine. Close it when done.
func NewOCR() (*TesseractOCR, error) {
	return &TesseractOCR{client: gosseract.NewClient()}, nil
}

// Recognize performs OCR on image data (PNG, TIFF, JPEG, etc.).
func (t *TesseractOCR) Recognize(imageData []byte) (string, error) {
	if err := t.client.SetImageFromBytes(imageData); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}

	return strings.TrimSpace(text), nil
}

// Close releases OCR resources.
func (t *TesseractOCR) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}

// Ensure interfaces are implemented at compile time.
var _ OCR = (*TesseractOCR)(nil)

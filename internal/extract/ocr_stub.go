//go:build !ocr

package extract

import "errors"

// ErrOCRNotEnabled is returned when OCR support was not compiled in. Rebuild
// with -tags ocr to enable OCR support; Tesseract must be installed on the
// system.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// TesseractOCR is the stub OCR engine used when the "ocr" build tag is not
// set.
type TesseractOCR struct{}

// NewOCR returns an error indicating OCR support is not enabled.
func NewOCR() (*TesseractOCR, error) {
	return nil, ErrOCRNotEnabled
}

// Recognize returns an error indicating OCR support is not enabled.
func (t *TesseractOCR) Recognize(imageData []byte) (string, error) {
	return "", ErrOCRNotEnabled
}

// Close is a no-op for the stub engine. It is safe to call on a nil client.
func (t *TesseractOCR) Close() error {
	return nil
}

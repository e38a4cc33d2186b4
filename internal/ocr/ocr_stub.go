//go:build !ocr

// Package ocr recognizes text in images extracted from documents.
//
// This build has no OCR engine; NewTesseract returns ErrOCRNotEnabled.
// Rebuild with -tags ocr (and Tesseract installed) to enable it.
package ocr

import (
	"context"
	"errors"
)

// ErrOCRNotEnabled is returned when OCR support was not compiled in
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// Tesseract is a stub whose methods report ErrOCRNotEnabled
type Tesseract struct{}

// NewTesseract returns ErrOCRNotEnabled
func NewTesseract(language string) (*Tesseract, error) {
	return nil, ErrOCRNotEnabled
}

// Recognize returns ErrOCRNotEnabled
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	return "", ErrOCRNotEnabled
}

// Close is a no-op; it is safe on a nil stub
func (t *Tesseract) Close() error {
	return nil
}

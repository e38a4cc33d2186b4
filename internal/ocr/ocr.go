//go:build ocr

// Package ocr recognizes text in images extracted from documents.
//
// Tesseract is reached through gosseract and must be installed on the host
// (apt-get install tesseract-ocr, brew install tesseract). Build with
// -tags ocr to compile it in.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// ErrOCRNotEnabled is returned by builds without the ocr tag
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// Tesseract recognizes text in images with a single Tesseract client.
// Calls are serialized; the underlying client is not safe for concurrent use.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates a client for the given language(s), e.g. "eng" or
// "eng+fra". Close it when done.
func NewTesseract(language string) (*Tesseract, error) {
	client := gosseract.NewClient()
	if language != "" {
		if err := client.SetLanguage(strings.Split(language, "+")...); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set OCR language: %w", err)
		}
	}
	return &Tesseract{client: client}, nil
}

// Recognize runs OCR on the image and returns the trimmed text
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("failed to set image %s: %w", imagePath, err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed for %s: %w", imagePath, err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases Tesseract resources
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}

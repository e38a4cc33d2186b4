package processor

import (
	"context"
	"fmt"

	"multimodal-rag/internal/models"
)

// Extractor turns raw document bytes into an ordered sequence of elements
type Extractor interface {
	Extract(ctx context.Context, doc []byte) ([]models.RawElement, error)
}

// ExtractionError reports a document that could not be partitioned.
// Callers must treat the whole ingest as failed.
type ExtractionError struct {
	Backend string
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction failed: %v", e.Backend, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func extractionErr(backend string, format string, args ...any) error {
	return &ExtractionError{Backend: backend, Err: fmt.Errorf(format, args...)}
}

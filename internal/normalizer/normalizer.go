// Package normalizer classifies raw document elements into text, table and
// ocr chunks.
//
// Each element type maps to an ordered list of strategies; the first strategy
// that yields a chunk wins:
//
//	Table:          markup -> ocr -> text
//	Image, Picture: ocr
//	anything else:  text
//
// An element for which no strategy applies is dropped.
package normalizer

import (
	"context"
	"log/slog"
	"strings"

	"multimodal-rag/internal/logger"
	"multimodal-rag/internal/models"
)

// Recognizer returns the text found in the image at imagePath
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// RecognizerFunc adapts a function to the Recognizer interface
type RecognizerFunc func(ctx context.Context, imagePath string) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, imagePath string) (string, error) {
	return f(ctx, imagePath)
}

// Strategy turns an element into a chunk. A nil chunk with a nil error means
// the strategy does not apply and the next one should be tried.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, el models.RawElement) (*models.Chunk, error)
}

// TextStrategy produces a text chunk from the element content. It always
// applies, even to blank content; blank chunks are filtered at index time.
type TextStrategy struct{}

func (TextStrategy) Name() string { return "text" }

func (TextStrategy) Apply(_ context.Context, el models.RawElement) (*models.Chunk, error) {
	chunk := models.NewChunk(models.KindText, el.Page, strings.TrimSpace(el.Content), "")
	return &chunk, nil
}

// TableMarkupStrategy renders the element's table markup as markdown
type TableMarkupStrategy struct{}

func (TableMarkupStrategy) Name() string { return "table-markup" }

func (TableMarkupStrategy) Apply(_ context.Context, el models.RawElement) (*models.Chunk, error) {
	md, ok := MarkdownTable(el.TableMarkup)
	if !ok {
		return nil, nil
	}
	chunk := models.NewChunk(models.KindTable, el.Page, md, "")
	return &chunk, nil
}

// OCRStrategy recognizes the text of the element's image
type OCRStrategy struct {
	Recognizer Recognizer
}

func (OCRStrategy) Name() string { return "ocr" }

func (s OCRStrategy) Apply(ctx context.Context, el models.RawElement) (*models.Chunk, error) {
	if el.ImagePath == "" || s.Recognizer == nil {
		return nil, nil
	}
	text, err := s.Recognizer.Recognize(ctx, el.ImagePath)
	if err != nil {
		return nil, err
	}
	chunk := models.NewChunk(models.KindOCR, el.Page, strings.TrimSpace(text), el.ImagePath)
	return &chunk, nil
}

// Normalizer converts raw elements into chunks
type Normalizer struct {
	Text   Strategy
	Table  Strategy
	OCR    Strategy
	Logger *slog.Logger
}

// New creates a normalizer. rec may be nil, in which case image elements are
// dropped and tables without markup fall back to text.
func New(rec Recognizer, log *slog.Logger) *Normalizer {
	return &Normalizer{
		Text:   TextStrategy{},
		Table:  TableMarkupStrategy{},
		OCR:    OCRStrategy{Recognizer: rec},
		Logger: logger.OrNop(log),
	}
}

// Strategies returns the strategies tried for an element type, in priority order
func (n *Normalizer) Strategies(t models.ElementType) []Strategy {
	switch {
	case t == models.ElementTable:
		return []Strategy{n.Table, n.OCR, n.Text}
	case t.IsVisual():
		return []Strategy{n.OCR}
	default:
		return []Strategy{n.Text}
	}
}

// Normalize returns the chunk for el, or nil when the element is dropped.
// Strategy failures are logged and the next strategy is tried; only context
// cancellation is returned as an error.
func (n *Normalizer) Normalize(ctx context.Context, el models.RawElement) (*models.Chunk, error) {
	for _, s := range n.Strategies(el.Type) {
		chunk, err := s.Apply(ctx, el)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			n.Logger.Warn("normalization strategy failed",
				"strategy", s.Name(), "type", el.Type, "page", el.Page, "error", err)
			continue
		}
		if chunk != nil {
			return chunk, nil
		}
	}
	n.Logger.Debug("dropped element", "type", el.Type, "page", el.Page)
	return nil, nil
}

// NormalizeAll normalizes a document's elements in order, leaving out
// dropped ones.
func (n *Normalizer) NormalizeAll(ctx context.Context, elements []models.RawElement) ([]models.Chunk, error) {
	chunks := make([]models.Chunk, 0, len(elements))
	for _, el := range elements {
		chunk, err := n.Normalize(ctx, el)
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			chunks = append(chunks, *chunk)
		}
	}
	return chunks, nil
}

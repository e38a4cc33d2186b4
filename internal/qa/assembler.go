// Package qa answers questions from an index with page citations.
package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"multimodal-rag/internal/index"
	"multimodal-rag/internal/llm"
	"multimodal-rag/internal/logger"
	"multimodal-rag/internal/models"
)

// DefaultTopK is the number of chunks retrieved when the caller passes k <= 0
const DefaultTopK = 10

// Retriever is the retrieval step the assembler depends on
type Retriever interface {
	Retrieve(ctx context.Context, query string, h index.Handle, k int) ([]string, []models.Metadata, error)
}

// GenerationError reports a failed language model call
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("answer generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Assembler builds prompts from retrieved chunks and returns the model's
// answer with one citation per chunk.
type Assembler struct {
	Retriever Retriever
	Generator llm.Generator
	Logger    *slog.Logger
}

func NewAssembler(r Retriever, g llm.Generator, log *slog.Logger) *Assembler {
	return &Assembler{Retriever: r, Generator: g, Logger: logger.OrNop(log)}
}

// Answer retrieves the top k chunks for query and asks the model about them.
// Citations follow retrieval order and keep duplicates.
func (a *Assembler) Answer(ctx context.Context, query string, h index.Handle, k int) (*models.Answer, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	log := logger.OrNop(a.Logger)

	texts, metas, err := a.Retriever.Retrieve(ctx, query, h, k)
	if err != nil {
		return nil, err
	}

	contextBlock := strings.Join(texts, "\n\n")
	log.Debug("context sent to model", "chunks", len(texts), "chars", len(contextBlock), "context", contextBlock)

	text, err := a.Generator.Generate(ctx, BuildPrompt(contextBlock, query))
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	citations := make([]string, len(metas))
	for i, m := range metas {
		citations[i] = m.Citation()
	}

	log.Info("answered question", "chunks", len(texts), "citations", len(citations))
	return &models.Answer{Text: text, Citations: citations}, nil
}

// Package pipeline ties extraction, normalization, indexing and answering
// together.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"multimodal-rag/internal/index"
	"multimodal-rag/internal/logger"
	"multimodal-rag/internal/models"
	"multimodal-rag/internal/normalizer"
	"multimodal-rag/internal/processor"
	"multimodal-rag/internal/qa"
	"multimodal-rag/internal/retriever"
)

// Pipeline runs documents through the whole question-answering flow
type Pipeline struct {
	Extractor  processor.Extractor
	Normalizer *normalizer.Normalizer
	Builder    *index.Builder
	Retriever  *retriever.Retriever
	Assembler  *qa.Assembler
	Logger     *slog.Logger
}

// Ingest extracts and normalizes a PDF into chunks
func (p *Pipeline) Ingest(ctx context.Context, doc []byte) ([]models.Chunk, error) {
	log := logger.OrNop(p.Logger)

	elements, err := p.Extractor.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	log.Info("extracted elements", "elements", len(elements))

	chunks, err := p.Normalizer.NormalizeAll(ctx, elements)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize elements: %w", err)
	}
	log.Info("normalized chunks", "chunks", len(chunks), "dropped", len(elements)-len(chunks))
	return chunks, nil
}

// Index ingests doc and builds the index indexID from it. It also returns
// the chunks the document produced.
func (p *Pipeline) Index(ctx context.Context, doc []byte, indexID string) (index.Handle, []models.Chunk, error) {
	chunks, err := p.Ingest(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	h, err := p.Builder.Build(ctx, chunks, indexID)
	if err != nil {
		return nil, chunks, err
	}
	return h, chunks, nil
}

// Ask loads indexID and answers query from its top k chunks
func (p *Pipeline) Ask(ctx context.Context, query, indexID string, k int) (*models.Answer, error) {
	h, err := p.Retriever.Load(ctx, indexID)
	if err != nil {
		return nil, err
	}
	return p.Assembler.Answer(ctx, query, h, k)
}

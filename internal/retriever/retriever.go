// Package retriever finds the chunks of an index that are most similar to a
// query.
package retriever

import (
	"context"
	"fmt"
	"log/slog"

	"multimodal-rag/internal/embedding"
	"multimodal-rag/internal/index"
	"multimodal-rag/internal/logger"
	"multimodal-rag/internal/models"
)

// Retriever embeds queries with the same embedder the index was built with
type Retriever struct {
	Embedder embedding.Embedder
	Store    index.Store
	// Strict turns an embedding model mismatch into an error instead of a warning
	Strict bool
	Logger *slog.Logger
}

func New(e embedding.Embedder, s index.Store, strict bool, log *slog.Logger) *Retriever {
	return &Retriever{Embedder: e, Store: s, Strict: strict, Logger: logger.OrNop(log)}
}

// Load opens a persisted index and checks that it was built with this
// retriever's embedding model.
func (r *Retriever) Load(ctx context.Context, indexID string) (index.Handle, error) {
	h, err := r.Store.Load(ctx, indexID)
	if err != nil {
		return nil, err
	}

	built, current := h.Manifest().EmbeddingModel, r.Embedder.Model()
	if built != current {
		if r.Strict {
			return nil, fmt.Errorf("%w: index %q was built with %q, querying with %q",
				index.ErrEmbeddingMismatch, indexID, built, current)
		}
		logger.OrNop(r.Logger).Warn("embedding model differs from the one the index was built with",
			"index_id", indexID, "index_model", built, "query_model", current)
	}
	return h, nil
}

// Retrieve returns the texts and metadata of the min(k, n) most similar
// chunks, most similar first.
func (r *Retriever) Retrieve(ctx context.Context, query string, h index.Handle, k int) ([]string, []models.Metadata, error) {
	if k < 1 {
		return nil, nil, fmt.Errorf("k must be at least 1, got %d", k)
	}

	vectors, err := r.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	hits, err := h.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to search index %q: %w", h.Manifest().IndexID, err)
	}

	texts := make([]string, len(hits))
	metas := make([]models.Metadata, len(hits))
	for i, hit := range hits {
		texts[i] = hit.Entry.Text
		metas[i] = hit.Entry.Metadata
	}
	return texts, metas, nil
}

package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"multimodal-rag/internal/embedding"
	"multimodal-rag/internal/logger"
	"multimodal-rag/internal/models"
)

// DefaultBatchSize is the number of texts per embedding request
const DefaultBatchSize = 32

// Builder embeds chunks and persists them as an index
type Builder struct {
	Embedder  embedding.Embedder
	Store     Store
	BatchSize int
	// MaxConcurrent bounds the embedding requests in flight
	MaxConcurrent int
	// Progress, when set, is called after every embedded batch
	Progress func(processed, total int)
	Logger   *slog.Logger
	now      func() time.Time
}

// NewBuilder creates a builder with default batching
func NewBuilder(e embedding.Embedder, s Store, log *slog.Logger) *Builder {
	return &Builder{
		Embedder:      e,
		Store:         s,
		BatchSize:     DefaultBatchSize,
		MaxConcurrent: 1,
		Logger:        logger.OrNop(log),
	}
}

// Build indexes chunks under indexID and returns the loaded index. Chunks
// whose text is blank apart from the kind label are skipped; ErrNoContent is
// returned when none remain.
func (b *Builder) Build(ctx context.Context, chunks []models.Chunk, indexID string) (Handle, error) {
	if err := ValidateID(indexID); err != nil {
		return nil, err
	}
	log := logger.OrNop(b.Logger)

	texts := make([]string, 0, len(chunks))
	metas := make([]models.Metadata, 0, len(chunks))
	for _, c := range chunks {
		text, ok := c.IndexText()
		if !ok {
			continue
		}
		texts = append(texts, text)
		metas = append(metas, models.Metadata{Page: c.Page, Kind: c.Kind, RawContent: c.Content})
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("index %q: %w", indexID, ErrNoContent)
	}
	log.Info("embedding chunks", "index_id", indexID, "chunks", len(texts), "skipped", len(chunks)-len(texts))

	vectors, err := b.embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	dims := len(vectors[0])
	entries := make([]Entry, len(texts))
	for i := range texts {
		if len(vectors[i]) == 0 || len(vectors[i]) != dims {
			return nil, fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(vectors[i]), dims)
		}
		entries[i] = Entry{Position: i, Text: texts[i], Vector: vectors[i], Metadata: metas[i]}
	}

	now := time.Now
	if b.now != nil {
		now = b.now
	}
	manifest := Manifest{
		IndexID:        indexID,
		EmbeddingModel: b.Embedder.Model(),
		Dimensions:     dims,
		Count:          len(entries),
		CreatedAt:      now().UTC(),
	}
	if err := b.Store.Save(ctx, manifest, entries); err != nil {
		return nil, fmt.Errorf("failed to save index %q: %w", indexID, err)
	}
	log.Info("index saved", "index_id", indexID, "entries", manifest.Count, "model", manifest.EmbeddingModel)

	return b.Store.Load(ctx, indexID)
}

// embed computes vectors batch by batch, keeping input order
func (b *Builder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	size := b.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	vectors := make([][]float32, len(texts))
	var (
		mu        sync.Mutex
		processed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.MaxConcurrent, 1))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		g.Go(func() error {
			batch, err := b.Embedder.Embed(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), end-start)
			}
			copy(vectors[start:end], batch)

			mu.Lock()
			processed += end - start
			if b.Progress != nil {
				b.Progress(processed, len(texts))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

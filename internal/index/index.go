// Package index builds and persists vector indexes over document chunks.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"multimodal-rag/internal/models"
)

var (
	// ErrIndexNotFound is returned when loading an index id that was never built
	ErrIndexNotFound = errors.New("index not found")
	// ErrNoContent is returned when a document yields no indexable chunk
	ErrNoContent = errors.New("document has no indexable content")
	// ErrEmbeddingMismatch is returned when an index is queried with a
	// different embedding model than the one it was built with
	ErrEmbeddingMismatch = errors.New("embedding model mismatch")
)

// Entry is one indexed chunk. Position is its 0-based insertion order.
type Entry struct {
	Position int             `json:"position"`
	Text     string          `json:"text"`
	Vector   []float32       `json:"vector"`
	Metadata models.Metadata `json:"metadata"`
}

// Manifest describes a persisted index
type Manifest struct {
	IndexID        string    `json:"index_id"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimensions     int       `json:"dimensions"`
	Count          int       `json:"count"`
	CreatedAt      time.Time `json:"created_at"`
}

// Hit is a search result
type Hit struct {
	Entry Entry
	Score float64
}

// Handle is a loaded, read-only index
type Handle interface {
	Manifest() Manifest
	// Search returns the min(k, Count) entries most similar to vector, best
	// first. Equal scores keep insertion order.
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
}

// Store persists indexes. Saving an existing id replaces it.
type Store interface {
	Save(ctx context.Context, m Manifest, entries []Entry) error
	Load(ctx context.Context, indexID string) (Handle, error)
}

// ValidateID rejects ids that cannot be used as a single path element
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("index id is required")
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid index id %q", id)
	}
	return nil
}

// NotFound wraps ErrIndexNotFound with the missing id
func NotFound(indexID string) error {
	return fmt.Errorf("%w: %q", ErrIndexNotFound, indexID)
}

// MemoryHandle is an in-memory handle with exact cosine search
type MemoryHandle struct {
	manifest Manifest
	entries  []Entry
}

// NewMemoryHandle wraps entries, which must be in insertion order
func NewMemoryHandle(m Manifest, entries []Entry) *MemoryHandle {
	return &MemoryHandle{manifest: m, entries: entries}
}

func (h *MemoryHandle) Manifest() Manifest { return h.manifest }

func (h *MemoryHandle) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("k must be at least 1, got %d", k)
	}
	if h.manifest.Dimensions > 0 && len(vector) != h.manifest.Dimensions {
		return nil, fmt.Errorf("query vector has %d dimensions, index %q has %d",
			len(vector), h.manifest.IndexID, h.manifest.Dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := make([]Hit, len(h.entries))
	for i, e := range h.entries {
		hits[i] = Hit{Entry: e, Score: Cosine(vector, e.Vector)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is zero
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range min(len(a), len(b)) {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

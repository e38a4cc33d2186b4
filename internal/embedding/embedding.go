// Package embedding turns text into dense vectors.
package embedding

import "context"

// Embedder embeds a batch of texts. The returned slice has one vector per
// input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Model identifies the embedding model; it is recorded in index manifests.
	Model() string
}

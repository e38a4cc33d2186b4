package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/ollama/ollama/api"
)

// OllamaEmbedder generates embeddings using the Ollama batch embed API
type OllamaEmbedder struct {
	Client     *api.Client
	ModelName  string
	MaxRetries int
	Timeout    time.Duration
}

// NewOllamaEmbedder creates a new Ollama embedder
func NewOllamaEmbedder(client *api.Client, model string, timeout time.Duration) *OllamaEmbedder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaEmbedder{
		Client:     client,
		ModelName:  model,
		MaxRetries: 3,
		Timeout:    timeout,
	}
}

func (e *OllamaEmbedder) Model() string { return e.ModelName }

// Embed generates embeddings for texts in a single request, retrying
// transient failures.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var (
		vectors [][]float32
		err     error
	)
	for retries := 0; retries <= e.MaxRetries; retries++ {
		if retries > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(retries) * time.Second):
			}
		}

		vectors, err = e.createEmbeddings(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("failed to create embeddings after %d retries: %w", e.MaxRetries, err)
}

func (e *OllamaEmbedder) createEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	req := api.EmbedRequest{
		Model: e.ModelName,
		Input: texts,
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	resp, err := e.Client.Embed(ctxWithTimeout, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	return resp.Embeddings, nil
}

package embedding

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
)

// geminiBatchLimit is the maximum number of requests per BatchEmbedContents call
const geminiBatchLimit = 100

// GeminiEmbedder generates embeddings with a Google Generative AI embedding model
type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
}

// NewGeminiEmbedder creates an embedder on an existing client. The caller owns
// the client and closes it.
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, modelName: model}
}

func (e *GeminiEmbedder) Model() string { return e.modelName }

func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	model := e.client.EmbeddingModel(e.modelName)

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiBatchLimit {
		end := min(start+geminiBatchLimit, len(texts))

		batch := model.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}

		resp, err := model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini batch embed: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), end-start)
		}
		for i, emb := range resp.Embeddings {
			if emb == nil {
				return nil, fmt.Errorf("no embedding returned for input %d", start+i)
			}
			vectors = append(vectors, emb.Values)
		}
	}
	return vectors, nil
}

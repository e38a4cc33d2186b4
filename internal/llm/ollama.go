package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaLLM handles interactions with the Ollama LLM API
type OllamaLLM struct {
	Client      *api.Client
	Model       string
	Temperature float32
	MaxTokens   int
}

// NewOllamaLLM creates a new Ollama LLM client
func NewOllamaLLM(client *api.Client, model string) *OllamaLLM {
	return &OllamaLLM{
		Client:      client,
		Model:       model,
		Temperature: 0.1,
		MaxTokens:   1024,
	}
}

// Generate streams a response from the model and returns it in full
func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	req := api.GenerateRequest{
		Model:  o.Model,
		Prompt: prompt,
		Options: map[string]any{
			"temperature": o.Temperature,
			"num_predict": o.MaxTokens,
		},
	}

	var responseBuilder strings.Builder

	err := o.Client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := responseBuilder.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	return responseBuilder.String(), nil
}

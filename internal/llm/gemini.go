package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// GeminiLLM generates answers with a Google Generative AI model
type GeminiLLM struct {
	client      *genai.Client
	Model       string
	Temperature float32
	MaxTokens   int32
}

// NewGeminiLLM creates a generator on an existing client. The caller owns the
// client and closes it.
func NewGeminiLLM(client *genai.Client, model string) *GeminiLLM {
	return &GeminiLLM{
		client:      client,
		Model:       model,
		Temperature: 0.1,
		MaxTokens:   1024,
	}
}

func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.Model)
	model.SetTemperature(g.Temperature)
	model.SetMaxOutputTokens(g.MaxTokens)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", errors.New("gemini returned no text")
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		// only the first candidate with content is used
		if b.Len() > 0 {
			break
		}
	}
	return b.String()
}

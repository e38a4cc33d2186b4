package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"google.golang.org/api/option"

	"multimodal-rag/internal/database"
	"multimodal-rag/internal/embedding"
	"multimodal-rag/internal/index"
	"multimodal-rag/internal/llm"
	"multimodal-rag/internal/normalizer"
	"multimodal-rag/internal/ocr"
	"multimodal-rag/internal/pipeline"
	"multimodal-rag/internal/processor"
	"multimodal-rag/internal/qa"
	"multimodal-rag/internal/retriever"
)

// components selects the collaborators a command needs
type components struct {
	ocr   bool
	index bool
	llm   bool
}

func (a *app) pipeline(ctx context.Context, need components) (*pipeline.Pipeline, error) {
	var rec normalizer.Recognizer
	if need.ocr {
		t, err := ocr.NewTesseract(a.cfg.OCR.Language)
		switch {
		case errors.Is(err, ocr.ErrOCRNotEnabled):
			a.log.Warn("OCR disabled; images and image-only tables are skipped", "error", err)
		case err != nil:
			return nil, err
		default:
			a.onClose(func() { _ = t.Close() })
			rec = t
		}
	}

	p := &pipeline.Pipeline{
		Extractor:  a.extractor(),
		Normalizer: normalizer.New(rec, a.log),
		Logger:     a.log,
	}
	if !need.index {
		return p, nil
	}

	emb, err := a.embedder(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.store(ctx)
	if err != nil {
		return nil, err
	}

	p.Builder = index.NewBuilder(emb, store, a.log)
	p.Builder.BatchSize = a.cfg.Embedding.BatchSize
	p.Retriever = retriever.New(emb, store, a.cfg.Retrieval.StrictEmbeddingModel, a.log)

	if need.llm {
		gen, err := a.generator(ctx)
		if err != nil {
			return nil, err
		}
		p.Assembler = qa.NewAssembler(p.Retriever, gen, a.log)
	}
	return p, nil
}

func (a *app) extractor() processor.Extractor {
	c := a.cfg.Extractor
	if c.Backend == "unstructured" {
		return processor.NewUnstructuredClient(c.UnstructuredURL, c.UnstructuredKey, c.ImageDir, c.Timeout, a.log)
	}
	return processor.NewPDFProcessor(c.ImageDir, a.log)
}

func (a *app) embedder(ctx context.Context) (embedding.Embedder, error) {
	c := a.cfg.Embedding
	switch c.Provider {
	case "hashing":
		return embedding.NewHashingEmbedder(c.Dimensions), nil
	case "gemini":
		client, err := a.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		return embedding.NewGeminiEmbedder(client, c.Model), nil
	default:
		client, err := a.ollamaClient()
		if err != nil {
			return nil, err
		}
		return embedding.NewOllamaEmbedder(client, c.Model, a.cfg.Ollama.Timeout), nil
	}
}

func (a *app) generator(ctx context.Context) (llm.Generator, error) {
	c := a.cfg.LLM

	var gen llm.Generator
	switch c.Provider {
	case "gemini":
		client, err := a.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		g := llm.NewGeminiLLM(client, c.Model)
		g.Temperature = c.Temperature
		g.MaxTokens = int32(c.MaxTokens)
		gen = g
	default:
		client, err := a.ollamaClient()
		if err != nil {
			return nil, err
		}
		o := llm.NewOllamaLLM(client, c.Model)
		o.Temperature = c.Temperature
		o.MaxTokens = c.MaxTokens
		gen = o
	}

	return llm.NewGuard(gen, llm.GuardSettings{
		Name:              c.Provider,
		RequestsPerMinute: c.RequestsPerMinute,
		Logger:            a.log,
	}), nil
}

func (a *app) store(ctx context.Context) (index.Store, error) {
	c := a.cfg.Store
	if c.Backend != "postgres" {
		return index.NewFileStore(c.Dir), nil
	}

	db, err := database.NewDB(ctx, c.PostgresURL, a.log)
	if err != nil {
		return nil, err
	}
	a.onClose(db.Close)

	if err := db.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// ollamaClient uses ollama.host when set, otherwise OLLAMA_HOST
func (a *app) ollamaClient() (*api.Client, error) {
	hostURL := envconfig.Host()
	if host := a.cfg.Ollama.Host; host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
		}
		hostURL = u
	}
	// generation streams; per-call deadlines come from the callers
	return api.NewClient(hostURL, http.DefaultClient), nil
}

func (a *app) geminiClient(ctx context.Context) (*genai.Client, error) {
	if a.gemini != nil {
		return a.gemini, nil
	}
	if strings.TrimSpace(a.cfg.Gemini.APIKey) == "" {
		return nil, errors.New("gemini.api_key is required (set DOCQA_GEMINI_API_KEY or GOOGLE_API_KEY)")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(a.cfg.Gemini.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	a.onClose(func() { _ = client.Close() })
	a.gemini = client
	return client, nil
}

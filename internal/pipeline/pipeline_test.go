package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multimodal-rag/internal/embedding"
	"multimodal-rag/internal/index"
	"multimodal-rag/internal/llm"
	"multimodal-rag/internal/models"
	"multimodal-rag/internal/normalizer"
	"multimodal-rag/internal/processor"
	"multimodal-rag/internal/qa"
	"multimodal-rag/internal/retriever"
)

type stubExtractor struct {
	elements []models.RawElement
	err      error
}

func (s stubExtractor) Extract(context.Context, []byte) ([]models.RawElement, error) {
	return s.elements, s.err
}

func newPipeline(t *testing.T, ext processor.Extractor, gen llm.Generator) *Pipeline {
	t.Helper()
	emb := embedding.NewHashingEmbedder(384)
	store := index.NewFileStore(t.TempDir())
	ocr := normalizer.RecognizerFunc(func(_ context.Context, path string) (string, error) {
		if path == "fig3.png" {
			return "Figure 3: loss curve\n", nil
		}
		return "", errors.New("unreadable image")
	})
	r := retriever.New(emb, store, true, nil)
	return &Pipeline{
		Extractor:  ext,
		Normalizer: normalizer.New(ocr, nil),
		Builder:    index.NewBuilder(emb, store, nil),
		Retriever:  r,
		Assembler:  qa.NewAssembler(r, gen, nil),
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	ext := stubExtractor{elements: []models.RawElement{
		{Type: models.ElementNarrativeText, Content: "Revenue grew 10%", Page: 1},
		{Type: models.ElementTable, Content: "A B", Page: 2, TableMarkup: "<table><tr><td>A</td><td>B</td></tr></table>"},
		{Type: models.ElementImage, Page: 3, ImagePath: "fig3.png"},
		{Type: models.ElementPageBreak, Page: 3},
	}}

	var prompt string
	gen := llm.GeneratorFunc(func(_ context.Context, p string) (string, error) {
		prompt = p
		if strings.Contains(p, "Revenue grew 10%") {
			return "Revenue grew 10% (Page 1).", nil
		}
		return qa.FallbackAnswer, nil
	})
	p := newPipeline(t, ext, gen)
	ctx := context.Background()

	h, chunks, err := p.Index(ctx, []byte("%PDF"), "report")
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, 3, h.Manifest().Count)

	answer, err := p.Ask(ctx, "How much did revenue grow?", "report", 0)
	require.NoError(t, err)
	require.Len(t, answer.Citations, 3)
	assert.Equal(t, "Page 1 [text]", answer.Citations[0])
	assert.ElementsMatch(t, []string{"Page 1 [text]", "Page 2 [table]", "Page 3 [ocr]"}, answer.Citations)
	assert.Contains(t, answer.Text, "Page 1")
	assert.True(t, strings.Index(prompt, "Text: Revenue grew 10%") < strings.Index(prompt, "QUESTION:"))

	answer, err = p.Ask(ctx, "How much did revenue grow?", "report", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Page 1 [text]"}, answer.Citations)
}

func TestPipelineEmptyDocument(t *testing.T) {
	p := newPipeline(t, stubExtractor{}, llm.GeneratorFunc(func(context.Context, string) (string, error) {
		return "", nil
	}))

	_, chunks, err := p.Index(context.Background(), []byte("%PDF"), "empty")
	assert.ErrorIs(t, err, index.ErrNoContent)
	assert.Empty(t, chunks)

	_, err = p.Ask(context.Background(), "anything", "empty", 3)
	assert.ErrorIs(t, err, index.ErrIndexNotFound)
}

func TestPipelineExtractionError(t *testing.T) {
	cause := &processor.ExtractionError{Backend: "local", Err: errors.New("not a pdf")}
	p := newPipeline(t, stubExtractor{err: cause}, nil)

	_, _, err := p.Index(context.Background(), []byte("junk"), "doc")
	var extErr *processor.ExtractionError
	assert.ErrorAs(t, err, &extErr)
}

func TestPipelineGenerationError(t *testing.T) {
	ext := stubExtractor{elements: []models.RawElement{{Type: models.ElementTitle, Content: "Annual report", Page: 1}}}
	p := newPipeline(t, ext, llm.GeneratorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("503 from model")
	}))
	ctx := context.Background()

	_, _, err := p.Index(ctx, nil, "doc")
	require.NoError(t, err)

	_, err = p.Ask(ctx, "title?", "doc", 1)
	var genErr *qa.GenerationError
	assert.ErrorAs(t, err, &genErr)
}

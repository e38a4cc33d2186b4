package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multimodal-rag/internal/models"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"report-2023", false},
		{"doc_1.v2", false},
		{"", true},
		{"  ", true},
		{"..", true},
		{"a/b", true},
		{`a\b`, true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if tt.wantErr {
				assert.Error(t, ValidateID(tt.id))
			} else {
				assert.NoError(t, ValidateID(tt.id))
			}
		})
	}
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-3, 0}), 1e-9)
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func testEntries() []Entry {
	return []Entry{
		{Position: 0, Text: "Text: a", Vector: []float32{1, 0}, Metadata: models.Metadata{Page: 1, Kind: models.KindText, RawContent: "a"}},
		{Position: 1, Text: "Table: b", Vector: []float32{0, 1}, Metadata: models.Metadata{Page: 2, Kind: models.KindTable, RawContent: "b"}},
		{Position: 2, Text: "Text: c", Vector: []float32{2, 0}, Metadata: models.Metadata{Page: 3, Kind: models.KindText, RawContent: "c"}},
		{Position: 3, Text: "OCR: d", Vector: []float32{1, 1}, Metadata: models.Metadata{Kind: models.KindOCR, RawContent: "d"}},
	}
}

func TestMemoryHandleSearch(t *testing.T) {
	h := NewMemoryHandle(Manifest{IndexID: "x", Dimensions: 2, Count: 4}, testEntries())
	ctx := context.Background()

	hits, err := h.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	// positions 0 and 2 tie on score; insertion order decides
	assert.Equal(t, 0, hits[0].Entry.Position)
	assert.Equal(t, 2, hits[1].Entry.Position)
	assert.Equal(t, 3, hits[2].Entry.Position)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.GreaterOrEqual(t, hits[1].Score, hits[2].Score)

	hits, err = h.Search(ctx, []float32{0, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 4)
	assert.Equal(t, 1, hits[0].Entry.Position)

	_, err = h.Search(ctx, []float32{0, 1}, 0)
	assert.Error(t, err)

	_, err = h.Search(ctx, []float32{1, 0, 0}, 1)
	assert.Error(t, err)
}

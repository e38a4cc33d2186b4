package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"revenue", "for", "q1", "was", "5m"}, Tokenize("Revenue for Q1 was $5M."))
	assert.Empty(t, Tokenize(" -- "))
}

func TestHashingEmbedder(t *testing.T) {
	e := NewHashingEmbedder(64)
	assert.Equal(t, "hashing-64", e.Model())

	vectors, err := e.Embed(context.Background(), []string{
		"Revenue grew strongly",
		"revenue GREW strongly!",
		"",
	})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	for _, v := range vectors {
		assert.Len(t, v, 64)
	}
	assert.Equal(t, vectors[0], vectors[1])
	assert.InDelta(t, 1.0, math.Sqrt(dot(vectors[0], vectors[0])), 1e-6)
	assert.Zero(t, dot(vectors[2], vectors[2]))
}

func TestHashingEmbedderSimilarity(t *testing.T) {
	e := NewHashingEmbedder(384)
	vectors, err := e.Embed(context.Background(), []string{
		"revenue",
		"Text: Total revenue in 2023 reached 4 million",
		"Text: Employees enjoyed the summer picnic",
	})
	require.NoError(t, err)

	assert.Greater(t, dot(vectors[0], vectors[1]), dot(vectors[0], vectors[2]))
}

func TestHashingEmbedderInvalidDimensions(t *testing.T) {
	_, err := NewHashingEmbedder(0).Embed(context.Background(), []string{"x"})
	assert.Error(t, err)
}

package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashingEmbedder is a deterministic bag-of-words embedder that needs no
// model server. Each lower-cased alphanumeric token is hashed into one of
// Dimensions buckets with a hash-derived sign, and the result is L2-normalized.
type HashingEmbedder struct {
	Dimensions int
}

func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	return &HashingEmbedder{Dimensions: dimensions}
}

func (e *HashingEmbedder) Model() string {
	return fmt.Sprintf("hashing-%d", e.Dimensions)
}

func (e *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.Dimensions <= 0 {
		return nil, fmt.Errorf("hashing embedder: invalid dimensions %d", e.Dimensions)
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.vector(t)
	}
	return vectors, nil
}

func (e *HashingEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.Dimensions)
	for _, tok := range Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()

		idx := int(sum % uint32(e.Dimensions))
		if sum&(1<<31) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

// Tokenize splits text into lower-cased runs of letters and digits
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

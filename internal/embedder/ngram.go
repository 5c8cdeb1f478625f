package embedder

import (
	"context"
	"hash/fnv"
	"strings"

	"github.com/pgvector/pgvector-go"

	"curator/internal/vecmath"
)

// NGram is the on-device fallback embedder: hashed character trigrams bucketed
// into a fixed-dimension vector. Crude, but deterministic, dependency-free and
// good enough for filename/path-level similarity when no model is configured.
type NGram struct {
	dim int
}

func NewNGram(dimension int) *NGram {
	if dimension <= 0 {
		dimension = 256
	}
	return &NGram{dim: dimension}
}

func (e *NGram) Name() string { return "ngram" }
func (e *NGram) ModelName() string { return "hashed-trigrams" }
func (e *NGram) Dimension() int { return e.dim }

func (e *NGram) Embed(_ context.Context, text string) (pgvector.Vector, error) {
	buckets := make([]float32, e.dim)
	lower := strings.ToLower(text)
	runes := []rune(lower)
	if len(runes) < 3 {
		runes = append(runes, ' ', ' ')
	}
	for i := 0; i+3 <= len(runes); i++ {
		h := fnv.New32a()
		h.Write([]byte(string(runes[i : i+3])))
		buckets[h.Sum32()%uint32(e.dim)]++
	}
	return vecmath.Normalize(pgvector.NewVector(buckets)), nil
}

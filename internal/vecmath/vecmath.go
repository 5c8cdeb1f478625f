// Package vecmath holds the small amount of client-side vector math the
// engine needs. Vectors travel as pgvector.Vector everywhere else.
package vecmath

import (
	"math"

	"github.com/pgvector/pgvector-go"

	"curator/internal/models"
)

// Cosine returns the cosine similarity of two vectors. For unit-length
// inputs this is just the dot product.
func Cosine(a, b pgvector.Vector) (float64, error) {
	as, bs := a.Slice(), b.Slice()
	if len(as) != len(bs) {
		return 0, models.DimensionError(len(as), len(bs))
	}
	var dot, na, nb float64
	for i := range as {
		dot += float64(as[i]) * float64(bs[i])
		na += float64(as[i]) * float64(as[i])
		nb += float64(bs[i]) * float64(bs[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Normalize returns a unit-length copy of v. A zero vector is returned as-is.
func Normalize(v pgvector.Vector) pgvector.Vector {
	s := v.Slice()
	var norm float64
	for _, x := range s {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(s))
	for i, x := range s {
		out[i] = float32(float64(x) / norm)
	}
	return pgvector.NewVector(out)
}

// Blend computes alpha*old + (1-alpha)*next and renormalizes to unit length.
func Blend(old, next pgvector.Vector, alpha float64) (pgvector.Vector, error) {
	os, ns := old.Slice(), next.Slice()
	if len(os) != len(ns) {
		return pgvector.Vector{}, models.DimensionError(len(os), len(ns))
	}
	out := make([]float32, len(os))
	for i := range os {
		out[i] = float32(alpha*float64(os[i]) + (1-alpha)*float64(ns[i]))
	}
	return Normalize(pgvector.NewVector(out)), nil
}

// Norm returns the L2 norm of v.
func Norm(v pgvector.Vector) float64 {
	var norm float64
	for _, x := range v.Slice() {
		norm += float64(x) * float64(x)
	}
	return math.Sqrt(norm)
}

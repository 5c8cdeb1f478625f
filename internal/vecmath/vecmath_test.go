package vecmath

import (
	"errors"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/models"
)

func TestNormalize_UnitLength(t *testing.T) {
	v := Normalize(pgvector.NewVector([]float32{3, 4}))
	assert.InDelta(t, 1.0, Norm(v), 1e-6)
	assert.InDelta(t, 0.6, float64(v.Slice()[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v.Slice()[1]), 1e-6)
}

func TestNormalize_ZeroVector(t *testing.T) {
	v := Normalize(pgvector.NewVector([]float32{0, 0, 0}))
	assert.Equal(t, 0.0, Norm(v))
}

func TestCosine(t *testing.T) {
	a := pgvector.NewVector([]float32{1, 0})
	b := pgvector.NewVector([]float32{0, 1})
	c := pgvector.NewVector([]float32{1, 0})

	sim, err := Cosine(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-6)

	sim, err = Cosine(a, c)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-6)
}

func TestCosine_DimensionMismatch(t *testing.T) {
	a := pgvector.NewVector([]float32{1, 0})
	b := pgvector.NewVector([]float32{1, 0, 0})

	_, err := Cosine(a, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDimensionMismatch))
}

func TestBlend_StaysUnitLength(t *testing.T) {
	old := Normalize(pgvector.NewVector([]float32{1, 0, 0}))
	next := Normalize(pgvector.NewVector([]float32{0, 1, 0}))

	blended, err := Blend(old, next, 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, Norm(blended), 1e-6)
	// The heavier weight keeps the blend closer to the old direction.
	assert.Greater(t, float64(blended.Slice()[0]), float64(blended.Slice()[1]))
}

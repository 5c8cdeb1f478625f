package prototype

import (
	"context"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/clock"
	"curator/internal/models"
	"curator/internal/vecmath"
)

func unit(vals ...float32) pgvector.Vector {
	return vecmath.Normalize(pgvector.NewVector(vals))
}

func newTestStore(t *testing.T) (*Store, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewStore(DefaultConfig(), clk, nil, nil), clk
}

func TestUpdate_CreatesWithInitialConfidence(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	p, err := s.Update(ctx, "Documents/Finance", unit(1, 0, 0), false)
	require.NoError(t, err)
	assert.Equal(t, 0.5, p.Confidence)
	assert.Equal(t, 1, p.SampleCount)
	assert.Equal(t, int64(1), p.Version)

	confirmed, err := s.Update(ctx, "Documents/Taxes", unit(0, 1, 0), true)
	require.NoError(t, err)
	assert.Equal(t, 0.7, confirmed.Confidence)
}

func TestUpdate_EmbeddingStaysUnitLength(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "Images", unit(1, 0, 0), false)
	require.NoError(t, err)

	// Blend in several different directions; the prototype must remain a
	// unit vector throughout.
	directions := []pgvector.Vector{
		unit(0, 1, 0),
		unit(0, 0, 1),
		unit(1, 1, 0),
		unit(1, 1, 1),
	}
	for _, d := range directions {
		p, err := s.Update(ctx, "Images", d, false)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, vecmath.Norm(p.Embedding), 1e-6)
	}
}

func TestUpdate_VersionAndConfidence(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "Code", unit(1, 0), false)
	require.NoError(t, err)

	p, err := s.Update(ctx, "Code", unit(1, 0), false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Version)
	assert.InDelta(t, 0.55, p.Confidence, 1e-9) // 0.5 + predicted boost

	p, err = s.Update(ctx, "Code", unit(1, 0), true)
	require.NoError(t, err)
	assert.InDelta(t, 0.65, p.Confidence, 1e-9) // confirmed boost is doubled
}

func TestUpdate_ConfidenceCapped(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := s.Update(ctx, "Music", unit(0, 1), true)
		require.NoError(t, err)
	}
	p := s.Get("Music")
	require.NotNil(t, p)
	assert.LessOrEqual(t, p.Confidence, 0.95)
}

func TestUpdate_DimensionMismatch(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "Docs", unit(1, 0, 0), false)
	require.NoError(t, err)

	_, err = s.Update(ctx, "Docs", unit(1, 0), false)
	require.Error(t, err)
}

func TestFindSimilar_OrderAndFilter(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "A", unit(1, 0, 0), false)
	require.NoError(t, err)
	_, err = s.Update(ctx, "B", unit(0.9, 0.1, 0), false)
	require.NoError(t, err)
	_, err = s.Update(ctx, "C", unit(0, 0, 1), false)
	require.NoError(t, err)

	matches, err := s.FindSimilar(ctx, unit(1, 0, 0), 10, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 2) // C is orthogonal, filtered out
	assert.Equal(t, "A", matches[0].Prototype.CategoryPath)
	assert.Equal(t, "B", matches[1].Prototype.CategoryPath)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)

	topOne, err := s.FindSimilar(ctx, unit(1, 0, 0), 1, 0.0)
	require.NoError(t, err)
	require.Len(t, topOne, 1)
	assert.Equal(t, "A", topOne[0].Prototype.CategoryPath)
}

func TestClassify_MonotonicInSimilarity(t *testing.T) {
	// Two stores, identical prototype confidence, different query similarity:
	// the closer query must never score lower.
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "Docs", unit(1, 0), false)
	require.NoError(t, err)

	near, err := s.Classify(ctx, unit(1, 0.1), 0)
	require.NoError(t, err)
	require.NotNil(t, near)

	far, err := s.Classify(ctx, unit(1, 0.8), 0)
	require.NoError(t, err)
	require.NotNil(t, far)

	assert.GreaterOrEqual(t, near.Confidence, far.Confidence)
	assert.Equal(t, "Docs", near.CategoryPath)
}

func TestClassify_BelowMinConfidence(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "Docs", unit(1, 0), false) // confidence 0.5
	require.NoError(t, err)

	cls, err := s.Classify(ctx, unit(1, 0), 0.9)
	require.NoError(t, err)
	assert.Nil(t, cls)
}

func TestClassify_RespectsMinSimilarityFloor(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "Docs", unit(1, 0), false)
	require.NoError(t, err)

	// Orthogonal query: below the 0.3 similarity floor, no classification.
	cls, err := s.Classify(ctx, unit(0, 1), 0)
	require.NoError(t, err)
	assert.Nil(t, cls)
}

func TestLinkUnlinkFolders(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "Receipts", unit(1, 0), false)
	require.NoError(t, err)

	require.NoError(t, s.LinkFolders(ctx, []string{"/home/a", "/home/b"}, "Receipts"))
	p := s.Get("Receipts")
	require.NotNil(t, p)
	assert.Equal(t, []string{"/home/a", "/home/b"}, p.LinkedFolders)
	assert.Equal(t, "shared", string(p.Scope))

	require.NoError(t, s.UnlinkFolder(ctx, "/home/a", "Receipts"))
	require.NoError(t, s.UnlinkFolder(ctx, "/home/b", "Receipts"))
	p = s.Get("Receipts")
	assert.Empty(t, p.LinkedFolders)
	assert.Equal(t, "folder", string(p.Scope)) // empty set reverts scope
}

func TestLinkFolders_UnknownCategory(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.LinkFolders(context.Background(), []string{"/x"}, "Nope")
	require.Error(t, err)
}

func TestApplyConfidenceDecay(t *testing.T) {
	s, clk := newTestStore(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "Old", unit(1, 0), true) // confidence 0.7
	require.NoError(t, err)

	clk.Advance(10 * 24 * time.Hour)
	changed := s.ApplyConfidenceDecay(ctx)
	assert.Equal(t, 1, changed)

	p := s.Get("Old")
	assert.InDelta(t, 0.6, p.Confidence, 1e-9) // 0.7 - 0.01*10

	// Long idle periods bottom out at the floor, never below.
	clk.Advance(1000 * 24 * time.Hour)
	s.ApplyConfidenceDecay(ctx)
	p = s.Get("Old")
	assert.InDelta(t, 0.1, p.Confidence, 1e-9)
}

func TestPruneWeak(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	weak, err := s.Update(ctx, "Weak", unit(1, 0), false)
	require.NoError(t, err)
	_ = weak
	// Force the weak prototype down to 0.1 via decay.
	_, err = s.Update(ctx, "Strong", unit(0, 1), false)
	require.NoError(t, err)

	s.mu.Lock()
	s.protos[models.CategoryID("Weak")].Confidence = 0.1
	s.protos[models.CategoryID("Strong")].Confidence = 0.5
	s.mu.Unlock()

	removed := s.PruneWeak(ctx, 0.2, 1)
	assert.Equal(t, 1, removed)
	assert.Nil(t, s.Get("Weak"))
	assert.NotNil(t, s.Get("Strong"))
}

func TestGet_UnknownReturnsNil(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Nil(t, s.Get("never-seen"))
}

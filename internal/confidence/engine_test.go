package confidence

import (
	"context"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/clock"
	"curator/internal/models"
	"curator/internal/prototype"
	"curator/internal/vecmath"
)

func unit(vals ...float32) pgvector.Vector {
	return vecmath.Normalize(pgvector.NewVector(vals))
}

func newTestEngine(t *testing.T) (*Engine, *prototype.Store) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	protos := prototype.NewStore(prototype.DefaultConfig(), clk, nil, nil)
	return NewEngine(protos, DefaultConfig()), protos
}

func TestCalibrate_MonotonicAndBounded(t *testing.T) {
	e, _ := newTestEngine(t)

	prev := -1.0
	for raw := 0.0; raw <= 1.0; raw += 0.05 {
		cal := e.Calibrate(raw)
		assert.GreaterOrEqual(t, cal, 0.3)
		assert.LessOrEqual(t, cal, 1.0)
		assert.GreaterOrEqual(t, cal, prev, "calibration must be non-decreasing at raw=%.2f", raw)
		prev = cal
	}

	// The clamped input domain maps onto the full output range: a zero raw
	// score sits on the floor and a perfect one reaches 1.0, keeping the
	// auto-place tier reachable.
	assert.InDelta(t, 0.3, e.Calibrate(0), 1e-9)
	assert.InDelta(t, 1.0, e.Calibrate(1), 1e-9)

	// Out-of-range inputs clamp rather than extrapolate.
	assert.Equal(t, e.Calibrate(0), e.Calibrate(-5))
	assert.Equal(t, e.Calibrate(1), e.Calibrate(5))
}

func TestOutcome_ThresholdMapping(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.Equal(t, models.OutcomeAutoPlace, e.Outcome(0.90))
	assert.Equal(t, models.OutcomeAutoPlace, e.Outcome(0.85))
	assert.Equal(t, models.OutcomeReview, e.Outcome(0.70))
	assert.Equal(t, models.OutcomeReview, e.Outcome(0.60))
	assert.Equal(t, models.OutcomeDeepAnalysis, e.Outcome(0.40))
}

func TestScore_WithPrototypeMatch(t *testing.T) {
	e, protos := newTestEngine(t)
	ctx := context.Background()

	_, err := protos.Update(ctx, "Documents/Finance", unit(1, 0, 0), true)
	require.NoError(t, err)

	res, err := e.Score(ctx, unit(1, 0, 0), "invoice.pdf", "finance", "pdf", nil)
	require.NoError(t, err)

	assert.Equal(t, "Documents/Finance", res.CategoryPath)
	assert.InDelta(t, 1.0, res.Breakdown.PrototypeSimilarity, 1e-6)
	assert.Equal(t, 0.5, res.Breakdown.ClusterDensity) // neutral default
	assert.Equal(t, 1.0, res.Breakdown.ExtensionBonus) // pdf agrees with Documents
	assert.Equal(t, 0.8, res.Breakdown.ParentFolderBonus)
	assert.Equal(t, res.Breakdown.CalibratedScore, res.Confidence)
	assert.Equal(t, models.OutcomeAutoPlace, res.Outcome)
	assert.NotEmpty(t, res.Explanation)
}

func TestScore_StrongSignalAutoPlaces(t *testing.T) {
	e, protos := newTestEngine(t)
	ctx := context.Background()

	_, err := protos.Update(ctx, "Documents/Finance", unit(1, 0, 0), true)
	require.NoError(t, err)

	// Every signal agrees: identical embedding, dense cluster, extension and
	// parent folder both matching the suggestion.
	density := 1.0
	res, err := e.Score(ctx, unit(1, 0, 0), "invoice.pdf", "finance", "pdf", &density)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.Confidence, 0.85)
	assert.Equal(t, models.OutcomeAutoPlace, res.Outcome)
}

func TestScore_DensityRaisesConfidence(t *testing.T) {
	e, protos := newTestEngine(t)
	ctx := context.Background()

	_, err := protos.Update(ctx, "Images", unit(0, 1), true)
	require.NoError(t, err)

	low, high := 0.1, 0.95
	resLow, err := e.Score(ctx, unit(0, 1), "a.png", "", "png", &low)
	require.NoError(t, err)
	resHigh, err := e.Score(ctx, unit(0, 1), "a.png", "", "png", &high)
	require.NoError(t, err)

	assert.Greater(t, resHigh.Confidence, resLow.Confidence)
}

func TestScore_NoPrototypeMatch(t *testing.T) {
	e, _ := newTestEngine(t)

	res, err := e.Score(context.Background(), unit(1, 0), "mystery.bin", "", ".bin", nil)
	require.NoError(t, err)

	assert.Empty(t, res.CategoryPath)
	assert.Zero(t, res.Breakdown.PrototypeSimilarity)
	assert.Equal(t, models.OutcomeDeepAnalysis, res.Outcome)
}

func TestExtensionBonus(t *testing.T) {
	assert.Equal(t, 1.0, extensionBonus("pdf", "Documents/Taxes"))
	assert.Equal(t, 1.0, extensionBonus(".PDF", "documents"))
	assert.Equal(t, 0.5, extensionBonus("pdf", "Images/Vacation")) // known but disagrees
	assert.Equal(t, 0.5, extensionBonus("pdf", ""))                // known, nothing to agree with
	assert.Equal(t, 0.3, extensionBonus("xyz", "Documents"))       // unknown extension
	assert.Equal(t, 0.3, extensionBonus("", "Documents"))
}

func TestParentFolderBonus(t *testing.T) {
	assert.Equal(t, 0.8, parentFolderBonus("Finance", "Documents/Finance"))
	assert.Equal(t, 0.8, parentFolderBonus("fin", "Documents/Finance")) // substring of component
	assert.Equal(t, 0.5, parentFolderBonus("tax-records", "Documents/Tax Returns"))
	assert.Equal(t, 0.2, parentFolderBonus("Downloads", "Documents/Finance"))
	assert.Equal(t, 0.0, parentFolderBonus("", "Documents"))
	assert.Equal(t, 0.0, parentFolderBonus("Finance", ""))
}

func TestPrecisionStatistics(t *testing.T) {
	e, _ := newTestEngine(t)

	stats := e.GetPrecisionStatistics()
	assert.Zero(t, stats.TotalOutcomes)
	assert.False(t, stats.MeetsTarget)

	// 9 of 10 auto-placements correct, plus one correct review.
	for i := 0; i < 9; i++ {
		e.RecordOutcome(true, true)
	}
	e.RecordOutcome(false, true)
	e.RecordOutcome(true, false)

	stats = e.GetPrecisionStatistics()
	assert.Equal(t, int64(11), stats.TotalOutcomes)
	assert.Equal(t, int64(10), stats.CorrectOutcomes)
	assert.Equal(t, int64(10), stats.AutoPlaceOutcomes)
	assert.Equal(t, int64(9), stats.AutoPlaceCorrect)
	assert.InDelta(t, 0.9, stats.AutoPlacePrecision, 1e-9)
	assert.True(t, stats.MeetsTarget) // 0.9 >= 0.85 target
}

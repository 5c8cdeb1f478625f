package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/clock"
	"curator/internal/confidence"
	"curator/internal/embedcache"
	"curator/internal/embedder"
	"curator/internal/models"
	"curator/internal/orchestrator"
	"curator/internal/pattern"
	"curator/internal/providers"
	"curator/internal/prototype"
)

// fixedProvider always proposes the same category.
type fixedProvider struct {
	id   string
	prop providers.Proposal

	mu    sync.Mutex
	calls int
}

func (f *fixedProvider) ID() string { return f.id }

func (f *fixedProvider) IsCloud() bool { return false }

func (f *fixedProvider) IsAvailable(ctx context.Context) bool { return true }

func (f *fixedProvider) Categorize(ctx context.Context, sig models.FileSignature) (providers.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.prop, nil
}

func (f *fixedProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	engine   *Engine
	provider *fixedProvider
	patterns *pattern.Memory
	protos   *prototype.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	protos := prototype.NewStore(prototype.DefaultConfig(), clk, nil, nil)
	patterns := pattern.NewMemory(clk, nil)
	scorer := confidence.NewEngine(protos, confidence.DefaultConfig())
	cache := embedcache.New(embedcache.DefaultConfig(), clk, nil)
	embed := embedder.NewNGram(64)

	ocfg := orchestrator.DefaultConfig()
	ocfg.RetryDelay = time.Millisecond
	orch := orchestrator.New(ocfg, clk)
	provider := &fixedProvider{id: "stub", prop: providers.Proposal{CategoryPath: "Documents/Finance", Confidence: 0.9}}
	orch.Register(provider, 10)

	return &fixture{
		engine:   New(patterns, protos, scorer, orch, cache, embed),
		provider: provider,
		patterns: patterns,
		protos:   protos,
	}
}

func request(fingerprint, filename string) models.CategorizationRequest {
	return models.CategorizationRequest{
		Fingerprint: fingerprint,
		Signature: models.FileSignature{
			Filename:     filename,
			ParentFolder: "inbox",
			Extension:    "pdf",
		},
	}
}

func TestCategorize_FullPipeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.engine.Categorize(ctx, request("fp-1", "invoice.pdf"))
	require.NoError(t, err)

	assert.Equal(t, "Documents/Finance", res.CategoryPath)
	assert.Equal(t, "stub", res.Provider)
	require.NotNil(t, res.Breakdown)
	assert.Equal(t, res.Breakdown.CalibratedScore, res.Confidence)

	// The accepted category becomes an unconfirmed prototype observation.
	p := f.protos.Get("Documents/Finance")
	require.NotNil(t, p)
	assert.Equal(t, 0.5, p.Confidence)
	assert.Equal(t, 1, p.SampleCount)
}

func TestCategorize_PatternMemoryShortCircuit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request("fp-1", "invoice.pdf")
	require.NoError(t, f.engine.Learn(ctx, req, "Documents/Taxes", "Documents/Misc"))

	res, err := f.engine.Categorize(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, "Documents/Taxes", res.CategoryPath)
	assert.Equal(t, "pattern-memory", res.Provider)
	assert.Equal(t, models.OutcomeAutoPlace, res.Outcome)
	assert.Equal(t, 0.95, res.Confidence)
	assert.Zero(t, f.provider.callCount()) // cascade never runs

	// Exact repeats bump the pattern's hit count.
	p := f.patterns.FindByChecksum("fp-1")
	require.NotNil(t, p)
	assert.Equal(t, int64(1), p.HitCount)
}

func TestCategorize_NearDuplicateShortCircuit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Learn(ctx, request("fp-1", "invoice.pdf"), "Documents/Taxes", ""))

	// Same signature, different content fingerprint: the exact lookup misses
	// but the embedding is a near-duplicate of the corrected file.
	res, err := f.engine.Categorize(ctx, request("fp-2", "invoice.pdf"))
	require.NoError(t, err)

	assert.Equal(t, "Documents/Taxes", res.CategoryPath)
	assert.Equal(t, "pattern-memory", res.Provider)
	assert.Equal(t, models.OutcomeAutoPlace, res.Outcome)
	assert.Contains(t, res.Rationale, "near-duplicate")
	assert.InDelta(t, 0.95, res.Confidence, 1e-6) // pattern confidence x similarity 1.0
	assert.Zero(t, f.provider.callCount())

	// The near hit counts toward the matched pattern's retention score.
	p := f.patterns.FindByChecksum("fp-1")
	require.NotNil(t, p)
	assert.Equal(t, int64(1), p.HitCount)
}

func TestCategorize_UnknownFingerprintRunsCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Learn(ctx, request("fp-known", "invoice_2025.pdf"), "Docs", ""))

	// A thoroughly different signature clears neither the exact nor the
	// near-duplicate lookup.
	_, err := f.engine.Categorize(ctx, models.CategorizationRequest{
		Fingerprint: "fp-other",
		Signature: models.FileSignature{
			Filename:     "beach_sunset.jpg",
			ParentFolder: "photos",
			Extension:    "jpg",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.provider.callCount())
}

func TestLearn_UpdatesPatternAndPrototype(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.Learn(ctx, request("fp-1", "notes.md"), "Documents/Notes", "Misc"))

	p := f.patterns.FindByChecksum("fp-1")
	require.NotNil(t, p)
	assert.Equal(t, "Documents/Notes", p.CorrectedLabel)
	assert.Equal(t, 0.95, p.Confidence)

	proto := f.protos.Get("Documents/Notes")
	require.NotNil(t, proto)
	assert.Equal(t, 0.7, proto.Confidence) // confirmed initial confidence
}

func TestScore_NoCascade(t *testing.T) {
	f := newFixture(t)

	res, err := f.engine.Score(context.Background(), request("", "mystery.bin"))
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Zero(t, f.provider.callCount())
}

func TestClassify_DelegatesToPrototypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Nothing learned yet: no classification.
	emb, err := embedder.NewNGram(64).Embed(ctx, "report q3 finance")
	require.NoError(t, err)

	cls, err := f.engine.Classify(ctx, emb, 0)
	require.NoError(t, err)
	assert.Nil(t, cls)

	_, err = f.protos.Update(ctx, "Documents/Finance", emb, true)
	require.NoError(t, err)

	cls, err = f.engine.Classify(ctx, emb, 0)
	require.NoError(t, err)
	require.NotNil(t, cls)
	assert.Equal(t, "Documents/Finance", cls.CategoryPath)
}

func TestRecordOutcome_FeedsPrecisionLoop(t *testing.T) {
	f := newFixture(t)

	f.engine.RecordOutcome(true, true)
	f.engine.RecordOutcome(false, true)

	stats := f.engine.GetPrecisionStatistics()
	assert.Equal(t, int64(2), stats.TotalOutcomes)
	assert.InDelta(t, 0.5, stats.AutoPlacePrecision, 1e-9)
}

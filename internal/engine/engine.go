// Package engine is the categorization decision engine's public surface. A
// request flows: exact-match pattern memory (short-circuit) -> provider
// cascade -> calibrated confidence decision, with the embedding cache backing
// any step that needs a vector.
package engine

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	log "github.com/sirupsen/logrus"

	"curator/internal/confidence"
	"curator/internal/embedcache"
	"curator/internal/embedder"
	"curator/internal/models"
	"curator/internal/orchestrator"
	"curator/internal/pattern"
	"curator/internal/prototype"
)

type Engine struct {
	patterns   *pattern.Memory
	prototypes *prototype.Store
	scorer     *confidence.Engine
	orch       *orchestrator.Orchestrator
	cache      *embedcache.Cache
	embed      embedder.Embedder
}

func New(patterns *pattern.Memory, prototypes *prototype.Store, scorer *confidence.Engine,
	orch *orchestrator.Orchestrator, cache *embedcache.Cache, embed embedder.Embedder) *Engine {
	return &Engine{
		patterns:   patterns,
		prototypes: prototypes,
		scorer:     scorer,
		orch:       orch,
		cache:      cache,
		embed:      embed,
	}
}

// nearMatchMinSimilarity gates the near-duplicate short-circuit. Deliberately
// strict: reusing a learned label for a merely-related file would turn one
// correction into many wrong placements.
const nearMatchMinSimilarity = 0.95

// Categorize runs one request through the full decision pipeline.
func (e *Engine) Categorize(ctx context.Context, req models.CategorizationRequest) (*models.CategorizationResult, error) {
	// A byte-identical file that was corrected before skips the cascade
	// entirely: the learned label is authoritative.
	if req.Fingerprint != "" {
		if p := e.patterns.FindByChecksum(req.Fingerprint); p != nil {
			e.patterns.RecordHit(ctx, req.Fingerprint)
			log.Debugf("Pattern memory hit for %s -> %s", req.Fingerprint, p.CorrectedLabel)
			return &models.CategorizationResult{
				CategoryPath: p.CorrectedLabel,
				Confidence:   p.Confidence,
				Outcome:      models.OutcomeAutoPlace,
				Rationale:    "previously corrected by user (exact fingerprint match)",
				Provider:     "pattern-memory",
			}, nil
		}
	}

	emb, err := e.resolveEmbedding(ctx, req)
	if err != nil {
		return nil, err
	}

	// Near-duplicates of a corrected file reuse its label too, at a strict
	// similarity floor. Anything less similar goes through the cascade.
	if len(emb.Slice()) > 0 {
		if result := e.nearMatch(ctx, emb); result != nil {
			return result, nil
		}
	}

	result, err := e.orch.Categorize(ctx, req.Signature, req.Profile)
	if err != nil {
		return nil, err
	}

	// Calibrate the raw proposal into the canonical decision confidence.
	if len(emb.Slice()) > 0 {
		scored, err := e.scorer.Score(ctx, emb, req.Signature.Filename, req.Signature.ParentFolder,
			req.Signature.Extension, req.ClusterDensity)
		if err != nil {
			return nil, err
		}
		result.Confidence = scored.Confidence
		result.Outcome = scored.Outcome
		breakdown := scored.Breakdown
		result.Breakdown = &breakdown

		// The accepted category also shapes the prototype, as a predicted
		// (unconfirmed) observation.
		if result.CategoryPath != "" {
			if _, err := e.prototypes.Update(ctx, result.CategoryPath, emb, false); err != nil {
				log.Warnf("Prototype update for %q failed: %v", result.CategoryPath, err)
			}
		}
	}
	return result, nil
}

// nearMatch checks the correction memory for a near-duplicate of the request
// embedding. Returns nil when nothing clears the similarity floor.
func (e *Engine) nearMatch(ctx context.Context, emb pgvector.Vector) *models.CategorizationResult {
	matches, err := e.patterns.QueryNearest(emb, 1, nearMatchMinSimilarity)
	if err != nil {
		// Stored embeddings from an older model may not line up
		// dimensionally; the cascade still works, so keep going.
		log.Warnf("Near-duplicate lookup failed: %v", err)
		return nil
	}
	if len(matches) == 0 {
		return nil
	}

	m := matches[0]
	e.patterns.RecordHit(ctx, m.Pattern.Fingerprint)
	log.Debugf("Near-duplicate pattern hit (similarity %.3f) -> %s", m.Similarity, m.Pattern.CorrectedLabel)
	return &models.CategorizationResult{
		CategoryPath: m.Pattern.CorrectedLabel,
		Confidence:   m.Pattern.Confidence * m.Similarity,
		Outcome:      models.OutcomeAutoPlace,
		Rationale:    fmt.Sprintf("near-duplicate of a previously corrected file (similarity %.2f)", m.Similarity),
		Provider:     "pattern-memory",
	}
}

// Score exposes the calibrated confidence breakdown without running the
// provider cascade.
func (e *Engine) Score(ctx context.Context, req models.CategorizationRequest) (*models.ConfidenceResult, error) {
	emb, err := e.resolveEmbedding(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.scorer.Score(ctx, emb, req.Signature.Filename, req.Signature.ParentFolder,
		req.Signature.Extension, req.ClusterDensity)
}

// Classify is the prototype-only path: best match by similarity, confidence =
// prototype confidence x similarity. Returns nil when nothing clears
// minConfidence.
func (e *Engine) Classify(ctx context.Context, embedding pgvector.Vector, minConfidence float64) (*prototype.Classification, error) {
	return e.prototypes.Classify(ctx, embedding, minConfidence)
}

// Learn records a user correction: it becomes a permanent exact-match pattern
// and a confirmed prototype observation.
func (e *Engine) Learn(ctx context.Context, req models.CategorizationRequest, correctedLabel, originalLabel string) error {
	emb, err := e.resolveEmbedding(ctx, req)
	if err != nil {
		return err
	}
	if req.Fingerprint != "" {
		if _, err := e.patterns.Save(ctx, req.Fingerprint, emb, correctedLabel, originalLabel, 0.95); err != nil {
			return fmt.Errorf("save learned pattern: %w", err)
		}
	}
	if _, err := e.prototypes.Update(ctx, correctedLabel, emb, true); err != nil {
		return fmt.Errorf("confirmed prototype update: %w", err)
	}
	return nil
}

// RecordOutcome forwards decision feedback into the precision loop.
func (e *Engine) RecordOutcome(wasCorrect, wasAutoPlace bool) {
	e.scorer.RecordOutcome(wasCorrect, wasAutoPlace)
}

// GetPrecisionStatistics returns the running precision totals.
func (e *Engine) GetPrecisionStatistics() models.PrecisionStatistics {
	return e.scorer.GetPrecisionStatistics()
}

// RoutingState returns the orchestrator's observability snapshot.
func (e *Engine) RoutingState(ctx context.Context) models.RoutingState {
	return e.orch.RoutingState(ctx)
}

// resolveEmbedding returns the request's embedding, the cached one, or a
// freshly computed one (which is then cached).
func (e *Engine) resolveEmbedding(ctx context.Context, req models.CategorizationRequest) (pgvector.Vector, error) {
	if len(req.Embedding.Slice()) > 0 {
		return req.Embedding, nil
	}
	if e.embed == nil {
		return pgvector.Vector{}, nil
	}

	key := embedcache.Key(req.Signature.Filename, req.Signature.ParentFolder, -1)
	if e.cache != nil {
		if emb, ok := e.cache.Get(ctx, key); ok {
			return emb, nil
		}
	}

	emb, err := e.embed.Embed(ctx, embedder.SignatureText(req.Signature))
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("compute embedding for %q: %w", req.Signature.Filename, err)
	}
	if e.cache != nil {
		e.cache.Set(ctx, key, emb, e.embed.ModelName(), req.Signature.Extension)
	}
	return emb, nil
}

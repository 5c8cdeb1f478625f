// Package pattern is the exact-match correction memory: every user correction
// becomes a LearnedPattern keyed by content fingerprint, short-circuiting the
// provider cascade on byte-identical repeats. Patterns are a permanent safety
// net; they are never time-decayed, only explicitly pruned.
package pattern

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	log "github.com/sirupsen/logrus"

	"curator/internal/clock"
	"curator/internal/models"
	"curator/internal/store"
	"curator/internal/vecmath"
)

// Match pairs a learned pattern with its similarity to a query.
type Match struct {
	Pattern    *models.LearnedPattern
	Similarity float64
}

type Memory struct {
	mu       sync.RWMutex
	byFP     map[string]*models.LearnedPattern
	clk      clock.Clock
	kv       store.KV
	kvWarned bool
}

func NewMemory(clk clock.Clock, kv store.KV) *Memory {
	if clk == nil {
		clk = clock.System()
	}
	return &Memory{
		byFP: make(map[string]*models.LearnedPattern),
		clk:  clk,
		kv:   kv,
	}
}

// FindByChecksum is the O(1) exact lookup. Returns nil when the fingerprint
// was never corrected: that is "no prior knowledge", not an error.
func (m *Memory) FindByChecksum(fingerprint string) *models.LearnedPattern {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byFP[fingerprint]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// Save records a correction with create-or-update semantics keyed by
// fingerprint. A repeat correction overwrites the label and embedding but
// keeps identity and hit history.
func (m *Memory) Save(ctx context.Context, fingerprint string, embedding pgvector.Vector, correctedLabel, originalLabel string, confidence float64) (*models.LearnedPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clk.Now()
	p, ok := m.byFP[fingerprint]
	if !ok {
		p = &models.LearnedPattern{
			ID:          uuid.New(),
			Fingerprint: fingerprint,
			CreatedAt:   now,
		}
		m.byFP[fingerprint] = p
	}
	p.Embedding = embedding
	p.CorrectedLabel = correctedLabel
	if originalLabel != "" {
		p.OriginalLabel = originalLabel
	}
	p.Confidence = confidence
	p.UpdatedAt = now
	m.persistLocked(ctx, p)

	cp := *p
	return &cp, nil
}

// RecordHit bumps the hit count for a repeat exact match. Frequently-matched
// patterns are preferentially retained by Prune.
func (m *Memory) RecordHit(ctx context.Context, fingerprint string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.byFP[fingerprint]
	if !ok {
		return
	}
	p.HitCount++
	p.UpdatedAt = m.clk.Now()
	m.persistLocked(ctx, p)
}

// QueryNearest is the brute-force KNN over learned corrections, used for
// near-duplicate detection. Same O(n) ceiling as the prototype store.
func (m *Memory) QueryNearest(embedding pgvector.Vector, k int, minSimilarity float64) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]Match, 0, len(m.byFP))
	for _, p := range m.byFP {
		sim, err := vecmath.Cosine(p.Embedding, embedding)
		if err != nil {
			return nil, err
		}
		if sim < minSimilarity {
			continue
		}
		cp := *p
		matches = append(matches, Match{Pattern: &cp, Similarity: sim})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Prune removes patterns below both thresholds. Returns the number removed.
func (m *Memory) Prune(ctx context.Context, minConfidence float64, minHits int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for fp, p := range m.byFP {
		if p.Confidence < minConfidence && p.HitCount < minHits {
			delete(m.byFP, fp)
			if m.kv != nil {
				if err := m.kv.Delete(ctx, store.PrefixPattern+fp); err != nil {
					m.warnKV(err)
				}
			}
			removed++
		}
	}
	return removed
}

// All returns a snapshot of every pattern, most-hit first.
func (m *Memory) All() []*models.LearnedPattern {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.LearnedPattern, 0, len(m.byFP))
	for _, p := range m.byFP {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HitCount > out[j].HitCount })
	return out
}

// Len returns the number of stored patterns.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byFP)
}

// Load restores patterns from persistence.
func (m *Memory) Load(ctx context.Context) error {
	if m.kv == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.kv.Scan(ctx, store.PrefixPattern, func(key string, value []byte) error {
		var p models.LearnedPattern
		if err := json.Unmarshal(value, &p); err != nil {
			log.Warnf("Skipping corrupt pattern record %q: %v", key, err)
			return nil
		}
		m.byFP[p.Fingerprint] = &p
		return nil
	})
}

func (m *Memory) persistLocked(ctx context.Context, p *models.LearnedPattern) {
	if m.kv == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := m.kv.Set(ctx, store.PrefixPattern+p.Fingerprint, data); err != nil {
		m.warnKV(err)
	}
}

func (m *Memory) warnKV(err error) {
	if m.kvWarned {
		return
	}
	m.kvWarned = true
	log.Warnf("Pattern persistence unavailable, continuing memory-only: %v", err)
}

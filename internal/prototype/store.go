// Package prototype maintains one EMA-updated embedding per category path.
// Each prototype is the running average of the files assigned to that
// category, with a confidence value that is boosted on assignments and
// decayed over idle time.
package prototype

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"
	log "github.com/sirupsen/logrus"

	"curator/internal/clock"
	"curator/internal/models"
	"curator/internal/store"
	"curator/internal/vecmath"
)

type Config struct {
	Alpha             float64 // EMA decay; weight of the existing prototype
	Boost             float64 // confidence boost per predicted assignment
	ConfirmedBoost    float64 // boost when a human confirmed the assignment
	MaxConfidence     float64
	InitialConfidence float64
	InitialConfirmed  float64
	DecayRatePerDay   float64
	DecayFloor        float64
	ClassifyMinSim    float64
}

func DefaultConfig() Config {
	return Config{
		Alpha:             0.9,
		Boost:             0.05,
		ConfirmedBoost:    0.10,
		MaxConfidence:     0.95,
		InitialConfidence: 0.5,
		InitialConfirmed:  0.7,
		DecayRatePerDay:   0.01,
		DecayFloor:        0.1,
		ClassifyMinSim:    0.3,
	}
}

// Match pairs a prototype with its similarity to a query.
type Match struct {
	Prototype  *models.Prototype
	Similarity float64
}

// Classification is the result of prototype-only classification. Confidence
// here is prototype.Confidence x similarity; the multi-signal calibrated
// score from the confidence engine is what drives placement decisions.
type Classification struct {
	CategoryPath string  `json:"category_path"`
	Similarity   float64 `json:"similarity"`
	Confidence   float64 `json:"confidence"`
}

// Store owns all prototype state behind one mutex. A single global
// serialization point is the simplest correct choice here; sharding by
// category would only matter at write volumes this engine never sees.
type Store struct {
	mu     sync.RWMutex
	protos map[string]*models.Prototype // keyed by models.CategoryID(path)
	cfg    Config
	clk    clock.Clock
	kv     store.KV                 // optional write-through
	search store.SimilaritySearcher // optional indexed backend; nil = brute force

	kvWarned bool
}

func NewStore(cfg Config, clk clock.Clock, kv store.KV, search store.SimilaritySearcher) *Store {
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = DefaultConfig().Alpha
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Store{
		protos: make(map[string]*models.Prototype),
		cfg:    cfg,
		clk:    clk,
		kv:     kv,
		search: search,
	}
}

// Get returns the prototype for a category path, or nil if never observed.
func (s *Store) Get(path string) *models.Prototype {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.protos[models.CategoryID(path)]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// Update blends an observed embedding into the category's prototype, creating
// the prototype on first observation. confirmed marks a human correction and
// earns a bigger confidence boost.
func (s *Store) Update(ctx context.Context, path string, embedding pgvector.Vector, confirmed bool) (*models.Prototype, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	id := models.CategoryID(path)
	p, ok := s.protos[id]
	if !ok {
		conf := s.cfg.InitialConfidence
		if confirmed {
			conf = s.cfg.InitialConfirmed
		}
		p = &models.Prototype{
			ID:           id,
			CategoryPath: path,
			Embedding:    vecmath.Normalize(embedding),
			SampleCount:  1,
			Confidence:   conf,
			Version:      1,
			Scope:        models.ScopeFolder,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		s.protos[id] = p
	} else {
		blended, err := vecmath.Blend(p.Embedding, embedding, s.cfg.Alpha)
		if err != nil {
			return nil, err
		}
		p.Embedding = blended
		p.SampleCount++
		boost := s.cfg.Boost
		if confirmed {
			boost = s.cfg.ConfirmedBoost
		}
		p.Confidence += boost
		if p.Confidence > s.cfg.MaxConfidence {
			p.Confidence = s.cfg.MaxConfidence
		}
		p.Version++
		p.UpdatedAt = now
	}

	s.persistLocked(ctx, p)
	s.indexLocked(ctx, p)

	cp := *p
	return &cp, nil
}

// FindSimilar returns up to k prototypes by descending cosine similarity,
// filtered by minSimilarity. Brute force unless an indexed searcher was
// injected.
func (s *Store) FindSimilar(ctx context.Context, embedding pgvector.Vector, k int, minSimilarity float64) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	if s.search != nil {
		hits, err := s.search.Search(ctx, embedding, k, minSimilarity)
		if err != nil {
			log.Warnf("Indexed similarity search failed, falling back to brute force: %v", err)
		} else {
			s.mu.RLock()
			defer s.mu.RUnlock()
			matches := make([]Match, 0, len(hits))
			for _, h := range hits {
				if p, ok := s.protos[h.ID]; ok {
					cp := *p
					matches = append(matches, Match{Prototype: &cp, Similarity: h.Similarity})
				}
			}
			return matches, nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.protos))
	for _, p := range s.protos {
		sim, err := vecmath.Cosine(p.Embedding, embedding)
		if err != nil {
			return nil, err
		}
		if sim < minSimilarity {
			continue
		}
		cp := *p
		matches = append(matches, Match{Prototype: &cp, Similarity: sim})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Classify returns the best prototype match, or nil when nothing clears
// minConfidence. Confidence is prototype confidence scaled by similarity.
func (s *Store) Classify(ctx context.Context, embedding pgvector.Vector, minConfidence float64) (*Classification, error) {
	matches, err := s.FindSimilar(ctx, embedding, 1, s.cfg.ClassifyMinSim)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	best := matches[0]
	adjusted := best.Prototype.Confidence * best.Similarity
	if adjusted < minConfidence {
		return nil, nil
	}
	return &Classification{
		CategoryPath: best.Prototype.CategoryPath,
		Similarity:   best.Similarity,
		Confidence:   adjusted,
	}, nil
}

// LinkFolders marks a category as shared across the given folders.
func (s *Store) LinkFolders(ctx context.Context, paths []string, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.protos[models.CategoryID(category)]
	if !ok {
		return models.ErrNotFound
	}
	set := make(map[string]bool, len(p.LinkedFolders)+len(paths))
	for _, f := range p.LinkedFolders {
		set[f] = true
	}
	for _, f := range paths {
		set[f] = true
	}
	p.LinkedFolders = sortedKeys(set)
	p.Scope = models.ScopeShared
	p.Version++
	p.UpdatedAt = s.clk.Now()
	s.persistLocked(ctx, p)
	return nil
}

// UnlinkFolder removes one folder from a category's linked set. When the set
// empties, scope reverts to folder-scoped.
func (s *Store) UnlinkFolder(ctx context.Context, path, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.protos[models.CategoryID(category)]
	if !ok {
		return models.ErrNotFound
	}
	kept := p.LinkedFolders[:0]
	for _, f := range p.LinkedFolders {
		if f != path {
			kept = append(kept, f)
		}
	}
	p.LinkedFolders = kept
	if len(p.LinkedFolders) == 0 {
		p.LinkedFolders = nil
		p.Scope = models.ScopeFolder
	}
	p.Version++
	p.UpdatedAt = s.clk.Now()
	s.persistLocked(ctx, p)
	return nil
}

// ApplyConfidenceDecay subtracts decayRate x daysSinceUpdate from every
// prototype's confidence, floored at the configured minimum. Returns the
// number of prototypes whose confidence changed.
func (s *Store) ApplyConfidenceDecay(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clk.Now()
	changed := 0
	for _, p := range s.protos {
		days := now.Sub(p.UpdatedAt).Hours() / 24
		if days <= 0 {
			continue
		}
		decayed := p.Confidence - s.cfg.DecayRatePerDay*days
		if decayed < s.cfg.DecayFloor {
			decayed = s.cfg.DecayFloor
		}
		if decayed == p.Confidence {
			continue
		}
		p.Confidence = decayed
		p.Version++
		// UpdatedAt deliberately untouched: decay is a function of idle time,
		// and touching it would reset the decay base.
		s.persistLocked(ctx, p)
		changed++
	}
	return changed
}

// PruneWeak removes prototypes whose confidence is below minConfidence AND
// whose sample count is at most minSamples. Returns the number removed.
func (s *Store) PruneWeak(ctx context.Context, minConfidence float64, minSamples int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, p := range s.protos {
		if p.Confidence < minConfidence && p.SampleCount <= minSamples {
			delete(s.protos, id)
			s.deleteKVLocked(ctx, id)
			if s.search != nil {
				if err := s.search.Remove(ctx, id); err != nil {
					log.Warnf("Failed to remove prototype %s from index: %v", id, err)
				}
			}
			removed++
		}
	}
	return removed
}

// All returns a snapshot of every prototype, sorted by category path.
func (s *Store) All() []*models.Prototype {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Prototype, 0, len(s.protos))
	for _, p := range s.protos {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].CategoryPath) < strings.ToLower(out[j].CategoryPath)
	})
	return out
}

// Len returns the number of prototypes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.protos)
}

// Load restores prototypes from persistence.
func (s *Store) Load(ctx context.Context) error {
	if s.kv == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.kv.Scan(ctx, store.PrefixPrototype, func(key string, value []byte) error {
		var p models.Prototype
		if err := json.Unmarshal(value, &p); err != nil {
			log.Warnf("Skipping corrupt prototype record %q: %v", key, err)
			return nil
		}
		s.protos[p.ID] = &p
		return nil
	})
}

func (s *Store) persistLocked(ctx context.Context, p *models.Prototype) {
	if s.kv == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, store.PrefixPrototype+p.ID, data); err != nil {
		s.warnKV(err)
	}
}

func (s *Store) deleteKVLocked(ctx context.Context, id string) {
	if s.kv == nil {
		return
	}
	if err := s.kv.Delete(ctx, store.PrefixPrototype+id); err != nil {
		s.warnKV(err)
	}
}

func (s *Store) indexLocked(ctx context.Context, p *models.Prototype) {
	if s.search == nil {
		return
	}
	if err := s.search.Upsert(ctx, p.ID, p.Embedding); err != nil {
		log.Warnf("Failed to index prototype %s: %v", p.ID, err)
	}
}

func (s *Store) warnKV(err error) {
	if s.kvWarned {
		return
	}
	s.kvWarned = true
	log.Warnf("Prototype persistence unavailable, continuing memory-only: %v", err)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DaysSince is exposed for decay previews in the CLI.
func DaysSince(t, now time.Time) float64 {
	return now.Sub(t).Hours() / 24
}

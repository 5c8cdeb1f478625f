// Package tasks defines the Asynq task types and handlers for background
// maintenance sweeps.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"curator/internal/embedcache"
	"curator/internal/pattern"
	"curator/internal/prototype"
)

const (
	// TypePrototypeDecay applies time-based confidence decay to every prototype.
	TypePrototypeDecay = "prototype:decay"
	// TypePrototypePrune removes weak prototypes (low confidence AND low samples).
	TypePrototypePrune = "prototype:prune"
	// TypePatternPrune removes rarely-hit low-confidence learned patterns.
	TypePatternPrune = "pattern:prune"
	// TypeCachePrune evicts expired/overflowing embedding cache entries.
	TypeCachePrune = "cache:prune"
)

// PrunePayload carries the thresholds for prune sweeps.
type PrunePayload struct {
	MinConfidence float64 `json:"min_confidence"`
	MinSamples    int     `json:"min_samples"`
	MinHits       int64   `json:"min_hits"`
}

func NewPrototypeDecayTask() *asynq.Task {
	return asynq.NewTask(TypePrototypeDecay, nil)
}

func NewPrototypePruneTask(minConfidence float64, minSamples int) (*asynq.Task, error) {
	payload, err := json.Marshal(PrunePayload{MinConfidence: minConfidence, MinSamples: minSamples})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePrototypePrune, payload), nil
}

func NewPatternPruneTask(minConfidence float64, minHits int64) (*asynq.Task, error) {
	payload, err := json.Marshal(PrunePayload{MinConfidence: minConfidence, MinHits: minHits})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePatternPrune, payload), nil
}

func NewCachePruneTask() *asynq.Task {
	return asynq.NewTask(TypeCachePrune, nil)
}

// Handler owns the maintenance sweeps over the engine's stores.
type Handler struct {
	Prototypes *prototype.Store
	Patterns   *pattern.Memory
	Cache      *embedcache.Cache
}

// Register wires all handlers onto an Asynq mux.
func (h *Handler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypePrototypeDecay, h.HandlePrototypeDecay)
	mux.HandleFunc(TypePrototypePrune, h.HandlePrototypePrune)
	mux.HandleFunc(TypePatternPrune, h.HandlePatternPrune)
	mux.HandleFunc(TypeCachePrune, h.HandleCachePrune)
}

func (h *Handler) HandlePrototypeDecay(ctx context.Context, _ *asynq.Task) error {
	changed := h.Prototypes.ApplyConfidenceDecay(ctx)
	log.Infof("Confidence decay sweep: %d prototypes decayed", changed)
	return nil
}

func (h *Handler) HandlePrototypePrune(ctx context.Context, t *asynq.Task) error {
	var p PrunePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("prototype prune payload: %w: %v", asynq.SkipRetry, err)
	}
	removed := h.Prototypes.PruneWeak(ctx, p.MinConfidence, p.MinSamples)
	log.Infof("Prototype prune sweep: %d removed (minConfidence=%.2f, minSamples=%d)",
		removed, p.MinConfidence, p.MinSamples)
	return nil
}

func (h *Handler) HandlePatternPrune(ctx context.Context, t *asynq.Task) error {
	var p PrunePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("pattern prune payload: %w: %v", asynq.SkipRetry, err)
	}
	removed := h.Patterns.Prune(ctx, p.MinConfidence, p.MinHits)
	log.Infof("Pattern prune sweep: %d removed (minConfidence=%.2f, minHits=%d)",
		removed, p.MinConfidence, p.MinHits)
	return nil
}

func (h *Handler) HandleCachePrune(ctx context.Context, _ *asynq.Task) error {
	evicted := h.Cache.Prune(ctx)
	log.Infof("Cache prune sweep: %d entries evicted", evicted)
	return nil
}

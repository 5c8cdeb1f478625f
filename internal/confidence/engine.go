// Package confidence fuses prototype similarity, cluster density and filename
// heuristics into one calibrated score and a three-way placement decision.
// This calibrated score is the canonical confidence for decision-making;
// the prototype store's confidence x similarity product only feeds the
// heuristic provider and the raw classify call path.
package confidence

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/pgvector/pgvector-go"

	"curator/internal/models"
	"curator/internal/prototype"
)

type Weights struct {
	Prototype float64
	Density   float64
	Extension float64
	Parent    float64
}

type Calibration struct {
	Steepness float64
	Center    float64
	Minimum   float64 // floor of the calibrated output range
}

type Thresholds struct {
	AutoPlace float64
	Review    float64
}

type Config struct {
	Weights         Weights
	Calibration     Calibration
	Thresholds      Thresholds
	TargetPrecision float64
	// Minimum similarity for the prototype lookup feeding the score.
	LookupMinSim float64
}

func DefaultConfig() Config {
	return Config{
		Weights:         Weights{Prototype: 0.4, Density: 0.25, Extension: 0.15, Parent: 0.2},
		Calibration:     Calibration{Steepness: 2.5, Center: 0.5, Minimum: 0.3},
		Thresholds:      Thresholds{AutoPlace: 0.85, Review: 0.6},
		TargetPrecision: 0.85,
		LookupMinSim:    0.2,
	}
}

// Engine is read-mostly against the prototype store; its own mutable state is
// just the precision counters, guarded by one mutex.
type Engine struct {
	protos *prototype.Store
	cfg    Config

	mu               sync.Mutex
	totalOutcomes    int64
	correctOutcomes  int64
	autoPlaceTotal   int64
	autoPlaceCorrect int64
}

func NewEngine(protos *prototype.Store, cfg Config) *Engine {
	if cfg.Weights == (Weights{}) {
		cfg = DefaultConfig()
	}
	if cfg.LookupMinSim == 0 {
		cfg.LookupMinSim = DefaultConfig().LookupMinSim
	}
	return &Engine{protos: protos, cfg: cfg}
}

// Thresholds exposes the configured decision thresholds; the orchestrator
// consumes them as policy input.
func (e *Engine) Thresholds() Thresholds { return e.cfg.Thresholds }

// Score produces a calibrated confidence and placement decision for one file.
// clusterDensity is optional; nil falls back to a neutral 0.5.
func (e *Engine) Score(ctx context.Context, embedding pgvector.Vector, filename, parentFolder, extension string, clusterDensity *float64) (*models.ConfidenceResult, error) {
	var (
		similarity float64
		suggestion string
	)
	matches, err := e.protos.FindSimilar(ctx, embedding, 1, e.cfg.LookupMinSim)
	if err != nil {
		return nil, fmt.Errorf("prototype lookup for %q: %w", filename, err)
	}
	if len(matches) > 0 {
		similarity = matches[0].Similarity
		suggestion = matches[0].Prototype.CategoryPath
	}

	density := 0.5
	if clusterDensity != nil {
		density = clamp01(*clusterDensity)
	}

	extBonus := extensionBonus(extension, suggestion)
	parentBonus := parentFolderBonus(parentFolder, suggestion)

	weighted := similarity*e.cfg.Weights.Prototype +
		density*e.cfg.Weights.Density +
		extBonus*e.cfg.Weights.Extension +
		parentBonus*e.cfg.Weights.Parent

	calibrated := e.Calibrate(weighted)
	outcome := e.Outcome(calibrated)

	breakdown := models.ConfidenceBreakdown{
		PrototypeSimilarity: similarity,
		ClusterDensity:      density,
		ExtensionBonus:      extBonus,
		ParentFolderBonus:   parentBonus,
		CalibratedScore:     calibrated,
	}

	return &models.ConfidenceResult{
		Confidence:   calibrated,
		Outcome:      outcome,
		Breakdown:    breakdown,
		CategoryPath: suggestion,
		Explanation:  explain(filename, suggestion, breakdown, outcome),
	}, nil
}

// Calibrate maps a raw weighted score through a logistic curve onto
// [Minimum, 1.0]. Over the clamped [0,1] input domain the sigmoid only
// spans [sigmoid(-steepness*center), sigmoid(steepness*(1-center))], so that
// achievable span is affine-mapped onto the output range; rescaling the
// theoretical (0,1) range instead would leave the top of the range, and with
// it the auto-place tier, unreachable. Monotonic non-decreasing over [0, 1].
func (e *Engine) Calibrate(raw float64) float64 {
	c := e.cfg.Calibration
	x := clamp01(raw)
	sig := 1.0 / (1.0 + math.Exp(-c.Steepness*(x-c.Center)))
	lo := 1.0 / (1.0 + math.Exp(c.Steepness*c.Center))
	hi := 1.0 / (1.0 + math.Exp(-c.Steepness*(1.0-c.Center)))
	norm := (sig - lo) / (hi - lo)
	return c.Minimum + norm*(1.0-c.Minimum)
}

// Outcome maps a calibrated score onto the three-way decision.
func (e *Engine) Outcome(calibrated float64) models.Outcome {
	switch {
	case calibrated >= e.cfg.Thresholds.AutoPlace:
		return models.OutcomeAutoPlace
	case calibrated >= e.cfg.Thresholds.Review:
		return models.OutcomeReview
	default:
		return models.OutcomeDeepAnalysis
	}
}

// RecordOutcome feeds the precision loop: wasCorrect reports whether the
// decision held up, wasAutoPlace whether it was an automatic placement.
func (e *Engine) RecordOutcome(wasCorrect, wasAutoPlace bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.totalOutcomes++
	if wasCorrect {
		e.correctOutcomes++
	}
	if wasAutoPlace {
		e.autoPlaceTotal++
		if wasCorrect {
			e.autoPlaceCorrect++
		}
	}
}

// GetPrecisionStatistics reports the running totals and whether auto-place
// precision meets the configured target.
func (e *Engine) GetPrecisionStatistics() models.PrecisionStatistics {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := models.PrecisionStatistics{
		TotalOutcomes:     e.totalOutcomes,
		CorrectOutcomes:   e.correctOutcomes,
		AutoPlaceOutcomes: e.autoPlaceTotal,
		AutoPlaceCorrect:  e.autoPlaceCorrect,
	}
	if e.totalOutcomes > 0 {
		stats.OverallPrecision = float64(e.correctOutcomes) / float64(e.totalOutcomes)
	}
	if e.autoPlaceTotal > 0 {
		stats.AutoPlacePrecision = float64(e.autoPlaceCorrect) / float64(e.autoPlaceTotal)
		stats.MeetsTarget = stats.AutoPlacePrecision >= e.cfg.TargetPrecision
	}
	return stats
}

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// parentFolderBonus scores how well the parent folder name agrees with the
// suggested category path: 0.8 on a substring match against any path
// component, 0.5 on token-level overlap, 0.2 for an unrelated parent, 0.0
// when there is no parent or no suggestion.
func parentFolderBonus(parentFolder, suggestedCategory string) float64 {
	if parentFolder == "" || suggestedCategory == "" {
		return 0.0
	}
	parent := strings.ToLower(parentFolder)
	for _, component := range strings.Split(strings.ToLower(suggestedCategory), "/") {
		if component == "" {
			continue
		}
		if strings.Contains(component, parent) || strings.Contains(parent, component) {
			return 0.8
		}
	}

	parentTokens := tokenSet(parent)
	categoryTokens := tokenSet(strings.ToLower(suggestedCategory))
	for tok := range parentTokens {
		if categoryTokens[tok] {
			return 0.5
		}
	}
	return 0.2
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range tokenSplit.Split(s, -1) {
		if tok != "" {
			out[tok] = true
		}
	}
	return out
}

func explain(filename, suggestion string, b models.ConfidenceBreakdown, outcome models.Outcome) string {
	if suggestion == "" {
		return fmt.Sprintf("%s: no prototype match; outcome %s (score %.2f)", filename, outcome, b.CalibratedScore)
	}
	return fmt.Sprintf("%s: best prototype %q (similarity %.2f, density %.2f, ext %.2f, parent %.2f); outcome %s (score %.2f)",
		filename, suggestion, b.PrototypeSimilarity, b.ClusterDensity, b.ExtensionBonus, b.ParentFolderBonus, outcome, b.CalibratedScore)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

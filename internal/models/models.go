package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// PrototypeScope controls which folders a category prototype applies to.
type PrototypeScope string

const (
	ScopeFolder PrototypeScope = "folder"
	ScopeShared PrototypeScope = "shared"
	ScopeGlobal PrototypeScope = "global"
)

// Prototype is the EMA-blended embedding representing a category's typical file.
// The embedding is kept unit-length after every update.
type Prototype struct {
	ID            string          `json:"id"`
	CategoryPath  string          `json:"category_path"`
	Embedding     pgvector.Vector `json:"embedding"`
	SampleCount   int             `json:"sample_count"`
	Confidence    float64         `json:"confidence"`
	Version       int64           `json:"version"`
	Scope         PrototypeScope  `json:"scope"`
	LinkedFolders []string        `json:"linked_folders,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CategoryID derives the stable prototype ID from a category path.
// Case and surrounding whitespace are not significant.
func CategoryID(categoryPath string) string {
	norm := strings.ToLower(strings.TrimSpace(categoryPath))
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:16])
}

// LearnedPattern is an exact-match correction remembered from user feedback.
// At most one pattern exists per content fingerprint. Patterns are never
// time-decayed; they are removed only by explicit pruning.
type LearnedPattern struct {
	ID             uuid.UUID       `json:"id"`
	Fingerprint    string          `json:"fingerprint"`
	Embedding      pgvector.Vector `json:"embedding"`
	CorrectedLabel string          `json:"corrected_label"`
	OriginalLabel  string          `json:"original_label,omitempty"`
	Confidence     float64         `json:"confidence"`
	HitCount       int64           `json:"hit_count"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CacheEntry memoizes one computed embedding. The ID is a pure function of
// (filename, parentPath, size), so inserts are idempotent.
type CacheEntry struct {
	ID                string          `json:"id"`
	Embedding         pgvector.Vector `json:"embedding"`
	Dimensions        int             `json:"dimensions"`
	GeneratingModelID string          `json:"generating_model_id"`
	TypeTag           string          `json:"type_tag,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	LastAccessedAt    time.Time       `json:"last_accessed_at"`
	HitCount          int64           `json:"hit_count"`
}

// Outcome is the three-way decision produced by the confidence engine.
type Outcome string

const (
	OutcomeAutoPlace    Outcome = "auto_place"
	OutcomeReview       Outcome = "review"
	OutcomeDeepAnalysis Outcome = "deep_analysis"
)

// ConfidenceBreakdown holds the individual signals behind a calibrated score.
// Produced fresh per request, never mutated.
type ConfidenceBreakdown struct {
	PrototypeSimilarity float64 `json:"prototype_similarity"`
	ClusterDensity      float64 `json:"cluster_density"`
	ExtensionBonus      float64 `json:"extension_bonus"`
	ParentFolderBonus   float64 `json:"parent_folder_bonus"`
	CalibratedScore     float64 `json:"calibrated_score"`
}

// ConfidenceResult is the scored decision for one file.
type ConfidenceResult struct {
	Confidence   float64             `json:"confidence"`
	Outcome      Outcome             `json:"outcome"`
	Breakdown    ConfidenceBreakdown `json:"breakdown"`
	CategoryPath string              `json:"category_path,omitempty"`
	Explanation  string              `json:"explanation"`
}

// FileSignature carries the contextual hints a provider categorizes from.
type FileSignature struct {
	Filename     string   `json:"filename"`
	ParentFolder string   `json:"parent_folder,omitempty"`
	Extension    string   `json:"extension,omitempty"`
	Preview      string   `json:"preview,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// CategorizationRequest is one request through the decision engine.
// Embedding may be zero-length, in which case the engine computes (or
// cache-hits) one from the signature.
type CategorizationRequest struct {
	Fingerprint    string          `json:"fingerprint,omitempty"`
	Embedding      pgvector.Vector `json:"embedding,omitempty"`
	Signature      FileSignature   `json:"signature"`
	ClusterDensity *float64        `json:"cluster_density,omitempty"`
	Profile        string          `json:"profile,omitempty"`
}

// CategorizationResult is the terminal result of one request.
type CategorizationResult struct {
	CategoryPath  string               `json:"category_path"`
	Confidence    float64              `json:"confidence"`
	Outcome       Outcome              `json:"outcome,omitempty"`
	Rationale     string               `json:"rationale,omitempty"`
	Keywords      []string             `json:"keywords,omitempty"`
	Provider      string               `json:"provider"`
	EscalatedFrom string               `json:"escalated_from,omitempty"`
	Breakdown     *ConfidenceBreakdown `json:"breakdown,omitempty"`
}

// RoutingMode describes what the orchestrator can currently reach.
type RoutingMode string

const (
	RoutingFull     RoutingMode = "full"
	RoutingDegraded RoutingMode = "degraded"
	RoutingOffline  RoutingMode = "offline"
)

// ProviderHealth is the per-provider backoff state.
type ProviderHealth struct {
	ProviderID          string        `json:"provider_id"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	BackoffDuration     time.Duration `json:"backoff_duration"`
	NextRetryAt         time.Time     `json:"next_retry_at"`
}

// RoutingState is the orchestrator's aggregate view, exposed for observability.
type RoutingState struct {
	Mode               RoutingMode `json:"mode"`
	AvailableProviders []string    `json:"available_providers"`
	LastError          string      `json:"last_error,omitempty"`
	BackoffUntil       time.Time   `json:"backoff_until,omitempty"`
}

// PrecisionStatistics is the running feedback-loop tally for tuning thresholds.
type PrecisionStatistics struct {
	TotalOutcomes      int64   `json:"total_outcomes"`
	CorrectOutcomes    int64   `json:"correct_outcomes"`
	AutoPlaceOutcomes  int64   `json:"auto_place_outcomes"`
	AutoPlaceCorrect   int64   `json:"auto_place_correct"`
	OverallPrecision   float64 `json:"overall_precision"`
	AutoPlacePrecision float64 `json:"auto_place_precision"`
	MeetsTarget        bool    `json:"meets_target"`
}

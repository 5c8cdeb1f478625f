package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"curator/internal/clock"
	"curator/internal/config"
	"curator/internal/confidence"
	"curator/internal/embedcache"
	"curator/internal/embedder"
	"curator/internal/engine"
	"curator/internal/orchestrator"
	"curator/internal/pattern"
	"curator/internal/prototype"
	"curator/internal/providers"
	"curator/internal/store"
	"curator/internal/store/kv"
	"curator/internal/store/vector"
)

type App struct {
	Config *config.Config
	Clock  clock.Clock

	KV       store.KV
	Searcher store.SimilaritySearcher

	Embedder   embedder.Embedder
	Cache      *embedcache.Cache
	Prototypes *prototype.Store
	Patterns   *pattern.Memory
	Scorer     *confidence.Engine
	Orch       *orchestrator.Orchestrator
	Engine     *engine.Engine
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	app := &App{Config: cfg, Clock: clock.System()}

	app.initKV()
	app.initSearcher(ctx)
	if err := app.initEmbedder(); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.initStores(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.initConfidence()
	if err := app.initOrchestrator(); err != nil {
		app.Close()
		return nil, err
	}
	app.Engine = engine.New(app.Patterns, app.Prototypes, app.Scorer, app.Orch, app.Cache, app.Embedder)

	log.Debug("Application initialization complete.")
	return app, nil
}

// initKV opens BadgerDB; on failure the engine degrades to memory-only
// operation instead of refusing to start.
func (a *App) initKV() {
	db, err := kv.OpenBadger(a.Config.Storage.Path)
	if err != nil {
		log.Warnf("Persistence unavailable (%v); continuing memory-only", err)
		a.KV = kv.NewMemory()
		return
	}
	a.KV = db
}

func (a *App) initSearcher(ctx context.Context) {
	if a.Config.Vector.DSN == "" {
		return // brute-force in-memory search
	}
	s, err := vector.NewSearcher(ctx, a.Config.Vector.DSN, a.Config.Embedding.Dimension)
	if err != nil {
		log.Warnf("pgvector searcher unavailable (%v); using brute-force search", err)
		return
	}
	a.Searcher = s
}

func (a *App) initEmbedder() error {
	switch a.Config.Embedding.Provider {
	case "", "ngram":
		a.Embedder = embedder.NewNGram(a.Config.Embedding.Dimension)
	case "openai":
		e, err := embedder.NewOpenAI(a.Config.Embedding.OpenaiApiKey, a.Config.Embedding.Model)
		if err != nil {
			return fmt.Errorf("init openai embedder: %w", err)
		}
		a.Embedder = e
	default:
		return fmt.Errorf("unknown embedding provider %q", a.Config.Embedding.Provider)
	}
	return nil
}

func (a *App) initStores(ctx context.Context) error {
	a.Cache = embedcache.New(embedcache.Config{
		MaxSize:         a.Config.Cache.MaxSize,
		TTL:             a.Config.Cache.TTL,
		PruneThreshold:  a.Config.Cache.PruneThreshold,
		RecencyWeight:   0.7,
		FrequencyWeight: 0.3,
	}, a.Clock, a.KV)
	if err := a.Cache.Load(ctx); err != nil {
		log.Warnf("Loading embedding cache failed: %v", err)
	}

	a.Prototypes = prototype.NewStore(prototype.Config{
		Alpha:             a.Config.Prototype.Alpha,
		Boost:             a.Config.Prototype.Boost,
		ConfirmedBoost:    a.Config.Prototype.ConfirmedBoost,
		MaxConfidence:     a.Config.Prototype.MaxConfidence,
		InitialConfidence: a.Config.Prototype.InitialConfidence,
		InitialConfirmed:  a.Config.Prototype.InitialConfirmed,
		DecayRatePerDay:   a.Config.Prototype.DecayRatePerDay,
		DecayFloor:        a.Config.Prototype.DecayFloor,
		ClassifyMinSim:    a.Config.Prototype.ClassifyMinSim,
	}, a.Clock, a.KV, a.Searcher)
	if err := a.Prototypes.Load(ctx); err != nil {
		log.Warnf("Loading prototypes failed: %v", err)
	}

	a.Patterns = pattern.NewMemory(a.Clock, a.KV)
	if err := a.Patterns.Load(ctx); err != nil {
		log.Warnf("Loading learned patterns failed: %v", err)
	}
	return nil
}

func (a *App) initConfidence() {
	c := a.Config.Confidence
	a.Scorer = confidence.NewEngine(a.Prototypes, confidence.Config{
		Weights: confidence.Weights{
			Prototype: c.PrototypeWeight,
			Density:   c.DensityWeight,
			Extension: c.ExtensionWeight,
			Parent:    c.ParentWeight,
		},
		Calibration: confidence.Calibration{
			Steepness: c.Steepness,
			Center:    c.Center,
			Minimum:   c.MinimumConfidence,
		},
		Thresholds: confidence.Thresholds{
			AutoPlace: c.AutoPlace,
			Review:    c.Review,
		},
		TargetPrecision: c.TargetPrecision,
		LookupMinSim:    0.2,
	})
}

func (a *App) initOrchestrator() error {
	p := a.Config.Providers
	a.Orch = orchestrator.New(orchestrator.Config{
		EscalationThreshold: p.EscalationThreshold,
		CallTimeout:         p.CallTimeout,
		RetryDelay:          p.RetryDelay,
		HealthInterval:      p.HealthInterval,
		AvailabilityTTL:     p.AvailabilityTTL,
		BackoffBase:         p.BackoffBase,
		BackoffMultiplier:   p.BackoffMultiplier,
		BackoffCapLocal:     p.BackoffCapLocal,
		BackoffCapCloud:     p.BackoffCapCloud,
		DegradedEnabled:     p.DegradedEnabled,
	}, a.Clock)

	// On-device heuristic is always registered, always last within local.
	a.Orch.Register(providers.NewHeuristic(a.Prototypes, a.Embedder), 100)

	if p.LocalServer.BaseURL != "" {
		a.Orch.Register(providers.NewLocalServer(p.LocalServer.BaseURL, p.LocalServer.Model, ""), 10)
	}
	if p.OpenAI.APIKey != "" {
		a.Orch.Register(providers.NewOpenAI(p.OpenAI.APIKey, p.OpenAI.Model, ""), 20)
	}
	if p.Gemini.APIKey != "" {
		g, err := providers.NewGemini(p.Gemini.APIKey, p.Gemini.Model, "")
		if err != nil {
			return fmt.Errorf("init gemini provider: %w", err)
		}
		a.Orch.Register(g, 30)
	}
	return nil
}

// Close releases everything; safe on a partially-initialized app.
func (a *App) Close() {
	if a.Orch != nil {
		a.Orch.Stop()
	}
	if closer, ok := a.Searcher.(interface{ Close() error }); ok && a.Searcher != nil {
		if err := closer.Close(); err != nil {
			log.Warnf("Closing vector searcher: %v", err)
		}
	}
	if a.KV != nil {
		if err := a.KV.Close(); err != nil {
			log.Warnf("Closing KV store: %v", err)
		}
	}
}

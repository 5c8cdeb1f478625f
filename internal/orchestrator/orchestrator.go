// Package orchestrator cascades categorization requests across the registered
// providers in explicit priority order, tracking per-provider backoff and a
// global routing mode, and escalating past low-confidence results when the
// active preference profile allows it.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"curator/internal/clock"
	"curator/internal/models"
	"curator/internal/providers"
)

type Config struct {
	EscalationThreshold float64
	CallTimeout         time.Duration
	RetryDelay          time.Duration // fixed delay before the single retry
	HealthInterval      time.Duration
	AvailabilityTTL     time.Duration
	BackoffBase         time.Duration
	BackoffMultiplier   float64
	BackoffCapLocal     time.Duration
	BackoffCapCloud     time.Duration
	DegradedEnabled     bool
}

func DefaultConfig() Config {
	return Config{
		EscalationThreshold: 0.5,
		CallTimeout:         30 * time.Second,
		RetryDelay:          500 * time.Millisecond,
		HealthInterval:      30 * time.Second,
		AvailabilityTTL:     60 * time.Second,
		BackoffBase:         2 * time.Second,
		BackoffMultiplier:   2.0,
		BackoffCapLocal:     60 * time.Second,
		BackoffCapCloud:     120 * time.Second,
		DegradedEnabled:     true,
	}
}

// PreferenceProfile decides cascade order and whether low-confidence results
// escalate to the next provider. Escalation is an explicit flag, not inferred:
// only the automatic profile carries it.
type PreferenceProfile struct {
	Name            string
	CloudFirst      bool
	LocalOnly       bool
	AllowEscalation bool
}

// Built-in profiles.
var (
	ProfileAutomatic  = PreferenceProfile{Name: "automatic", AllowEscalation: true}
	ProfileLocalFirst = PreferenceProfile{Name: "local-first"}
	ProfileCloudFirst = PreferenceProfile{Name: "cloud-first", CloudFirst: true}
	ProfileLocalOnly  = PreferenceProfile{Name: "local-only", LocalOnly: true}
)

type registered struct {
	provider providers.Provider
	priority int

	health         models.ProviderHealth
	available      bool
	availCheckedAt time.Time
}

// Orchestrator owns all provider health and routing state behind one mutex;
// the background health loop and in-flight requests funnel every mutation
// through it. Provider calls themselves run outside the lock.
type Orchestrator struct {
	mu       sync.Mutex
	regs     []*registered // kept sorted by (priority, id): explicit, deterministic order
	profiles map[string]PreferenceProfile
	cfg      Config
	clk      clock.Clock

	lastError string

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

func New(cfg Config, clk clock.Clock) *Orchestrator {
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = DefaultConfig().BackoffMultiplier
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultConfig().BackoffBase
	}
	if clk == nil {
		clk = clock.System()
	}
	o := &Orchestrator{
		profiles: make(map[string]PreferenceProfile),
		cfg:      cfg,
		clk:      clk,
		stop:     make(chan struct{}),
	}
	for _, p := range []PreferenceProfile{ProfileAutomatic, ProfileLocalFirst, ProfileCloudFirst, ProfileLocalOnly} {
		o.profiles[p.Name] = p
	}
	return o
}

// Register adds a provider at the given priority (lower runs first within its
// local/cloud tier). Registration order breaks priority ties.
func (o *Orchestrator) Register(p providers.Provider, priority int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.regs = append(o.regs, &registered{
		provider: p,
		priority: priority,
		health:   models.ProviderHealth{ProviderID: p.ID()},
	})
	sort.SliceStable(o.regs, func(i, j int) bool { return o.regs[i].priority < o.regs[j].priority })
	log.Debugf("Registered provider %s (priority %d, cloud=%v)", p.ID(), priority, p.IsCloud())
}

// Profile returns the named preference profile, defaulting to automatic.
func (o *Orchestrator) Profile(name string) PreferenceProfile {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p, ok := o.profiles[name]; ok {
		return p
	}
	return ProfileAutomatic
}

// Categorize drives the cascade for one request. It returns the first
// proposal meeting the escalation threshold; if every provider is exhausted
// it returns the best low-confidence candidate rather than failing, and only
// errors when zero providers produced any result.
func (o *Orchestrator) Categorize(ctx context.Context, sig models.FileSignature, profileName string) (*models.CategorizationResult, error) {
	profile := o.Profile(profileName)
	order, degraded := o.cascadeOrder(ctx, profile)

	var (
		best          *models.CategorizationResult
		escalatedFrom string
		lastErr       error
	)

	for _, r := range order {
		if !o.usable(ctx, r) {
			continue
		}

		prop, err := o.invoke(ctx, r, sig)
		if err != nil {
			lastErr = err
			o.recordFailure(r.provider.ID(), err)
			continue
		}
		o.recordSuccess(r.provider.ID())

		result := &models.CategorizationResult{
			CategoryPath: prop.CategoryPath,
			Confidence:   prop.Confidence,
			Rationale:    prop.Rationale,
			Keywords:     prop.Keywords,
			Provider:     r.provider.ID(),
		}

		if prop.Confidence < o.cfg.EscalationThreshold && profile.AllowEscalation {
			// Low confidence: remember the best candidate so far and try the
			// next provider in the cascade.
			if best == nil || result.Confidence > best.Confidence {
				best = result
			}
			if escalatedFrom == "" {
				escalatedFrom = r.provider.ID()
			}
			log.Debugf("Provider %s returned low confidence %.2f, escalating", r.provider.ID(), prop.Confidence)
			continue
		}

		if escalatedFrom != "" && escalatedFrom != result.Provider {
			result.EscalatedFrom = escalatedFrom
		}
		return result, nil
	}

	if best != nil {
		if degraded {
			log.Warnf("Degraded mode: returning best local candidate from %s (confidence %.2f)", best.Provider, best.Confidence)
		}
		return best, nil
	}

	o.mu.Lock()
	if lastErr != nil {
		o.lastError = lastErr.Error()
	}
	o.mu.Unlock()
	return nil, &models.AllProvidersFailedError{Attempted: len(order), LastErr: lastErr}
}

// cascadeOrder builds the priority-ordered provider list for a profile,
// restricted to local providers when the orchestrator is degraded.
func (o *Orchestrator) cascadeOrder(ctx context.Context, profile PreferenceProfile) ([]*registered, bool) {
	mode := o.routingMode(ctx)
	degraded := mode == models.RoutingDegraded

	o.mu.Lock()
	defer o.mu.Unlock()

	local := make([]*registered, 0, len(o.regs))
	cloud := make([]*registered, 0, len(o.regs))
	for _, r := range o.regs {
		if r.provider.IsCloud() {
			cloud = append(cloud, r)
		} else {
			local = append(local, r)
		}
	}

	if profile.LocalOnly || degraded {
		return local, degraded
	}
	if profile.CloudFirst {
		return append(cloud, local...), degraded
	}
	return append(local, cloud...), degraded
}

// usable reports whether a provider should be tried: outside backoff and
// passing the (cached) availability probe.
func (o *Orchestrator) usable(ctx context.Context, r *registered) bool {
	now := o.clk.Now()

	o.mu.Lock()
	inBackoff := now.Before(r.health.NextRetryAt)
	fresh := now.Sub(r.availCheckedAt) < o.cfg.AvailabilityTTL && !r.availCheckedAt.IsZero()
	cached := r.available
	o.mu.Unlock()

	if inBackoff {
		log.Debugf("Provider %s in backoff until %s, skipping", r.provider.ID(), r.health.NextRetryAt.Format(time.RFC3339))
		return false
	}
	if fresh {
		return cached
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	avail := r.provider.IsAvailable(probeCtx)
	cancel()

	o.mu.Lock()
	r.available = avail
	r.availCheckedAt = now
	o.mu.Unlock()
	return avail
}

// invoke calls the provider bounded by the per-call timeout, with one bounded
// retry after a fixed short delay. The timeout is a race between the call and
// the context timer; cancellation reaches the loser through ctx.
func (o *Orchestrator) invoke(ctx context.Context, r *registered, sig models.FileSignature) (providers.Proposal, error) {
	prop, err := o.invokeOnce(ctx, r, sig)
	if err == nil {
		return prop, nil
	}

	select {
	case <-time.After(o.cfg.RetryDelay):
	case <-ctx.Done():
		return providers.Proposal{}, ctx.Err()
	}

	prop, retryErr := o.invokeOnce(ctx, r, sig)
	if retryErr != nil {
		return providers.Proposal{}, fmt.Errorf("provider %s failed after retry: %w", r.provider.ID(), retryErr)
	}
	return prop, nil
}

func (o *Orchestrator) invokeOnce(ctx context.Context, r *registered, sig models.FileSignature) (providers.Proposal, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	type outcome struct {
		prop providers.Proposal
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		prop, err := r.provider.Categorize(callCtx, sig)
		ch <- outcome{prop: prop, err: err}
	}()

	select {
	case out := <-ch:
		return out.prop, out.err
	case <-callCtx.Done():
		// cancel() has already fired or will on defer; the in-flight call is
		// cancelled through callCtx rather than leaked.
		return providers.Proposal{}, fmt.Errorf("provider %s timed out: %w", r.provider.ID(), callCtx.Err())
	}
}

// recordFailure grows the provider's backoff exponentially up to its cap.
func (o *Orchestrator) recordFailure(providerID string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	r := o.findLocked(providerID)
	if r == nil {
		return
	}
	r.health.ConsecutiveFailures++

	backoff := o.cfg.BackoffBase
	for i := 1; i < r.health.ConsecutiveFailures; i++ {
		backoff = time.Duration(float64(backoff) * o.cfg.BackoffMultiplier)
	}
	limit := o.cfg.BackoffCapLocal
	if r.provider.IsCloud() {
		limit = o.cfg.BackoffCapCloud
	}
	if backoff > limit {
		backoff = limit
	}
	r.health.BackoffDuration = backoff
	r.health.NextRetryAt = o.clk.Now().Add(backoff)
	// Invalidate the cached probe so the provider gets a fresh availability
	// check once its backoff window expires, instead of staying excluded for
	// the remainder of the cache TTL.
	r.available = false
	r.availCheckedAt = time.Time{}
	o.lastError = err.Error()

	log.Warnf("Provider %s failure #%d: %v (backing off %s)",
		providerID, r.health.ConsecutiveFailures, err, backoff)
}

// recordSuccess clears backoff state immediately.
func (o *Orchestrator) recordSuccess(providerID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	r := o.findLocked(providerID)
	if r == nil {
		return
	}
	r.health.ConsecutiveFailures = 0
	r.health.BackoffDuration = 0
	r.health.NextRetryAt = time.Time{}
	r.available = true
	r.availCheckedAt = o.clk.Now()
}

func (o *Orchestrator) findLocked(providerID string) *registered {
	for _, r := range o.regs {
		if r.provider.ID() == providerID {
			return r
		}
	}
	return nil
}

// Health returns a snapshot of one provider's backoff state.
func (o *Orchestrator) Health(providerID string) (models.ProviderHealth, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := o.findLocked(providerID)
	if r == nil {
		return models.ProviderHealth{}, false
	}
	return r.health, true
}

// routingMode computes the global mode from current provider state.
func (o *Orchestrator) routingMode(ctx context.Context) models.RoutingMode {
	available := o.availableProviders(ctx)
	if len(available) > 0 {
		return models.RoutingFull
	}
	if o.cfg.DegradedEnabled {
		return models.RoutingDegraded
	}
	return models.RoutingOffline
}

func (o *Orchestrator) availableProviders(ctx context.Context) []string {
	o.mu.Lock()
	regs := make([]*registered, len(o.regs))
	copy(regs, o.regs)
	o.mu.Unlock()

	now := o.clk.Now()
	var out []string
	for _, r := range regs {
		o.mu.Lock()
		inBackoff := now.Before(r.health.NextRetryAt)
		fresh := now.Sub(r.availCheckedAt) < o.cfg.AvailabilityTTL && !r.availCheckedAt.IsZero()
		cached := r.available
		o.mu.Unlock()

		if inBackoff {
			continue
		}
		if !fresh {
			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			cached = r.provider.IsAvailable(probeCtx)
			cancel()
			o.mu.Lock()
			r.available = cached
			r.availCheckedAt = now
			o.mu.Unlock()
		}
		if cached {
			out = append(out, r.provider.ID())
		}
	}
	return out
}

// RoutingState is the observability snapshot consumed by the UI layer.
func (o *Orchestrator) RoutingState(ctx context.Context) models.RoutingState {
	available := o.availableProviders(ctx)

	o.mu.Lock()
	defer o.mu.Unlock()

	state := models.RoutingState{
		AvailableProviders: available,
		LastError:          o.lastError,
	}
	switch {
	case len(available) > 0:
		state.Mode = models.RoutingFull
	case o.cfg.DegradedEnabled:
		state.Mode = models.RoutingDegraded
	default:
		state.Mode = models.RoutingOffline
	}
	// Global backoff horizon: the earliest time any provider becomes
	// retryable again.
	for _, r := range o.regs {
		if r.health.NextRetryAt.IsZero() {
			continue
		}
		if state.BackoffUntil.IsZero() || r.health.NextRetryAt.Before(state.BackoffUntil) {
			state.BackoffUntil = r.health.NextRetryAt
		}
	}
	return state
}

// StartHealthLoop launches the background probe loop. Stop cancels the
// polling, not in-flight work.
func (o *Orchestrator) StartHealthLoop(ctx context.Context) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.cfg.HealthInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				o.healthCheck(ctx)
			case <-o.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts the health loop down cleanly.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stop) })
	o.wg.Wait()
}

// healthCheck probes every provider in the explicit priority order (never a
// map iteration, so runs are deterministic).
func (o *Orchestrator) healthCheck(ctx context.Context) {
	o.mu.Lock()
	regs := make([]*registered, len(o.regs))
	copy(regs, o.regs)
	o.mu.Unlock()

	for _, r := range regs {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		avail := r.provider.IsAvailable(probeCtx)
		cancel()

		if avail {
			o.recordSuccess(r.provider.ID())
		} else {
			o.recordFailure(r.provider.ID(), fmt.Errorf("%w: health probe failed for %s", models.ErrProviderUnavailable, r.provider.ID()))
		}
	}
}

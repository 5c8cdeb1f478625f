// Package embedcache memoizes computed embeddings keyed by a pure function of
// (filename, parentPath, size). Eviction is a recency+frequency composite,
// bounded by a max size and a TTL.
package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"
	log "github.com/sirupsen/logrus"

	"curator/internal/clock"
	"curator/internal/models"
	"curator/internal/store"
)

type Config struct {
	MaxSize        int
	TTL            time.Duration
	PruneThreshold float64 // prune kicks in above MaxSize*PruneThreshold

	// Weights of the eviction composite. Entries with the lowest
	// recencyWeight*recency + frequencyWeight*frequency score go first.
	RecencyWeight   float64
	FrequencyWeight float64
}

func DefaultConfig() Config {
	return Config{
		MaxSize:         5000,
		TTL:             30 * 24 * time.Hour,
		PruneThreshold:  0.9,
		RecencyWeight:   0.7,
		FrequencyWeight: 0.3,
	}
}

// Cache is safe for concurrent use; all state is guarded by a single mutex
// (single-writer discipline).
type Cache struct {
	mu      sync.Mutex
	entries map[string]*models.CacheEntry
	cfg     Config
	clk     clock.Clock
	kv      store.KV // optional write-through; nil means memory-only

	hits, misses int64
	kvWarned     bool
}

func New(cfg Config, clk clock.Clock, kv store.KV) *Cache {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.PruneThreshold <= 0 || cfg.PruneThreshold > 1 {
		cfg.PruneThreshold = DefaultConfig().PruneThreshold
	}
	if cfg.RecencyWeight == 0 && cfg.FrequencyWeight == 0 {
		cfg.RecencyWeight = DefaultConfig().RecencyWeight
		cfg.FrequencyWeight = DefaultConfig().FrequencyWeight
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Cache{
		entries: make(map[string]*models.CacheEntry),
		cfg:     cfg,
		clk:     clk,
		kv:      kv,
	}
}

// Key derives the cache key. Size may be negative when unknown; it is then
// left out of the tuple.
func Key(filename, parentPath string, size int64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s", filename, parentPath)
	if size >= 0 {
		fmt.Fprintf(h, "\x00%d", size)
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Get returns the cached embedding for key, bumping recency and hit count.
// Expired entries are treated as misses and dropped.
func (c *Cache) Get(ctx context.Context, key string) (pgvector.Vector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return pgvector.Vector{}, false
	}
	now := c.clk.Now()
	if c.cfg.TTL > 0 && now.Sub(e.CreatedAt) > c.cfg.TTL {
		delete(c.entries, key)
		c.deleteKV(ctx, key)
		c.misses++
		return pgvector.Vector{}, false
	}
	e.LastAccessedAt = now
	e.HitCount++
	c.hits++
	return e.Embedding, true
}

// Set stores an embedding under key. Re-inserting the same key overwrites in
// place (idempotent insert).
func (c *Cache) Set(ctx context.Context, key string, embedding pgvector.Vector, modelID, typeTag string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	e, ok := c.entries[key]
	if !ok {
		e = &models.CacheEntry{ID: key, CreatedAt: now}
		c.entries[key] = e
	}
	e.Embedding = embedding
	e.Dimensions = len(embedding.Slice())
	e.GeneratingModelID = modelID
	e.TypeTag = typeTag
	e.LastAccessedAt = now
	c.writeKV(ctx, e)

	if len(c.entries) > int(float64(c.cfg.MaxSize)*c.cfg.PruneThreshold) {
		c.pruneLocked(ctx)
	}
}

// Prune evicts expired entries, then the lowest-scoring entries until the
// cache holds at most MaxSize. Returns the number evicted.
func (c *Cache) Prune(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked(ctx)
}

func (c *Cache) pruneLocked(ctx context.Context) int {
	now := c.clk.Now()
	evicted := 0

	if c.cfg.TTL > 0 {
		for k, e := range c.entries {
			if now.Sub(e.CreatedAt) > c.cfg.TTL {
				delete(c.entries, k)
				c.deleteKV(ctx, k)
				evicted++
			}
		}
	}
	if len(c.entries) <= c.cfg.MaxSize {
		return evicted
	}

	type scored struct {
		key   string
		score float64
	}
	var maxHits int64 = 1
	for _, e := range c.entries {
		if e.HitCount > maxHits {
			maxHits = e.HitCount
		}
	}
	candidates := make([]scored, 0, len(c.entries))
	for k, e := range c.entries {
		age := now.Sub(e.LastAccessedAt)
		recency := 1.0 / (1.0 + age.Hours())
		frequency := float64(e.HitCount) / float64(maxHits)
		candidates = append(candidates, scored{
			key:   k,
			score: c.cfg.RecencyWeight*recency + c.cfg.FrequencyWeight*frequency,
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score < candidates[j].score })

	for _, cand := range candidates {
		if len(c.entries) <= c.cfg.MaxSize {
			break
		}
		delete(c.entries, cand.key)
		c.deleteKV(ctx, cand.key)
		evicted++
	}
	return evicted
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit/miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Load restores cache entries from persistence.
func (c *Cache) Load(ctx context.Context) error {
	if c.kv == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.kv.Scan(ctx, store.PrefixCache, func(key string, value []byte) error {
		var e models.CacheEntry
		if err := json.Unmarshal(value, &e); err != nil {
			log.Warnf("Skipping corrupt cache entry %q: %v", key, err)
			return nil
		}
		c.entries[e.ID] = &e
		return nil
	})
}

func (c *Cache) writeKV(ctx context.Context, e *models.CacheEntry) {
	if c.kv == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := c.kv.Set(ctx, store.PrefixCache+e.ID, data); err != nil {
		c.warnKV(err)
	}
}

func (c *Cache) deleteKV(ctx context.Context, key string) {
	if c.kv == nil {
		return
	}
	if err := c.kv.Delete(ctx, store.PrefixCache+key); err != nil {
		c.warnKV(err)
	}
}

func (c *Cache) warnKV(err error) {
	if c.kvWarned {
		return
	}
	c.kvWarned = true
	log.Warnf("Embedding cache persistence unavailable, continuing memory-only: %v", err)
}

package store

import (
	"context"

	"github.com/pgvector/pgvector-go"
)

// --- Keyed persistence ---

// KV is the opaque persistence interface the engine's stateful components
// write through. Implementations: BadgerDB (default, on disk) and an
// in-memory map (fallback and tests). Components must keep working
// memory-only when a KV operation fails.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error) // ErrNotFound when absent
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Scan visits every key with the given prefix. Returning an error from fn
	// stops the scan.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
	Close() error
}

// Key prefixes shared by the stores that persist through KV.
const (
	PrefixPrototype = "proto:"
	PrefixPattern   = "pattern:"
	PrefixCache     = "cache:"
)

// --- Similarity search strategy ---

// Match is one nearest-neighbor hit.
type Match struct {
	ID         string
	Similarity float64
}

// SimilaritySearcher is the swappable nearest-neighbor strategy behind
// PrototypeStore.FindSimilar. The default is brute-force cosine over the
// in-memory prototype set, which is O(n) per query and fine while distinct
// categories stay in the low thousands. The pgvector implementation in
// store/vector is the indexed backend for anything bigger.
type SimilaritySearcher interface {
	Upsert(ctx context.Context, id string, embedding pgvector.Vector) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, query pgvector.Vector, k int, minSimilarity float64) ([]Match, error)
}

package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/store"
)

// Both backends must satisfy the same contract; run one suite over each.
func kvBackends(t *testing.T) map[string]store.KV {
	t.Helper()
	b, err := OpenBadger("") // in-memory instance
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return map[string]store.KV{
		"memory": NewMemory(),
		"badger": b,
	}
}

func TestKV_GetSetDelete(t *testing.T) {
	for name, db := range kvBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := db.Get(ctx, "missing")
			assert.True(t, errors.Is(err, store.ErrNotFound))

			require.NoError(t, db.Set(ctx, "proto:abc", []byte("v1")))
			got, err := db.Get(ctx, "proto:abc")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), got)

			require.NoError(t, db.Set(ctx, "proto:abc", []byte("v2")))
			got, err = db.Get(ctx, "proto:abc")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			require.NoError(t, db.Delete(ctx, "proto:abc"))
			_, err = db.Get(ctx, "proto:abc")
			assert.True(t, errors.Is(err, store.ErrNotFound))

			// Deleting a missing key is a no-op, not an error.
			assert.NoError(t, db.Delete(ctx, "missing"))
		})
	}
}

func TestKV_ScanPrefix(t *testing.T) {
	for name, db := range kvBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, db.Set(ctx, "proto:a", []byte("1")))
			require.NoError(t, db.Set(ctx, "proto:b", []byte("2")))
			require.NoError(t, db.Set(ctx, "pattern:c", []byte("3")))

			seen := map[string]string{}
			err := db.Scan(ctx, "proto:", func(key string, value []byte) error {
				seen[key] = string(value)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"proto:a": "1", "proto:b": "2"}, seen)
		})
	}
}

func TestKV_ScanPropagatesCallbackError(t *testing.T) {
	for name, db := range kvBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, db.Set(ctx, "cache:x", []byte("1")))

			boom := errors.New("boom")
			err := db.Scan(ctx, "cache:", func(string, []byte) error { return boom })
			assert.True(t, errors.Is(err, boom))
		})
	}
}

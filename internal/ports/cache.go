package ports

import (
	"context"

	"pub/internal/types"
)

// Materializer fills a fresh directory with the contents of a cache entry.
type Materializer func(ctx context.Context, dir string) error

// SystemCachePort is the shared on-disk package store.
type SystemCachePort interface {
	Root() string
	EntryFor(key types.CacheKey) string
	// Contains reports whether key has a completed entry.
	Contains(key types.CacheKey) bool
	Ensure(ctx context.Context, key types.CacheKey, materialize Materializer) (string, error)
	// Lock takes the cross-process lock named name and returns its release.
	Lock(ctx context.Context, name string) (func(), error)
	List(pattern string) ([]types.CacheEntry, error)
	Reclaim(ctx context.Context) ([]string, error)
}

package cache

import (
	"context"
	"time"
)

// UpdateFunc computes the next value for a key from its current value.
// old is nil when the key is absent. Returning ErrSkipUpdate leaves the stored
// value untouched.
type UpdateFunc func(old []byte) ([]byte, error)

// Cache defines the interface for caching operations.
// This abstraction allows swapping between memory cache (development)
// and Redis cache (production) without changing business logic.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the cache.
	Exists(ctx context.Context, key string) (bool, error)

	// Update atomically replaces the value at key with fn(current).
	// Concurrent updaters on the same key never interleave; this is what the
	// sync result store builds its terminal-write-once guarantee on.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) ([]byte, error)

	// Clear removes all entries from the cache.
	Clear(ctx context.Context) error
}

// Common cache errors
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"

	// ErrSkipUpdate is returned by an UpdateFunc to abort the write while
	// keeping the current value.
	ErrSkipUpdate CacheError = "skip update"
)

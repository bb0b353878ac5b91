// Package cache provides the storage tiers behind the render pipeline.
//
// Every tier talks to a narrow key/value [Storage]. Drivers:
//   - memory: process-local map with lazy expiry
//   - fs: JSON envelopes on disk, sharded by key hash
//   - redis: shared across instances (github.com/redis/go-redis/v9)
//   - mongo: persisted documents with a TTL field (go.mongodb.org/mongo-driver)
//   - null: never stores anything
//
// Expired entries are treated as absent and removed lazily on read.
//
// # Tiers
//
// [Tiers] bundles the storages used by one process: the HTML-payload cache,
// the prerender-options cache, the image buffer cache, and the font and emoji
// caches. The build cache ([BuildCache]) always lives on disk.
package cache

import (
	"context"
	"time"
)

// Storage is a key/value store with per-entry expiry.
// A ttl of zero means the entry never expires.
type Storage interface {
	// Has reports whether a non-expired entry exists.
	Has(ctx context.Context, key string) (bool, error)

	// Get returns the value and true on a hit. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. Last writer wins.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Remove deletes a value. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases any resources held by the storage.
	Close() error
}

// Clearer is implemented by storages that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}

// entry is the envelope persisted by the fs and memory drivers.
type entry struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (e entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

package rescache

import (
	"context"
	"time"
)

// Cache stores resolution State keyed by store-path key, each entry
// expiring after a fixed TTL. Implementations must be safe for concurrent
// use by many goroutines.
type Cache interface {
	// Get returns the cached State for key, or ok=false if there is no
	// live entry.
	Get(ctx context.Context, key string) (state State, ok bool, err error)
	// Insert stores state for key, superseding any existing entry and
	// resetting its TTL.
	Insert(ctx context.Context, key string, state State) error
	// Remove deletes any cached entry for key. It is not an error for
	// key to already be absent.
	Remove(ctx context.Context, key string) error
}

// DefaultTTL is the lifetime of a cache entry, positive or negative,
// absent an explicit override. It matches the upstream reference
// implementation's cache horizon.
const DefaultTTL = 5 * time.Minute

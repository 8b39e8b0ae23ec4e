package rescache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is the default, in-process Cache backend. It wraps an
// expirable LRU so every entry carries its own TTL-based expiry without a
// background sweep goroutine having to walk the whole map.
type MemoryCache struct {
	lru *lru.LRU[string, State]
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache builds a MemoryCache holding up to maxEntries resolutions,
// each living for ttl. maxEntries <= 0 means unbounded.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		lru: lru.NewLRU[string, State](maxEntries, nil, ttl),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (State, bool, error) {
	state, ok := c.lru.Get(key)
	return state, ok, nil
}

func (c *MemoryCache) Insert(_ context.Context, key string, state State) error {
	c.lru.Add(key, state)
	return nil
}

func (c *MemoryCache) Remove(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

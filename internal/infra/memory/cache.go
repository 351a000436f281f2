package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Cache is an in-process implementation of app.Cache, used for tests and
// cache-less demo runs. Values are stored JSON-encoded so behavior matches
// the Redis layer.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	clock   func() time.Time
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		clock:   time.Now,
	}
}

// NewCacheWithClock allows deterministic expiry in tests.
func NewCacheWithClock(clock func() time.Time) *Cache {
	c := NewCache()
	c.clock = clock
	return c
}

func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !entry.expiresAt.After(c.clock()) {
		return false
	}
	return json.Unmarshal(entry.data, dest) == nil
}

func (c *Cache) Put(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{data: data, expiresAt: c.clock().Add(ttl)}
	c.mu.Unlock()
}

func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	c.mu.Lock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	c.mu.Unlock()
}

// Package infra provides shared infrastructure components used across
// the application: caching, rate limiting, and logging.
package infra

import (
	"sync"
	"time"
)

// --- Simple in-memory cache ---

// CacheEntry holds a cached value with its storage and expiration times.
type CacheEntry[V any] struct {
	Value     V
	StoredAt  time.Time
	ExpiresAt time.Time
}

// Cache is a simple thread-safe in-memory cache with TTL.
type Cache[V any] struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry[V]
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a new cache with the given default TTL.
func NewCache[V any](ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		entries: make(map[string]CacheEntry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (c *Cache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// TTL returns the default time-to-live.
func (c *Cache[V]) TTL() time.Duration { return c.ttl }

// Get retrieves a value from the cache. Returns the zero value and false
// if not found or expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	entry, ok := c.Entry(key)
	return entry.Value, ok
}

// Entry retrieves the full cache entry for key if present and not expired.
func (c *Cache[V]) Entry(key string) (CacheEntry[V], bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()
	if !ok || now.After(entry.ExpiresAt) {
		return CacheEntry[V]{}, false
	}
	return entry, true
}

// Set stores a value in the cache with the default TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value in the cache with a custom TTL.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	now := c.now()
	c.entries[key] = CacheEntry[V]{
		Value:     value,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	c.mu.Unlock()
}

// Invalidate removes a key from the cache.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Flush removes all entries from the cache.
func (c *Cache[V]) Flush() {
	c.mu.Lock()
	c.entries = make(map[string]CacheEntry[V])
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cleanup removes expired entries and returns how many were dropped.
// Can be called periodically.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, v := range c.entries {
		if now.After(v.ExpiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

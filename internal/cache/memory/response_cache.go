// Package memory implements domain.ResponseCache as a process-local TTL map.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/polysight/marketgate/internal/domain"
)

// DefaultTTL is the validity window for live market listings.
const DefaultTTL = 30 * time.Second

// entry holds a cached payload with its insertion timestamp and TTL.
type entry struct {
	payload    []byte
	insertedAt time.Time
	ttl        time.Duration
}

// ResponseCache is a mutex-guarded TTL cache for raw upstream payloads.
// Entries are independent per key and overwritten atomically, so last-write-
// wins under concurrent access.
type ResponseCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	now        func() time.Time
}

var _ domain.ResponseCache = (*ResponseCache)(nil)

// NewResponseCache creates a ResponseCache with the given default TTL.
// A non-positive ttl selects DefaultTTL.
func NewResponseCache(ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{
		entries:    make(map[string]entry),
		defaultTTL: ttl,
		now:        time.Now,
	}
}

// Get returns the cached payload for key if it is still within its TTL.
// Expired entries are evicted on read.
func (c *ResponseCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().Sub(e.insertedAt) >= e.ttl {
		c.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// overwritten the entry with a fresh payload.
		if cur, ok := c.entries[key]; ok && c.now().Sub(cur.insertedAt) >= cur.ttl {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.payload, true
}

// Set stores payload under key with the default TTL, overwriting any
// existing entry.
func (c *ResponseCache) Set(ctx context.Context, key string, payload []byte) {
	c.SetWithTTL(ctx, key, payload, c.defaultTTL)
}

// SetWithTTL stores payload with an explicit TTL.
func (c *ResponseCache) SetWithTTL(_ context.Context, key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.entries[key] = entry{
		payload:    payload,
		insertedAt: c.now(),
		ttl:        ttl,
	}
	c.mu.Unlock()
}

// Clear drops all entries.
func (c *ResponseCache) Clear(_ context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len returns the number of entries currently stored, including entries that
// have expired but not yet been evicted.
func (c *ResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

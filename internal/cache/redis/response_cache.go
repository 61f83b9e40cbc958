package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polysight/marketgate/internal/domain"
)

// keyPrefix namespaces gateway response entries so a shared Redis instance
// can serve other workloads.
const keyPrefix = "marketgate:resp:"

// ResponseCache implements domain.ResponseCache on Redis. TTL enforcement is
// delegated to Redis key expiry, so expired entries never need explicit
// eviction. Cache errors are swallowed: the cache is a best-effort
// optimization and any failure simply reads as a miss.
type ResponseCache struct {
	rdb        *redis.Client
	defaultTTL time.Duration
}

var _ domain.ResponseCache = (*ResponseCache)(nil)

// NewResponseCache creates a ResponseCache backed by the given Client.
func NewResponseCache(c *Client, defaultTTL time.Duration) *ResponseCache {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Second
	}
	return &ResponseCache{rdb: c.Underlying(), defaultTTL: defaultTTL}
}

// Get returns the cached payload for key, or ok=false on a miss, expiry, or
// Redis error.
func (rc *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := rc.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) {
			// Treat transport errors as misses; the caller recomputes.
			return nil, false
		}
		return nil, false
	}
	return data, true
}

// Set stores payload under key with the default TTL.
func (rc *ResponseCache) Set(ctx context.Context, key string, payload []byte) {
	rc.SetWithTTL(ctx, key, payload, rc.defaultTTL)
}

// SetWithTTL stores payload with an explicit TTL.
func (rc *ResponseCache) SetWithTTL(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}
	_ = rc.rdb.Set(ctx, keyPrefix+key, payload, ttl).Err()
}

// Clear drops all gateway response entries. Only keys under the gateway
// prefix are scanned so unrelated data in a shared instance is untouched.
func (rc *ResponseCache) Clear(ctx context.Context) {
	iter := rc.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		_ = rc.rdb.Del(ctx, iter.Val()).Err()
	}
}

package domain

import (
	"context"
	"io"
	"time"
)

// SourceQuery narrows a MarketSource listing. Zero values mean "no filter".
type SourceQuery struct {
	Status string
	Limit  int
}

// MarketSource supplies upstream-shaped market records. The builder API
// client and the static fallback generator both implement it so the gateway
// facade orchestrates live and degraded paths uniformly.
type MarketSource interface {
	ListMarkets(ctx context.Context, q SourceQuery) ([]UpstreamMarket, error)
	GetMarket(ctx context.Context, id string) (UpstreamMarket, error)

	// Name identifies the source in logs and result provenance,
	// e.g. "polymarket-builder" or "fallback".
	Name() string
}

// ResponseCache is a short-TTL key/value store for raw upstream payloads.
// Entries are idempotent snapshots of upstream state, so last-write-wins on
// concurrent writes is acceptable.
type ResponseCache interface {
	// Get returns the cached payload, or ok=false on a miss or expired entry.
	Get(ctx context.Context, key string) (payload []byte, ok bool)

	// Set stores payload under key with the cache's default TTL.
	Set(ctx context.Context, key string, payload []byte)

	// SetWithTTL stores payload with an explicit TTL, used for
	// slower-changing derived data such as category lists.
	SetWithTTL(ctx context.Context, key string, payload []byte, ttl time.Duration)

	// Clear drops all entries.
	Clear(ctx context.Context)
}

// SnapshotStore persists normalized market snapshots taken by the poll
// pipeline.
type SnapshotStore interface {
	UpsertBatch(ctx context.Context, markets []Market) error
	Count(ctx context.Context) (int64, error)
}

// BlobWriter archives raw upstream payloads to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// RateLimiter bounds request rates per key over a sliding window.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under the
	// limit-per-window budget, counting it when permitted.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// PriceUpdateHandler receives realtime price updates from the upstream feed.
type PriceUpdateHandler func(PriceUpdate)

// TradeHandler receives realtime trade events from the upstream feed.
type TradeHandler func(Trade)

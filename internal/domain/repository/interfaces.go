package repository

import (
	"context"

	"github.com/jshorterFG/market-analyzer-tv/internal/domain/models"
)

// TierStore is the storage capability shared by the hot and cold tiers.
// Implementations must be safe for concurrent use across keys and idempotent
// under last-write-wins merges. I/O failures are absorbed at the tier
// boundary: Store reports false, Retrieve reports nil, DeleteOlderThan
// reports 0, and the error is logged. The cache is best-effort and never
// blocks the critical path on its own failure.
type TierStore interface {
	// Store partitions bars into the tier's buckets, merges each bucket
	// with any persisted bars (new wins on equal timestamps) and writes the
	// sorted result back. Partial bucket failure still attempts every
	// bucket and reports overall false; written buckets are not rolled back.
	Store(ctx context.Context, key models.CacheKey, bars []models.Bar) bool

	// Retrieve loads every bucket intersecting rng, filters bars to rng and
	// returns them merged and sorted. A nil result means no bucket yielded
	// any bar.
	Retrieve(ctx context.Context, key models.CacheKey, rng models.TimeRange) []models.Bar

	// DeleteOlderThan drops whole buckets written before the cutoff and
	// returns the number removed. Tiers without a retention policy return 0.
	DeleteOlderThan(ctx context.Context, days int) int
}

// HotTier extends TierStore with the bucket-level operations migration
// needs: enumerating expired day documents and removing a single document
// once its cold-tier copy is confirmed.
type HotTier interface {
	TierStore
	ExpiredDocuments(ctx context.Context, days int) []models.CachedData
	// DeleteDocument removes one day bucket, addressed by the document's
	// own Date key as reported by ExpiredDocuments.
	DeleteDocument(ctx context.Context, key models.CacheKey, date string) bool
}

// Provider fetches the current quote for a symbol from the upstream
// market-data source. Calls must respect the context deadline.
type Provider interface {
	Quote(ctx context.Context, symbol, screener, exchange string, interval models.Interval) (*models.Quote, error)
}

// Metrics records pipeline observability signals.
type Metrics interface {
	RecordCacheHit(tier string)
	RecordCacheMiss()
	RecordProviderRequest(screener string)
	RecordRateLimited()
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

package usecase

import (
	"context"
	"time"

	"github.com/jshorterFG/market-analyzer-tv/internal/domain/models"
	domrepo "github.com/jshorterFG/market-analyzer-tv/internal/domain/repository"
	"github.com/jshorterFG/market-analyzer-tv/pkg/logger"
)

// PutResult reports per-tier write outcomes. A nil flag means the tier was
// not touched because its partition was empty; dual-tier writes are
// best-effort and non-atomic, so callers decide whether partial persistence
// is acceptable.
type PutResult struct {
	Hot  *bool
	Cold *bool
}

// OK reports whether every attempted tier write succeeded.
func (r PutResult) OK() bool {
	if r.Hot == nil && r.Cold == nil {
		return false
	}
	if r.Hot != nil && !*r.Hot {
		return false
	}
	if r.Cold != nil && !*r.Cold {
		return false
	}
	return true
}

// CacheManager coordinates the hot and cold storage tiers: tier selection by
// bar age, merged retrieval, gap detection, timeframe aggregation and
// hot-to-cold migration. It is stateless apart from configuration; all
// series state lives in the tiers.
type CacheManager struct {
	hot     domrepo.HotTier
	cold    domrepo.TierStore
	metrics domrepo.Metrics
	log     *logger.Logger

	enabled     bool
	hotTierDays int
	now         func() time.Time
}

// NewCacheManager creates a cache manager over the two tiers.
func NewCacheManager(hot domrepo.HotTier, cold domrepo.TierStore, metrics domrepo.Metrics, log *logger.Logger, enabled bool, hotTierDays int) *CacheManager {
	log.Info("cache manager initialized",
		logger.Bool("enabled", enabled),
		logger.Int("hot_tier_days", hotTierDays))
	return &CacheManager{
		hot:         hot,
		cold:        cold,
		metrics:     metrics,
		log:         log,
		enabled:     enabled,
		hotTierDays: hotTierDays,
		now:         time.Now,
	}
}

// cutoff returns the unix timestamp separating hot from cold residency.
func (m *CacheManager) cutoff() int64 {
	return m.now().AddDate(0, 0, -m.hotTierDays).Unix()
}

// Get retrieves bars for rng. The hot tier is always queried; the cold tier
// only for the portion of rng older than the cutoff. Results are merged with
// the hot copy winning on duplicate timestamps, sorted ascending. Nil means
// cache miss (or caching disabled).
func (m *CacheManager) Get(ctx context.Context, key models.CacheKey, rng models.TimeRange) []models.Bar {
	if !m.enabled {
		return nil
	}

	hotBars := m.hot.Retrieve(ctx, key, rng)

	var coldBars []models.Bar
	if cut := m.cutoff(); rng.Start < cut {
		coldRange := models.TimeRange{Start: rng.Start, End: min64(rng.End, cut)}
		coldBars = m.cold.Retrieve(ctx, key, coldRange)
	}

	if len(hotBars) == 0 && len(coldBars) == 0 {
		m.metrics.RecordCacheMiss()
		m.log.Debug("cache miss", logger.String("cache_key", key.String()))
		return nil
	}

	if len(hotBars) > 0 {
		m.metrics.RecordCacheHit("hot")
	}
	if len(coldBars) > 0 {
		m.metrics.RecordCacheHit("cold")
	}

	// Hot overlays cold for determinism on shared timestamps.
	merged := models.MergeBars(coldBars, hotBars)
	m.log.Debug("cache hit",
		logger.String("cache_key", key.String()),
		logger.Int("bars", len(merged)))
	return merged
}

// Put partitions bars by their own timestamp against the cutoff and writes
// each non-empty partition to its tier. One call can touch both tiers.
func (m *CacheManager) Put(ctx context.Context, key models.CacheKey, bars []models.Bar) PutResult {
	var res PutResult
	if !m.enabled || len(bars) == 0 {
		return res
	}

	cut := m.cutoff()
	var hotBars, coldBars []models.Bar
	for _, b := range bars {
		if b.Timestamp >= cut {
			hotBars = append(hotBars, b)
		} else {
			coldBars = append(coldBars, b)
		}
	}

	if len(hotBars) > 0 {
		ok := m.hot.Store(ctx, key, hotBars)
		res.Hot = &ok
		if !ok {
			m.metrics.RecordError("hot_store")
			m.log.Warn("hot tier store failed",
				logger.String("cache_key", key.String()),
				logger.Int("bars", len(hotBars)))
		}
	}
	if len(coldBars) > 0 {
		ok := m.cold.Store(ctx, key, coldBars)
		res.Cold = &ok
		if !ok {
			m.metrics.RecordError("cold_store")
			m.log.Warn("cold tier store failed",
				logger.String("cache_key", key.String()),
				logger.Int("bars", len(coldBars)))
		}
	}
	return res
}

// FindGaps returns the sub-ranges of rng that lack sufficient cached
// coverage. With caching disabled, or no cached bars at all, the whole range
// is one gap. Adjacent cached bars more than twice the nominal interval
// apart produce an internal gap trimmed by one interval on each side, so
// bars that are actually adjacent are not re-fetched. Errors fail open: the
// whole range becomes a gap rather than silently serving partial data.
func (m *CacheManager) FindGaps(ctx context.Context, key models.CacheKey, rng models.TimeRange) []models.DataGap {
	whole := []models.DataGap{{Key: key, Range: rng}}
	if !m.enabled {
		return whole
	}

	cached := m.Get(ctx, key, rng)
	if len(cached) == 0 {
		return whole
	}

	interval := key.Interval.Seconds()
	var gaps []models.DataGap

	// Leading gap before the first cached bar.
	if first := cached[0].Timestamp; first > rng.Start {
		gaps = append(gaps, models.DataGap{
			Key:   key,
			Range: models.TimeRange{Start: rng.Start, End: first - 1},
		})
	}

	// Internal gaps between cached neighbors.
	for i := 0; i < len(cached)-1; i++ {
		prev, next := cached[i].Timestamp, cached[i+1].Timestamp
		if next-prev > interval*2 {
			gaps = append(gaps, models.DataGap{
				Key:   key,
				Range: models.TimeRange{Start: prev + interval, End: next - interval},
			})
		}
	}

	// Trailing gap after the last cached bar.
	if last := cached[len(cached)-1].Timestamp; last < rng.End {
		gaps = append(gaps, models.DataGap{
			Key:   key,
			Range: models.TimeRange{Start: last + 1, End: rng.End},
		})
	}

	if len(gaps) > 0 {
		m.log.Info("found gaps in cached data",
			logger.String("cache_key", key.String()),
			logger.Int("gaps", len(gaps)))
	}
	return gaps
}

// AggregateTimeframe rolls source bars up into target-interval bars: open
// from the first bar of each bucket, close from the last, extrema for
// high/low, summed volume, timestamp floored to the bucket. Buckets are
// emitted in the order their first member is encountered, and a bar that
// revisits an earlier bucket merges into it rather than opening a duplicate.
// Source must be sorted ascending for correct open/close semantics.
func (m *CacheManager) AggregateTimeframe(key models.CacheKey, source []models.Bar, target models.Interval) []models.Bar {
	if len(source) == 0 {
		return nil
	}

	targetSec := target.Seconds()
	var out []models.Bar
	index := make(map[int64]int)

	for _, b := range source {
		bucket := (b.Timestamp / targetSec) * targetSec
		i, ok := index[bucket]
		if !ok {
			index[bucket] = len(out)
			out = append(out, models.Bar{
				Timestamp: bucket,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			})
			continue
		}
		cur := &out[i]
		if b.High > cur.High {
			cur.High = b.High
		}
		if b.Low < cur.Low {
			cur.Low = b.Low
		}
		cur.Close = b.Close
		cur.Volume += b.Volume
	}

	m.log.Debug("aggregated timeframe",
		logger.String("cache_key", key.String()),
		logger.Int("source_bars", len(source)),
		logger.Int("target_bars", len(out)),
		logger.String("target_interval", target.String()))
	return out
}

// MigrateToColdTier copies expired hot-tier documents into the cold tier and
// deletes each hot document only after its cold copy succeeded, so bars are
// never lost between the tiers. Returns the number of migrated documents.
func (m *CacheManager) MigrateToColdTier(ctx context.Context) int {
	if !m.enabled {
		return 0
	}

	migrated := 0
	for _, doc := range m.hot.ExpiredDocuments(ctx, m.hotTierDays) {
		if len(doc.Bars) == 0 {
			// Empty documents carry nothing worth copying.
			if m.hot.DeleteDocument(ctx, doc.Key, doc.Date) {
				migrated++
			}
			continue
		}
		if !m.cold.Store(ctx, doc.Key, doc.Bars) {
			m.metrics.RecordError("migration")
			m.log.Warn("cold copy failed, keeping hot document",
				logger.String("cache_key", doc.Key.String()))
			continue
		}
		if m.hot.DeleteDocument(ctx, doc.Key, doc.Date) {
			migrated++
		}
	}

	if migrated > 0 {
		m.log.Info("migrated documents to cold tier", logger.Int("count", migrated))
	}
	return migrated
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

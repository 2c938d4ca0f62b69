package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jshorterFG/market-analyzer-tv/internal/domain/models"
	"github.com/jshorterFG/market-analyzer-tv/pkg/cache"
	"github.com/jshorterFG/market-analyzer-tv/pkg/logger"
	"github.com/jshorterFG/market-analyzer-tv/pkg/util"
)

// barDocument is the hot-tier record: one calendar day of bars for one key.
type barDocument struct {
	CacheKey string       `json:"cache_key"`
	Date     string       `json:"date"`
	Bars     []models.Bar `json:"bars"`
	CachedAt int64        `json:"cached_at"`
	Tier     string       `json:"tier"`
}

// HotStore is the low-latency tier. It keeps recent bars in Redis (or any
// cache.Service), partitioned into day buckets keyed
// "{cache_key}:{YYYY-MM-DD}". All failures are logged and downgraded; the
// hot tier never raises to the cache manager.
type HotStore struct {
	kv  cache.Service
	log *logger.Logger
	now func() time.Time
}

// NewHotStore creates the hot tier over a key/value cache service.
func NewHotStore(kv cache.Service, log *logger.Logger) *HotStore {
	return &HotStore{kv: kv, log: log, now: time.Now}
}

func docKey(key models.CacheKey, date string) string {
	return fmt.Sprintf("%s:%s", key.String(), date)
}

// Store merges bars into their day buckets, last write wins per timestamp.
// Every bucket is attempted even after a failure; overall false if any
// bucket failed. Already-written buckets are not rolled back.
func (s *HotStore) Store(ctx context.Context, key models.CacheKey, bars []models.Bar) bool {
	if len(bars) == 0 {
		return false
	}

	byDay := make(map[string][]models.Bar)
	for _, b := range bars {
		day := util.DayKey(b.Timestamp)
		byDay[day] = append(byDay[day], b)
	}

	ok := true
	now := s.now().Unix()
	for day, dayBars := range byDay {
		dk := docKey(key, day)

		var existing barDocument
		if err := s.kv.Get(ctx, dk, &existing); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Error("hot tier read before merge failed",
				logger.String("key", dk), logger.Error(err))
			ok = false
			continue
		}

		doc := barDocument{
			CacheKey: key.String(),
			Date:     day,
			Bars:     models.MergeBars(existing.Bars, dayBars),
			CachedAt: now,
			Tier:     "hot",
		}
		if err := s.kv.Set(ctx, dk, doc, 0); err != nil {
			s.log.Error("hot tier write failed",
				logger.String("key", dk), logger.Error(err))
			ok = false
			continue
		}
	}

	if ok {
		s.log.Debug("stored bars in hot tier",
			logger.String("cache_key", key.String()),
			logger.Int("bars", len(bars)),
			logger.Int("buckets", len(byDay)))
	}
	return ok
}

// Retrieve walks every day bucket intersecting rng and returns the merged,
// sorted bars inside rng. Nil means nothing was found.
func (s *HotStore) Retrieve(ctx context.Context, key models.CacheKey, rng models.TimeRange) []models.Bar {
	if !rng.Valid() {
		return nil
	}

	start := time.Unix(rng.Start, 0).UTC().Truncate(24 * time.Hour)
	end := time.Unix(rng.End, 0).UTC()

	var all []models.Bar
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		dk := docKey(key, day.Format("2006-01-02"))

		var doc barDocument
		if err := s.kv.Get(ctx, dk, &doc); err != nil {
			if !errors.Is(err, cache.ErrCacheMiss) {
				s.log.Error("hot tier read failed",
					logger.String("key", dk), logger.Error(err))
			}
			continue
		}
		all = append(all, models.FilterBars(doc.Bars, rng)...)
	}

	if len(all) == 0 {
		return nil
	}
	return models.MergeBars(nil, all)
}

// DeleteOlderThan drops whole day documents whose write time predates the
// cutoff and returns the count. Deleting here does not imply the bars were
// migrated to the cold tier; migration is the cache manager's job.
func (s *HotStore) DeleteOlderThan(ctx context.Context, days int) int {
	cutoff := s.now().AddDate(0, 0, -days).Unix()

	keys, err := s.kv.Keys(ctx, "*")
	if err != nil {
		s.log.Error("hot tier key scan failed", logger.Error(err))
		return 0
	}

	deleted := 0
	for _, k := range keys {
		var doc barDocument
		if err := s.kv.Get(ctx, k, &doc); err != nil {
			continue
		}
		if doc.Tier != "hot" || doc.CachedAt >= cutoff {
			continue
		}
		if err := s.kv.Delete(ctx, k); err != nil {
			s.log.Error("hot tier delete failed",
				logger.String("key", k), logger.Error(err))
			continue
		}
		deleted++
	}

	if deleted > 0 {
		s.log.Info("deleted expired hot tier documents", logger.Int("count", deleted))
	}
	return deleted
}

// ExpiredDocuments returns the cached data of hot documents written before
// the cutoff, grouped per document. The migration path copies these to the
// cold tier before deletion.
func (s *HotStore) ExpiredDocuments(ctx context.Context, days int) []models.CachedData {
	cutoff := s.now().AddDate(0, 0, -days).Unix()

	keys, err := s.kv.Keys(ctx, "*")
	if err != nil {
		s.log.Error("hot tier key scan failed", logger.Error(err))
		return nil
	}

	var out []models.CachedData
	for _, k := range keys {
		var doc barDocument
		if err := s.kv.Get(ctx, k, &doc); err != nil {
			continue
		}
		if doc.Tier != "hot" || doc.CachedAt >= cutoff {
			continue
		}
		ck, err := models.ParseCacheKey(doc.CacheKey)
		if err != nil {
			s.log.Warn("skipping hot document with bad cache key",
				logger.String("key", k), logger.Error(err))
			continue
		}
		out = append(out, models.CachedData{
			Key:      ck,
			Date:     doc.Date,
			Bars:     doc.Bars,
			CachedAt: doc.CachedAt,
			Tier:     "hot",
		})
	}
	return out
}

// DeleteDocument removes a single day bucket by its calendar date key. Used
// by migration after the cold-tier copy succeeded.
func (s *HotStore) DeleteDocument(ctx context.Context, key models.CacheKey, date string) bool {
	dk := docKey(key, date)
	if err := s.kv.Delete(ctx, dk); err != nil {
		s.log.Error("hot tier delete failed", logger.String("key", dk), logger.Error(err))
		return false
	}
	return true
}

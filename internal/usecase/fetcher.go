package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jshorterFG/market-analyzer-tv/internal/domain/models"
	domrepo "github.com/jshorterFG/market-analyzer-tv/internal/domain/repository"
	"github.com/jshorterFG/market-analyzer-tv/internal/service/ratelimit"
	"github.com/jshorterFG/market-analyzer-tv/pkg/logger"
)

// ErrDataUnavailable means the provider refused or failed and the cache has
// nothing usable either. Handlers map it to 503.
var ErrDataUnavailable = errors.New("data unavailable from provider and cache")

const (
	// currentBarLookback bounds how far back GetCurrentBar searches the
	// cache for a recent bar.
	currentBarLookback = time.Hour
	// staleFallbackLookback bounds how old a cached quote may be when the
	// provider is rate limited.
	staleFallbackLookback = 24 * time.Hour
)

// DataFetcher is the read path: cache-first retrieval with rate-limited
// provider fetches for whatever the cache cannot answer, and stale-cache
// degradation when the provider is throttled.
type DataFetcher struct {
	provider domrepo.Provider
	cache    *CacheManager
	limiter  *ratelimit.Limiter
	metrics  domrepo.Metrics
	log      *logger.Logger
	now      func() time.Time
}

// NewDataFetcher creates a fetcher over the provider, cache manager and
// rate limiter.
func NewDataFetcher(provider domrepo.Provider, cache *CacheManager, limiter *ratelimit.Limiter, metrics domrepo.Metrics, log *logger.Logger) *DataFetcher {
	return &DataFetcher{
		provider: provider,
		cache:    cache,
		limiter:  limiter,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
	}
}

// fetchQuote runs one provider call under the rate limiter.
func (f *DataFetcher) fetchQuote(ctx context.Context, key models.CacheKey) (*models.Quote, error) {
	var quote *models.Quote
	err := f.limiter.Execute(ctx, func(ctx context.Context) error {
		f.metrics.RecordProviderRequest(key.Screener)
		start := f.now()
		q, err := f.provider.Quote(ctx, key.Symbol, key.Screener, key.Exchange, key.Interval)
		f.metrics.RecordLatency("provider_quote", f.now().Sub(start).Seconds())
		if err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
			f.metrics.RecordRateLimited()
		}
		return nil, err
	}
	return quote, nil
}

// GetCurrentBar returns the most recent bar for key, serving from cache when
// a bar exists within the last hour and otherwise fetching a fresh quote.
func (f *DataFetcher) GetCurrentBar(ctx context.Context, key models.CacheKey) (*models.Bar, error) {
	now := f.now().Unix()
	rng := models.TimeRange{Start: now - int64(currentBarLookback.Seconds()), End: now}

	if cached := f.cache.Get(ctx, key, rng); len(cached) > 0 {
		bar := cached[len(cached)-1]
		return &bar, nil
	}

	quote, err := f.fetchQuote(ctx, key)
	if err != nil {
		return nil, err
	}

	bar := quote.Bar(now)
	f.cache.Put(ctx, key, []models.Bar{bar})
	return &bar, nil
}

// GetAnalysis returns the current analysis snapshot for key. The provider is
// always preferred because only it carries indicator columns; when the rate
// limiter refuses admission the fetcher degrades to the newest cached bar
// from the last 24 hours, marked stale with its age and a warning. If the
// cache is empty too, ErrDataUnavailable.
func (f *DataFetcher) GetAnalysis(ctx context.Context, key models.CacheKey) (*models.Quote, error) {
	quote, err := f.fetchQuote(ctx, key)
	if err == nil {
		f.cache.Put(ctx, key, []models.Bar{quote.Bar(f.now().Unix())})
		return quote, nil
	}

	if !errors.Is(err, ratelimit.ErrRateLimitExceeded) {
		return nil, err
	}

	f.log.Warn("rate limited, attempting cached fallback",
		logger.String("cache_key", key.String()))

	now := f.now().Unix()
	rng := models.TimeRange{Start: now - int64(staleFallbackLookback.Seconds()), End: now}
	cached := f.cache.Get(ctx, key, rng)
	if len(cached) == 0 {
		f.metrics.RecordError("data_unavailable")
		return nil, fmt.Errorf("%w: %s", ErrDataUnavailable, key.String())
	}

	last := cached[len(cached)-1]
	f.log.Info("serving stale cached data",
		logger.String("cache_key", key.String()),
		logger.Int64("cache_age_seconds", now-last.Timestamp))
	stale := &models.Quote{
		Symbol:          key.Symbol,
		Screener:        key.Screener,
		Exchange:        key.Exchange,
		Interval:        key.Interval,
		Open:            last.Open,
		High:            last.High,
		Low:             last.Low,
		Close:           last.Close,
		Volume:          last.Volume,
		FromCache:       true,
		CacheAgeSeconds: now - last.Timestamp,
		Warning:         "rate limited: serving cached data",
	}
	return stale, nil
}

// FetchRange returns all bars for rng, fetching only the gaps the cache
// cannot answer. The provider exposes current quotes only, so each gap
// yields at most one fresh bar; historical backfill beyond what was cached
// is not possible and the returned series may still have holes.
func (f *DataFetcher) FetchRange(ctx context.Context, key models.CacheKey, rng models.TimeRange) ([]models.Bar, error) {
	if !rng.Valid() {
		return nil, fmt.Errorf("invalid time range [%d, %d]", rng.Start, rng.End)
	}

	gaps := f.cache.FindGaps(ctx, key, rng)
	now := f.now().Unix()
	var fetched []models.Bar
	for _, gap := range gaps {
		// Only a gap that reaches the present can be filled by a current
		// quote.
		if gap.Range.End < now-int64(key.Interval.Seconds()) {
			continue
		}
		quote, err := f.fetchQuote(ctx, key)
		if err != nil {
			if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
				break
			}
			return nil, err
		}
		bar := quote.Bar(now)
		fetched = append(fetched, bar)
		f.cache.Put(ctx, key, []models.Bar{bar})
	}

	// Merge the freshly fetched bars in locally: the cache write-through is
	// best-effort (or disabled entirely), and a successful provider call
	// must never be reported as missing data.
	bars := models.MergeBars(f.cache.Get(ctx, key, rng), models.FilterBars(fetched, rng))
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDataUnavailable, key.String())
	}
	return bars, nil
}

package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jshorterFG/market-analyzer-tv/internal/domain/models"
	"github.com/jshorterFG/market-analyzer-tv/pkg/logger"
)

// WarmerConfig holds background refresh settings.
type WarmerConfig struct {
	Enabled         bool
	Interval        time.Duration
	RequestDelay    time.Duration
	MigrateInterval time.Duration
	Symbols         []string
}

// Warmer periodically refreshes a configured watchlist so interactive reads
// hit the cache, and drives hot-to-cold migration on its own cadence. It is
// deliberately slow: one symbol at a time with a delay in between, staying
// far inside the rate limiter's budget.
type Warmer struct {
	cfg     WarmerConfig
	fetcher *DataFetcher
	cache   *CacheManager
	log     *logger.Logger

	keys   []models.CacheKey
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWarmer creates a warmer. Watchlist entries use the cache-key form
// "screener:exchange:symbol:interval"; malformed entries are dropped with a
// warning rather than failing startup.
func NewWarmer(cfg WarmerConfig, fetcher *DataFetcher, cache *CacheManager, log *logger.Logger) *Warmer {
	w := &Warmer{cfg: cfg, fetcher: fetcher, cache: cache, log: log}
	for _, s := range cfg.Symbols {
		key, err := models.ParseCacheKey(s)
		if err != nil {
			log.Warn("skipping malformed watchlist entry",
				logger.String("entry", s), logger.Error(err))
			continue
		}
		w.keys = append(w.keys, key)
	}
	return w
}

// Start launches the refresh and migration loops. No-op when disabled or the
// watchlist is empty.
func (w *Warmer) Start() {
	if !w.cfg.Enabled {
		w.log.Info("cache warmer disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	if len(w.keys) > 0 {
		w.wg.Add(1)
		go w.refreshLoop(ctx)
	}
	if w.cfg.MigrateInterval > 0 {
		w.wg.Add(1)
		go w.migrateLoop(ctx)
	}

	w.log.Info("cache warmer started",
		logger.Strings("symbols", w.cfg.Symbols),
		logger.Duration("interval", w.cfg.Interval))
}

// Stop cancels the loops and waits for them to drain.
func (w *Warmer) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.log.Info("cache warmer stopped")
}

func (w *Warmer) refreshLoop(ctx context.Context) {
	defer w.wg.Done()

	// Warm immediately on startup, then on the ticker.
	w.refreshAll(ctx)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refreshAll(ctx)
		}
	}
}

func (w *Warmer) refreshAll(ctx context.Context) {
	for _, key := range w.keys {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.fetcher.GetAnalysis(ctx, key); err != nil {
			// Warming is opportunistic; a refused or failed refresh just
			// waits for the next cycle.
			w.log.Debug("warmup refresh failed",
				logger.String("cache_key", key.String()), logger.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.RequestDelay):
		}
	}
}

func (w *Warmer) migrateLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.MigrateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := w.cache.MigrateToColdTier(ctx); n > 0 {
				w.log.Info("background migration completed", logger.Int("documents", n))
			}
		}
	}
}

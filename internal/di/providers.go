package di

import (
	"context"
	"fmt"
	"time"

	"github.com/jshorterFG/market-analyzer-tv/internal/domain/repository"
	"github.com/jshorterFG/market-analyzer-tv/internal/handler/api"
	internalrepo "github.com/jshorterFG/market-analyzer-tv/internal/repository"
	"github.com/jshorterFG/market-analyzer-tv/internal/service/ratelimit"
	"github.com/jshorterFG/market-analyzer-tv/internal/service/tradingview"
	"github.com/jshorterFG/market-analyzer-tv/internal/usecase"
	"github.com/jshorterFG/market-analyzer-tv/pkg/cache"
	pkgch "github.com/jshorterFG/market-analyzer-tv/pkg/clickhouse"
	"github.com/jshorterFG/market-analyzer-tv/pkg/config"
	xhttp "github.com/jshorterFG/market-analyzer-tv/pkg/http"
	"github.com/jshorterFG/market-analyzer-tv/pkg/logger"
	"github.com/jshorterFG/market-analyzer-tv/pkg/metrics"
	"github.com/jshorterFG/market-analyzer-tv/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideRedisCache creates the hot-tier key/value backend.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	kv, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		cache.WithRedisPrefix(cfg.Cache.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return kv, nil
}

// ProvideClickHouseClient creates the cold-tier client and ensures schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideHotStore creates the Redis-backed hot tier.
func ProvideHotStore(kv cache.Service, log *logger.Logger) *internalrepo.HotStore {
	return internalrepo.NewHotStore(kv, log)
}

// ProvideColdStore creates the ClickHouse-backed cold tier.
func ProvideColdStore(chClient *pkgch.Client, cfg *config.Config, log *logger.Logger) *internalrepo.ColdStore {
	table := cfg.ClickHouse.Database + "." + cfg.ClickHouse.Table
	return internalrepo.NewColdStore(chClient.DB(), table, log)
}

// ProvideCacheManager creates the tier orchestrator.
func ProvideCacheManager(hot *internalrepo.HotStore, cold *internalrepo.ColdStore, m repository.Metrics, cfg *config.Config, log *logger.Logger) *usecase.CacheManager {
	return usecase.NewCacheManager(hot, cold, m, log, cfg.Cache.Enabled, cfg.Cache.HotTierDays)
}

// ProvideLimiter creates the provider admission controller.
func ProvideLimiter(cfg *config.Config, log *logger.Logger) *ratelimit.Limiter {
	return ratelimit.New(ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		MaxPerMinute:      cfg.RateLimit.MaxPerMinute,
		MaxPerHour:        cfg.RateLimit.MaxPerHour,
		InitialBackoff:    cfg.RateLimit.InitialBackoff,
		MaxBackoff:        cfg.RateLimit.MaxBackoff,
		BackoffMultiplier: cfg.RateLimit.BackoffMultiplier,
	}, log)
}

// ProvideTradingView creates the scanner provider client.
func ProvideTradingView(cfg *config.Config, log *logger.Logger) repository.Provider {
	httpClient := xhttp.NewClient(xhttp.WithTimeout(cfg.RateLimit.RequestTimeout))
	return tradingview.New(cfg.TradingView.BaseURL, cfg.TradingView.UserAgent, httpClient, log)
}

// ProvideFetcher creates the read-path use case.
func ProvideFetcher(provider repository.Provider, cm *usecase.CacheManager, limiter *ratelimit.Limiter, m repository.Metrics, log *logger.Logger) *usecase.DataFetcher {
	return usecase.NewDataFetcher(provider, cm, limiter, m, log)
}

// ProvideWarmer creates the background refresh loop.
func ProvideWarmer(cfg *config.Config, fetcher *usecase.DataFetcher, cm *usecase.CacheManager, log *logger.Logger) *usecase.Warmer {
	return usecase.NewWarmer(usecase.WarmerConfig{
		Enabled:         cfg.Warmup.Enabled,
		Interval:        cfg.Warmup.Interval,
		RequestDelay:    cfg.Warmup.RequestDelay,
		MigrateInterval: cfg.Warmup.MigrateInterval,
		Symbols:         cfg.Warmup.Symbols,
	}, fetcher, cm, log)
}

// ProvideHandler creates the HTTP API handler.
func ProvideHandler(fetcher *usecase.DataFetcher, limiter *ratelimit.Limiter, log *logger.Logger) *api.Handler {
	return api.NewHandler(fetcher, limiter, log)
}

// InitializeApp wires all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	log, err := ProvideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	kv, err := ProvideRedisCache(cfg)
	if err != nil {
		return nil, err
	}

	chClient, err := ProvideClickHouseClient(cfg)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	m := ProvideMetrics()
	hot := ProvideHotStore(kv, log)
	cold := ProvideColdStore(chClient, cfg, log)
	cm := ProvideCacheManager(hot, cold, m, cfg, log)
	limiter := ProvideLimiter(cfg, log)
	provider := ProvideTradingView(cfg, log)
	fetcher := ProvideFetcher(provider, cm, limiter, m, log)
	warmer := ProvideWarmer(cfg, fetcher, cm, log)
	handler := ProvideHandler(fetcher, limiter, log)

	return server.New(cfg, log, handler, warmer, kv, chClient), nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jshorterFG/market-analyzer-tv/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Redis struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		PoolSize     int           `yaml:"pool_size"`
		PoolTimeout  time.Duration `yaml:"pool_timeout"`
		MinIdleConns int           `yaml:"min_idle_conns"`
	} `yaml:"redis"`
	ClickHouse struct {
		Host        string        `yaml:"host"`
		Port        int           `yaml:"port"`
		Database    string        `yaml:"database"`
		User        string        `yaml:"user"`
		Password    string        `yaml:"password"`
		Table       string        `yaml:"table"`
		DialTimeout time.Duration `yaml:"dial_timeout"`
		ReadTimeout time.Duration `yaml:"read_timeout"`
	} `yaml:"clickhouse"`
	Cache struct {
		Enabled     bool   `yaml:"enabled"`
		HotTierDays int    `yaml:"hot_tier_days"`
		Prefix      string `yaml:"prefix"`
	} `yaml:"cache"`
	RateLimit struct {
		Enabled           bool          `yaml:"enabled"`
		MaxPerMinute      int           `yaml:"max_per_minute"`
		MaxPerHour        int           `yaml:"max_per_hour"`
		InitialBackoff    time.Duration `yaml:"initial_backoff"`
		MaxBackoff        time.Duration `yaml:"max_backoff"`
		BackoffMultiplier float64       `yaml:"backoff_multiplier"`
		RequestTimeout    time.Duration `yaml:"request_timeout"`
	} `yaml:"rate_limit"`
	TradingView struct {
		BaseURL   string `yaml:"base_url"`
		UserAgent string `yaml:"user_agent"`
	} `yaml:"tradingview"`
	Warmup struct {
		Enabled         bool          `yaml:"enabled"`
		Interval        time.Duration `yaml:"interval"`
		RequestDelay    time.Duration `yaml:"request_delay"`
		MigrateInterval time.Duration `yaml:"migrate_interval"`
		Symbols         []string      `yaml:"symbols"` // "screener:exchange:symbol:interval"
	} `yaml:"warmup"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	c.Cache.HotTierDays = util.ParseIntDefault(os.Getenv("HOT_TIER_DAYS"), c.Cache.HotTierDays)
	c.RateLimit.MaxPerMinute = util.ParseIntDefault(os.Getenv("MAX_REQUESTS_PER_MINUTE"), c.RateLimit.MaxPerMinute)
	c.RateLimit.MaxPerHour = util.ParseIntDefault(os.Getenv("MAX_REQUESTS_PER_HOUR"), c.RateLimit.MaxPerHour)
	if v := os.Getenv("ENABLE_CACHE"); v != "" {
		c.Cache.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("ENABLE_RATE_LIMITING"); v != "" {
		c.RateLimit.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("WARMUP_SYMBOLS"); v != "" {
		c.Warmup.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Cache.HotTierDays == 0 {
		c.Cache.HotTierDays = 90
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "market"
	}
	if c.RateLimit.MaxPerMinute == 0 {
		c.RateLimit.MaxPerMinute = 50
	}
	if c.RateLimit.MaxPerHour == 0 {
		c.RateLimit.MaxPerHour = 2000
	}
	if c.RateLimit.InitialBackoff == 0 {
		c.RateLimit.InitialBackoff = time.Second
	}
	if c.RateLimit.MaxBackoff == 0 {
		c.RateLimit.MaxBackoff = 60 * time.Second
	}
	if c.RateLimit.BackoffMultiplier == 0 {
		c.RateLimit.BackoffMultiplier = 2.0
	}
	if c.RateLimit.RequestTimeout == 0 {
		c.RateLimit.RequestTimeout = 30 * time.Second
	}
	if c.ClickHouse.Table == "" {
		c.ClickHouse.Table = "market_bars"
	}
	if c.TradingView.BaseURL == "" {
		c.TradingView.BaseURL = "https://scanner.tradingview.com"
	}
	if c.Warmup.Interval == 0 {
		c.Warmup.Interval = 15 * time.Minute
	}
	if c.Warmup.RequestDelay == 0 {
		c.Warmup.RequestDelay = 2 * time.Second
	}
	if c.Warmup.MigrateInterval == 0 {
		c.Warmup.MigrateInterval = 24 * time.Hour
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("redis.host is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.ClickHouse.Database == "" {
		return fmt.Errorf("clickhouse.database is required")
	}
	if c.Cache.HotTierDays < 0 {
		return fmt.Errorf("cache.hot_tier_days must not be negative")
	}
	if c.RateLimit.MaxPerMinute <= 0 || c.RateLimit.MaxPerHour <= 0 {
		return fmt.Errorf("rate_limit ceilings must be positive")
	}
	if c.RateLimit.BackoffMultiplier < 1 {
		return fmt.Errorf("rate_limit.backoff_multiplier must be >= 1")
	}
	return nil
}

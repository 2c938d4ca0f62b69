package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jshorterFG/market-analyzer-tv/pkg/logger"
)

// ErrRateLimitExceeded signals that admission was refused and the caller
// should degrade to cached data instead of waiting. It is control flow, not
// a failure.
var ErrRateLimitExceeded = errors.New("rate limit exceeded, cache fallback recommended")

// maxAttempts bounds throttling retries inside Execute.
const maxAttempts = 5

// Config holds admission and backoff settings.
type Config struct {
	Enabled           bool
	MaxPerMinute      int
	MaxPerHour        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// Stats is a snapshot of limiter state.
type Stats struct {
	RequestsThisMinute  int           `json:"requests_this_minute"`
	RequestsThisHour    int           `json:"requests_this_hour"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	CurrentBackoff      time.Duration `json:"current_backoff_ns"`
	MaxPerMinute        int           `json:"max_per_minute"`
	MaxPerHour          int           `json:"max_per_hour"`
}

// Limiter is a leaky-bucket admission controller with per-minute and
// per-hour windows and exponential backoff on provider throttling. One
// instance is shared process-wide; construct isolated instances in tests.
//
// The mutex covers only the check-and-increment of the window counters, so
// admitted operations run concurrently and their retries never serialize
// other admission checks.
type Limiter struct {
	mu  sync.Mutex
	cfg Config
	log *logger.Logger

	minuteCount int
	hourCount   int
	minuteStart time.Time
	hourStart   time.Time

	consecutiveFailures int
	currentBackoff      time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter.
func New(cfg Config, log *logger.Logger) *Limiter {
	l := &Limiter{
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		sleep: sleepCtx,
	}
	log.Info("rate limiter initialized",
		logger.Int("max_per_minute", cfg.MaxPerMinute),
		logger.Int("max_per_hour", cfg.MaxPerHour),
		logger.Bool("enabled", cfg.Enabled))
	return l
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// resetWindowsLocked lazily restarts expired windows. Callers hold mu.
func (l *Limiter) resetWindowsLocked() {
	now := l.now()
	if now.Sub(l.minuteStart) >= time.Minute {
		l.minuteCount = 0
		l.minuteStart = now
	}
	if now.Sub(l.hourStart) >= time.Hour {
		l.hourCount = 0
		l.hourStart = now
	}
}

// admit performs the check-and-increment under the lock.
func (l *Limiter) admit() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetWindowsLocked()
	if l.minuteCount >= l.cfg.MaxPerMinute || l.hourCount >= l.cfg.MaxPerHour {
		return ErrRateLimitExceeded
	}
	l.minuteCount++
	l.hourCount++
	return nil
}

// Execute runs op under rate limiting. Either the operation executes (with
// up to maxAttempts tries when the provider throttles), or
// ErrRateLimitExceeded is returned so the caller can fall back to cache.
// Requests are never silently dropped.
func (l *Limiter) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	if !l.cfg.Enabled {
		return op(ctx)
	}

	if err := l.admit(); err != nil {
		l.log.Warn("rate limit exceeded, refusing admission")
		return err
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			l.recordSuccess()
			return nil
		}

		if !IsThrottling(err) {
			// Timeouts, 5xx and other transient failures propagate
			// without consuming the retry budget.
			return err
		}

		backoff := l.recordThrottled()
		l.log.Warn("provider throttled, backing off",
			logger.Int("attempt", attempt),
			logger.Duration("backoff", backoff),
			logger.Error(err))

		if attempt == maxAttempts {
			break
		}
		if serr := l.sleep(ctx, backoff); serr != nil {
			return serr
		}
	}

	return fmt.Errorf("max retries (%d) exceeded", maxAttempts)
}

// recordSuccess resets backoff state after a successful call.
func (l *Limiter) recordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.consecutiveFailures > 0 {
		l.log.Info("provider recovered",
			logger.Int("after_failures", l.consecutiveFailures))
	}
	l.consecutiveFailures = 0
	l.currentBackoff = 0
}

// recordThrottled advances the exponential backoff and returns the delay to
// sleep before the next attempt.
func (l *Limiter) recordThrottled() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.consecutiveFailures++
	if l.consecutiveFailures == 1 {
		l.currentBackoff = l.cfg.InitialBackoff
	} else {
		next := time.Duration(float64(l.currentBackoff) * l.cfg.BackoffMultiplier)
		if next > l.cfg.MaxBackoff {
			next = l.cfg.MaxBackoff
		}
		l.currentBackoff = next
	}
	return l.currentBackoff
}

// Stats returns a snapshot of current limiter state.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetWindowsLocked()
	return Stats{
		RequestsThisMinute:  l.minuteCount,
		RequestsThisHour:    l.hourCount,
		ConsecutiveFailures: l.consecutiveFailures,
		CurrentBackoff:      l.currentBackoff,
		MaxPerMinute:        l.cfg.MaxPerMinute,
		MaxPerHour:          l.cfg.MaxPerHour,
	}
}

// IsThrottling classifies provider errors that indicate throttling and are
// worth retrying with backoff.
func IsThrottling(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}

package ratelimit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jshorterFG/market-analyzer-tv/pkg/logger"
)

func testConfig() Config {
	return Config{
		Enabled:           true,
		MaxPerMinute:      3,
		MaxPerHour:        100,
		InitialBackoff:    time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// newTestLimiter returns a limiter with a controllable clock and a sleep
// that records requested delays without waiting.
func newTestLimiter(cfg Config) (*Limiter, *time.Time, *[]time.Duration) {
	l := New(cfg, logger.Nop())

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	var slept []time.Duration
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return l, &now, &slept
}

func nop(context.Context) error { return nil }

func TestExecuteRefusesOverMinuteCeiling(t *testing.T) {
	l, _, _ := newTestLimiter(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Execute(ctx, nop); err != nil {
			t.Fatalf("request %d should be admitted: %v", i+1, err)
		}
	}

	err := l.Execute(ctx, nop)
	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("got %v, want ErrRateLimitExceeded", err)
	}
}

func TestExecuteRefusesOverHourCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPerMinute = 1000
	cfg.MaxPerHour = 5
	l, now, _ := newTestLimiter(cfg)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := l.Execute(ctx, nop); err != nil {
			t.Fatalf("request %d should be admitted: %v", i+1, err)
		}
		// Advance past the minute window so only the hour ceiling binds.
		*now = now.Add(time.Minute)
	}

	if err := l.Execute(ctx, nop); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("got %v, want ErrRateLimitExceeded", err)
	}
}

func TestWindowResets(t *testing.T) {
	l, now, _ := newTestLimiter(testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Execute(ctx, nop); err != nil {
			t.Fatalf("admit %d: %v", i+1, err)
		}
	}
	if err := l.Execute(ctx, nop); !errors.Is(err, ErrRateLimitExceeded) {
		t.Fatal("ceiling should be hit")
	}

	*now = now.Add(time.Minute)
	if err := l.Execute(ctx, nop); err != nil {
		t.Fatalf("new minute window should admit: %v", err)
	}
}

func TestBackoffSequenceOnThrottling(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPerMinute = 100
	cfg.MaxBackoff = 10 * time.Second
	l, _, slept := newTestLimiter(cfg)

	throttled := errors.New("unexpected status 429: too fast")
	err := l.Execute(context.Background(), func(context.Context) error {
		return throttled
	})
	if err == nil || !strings.Contains(err.Error(), "max retries") {
		t.Fatalf("got %v, want max retries error", err)
	}

	// Five attempts back off after each failure: 1s, 2s, 4s, 8s (capped run
	// never reaches it here); the final attempt records its backoff but does
	// not sleep.
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("got %d sleeps, want %d: %v", len(*slept), len(want), *slept)
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("sleep %d: got %v, want %v", i, (*slept)[i], d)
		}
	}
}

func TestBackoffCapped(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPerMinute = 100
	cfg.MaxBackoff = 3 * time.Second
	l, _, slept := newTestLimiter(cfg)

	_ = l.Execute(context.Background(), func(context.Context) error {
		return errors.New("rate limit hit")
	})

	for i, d := range *slept {
		if d > 3*time.Second {
			t.Errorf("sleep %d exceeds cap: %v", i, d)
		}
	}
	if last := (*slept)[len(*slept)-1]; last != 3*time.Second {
		t.Errorf("final sleep: got %v, want cap 3s", last)
	}
}

func TestNonThrottlingErrorPropagates(t *testing.T) {
	l, _, slept := newTestLimiter(testConfig())

	boom := errors.New("connection refused")
	err := l.Execute(context.Background(), func(context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want original error", err)
	}
	if len(*slept) != 0 {
		t.Error("non-throttling errors must not trigger backoff")
	}
}

func TestSuccessResetsBackoff(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPerMinute = 100
	l, _, _ := newTestLimiter(cfg)
	ctx := context.Background()

	calls := 0
	err := l.Execute(ctx, func(context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("too many requests")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry should have succeeded: %v", err)
	}

	stats := l.Stats()
	if stats.ConsecutiveFailures != 0 || stats.CurrentBackoff != 0 {
		t.Errorf("success must reset backoff state: %+v", stats)
	}
}

func TestDisabledLimiterRunsDirectly(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	cfg.MaxPerMinute = 0
	l, _, _ := newTestLimiter(cfg)

	for i := 0; i < 10; i++ {
		if err := l.Execute(context.Background(), nop); err != nil {
			t.Fatalf("disabled limiter must admit everything: %v", err)
		}
	}
	if stats := l.Stats(); stats.RequestsThisMinute != 0 {
		t.Error("disabled limiter must not count requests")
	}
}

func TestStatsSnapshot(t *testing.T) {
	l, _, _ := newTestLimiter(testConfig())
	ctx := context.Background()

	_ = l.Execute(ctx, nop)
	_ = l.Execute(ctx, nop)

	stats := l.Stats()
	if stats.RequestsThisMinute != 2 || stats.RequestsThisHour != 2 {
		t.Errorf("unexpected counters: %+v", stats)
	}
	if stats.MaxPerMinute != 3 || stats.MaxPerHour != 100 {
		t.Errorf("unexpected ceilings: %+v", stats)
	}
}

func TestIsThrottling(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("unexpected status 429: slow down"), true},
		{errors.New("Rate Limit exceeded upstream"), true},
		{errors.New("too many requests"), true},
		{errors.New("unexpected status 500: boom"), false},
		{errors.New("context deadline exceeded"), false},
	}
	for _, c := range cases {
		if got := IsThrottling(c.err); got != c.want {
			t.Errorf("IsThrottling(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

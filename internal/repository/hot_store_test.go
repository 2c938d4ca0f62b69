package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jshorterFG/market-analyzer-tv/internal/domain/models"
	"github.com/jshorterFG/market-analyzer-tv/pkg/cache"
	"github.com/jshorterFG/market-analyzer-tv/pkg/logger"
)

var hotTestNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestHotStore() *HotStore {
	s := NewHotStore(cache.NewMemoryCache(), logger.Nop())
	s.now = func() time.Time { return hotTestNow }
	return s
}

func hotTestKey() models.CacheKey {
	return models.CacheKey{Symbol: "AAPL", Screener: "america", Exchange: "NASDAQ", Interval: models.Interval1h}
}

func TestHotStoreRoundTrip(t *testing.T) {
	s := newTestHotStore()
	key := hotTestKey()
	ctx := context.Background()

	base := hotTestNow.Add(-2 * time.Hour).Unix()
	bars := []models.Bar{
		{Timestamp: base, Close: 1},
		{Timestamp: base + 3600, Close: 2},
	}

	if !s.Store(ctx, key, bars) {
		t.Fatal("store should succeed")
	}

	got := s.Retrieve(ctx, key, models.TimeRange{Start: base, End: hotTestNow.Unix()})
	if len(got) != 2 {
		t.Fatalf("got %d bars, want 2", len(got))
	}
	if got[0].Close != 1 || got[1].Close != 2 {
		t.Errorf("unexpected bars: %+v", got)
	}
}

func TestHotStoreSpansDayBuckets(t *testing.T) {
	s := newTestHotStore()
	key := hotTestKey()
	ctx := context.Background()

	// One bar late on day one, one early on day two.
	day1 := time.Date(2026, 5, 30, 23, 0, 0, 0, time.UTC).Unix()
	day2 := time.Date(2026, 5, 31, 1, 0, 0, 0, time.UTC).Unix()

	if !s.Store(ctx, key, []models.Bar{{Timestamp: day1}, {Timestamp: day2}}) {
		t.Fatal("store should succeed")
	}

	got := s.Retrieve(ctx, key, models.TimeRange{Start: day1, End: day2})
	if len(got) != 2 {
		t.Fatalf("got %d bars across day buckets, want 2", len(got))
	}
}

func TestHotStoreMergesLastWriteWins(t *testing.T) {
	s := newTestHotStore()
	key := hotTestKey()
	ctx := context.Background()

	ts := hotTestNow.Add(-time.Hour).Unix()
	s.Store(ctx, key, []models.Bar{{Timestamp: ts, Close: 1}})
	s.Store(ctx, key, []models.Bar{{Timestamp: ts, Close: 2}})

	got := s.Retrieve(ctx, key, models.TimeRange{Start: ts, End: ts})
	if len(got) != 1 {
		t.Fatalf("got %d bars, want 1", len(got))
	}
	if got[0].Close != 2 {
		t.Errorf("last write must win, got close %v", got[0].Close)
	}
}

func TestHotStoreRetrieveFilters(t *testing.T) {
	s := newTestHotStore()
	key := hotTestKey()
	ctx := context.Background()

	base := hotTestNow.Add(-3 * time.Hour).Unix()
	s.Store(ctx, key, []models.Bar{
		{Timestamp: base},
		{Timestamp: base + 3600},
		{Timestamp: base + 7200},
	})

	got := s.Retrieve(ctx, key, models.TimeRange{Start: base + 3600, End: base + 3600})
	if len(got) != 1 || got[0].Timestamp != base+3600 {
		t.Fatalf("filter mismatch: %+v", got)
	}
}

func TestHotStoreEmptyInputs(t *testing.T) {
	s := newTestHotStore()
	key := hotTestKey()
	ctx := context.Background()

	if s.Store(ctx, key, nil) {
		t.Error("storing no bars must report false")
	}
	if got := s.Retrieve(ctx, key, models.TimeRange{Start: 100, End: 0}); got != nil {
		t.Error("invalid range must return nil")
	}
}

func TestHotStoreDeleteOlderThan(t *testing.T) {
	s := newTestHotStore()
	key := hotTestKey()
	ctx := context.Background()

	writeTime := hotTestNow.AddDate(0, 0, -120)
	s.now = func() time.Time { return writeTime }
	s.Store(ctx, key, []models.Bar{{Timestamp: writeTime.Unix()}})

	s.now = func() time.Time { return hotTestNow }
	if n := s.DeleteOlderThan(ctx, 90); n != 1 {
		t.Fatalf("got %d deleted, want 1", n)
	}
	if got := s.Retrieve(ctx, key, models.TimeRange{Start: writeTime.Unix(), End: hotTestNow.Unix()}); got != nil {
		t.Error("deleted document must not be retrievable")
	}
}

func TestHotStoreExpiredDocuments(t *testing.T) {
	s := newTestHotStore()
	key := hotTestKey()
	ctx := context.Background()

	oldWrite := hotTestNow.AddDate(0, 0, -120)
	s.now = func() time.Time { return oldWrite }
	oldTS := oldWrite.Unix()
	s.Store(ctx, key, []models.Bar{{Timestamp: oldTS, Close: 7}})

	s.now = func() time.Time { return hotTestNow }
	s.Store(ctx, key, []models.Bar{{Timestamp: hotTestNow.Add(-time.Hour).Unix()}})

	docs := s.ExpiredDocuments(ctx, 90)
	if len(docs) != 1 {
		t.Fatalf("got %d expired documents, want 1", len(docs))
	}
	if docs[0].Key != key {
		t.Errorf("unexpected key: %+v", docs[0].Key)
	}
	if want := oldWrite.Format("2006-01-02"); docs[0].Date != want {
		t.Errorf("document date: got %q, want %q", docs[0].Date, want)
	}
	if len(docs[0].Bars) != 1 || docs[0].Bars[0].Close != 7 {
		t.Errorf("unexpected bars: %+v", docs[0].Bars)
	}

	if !s.DeleteDocument(ctx, key, docs[0].Date) {
		t.Fatal("delete should succeed")
	}
	if docs := s.ExpiredDocuments(ctx, 90); len(docs) != 0 {
		t.Errorf("document must be gone after delete, got %+v", docs)
	}
}

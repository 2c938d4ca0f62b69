package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/jshorterFG/market-analyzer-tv/internal/domain/models"
	"github.com/jshorterFG/market-analyzer-tv/pkg/logger"
)

// fakeTier is an in-memory TierStore for exercising the cache manager
// without Redis or ClickHouse.
type fakeTier struct {
	data     map[string][]models.Bar
	failPut  bool
	expired  []models.CachedData
	deleted  []string
	putCalls int
}

func newFakeTier() *fakeTier {
	return &fakeTier{data: make(map[string][]models.Bar)}
}

func (f *fakeTier) Store(_ context.Context, key models.CacheKey, bars []models.Bar) bool {
	f.putCalls++
	if f.failPut {
		return false
	}
	k := key.String()
	f.data[k] = models.MergeBars(f.data[k], bars)
	return true
}

func (f *fakeTier) Retrieve(_ context.Context, key models.CacheKey, rng models.TimeRange) []models.Bar {
	got := models.FilterBars(f.data[key.String()], rng)
	if len(got) == 0 {
		return nil
	}
	return got
}

func (f *fakeTier) DeleteOlderThan(context.Context, int) int { return 0 }

func (f *fakeTier) ExpiredDocuments(context.Context, int) []models.CachedData {
	return f.expired
}

func (f *fakeTier) DeleteDocument(_ context.Context, key models.CacheKey, date string) bool {
	f.deleted = append(f.deleted, key.String()+":"+date)
	return true
}

type nopMetrics struct{}

func (nopMetrics) RecordCacheHit(string)         {}
func (nopMetrics) RecordCacheMiss()              {}
func (nopMetrics) RecordProviderRequest(string)  {}
func (nopMetrics) RecordRateLimited()            {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(hot *fakeTier, cold *fakeTier) *CacheManager {
	m := NewCacheManager(hot, cold, nopMetrics{}, logger.Nop(), true, 90)
	m.now = func() time.Time { return testNow }
	return m
}

func testKey(iv models.Interval) models.CacheKey {
	return models.CacheKey{Symbol: "AAPL", Screener: "america", Exchange: "NASDAQ", Interval: iv}
}

func TestGetMissReturnsNil(t *testing.T) {
	m := newTestManager(newFakeTier(), newFakeTier())
	got := m.Get(context.Background(), testKey(models.Interval1h), models.TimeRange{Start: 0, End: testNow.Unix()})
	if got != nil {
		t.Fatalf("expected nil on empty cache, got %d bars", len(got))
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	hot, cold := newFakeTier(), newFakeTier()
	m := newTestManager(hot, cold)
	key := testKey(models.Interval1h)

	base := testNow.Add(-2 * time.Hour).Unix()
	bars := []models.Bar{
		{Timestamp: base, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
		{Timestamp: base + 3600, Open: 1.5, High: 3, Low: 1, Close: 2.5, Volume: 20},
	}

	res := m.Put(context.Background(), key, bars)
	if !res.OK() {
		t.Fatal("put should succeed")
	}
	if res.Hot == nil || !*res.Hot {
		t.Fatal("recent bars must land in the hot tier")
	}
	if res.Cold != nil {
		t.Fatal("cold tier must not be touched for recent bars")
	}

	got := m.Get(context.Background(), key, models.TimeRange{Start: base, End: testNow.Unix()})
	if len(got) != 2 {
		t.Fatalf("got %d bars, want 2", len(got))
	}
	if got[0].Close != 1.5 || got[1].Close != 2.5 {
		t.Errorf("unexpected bars: %+v", got)
	}
}

func TestPutSplitsAcrossCutoff(t *testing.T) {
	hot, cold := newFakeTier(), newFakeTier()
	m := newTestManager(hot, cold)
	key := testKey(models.Interval1d)

	recent := testNow.AddDate(0, 0, -1).Unix()
	old := testNow.AddDate(0, 0, -120).Unix()

	res := m.Put(context.Background(), key, []models.Bar{
		{Timestamp: recent, Close: 2},
		{Timestamp: old, Close: 1},
	})
	if !res.OK() {
		t.Fatal("put should succeed")
	}
	if res.Hot == nil || res.Cold == nil {
		t.Fatal("both tiers must be written")
	}
	if len(hot.data[key.String()]) != 1 || len(cold.data[key.String()]) != 1 {
		t.Fatalf("split mismatch: hot=%d cold=%d",
			len(hot.data[key.String()]), len(cold.data[key.String()]))
	}
	if hot.data[key.String()][0].Timestamp != recent {
		t.Error("recent bar must live in the hot tier")
	}
	if cold.data[key.String()][0].Timestamp != old {
		t.Error("old bar must live in the cold tier")
	}

	// Reading across the cutoff pulls from both tiers.
	got := m.Get(context.Background(), key, models.TimeRange{Start: old, End: testNow.Unix()})
	if len(got) != 2 {
		t.Fatalf("cross-cutoff read: got %d bars, want 2", len(got))
	}
}

func TestGetHotWinsOnSharedTimestamp(t *testing.T) {
	hot, cold := newFakeTier(), newFakeTier()
	m := newTestManager(hot, cold)
	key := testKey(models.Interval1d)

	ts := testNow.AddDate(0, 0, -100).Unix()
	hot.data[key.String()] = []models.Bar{{Timestamp: ts, Close: 99}}
	cold.data[key.String()] = []models.Bar{{Timestamp: ts, Close: 1}}

	got := m.Get(context.Background(), key, models.TimeRange{Start: ts, End: testNow.Unix()})
	if len(got) != 1 {
		t.Fatalf("got %d bars, want 1", len(got))
	}
	if got[0].Close != 99 {
		t.Errorf("hot copy must win, got close %v", got[0].Close)
	}
}

func TestPutFailureReported(t *testing.T) {
	hot, cold := newFakeTier(), newFakeTier()
	hot.failPut = true
	m := newTestManager(hot, cold)

	res := m.Put(context.Background(), testKey(models.Interval1h), []models.Bar{
		{Timestamp: testNow.Add(-time.Hour).Unix()},
	})
	if res.OK() {
		t.Fatal("failed hot write must not report OK")
	}
	if res.Hot == nil || *res.Hot {
		t.Fatal("hot flag must be present and false")
	}
}

func TestFindGapsEmptyCache(t *testing.T) {
	m := newTestManager(newFakeTier(), newFakeTier())
	key := testKey(models.Interval5m)
	rng := models.TimeRange{Start: 1000, End: 2000}

	gaps := m.FindGaps(context.Background(), key, rng)
	if len(gaps) != 1 {
		t.Fatalf("got %d gaps, want 1", len(gaps))
	}
	if gaps[0].Range != rng {
		t.Errorf("gap must cover the whole range, got %+v", gaps[0].Range)
	}
}

func TestFindGapsInternal(t *testing.T) {
	hot, cold := newFakeTier(), newFakeTier()
	m := newTestManager(hot, cold)
	key := testKey(models.Interval5m)

	base := testNow.Add(-time.Hour).Unix()
	// Bars at base, base+300, base+1500: the 1200s hole between the second
	// and third exceeds twice the 300s interval.
	hot.data[key.String()] = []models.Bar{
		{Timestamp: base},
		{Timestamp: base + 300},
		{Timestamp: base + 1500},
	}

	gaps := m.FindGaps(context.Background(), key, models.TimeRange{Start: base, End: base + 1500})
	if len(gaps) != 1 {
		t.Fatalf("got %d gaps, want 1: %+v", len(gaps), gaps)
	}
	want := models.TimeRange{Start: base + 600, End: base + 1200}
	if gaps[0].Range != want {
		t.Errorf("got gap %+v, want %+v", gaps[0].Range, want)
	}
}

func TestFindGapsLeadingAndTrailing(t *testing.T) {
	hot, cold := newFakeTier(), newFakeTier()
	m := newTestManager(hot, cold)
	key := testKey(models.Interval5m)

	base := testNow.Add(-time.Hour).Unix()
	hot.data[key.String()] = []models.Bar{
		{Timestamp: base + 600},
		{Timestamp: base + 900},
	}

	gaps := m.FindGaps(context.Background(), key, models.TimeRange{Start: base, End: base + 1500})
	if len(gaps) != 2 {
		t.Fatalf("got %d gaps, want 2: %+v", len(gaps), gaps)
	}
	if got, want := gaps[0].Range, (models.TimeRange{Start: base, End: base + 599}); got != want {
		t.Errorf("leading gap: got %+v, want %+v", got, want)
	}
	if got, want := gaps[1].Range, (models.TimeRange{Start: base + 901, End: base + 1500}); got != want {
		t.Errorf("trailing gap: got %+v, want %+v", got, want)
	}
}

func TestFindGapsAdjacentBarsNoGap(t *testing.T) {
	hot, cold := newFakeTier(), newFakeTier()
	m := newTestManager(hot, cold)
	key := testKey(models.Interval5m)

	base := testNow.Add(-time.Hour).Unix()
	hot.data[key.String()] = []models.Bar{
		{Timestamp: base},
		{Timestamp: base + 300},
		{Timestamp: base + 600},
	}

	gaps := m.FindGaps(context.Background(), key, models.TimeRange{Start: base, End: base + 600})
	if len(gaps) != 0 {
		t.Fatalf("adjacent bars must produce no gaps, got %+v", gaps)
	}
}

func TestAggregateTimeframe(t *testing.T) {
	m := newTestManager(newFakeTier(), newFakeTier())
	key := testKey(models.Interval5m)

	base := int64(1_700_000_000)
	base -= base % 3600 // align to the hour

	source := make([]models.Bar, 0, 12)
	for i := int64(0); i < 12; i++ {
		source = append(source, models.Bar{
			Timestamp: base + i*300,
			Open:      float64(i + 1),
			High:      float64(i + 10),
			Low:       float64(i) + 0.5,
			Close:     float64(i + 2),
			Volume:    100,
		})
	}

	out := m.AggregateTimeframe(key, source, models.Interval1h)
	if len(out) != 1 {
		t.Fatalf("got %d bars, want 1", len(out))
	}

	b := out[0]
	if b.Timestamp != base {
		t.Errorf("timestamp: got %d, want %d", b.Timestamp, base)
	}
	if b.Open != 1 {
		t.Errorf("open: got %v, want 1 (first bar)", b.Open)
	}
	if b.Close != 13 {
		t.Errorf("close: got %v, want 13 (last bar)", b.Close)
	}
	if b.High != 21 {
		t.Errorf("high: got %v, want 21", b.High)
	}
	if b.Low != 0.5 {
		t.Errorf("low: got %v, want 0.5", b.Low)
	}
	if b.Volume != 1200 {
		t.Errorf("volume: got %v, want 1200", b.Volume)
	}
}

func TestAggregateTimeframePartialBucket(t *testing.T) {
	m := newTestManager(newFakeTier(), newFakeTier())
	key := testKey(models.Interval5m)

	base := int64(1_700_000_000)
	base -= base % 3600

	// 12 bars fill the first hour; 2 spill into the second.
	var source []models.Bar
	for i := int64(0); i < 14; i++ {
		source = append(source, models.Bar{Timestamp: base + i*300, Volume: 1})
	}

	out := m.AggregateTimeframe(key, source, models.Interval1h)
	if len(out) != 2 {
		t.Fatalf("got %d bars, want 2", len(out))
	}
	if out[0].Volume != 12 || out[1].Volume != 2 {
		t.Errorf("bucket volumes: got %v and %v, want 12 and 2", out[0].Volume, out[1].Volume)
	}
	if out[1].Timestamp != base+3600 {
		t.Errorf("second bucket timestamp: got %d, want %d", out[1].Timestamp, base+3600)
	}
}

func TestAggregateTimeframeMergesBucketRevisit(t *testing.T) {
	m := newTestManager(newFakeTier(), newFakeTier())
	key := testKey(models.Interval5m)

	base := int64(1_700_000_000)
	base -= base % 3600

	// The source revisits the first hour after opening the second; the
	// revisit must fold into the existing bucket, not emit a duplicate.
	source := []models.Bar{
		{Timestamp: base, Open: 1, High: 5, Low: 1, Close: 2, Volume: 10},
		{Timestamp: base + 3600, Open: 2, High: 6, Low: 2, Close: 3, Volume: 20},
		{Timestamp: base + 300, Open: 3, High: 9, Low: 0.5, Close: 4, Volume: 30},
	}

	out := m.AggregateTimeframe(key, source, models.Interval1h)
	if len(out) != 2 {
		t.Fatalf("got %d bars, want 2: %+v", len(out), out)
	}
	seen := map[int64]bool{}
	for _, b := range out {
		if seen[b.Timestamp] {
			t.Fatalf("duplicate bucket timestamp %d", b.Timestamp)
		}
		seen[b.Timestamp] = true
	}

	first := out[0]
	if first.Timestamp != base {
		t.Fatalf("first bucket timestamp: got %d, want %d", first.Timestamp, base)
	}
	if first.Open != 1 {
		t.Errorf("open: got %v, want 1 (first encounter)", first.Open)
	}
	if first.Close != 4 {
		t.Errorf("close: got %v, want 4 (revisiting bar)", first.Close)
	}
	if first.High != 9 || first.Low != 0.5 {
		t.Errorf("extrema: got high %v low %v, want 9 and 0.5", first.High, first.Low)
	}
	if first.Volume != 40 {
		t.Errorf("volume: got %v, want 40", first.Volume)
	}
}

func TestMigrateToColdTier(t *testing.T) {
	hot, cold := newFakeTier(), newFakeTier()
	m := newTestManager(hot, cold)
	key := testKey(models.Interval1d)

	old := testNow.AddDate(0, 0, -120).Unix()
	hot.expired = []models.CachedData{
		{Key: key, Date: "2026-02-01", Bars: []models.Bar{{Timestamp: old, Close: 1}}, CachedAt: old, Tier: "hot"},
	}

	n := m.MigrateToColdTier(context.Background())
	if n != 1 {
		t.Fatalf("got %d migrated, want 1", n)
	}
	if len(cold.data[key.String()]) != 1 {
		t.Fatal("cold tier must hold the migrated bars")
	}
	if len(hot.deleted) != 1 {
		t.Fatal("hot document must be deleted after the cold copy")
	}
	if want := key.String() + ":2026-02-01"; hot.deleted[0] != want {
		t.Errorf("deleted %q, want %q", hot.deleted[0], want)
	}
}

func TestMigrateDeletesEmptyDocumentByItsDate(t *testing.T) {
	hot, cold := newFakeTier(), newFakeTier()
	m := newTestManager(hot, cold)
	key := testKey(models.Interval1d)

	// An empty bucket has nothing to copy; its deletion must still address
	// the document's own calendar date, not the time it was written.
	hot.expired = []models.CachedData{
		{Key: key, Date: "2026-02-01", Bars: nil, CachedAt: testNow.Unix(), Tier: "hot"},
	}

	if n := m.MigrateToColdTier(context.Background()); n != 1 {
		t.Fatalf("got %d migrated, want 1", n)
	}
	if cold.putCalls != 0 {
		t.Error("empty document must not be copied to the cold tier")
	}
	if len(hot.deleted) != 1 {
		t.Fatal("empty hot document must be deleted")
	}
	if want := key.String() + ":2026-02-01"; hot.deleted[0] != want {
		t.Errorf("deleted %q, want %q", hot.deleted[0], want)
	}
}

func TestMigrateKeepsHotOnColdFailure(t *testing.T) {
	hot, cold := newFakeTier(), newFakeTier()
	cold.failPut = true
	m := newTestManager(hot, cold)
	key := testKey(models.Interval1d)

	old := testNow.AddDate(0, 0, -120).Unix()
	hot.expired = []models.CachedData{
		{Key: key, Date: "2026-02-01", Bars: []models.Bar{{Timestamp: old}}, CachedAt: old, Tier: "hot"},
	}

	if n := m.MigrateToColdTier(context.Background()); n != 0 {
		t.Fatalf("got %d migrated, want 0", n)
	}
	if len(hot.deleted) != 0 {
		t.Fatal("hot document must survive a failed cold copy")
	}
}

func TestDisabledManagerShortCircuits(t *testing.T) {
	hot, cold := newFakeTier(), newFakeTier()
	m := NewCacheManager(hot, cold, nopMetrics{}, logger.Nop(), false, 90)
	key := testKey(models.Interval1h)
	rng := models.TimeRange{Start: 0, End: 1000}

	if got := m.Get(context.Background(), key, rng); got != nil {
		t.Error("disabled Get must return nil")
	}
	if res := m.Put(context.Background(), key, []models.Bar{{Timestamp: 500}}); res.Hot != nil || res.Cold != nil {
		t.Error("disabled Put must not touch the tiers")
	}
	if hot.putCalls != 0 {
		t.Error("disabled Put must not reach the hot tier")
	}
	gaps := m.FindGaps(context.Background(), key, rng)
	if len(gaps) != 1 || gaps[0].Range != rng {
		t.Errorf("disabled FindGaps must report the whole range, got %+v", gaps)
	}
	if n := m.MigrateToColdTier(context.Background()); n != 0 {
		t.Error("disabled migration must be a no-op")
	}
}

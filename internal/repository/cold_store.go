package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jshorterFG/market-analyzer-tv/internal/domain/models"
	"github.com/jshorterFG/market-analyzer-tv/pkg/logger"
	"github.com/jshorterFG/market-analyzer-tv/pkg/util"
)

// ColdStore is the archival tier backed by ClickHouse. Bars live in one
// table partitioned by calendar month; the ReplacingMergeTree keyed on
// (cache_key, ts) gives last-write-wins semantics across re-inserts, and
// Retrieve additionally dedupes client-side because parts merge lazily.
type ColdStore struct {
	db    *sql.DB
	table string
	log   *logger.Logger
	now   func() time.Time
}

// NewColdStore creates the cold tier over a ClickHouse connection.
func NewColdStore(db *sql.DB, table string, log *logger.Logger) *ColdStore {
	return &ColdStore{db: db, table: table, log: log, now: time.Now}
}

// Schema returns idempotent DDL for the cold tier.
func Schema(database, table string) []string {
	full := database + "." + table
	return []string{
		"CREATE DATABASE IF NOT EXISTS " + database,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			cache_key String,
			month String,
			ts DateTime,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64,
			cached_at DateTime
		) ENGINE = ReplacingMergeTree(cached_at)
		PARTITION BY month
		ORDER BY (cache_key, ts)`, full),
	}
}

// Store inserts bars grouped per calendar month, one batch insert per month
// bucket. A failed month does not stop the remaining months; overall false
// if any month failed.
func (s *ColdStore) Store(ctx context.Context, key models.CacheKey, bars []models.Bar) bool {
	if len(bars) == 0 {
		return false
	}

	byMonth := make(map[string][]models.Bar)
	for _, b := range bars {
		m := util.MonthKey(b.Timestamp)
		byMonth[m] = append(byMonth[m], b)
	}

	ok := true
	cachedAt := s.now().UTC()
	for month, monthBars := range byMonth {
		if err := s.insertMonth(ctx, key, month, monthBars, cachedAt); err != nil {
			s.log.Error("cold tier insert failed",
				logger.String("cache_key", key.String()),
				logger.String("month", month),
				logger.Error(err))
			ok = false
		}
	}

	if ok {
		s.log.Debug("stored bars in cold tier",
			logger.String("cache_key", key.String()),
			logger.Int("bars", len(bars)),
			logger.Int("buckets", len(byMonth)))
	}
	return ok
}

func (s *ColdStore) insertMonth(ctx context.Context, key models.CacheKey, month string, bars []models.Bar, cachedAt time.Time) error {
	values := make([]string, 0, len(bars))
	args := make([]interface{}, 0, len(bars)*9)
	for _, b := range bars {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			key.String(),
			month,
			time.Unix(b.Timestamp, 0).UTC(),
			b.Open,
			b.High,
			b.Low,
			b.Close,
			b.Volume,
			cachedAt,
		)
	}

	q := fmt.Sprintf(
		"INSERT INTO %s (cache_key, month, ts, open, high, low, close, volume, cached_at) VALUES %s",
		s.table, strings.Join(values, ","))
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

// Retrieve selects all bars for key inside rng, deduplicated so that the
// latest cached_at wins per timestamp, sorted ascending. Nil when empty or
// on error.
func (s *ColdStore) Retrieve(ctx context.Context, key models.CacheKey, rng models.TimeRange) []models.Bar {
	if !rng.Valid() {
		return nil
	}

	q := fmt.Sprintf(
		"SELECT ts, open, high, low, close, volume FROM %s WHERE cache_key = ? AND ts >= ? AND ts <= ? ORDER BY ts ASC, cached_at ASC",
		s.table)
	rows, err := s.db.QueryContext(ctx, q,
		key.String(),
		time.Unix(rng.Start, 0).UTC(),
		time.Unix(rng.End, 0).UTC(),
	)
	if err != nil {
		s.log.Error("cold tier query failed",
			logger.String("cache_key", key.String()), logger.Error(err))
		return nil
	}
	defer rows.Close()

	var all []models.Bar
	for rows.Next() {
		var (
			ts  time.Time
			bar models.Bar
		)
		if err := rows.Scan(&ts, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			s.log.Error("cold tier scan failed", logger.Error(err))
			return nil
		}
		bar.Timestamp = ts.Unix()
		all = append(all, bar)
	}
	if err := rows.Err(); err != nil {
		s.log.Error("cold tier rows failed", logger.Error(err))
		return nil
	}

	if len(all) == 0 {
		return nil
	}
	// Rows arrive ordered by cached_at within each timestamp, so the merge
	// keeps the newest copy.
	return models.MergeBars(nil, all)
}

// DeleteOlderThan is a no-op for the cold tier: archival retention is an
// operational concern outside this service.
func (s *ColdStore) DeleteOlderThan(ctx context.Context, days int) int {
	return 0
}

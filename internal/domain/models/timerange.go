package models

import (
	"fmt"
	"time"
)

// TimeRange is an inclusive range of epoch seconds, Start <= End.
type TimeRange struct {
	Start int64 `json:"start_timestamp"`
	End   int64 `json:"end_timestamp"`
}

// Overlaps reports whether the two inclusive ranges intersect.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return !(r.End < other.Start || r.Start > other.End)
}

// Contains reports whether ts lies inside the range, endpoints included.
func (r TimeRange) Contains(ts int64) bool {
	return r.Start <= ts && ts <= r.End
}

// Valid reports whether Start <= End.
func (r TimeRange) Valid() bool { return r.Start <= r.End }

// DataGap marks a contiguous sub-range of a request that lacks cached
// coverage. Gaps are request artifacts and are never persisted.
type DataGap struct {
	Key   CacheKey
	Range TimeRange
}

func (g DataGap) String() string {
	return fmt.Sprintf("gap for %s: %s to %s",
		g.Key.String(),
		time.Unix(g.Range.Start, 0).UTC().Format(time.RFC3339),
		time.Unix(g.Range.End, 0).UTC().Format(time.RFC3339))
}

// CachedData is the record shape persisted per tier bucket. Date is the
// bucket's own calendar key, distinct from CachedAt which records when the
// bucket was written.
type CachedData struct {
	Key      CacheKey
	Date     string
	Bars     []Bar
	CachedAt int64
	Tier     string
}

package models

import "sort"

// Bar is a single OHLCV candle. Timestamp is epoch seconds (UTC), aligned to
// the bucket of its interval. Bars are value types and never mutated after
// construction.
type Bar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// MergeBars combines two bar sets, deduplicates by timestamp with overlay
// winning over base, and returns the result sorted ascending. Both tiers and
// the cache manager rely on this for last-write-wins merges.
func MergeBars(base, overlay []Bar) []Bar {
	merged := make(map[int64]Bar, len(base)+len(overlay))
	for _, b := range base {
		merged[b.Timestamp] = b
	}
	for _, b := range overlay {
		merged[b.Timestamp] = b
	}
	out := make([]Bar, 0, len(merged))
	for _, b := range merged {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// FilterBars returns the bars whose timestamps fall inside rng, preserving
// input order.
func FilterBars(bars []Bar, rng TimeRange) []Bar {
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if rng.Contains(b.Timestamp) {
			out = append(out, b)
		}
	}
	return out
}

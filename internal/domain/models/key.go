package models

import (
	"fmt"
	"strings"
)

// CacheKey identifies one cached series: a symbol on an exchange within a
// screener market class, at a fixed interval.
type CacheKey struct {
	Symbol   string
	Screener string
	Exchange string
	Interval Interval
}

// String renders the canonical storage identity. ParseCacheKey inverts it.
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.Screener, k.Exchange, k.Symbol, k.Interval)
}

// ParseCacheKey parses the canonical "screener:exchange:symbol:interval" form.
func ParseCacheKey(s string) (CacheKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return CacheKey{}, fmt.Errorf("invalid cache key format: %q", s)
	}
	iv, err := ParseInterval(parts[3])
	if err != nil {
		return CacheKey{}, fmt.Errorf("invalid cache key %q: %w", s, err)
	}
	return CacheKey{
		Screener: parts[0],
		Exchange: parts[1],
		Symbol:   parts[2],
		Interval: iv,
	}, nil
}

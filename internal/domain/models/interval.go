package models

import "fmt"

// Interval is a bar timeframe. The set is closed; anything else is rejected
// at the boundary by ParseInterval.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

var intervalSeconds = map[Interval]int64{
	Interval1m:  60,
	Interval5m:  300,
	Interval15m: 900,
	Interval30m: 1800,
	Interval1h:  3600,
	Interval4h:  14400,
	Interval1d:  86400,
	Interval1w:  604800,
	Interval1M:  2592000,
}

// ParseInterval validates s against the supported set.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if _, ok := intervalSeconds[iv]; !ok {
		return "", fmt.Errorf("unsupported interval: %q", s)
	}
	return iv, nil
}

// Seconds returns the nominal bar duration. Unknown intervals fall back to
// one hour, matching the lookup used for gap tolerance.
func (i Interval) Seconds() int64 {
	if s, ok := intervalSeconds[i]; ok {
		return s
	}
	return 3600
}

func (i Interval) String() string { return string(i) }

// Valid reports whether the interval is one of the supported timeframes.
func (i Interval) Valid() bool {
	_, ok := intervalSeconds[i]
	return ok
}

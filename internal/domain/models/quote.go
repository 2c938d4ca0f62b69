package models

// Quote is the analysis snapshot returned to callers: the current OHLCV plus
// provider indicator columns when served fresh. Indicator fields are nil when
// the quote was served from cache (the cache stores bars only).
type Quote struct {
	Symbol   string   `json:"symbol"`
	Screener string   `json:"screener"`
	Exchange string   `json:"exchange"`
	Interval Interval `json:"interval"`

	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`

	RSI            *float64 `json:"rsi,omitempty"`
	MACD           *float64 `json:"macd,omitempty"`
	EMA20          *float64 `json:"ema20,omitempty"`
	SMA50          *float64 `json:"sma50,omitempty"`
	SMA200         *float64 `json:"sma200,omitempty"`
	ADX            *float64 `json:"adx,omitempty"`
	PSAR           *float64 `json:"psar,omitempty"`
	ForceIndex     *float64 `json:"fi,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`

	FromCache       bool   `json:"from_cache"`
	CacheAgeSeconds int64  `json:"cache_age_seconds,omitempty"`
	Warning         string `json:"warning,omitempty"`
}

// Bar returns the OHLCV portion of the quote stamped at ts.
func (q *Quote) Bar(ts int64) Bar {
	return Bar{
		Timestamp: ts,
		Open:      q.Open,
		High:      q.High,
		Low:       q.Low,
		Close:     q.Close,
		Volume:    q.Volume,
	}
}

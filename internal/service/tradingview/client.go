package tradingview

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jshorterFG/market-analyzer-tv/internal/domain/models"
	xhttp "github.com/jshorterFG/market-analyzer-tv/pkg/http"
	"github.com/jshorterFG/market-analyzer-tv/pkg/logger"
)

// Client fetches current quotes from the TradingView scanner endpoint.
// Requests are plain HTTP POSTs; throttling surfaces as an HTTP 429 whose
// error text the rate limiter classifies.
type Client struct {
	http      *xhttp.Client
	baseURL   string
	userAgent string
	log       *logger.Logger
}

// New creates a scanner client. timeout bounds each request; hitting it is a
// non-throttling transient failure.
func New(baseURL, userAgent string, httpClient *xhttp.Client, log *logger.Logger) *Client {
	return &Client{
		http:      httpClient,
		baseURL:   baseURL,
		userAgent: userAgent,
		log:       log,
	}
}

// scanner column order; quote parsing indexes into this.
var columns = []string{
	"open", "high", "low", "close", "volume",
	"RSI", "MACD.macd", "EMA20", "SMA50", "SMA200",
	"ADX", "P.SAR", "change", "Recommend.All",
}

type scanRequest struct {
	Symbols scanSymbols `json:"symbols"`
	Columns []string    `json:"columns"`
}

type scanSymbols struct {
	Tickers []string `json:"tickers"`
	Query   struct {
		Types []string `json:"types"`
	} `json:"query"`
}

type scanResponse struct {
	TotalCount int `json:"totalCount"`
	Data       []struct {
		Symbol string     `json:"s"`
		Values []*float64 `json:"d"`
	} `json:"data"`
}

// intervalSuffix maps an interval to the scanner column suffix. Daily is the
// scanner default and carries no suffix.
func intervalSuffix(iv models.Interval) string {
	switch iv {
	case models.Interval1m:
		return "|1"
	case models.Interval5m:
		return "|5"
	case models.Interval15m:
		return "|15"
	case models.Interval30m:
		return "|30"
	case models.Interval1h:
		return "|60"
	case models.Interval4h:
		return "|240"
	case models.Interval1w:
		return "|1W"
	case models.Interval1M:
		return "|1M"
	default:
		return ""
	}
}

// Quote fetches the current analysis snapshot for one symbol.
func (c *Client) Quote(ctx context.Context, symbol, screener, exchange string, interval models.Interval) (*models.Quote, error) {
	suffix := intervalSuffix(interval)
	cols := make([]string, len(columns))
	for i, col := range columns {
		cols[i] = col + suffix
	}

	req := scanRequest{Columns: cols}
	req.Symbols.Tickers = []string{fmt.Sprintf("%s:%s", exchange, symbol)}
	req.Symbols.Query.Types = []string{}

	headers := map[string]string{"Content-Type": "application/json"}
	if c.userAgent != "" {
		headers["User-Agent"] = c.userAgent
	}

	var resp scanResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/%s/scan", c.baseURL, screener),
		Headers: headers,
		Body:    req,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("scanner request: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Values) < len(columns) {
		return nil, fmt.Errorf("scanner returned no data for %s:%s", exchange, symbol)
	}

	v := resp.Data[0].Values
	q := &models.Quote{
		Symbol:   symbol,
		Screener: screener,
		Exchange: exchange,
		Interval: interval,
		Open:     deref(v[0]),
		High:     deref(v[1]),
		Low:      deref(v[2]),
		Close:    deref(v[3]),
		Volume:   deref(v[4]),
		RSI:      v[5],
		MACD:     v[6],
		EMA20:    v[7],
		SMA50:    v[8],
		SMA200:   v[9],
		ADX:      v[10],
		PSAR:     v[11],
	}

	// Force Index is not a scanner column; derive it from the percent
	// change when the inputs are present.
	if change := v[12]; change != nil && q.Close != 0 && q.Volume != 0 {
		fi := q.Close * (*change) / 100 * q.Volume
		q.ForceIndex = &fi
	}
	if rec := v[13]; rec != nil {
		q.Recommendation = recommendation(*rec)
	}

	c.log.Debug("fetched quote",
		logger.String("symbol", symbol),
		logger.String("exchange", exchange),
		logger.String("interval", interval.String()),
		logger.Float64("close", q.Close))
	return q, nil
}

// recommendation translates the aggregate rating into the label scale used
// by the scanner UI.
func recommendation(rating float64) string {
	switch {
	case rating >= 0.5:
		return "STRONG_BUY"
	case rating >= 0.1:
		return "BUY"
	case rating > -0.1:
		return "NEUTRAL"
	case rating > -0.5:
		return "SELL"
	default:
		return "STRONG_SELL"
	}
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jshorterFG/market-analyzer-tv/internal/domain/models"
	"github.com/jshorterFG/market-analyzer-tv/internal/service/ratelimit"
	"github.com/jshorterFG/market-analyzer-tv/internal/usecase"
	xhttp "github.com/jshorterFG/market-analyzer-tv/pkg/http"
	"github.com/jshorterFG/market-analyzer-tv/pkg/logger"
	"github.com/jshorterFG/market-analyzer-tv/pkg/util"
)

// Handler exposes the read API over the fetch pipeline.
type Handler struct {
	fetcher *usecase.DataFetcher
	limiter *ratelimit.Limiter
	log     *logger.Logger
}

// NewHandler creates the API handler.
func NewHandler(fetcher *usecase.DataFetcher, limiter *ratelimit.Limiter, log *logger.Logger) *Handler {
	return &Handler{fetcher: fetcher, limiter: limiter, log: log}
}

// RegisterRoutes registers the API routes on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/analysis", h.GetAnalysis)
	g.GET("/bar", h.GetCurrentBar)
	g.GET("/bars", h.GetBars)
	g.GET("/ratelimit", h.GetRateLimitStats)
}

type symbolRequest struct {
	Symbol   string `query:"symbol" validate:"required"`
	Screener string `query:"screener" default:"america" validate:"required"`
	Exchange string `query:"exchange" validate:"required"`
	Interval string `query:"interval" default:"1d"`
}

func (r symbolRequest) cacheKey() (models.CacheKey, error) {
	iv, err := models.ParseInterval(r.Interval)
	if err != nil {
		return models.CacheKey{}, err
	}
	return models.CacheKey{
		Symbol:   r.Symbol,
		Screener: r.Screener,
		Exchange: r.Exchange,
		Interval: iv,
	}, nil
}

type barsRequest struct {
	symbolRequest
	From string `query:"from" validate:"required"`
	To   string `query:"to"`
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// GetAnalysis returns the current analysis snapshot, possibly served stale
// from cache when the provider is rate limited.
func (h *Handler) GetAnalysis(c echo.Context) error {
	var req symbolRequest
	if payload := xhttp.ReadAndValidateRequest(c, &req); payload != nil {
		return xhttp.BadRequestResponse(c, payload)
	}
	key, err := req.cacheKey()
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	quote, err := h.fetcher.GetAnalysis(c.Request().Context(), key)
	if err != nil {
		return h.fetchErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, quote)
}

// GetCurrentBar returns the most recent bar for a symbol.
func (h *Handler) GetCurrentBar(c echo.Context) error {
	var req symbolRequest
	if payload := xhttp.ReadAndValidateRequest(c, &req); payload != nil {
		return xhttp.BadRequestResponse(c, payload)
	}
	key, err := req.cacheKey()
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	bar, err := h.fetcher.GetCurrentBar(c.Request().Context(), key)
	if err != nil {
		return h.fetchErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, bar)
}

// GetBars returns cached bars for a time range, fetching what the cache
// cannot answer. from and to accept RFC3339 or unix seconds; to defaults
// to now.
func (h *Handler) GetBars(c echo.Context) error {
	var req barsRequest
	if payload := xhttp.ReadAndValidateRequest(c, &req); payload != nil {
		return xhttp.BadRequestResponse(c, payload)
	}
	key, err := req.cacheKey()
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	from, ok := util.ParseTime(req.From)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must be RFC3339 or unix seconds"))
	}
	to := util.ParseTimeDefault(req.To, nowUTC())

	rng := models.TimeRange{Start: from.Unix(), End: to.Unix()}
	if !rng.Valid() {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must not be after to"))
	}

	bars, err := h.fetcher.FetchRange(c.Request().Context(), key, rng)
	if err != nil {
		return h.fetchErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, bars)
}

// GetRateLimitStats exposes limiter counters for operational inspection.
func (h *Handler) GetRateLimitStats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.limiter.Stats())
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func (h *Handler) fetchErrorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, usecase.ErrDataUnavailable):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()).WithError(err))
	case errors.Is(err, ratelimit.ErrRateLimitExceeded):
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError(err.Error()).WithError(err))
	default:
		h.log.Error("fetch failed", logger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain/repository.Metrics using Prometheus.
type Recorder struct {
	cacheHits        *prometheus.CounterVec
	cacheMisses      prometheus.Counter
	providerRequests *prometheus.CounterVec
	rateLimited      prometheus.Counter
	errorsTotal      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketcache_hits_total",
				Help: "Total number of cache hits per storage tier",
			},
			[]string{"tier"},
		),
		cacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "marketcache_misses_total",
				Help: "Total number of cache misses",
			},
		),
		providerRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketcache_provider_requests_total",
				Help: "Total number of upstream provider requests",
			},
			[]string{"screener"},
		),
		rateLimited: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "marketcache_rate_limited_total",
				Help: "Total number of requests refused admission by the rate limiter",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketcache_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketcache_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCacheHit records a hit against a storage tier.
func (r *Recorder) RecordCacheHit(tier string) {
	r.cacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a cache miss.
func (r *Recorder) RecordCacheMiss() {
	r.cacheMisses.Inc()
}

// RecordProviderRequest records an upstream call.
func (r *Recorder) RecordProviderRequest(screener string) {
	r.providerRequests.WithLabelValues(screener).Inc()
}

// RecordRateLimited records a refused admission.
func (r *Recorder) RecordRateLimited() {
	r.rateLimited.Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

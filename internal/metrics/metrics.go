// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch kinds used as label values.
const (
	KindListing = "listing"
	KindDetail  = "detail"
)

var (
	harvestFetchBytesTotal       *prometheus.CounterVec
	harvestFetchDurationSeconds  *prometheus.HistogramVec
	harvestCheckpointSavesTotal  *prometheus.CounterVec
	harvestRateLimitDelaySeconds *prometheus.HistogramVec
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		harvestFetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by kind.",
			},
			[]string{"kind"},
		)

		harvestFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies, labeled by kind.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		)

		harvestCheckpointSavesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_checkpoint_saves_total",
				Help: "Total number of checkpoint saves, labeled by result.",
			},
			[]string{"result"},
		)

		harvestRateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchTransfer records the size and latency of one page fetch. Fetch
// counts by status class come from the progress Prometheus sink.
func ObserveFetchTransfer(kind string, bytesFetched int, duration time.Duration) {
	Init()
	if bytesFetched > 0 {
		harvestFetchBytesTotal.WithLabelValues(kind).Add(float64(bytesFetched))
	}
	if duration > 0 {
		harvestFetchDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// ObserveCheckpointSave counts a checkpoint save attempt.
func ObserveCheckpointSave(err error) {
	Init()
	result := "success"
	if err != nil {
		result = "error"
	}
	harvestCheckpointSavesTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	harvestRateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

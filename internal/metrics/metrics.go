// Package metrics exposes Prometheus collectors for the aggregator service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	searchesTotal              *prometheus.CounterVec
	searchDurationSeconds      prometheus.Histogram
	sourceFetchTotal           *prometheus.CounterVec
	sourceFetchDuration        *prometheus.HistogramVec
	sourcePostingsTotal        *prometheus.CounterVec
	dedupDroppedTotal          prometheus.Counter
	browserSessionsTotal       *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors on the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30, 60},
			},
			[]string{"method", "route"},
		)

		searchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_searches_total",
				Help: "Searches executed, labeled by result.",
			},
			[]string{"result"},
		)

		searchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "aggregator_search_duration_seconds",
				Help:    "Wall time of a full staged search.",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
			},
		)

		sourceFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_source_fetch_total",
				Help: "Source adapter runs, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		sourceFetchDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aggregator_source_fetch_duration_seconds",
				Help:    "Source adapter latency.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"source"},
		)

		sourcePostingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_source_postings_total",
				Help: "Postings returned by each source before dedup.",
			},
			[]string{"source"},
		)

		dedupDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "aggregator_dedup_dropped_total",
				Help: "Postings dropped as duplicates.",
			},
		)

		browserSessionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_browser_sessions_total",
				Help: "Browser launches, labeled by result.",
			},
			[]string{"result"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aggregator_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from rawURL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSearch records one completed search.
func ObserveSearch(result string, duration time.Duration) {
	Init()
	searchesTotal.WithLabelValues(result).Inc()
	searchDurationSeconds.Observe(duration.Seconds())
}

// ObserveSourceFetch records one adapter run.
func ObserveSourceFetch(source, outcome string, postings int, duration time.Duration) {
	Init()
	sourceFetchTotal.WithLabelValues(source, outcome).Inc()
	sourceFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
	if postings > 0 {
		sourcePostingsTotal.WithLabelValues(source).Add(float64(postings))
	}
}

// ObserveDedupDropped adds n dropped duplicates.
func ObserveDedupDropped(n int) {
	Init()
	if n > 0 {
		dedupDroppedTotal.Add(float64(n))
	}
}

// ObserveBrowserLaunch records a browser launch attempt.
func ObserveBrowserLaunch(err error) {
	Init()
	result := "ok"
	if err != nil {
		result = "error"
	}
	browserSessionsTotal.WithLabelValues(result).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// Package metrics exposes Prometheus collectors for the lore crawler.
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
	loreEntitiesTotal          *prometheus.CounterVec
	loreStageFailuresTotal     *prometheus.CounterVec
	loreSelectorTierHitsTotal  *prometheus.CounterVec
	loreSelectorMissesTotal    *prometheus.CounterVec
	loreCheckpointsTotal       *prometheus.CounterVec
	loreNavigationSeconds      *prometheus.HistogramVec
	loreCatalogEntries         prometheus.Gauge
	loreThrottleSeconds        *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		loreEntitiesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lore_entities_total",
				Help: "Entities processed, labeled by outcome (complete, partial, discarded).",
			},
			[]string{"outcome"},
		)

		loreStageFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lore_stage_failures_total",
				Help: "Pipeline stages that fell back to defaults, labeled by stage.",
			},
			[]string{"stage"},
		)

		loreSelectorTierHitsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lore_selector_tier_hits_total",
				Help: "Selector resolutions, labeled by extraction target and winning tier (1-based).",
			},
			[]string{"target", "tier"},
		)

		loreSelectorMissesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lore_selector_misses_total",
				Help: "Selector resolutions where every candidate tier came up empty.",
			},
			[]string{"target"},
		)

		loreCheckpointsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lore_checkpoints_total",
				Help: "Checkpoint writes, labeled by status.",
			},
			[]string{"status"},
		)

		loreNavigationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lore_navigation_duration_seconds",
				Help:    "Time from navigation start until the page body was ready.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 15, 30},
			},
			[]string{"site", "stage"},
		)

		loreThrottleSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lore_navigation_throttle_seconds",
				Help:    "Time navigations spent waiting on the per-host rate limiter.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"site"},
		)

		loreCatalogEntries = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lore_catalog_entries",
				Help: "Entities scheduled for the current run after the limit is applied.",
			},
		)

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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
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

// ObserveEntity counts one processed entity.
func ObserveEntity(outcome string) {
	Init()
	loreEntitiesTotal.WithLabelValues(outcome).Inc()
}

// ObserveStageFailure counts a stage that degraded to defaults.
func ObserveStageFailure(stage string) {
	Init()
	loreStageFailuresTotal.WithLabelValues(stage).Inc()
}

// ObserveSelectorTier records which candidate tier resolved target.
func ObserveSelectorTier(target string, tier int) {
	Init()
	loreSelectorTierHitsTotal.WithLabelValues(target, strconv.Itoa(tier)).Inc()
}

// ObserveSelectorMiss records a target none of whose candidates matched.
func ObserveSelectorMiss(target string) {
	Init()
	loreSelectorMissesTotal.WithLabelValues(target).Inc()
}

// ObserveCheckpoint counts a checkpoint write attempt.
func ObserveCheckpoint(ok bool) {
	Init()
	status := "ok"
	if !ok {
		status = "error"
	}
	loreCheckpointsTotal.WithLabelValues(status).Inc()
}

// ObserveNavigation records how long a page took to become ready.
func ObserveNavigation(pageURL, stage string, d time.Duration) {
	Init()
	loreNavigationSeconds.WithLabelValues(SanitizeSite(pageURL), stage).Observe(d.Seconds())
}

// ObserveThrottle records a rate-limiter wait before a navigation to host.
func ObserveThrottle(host string, d time.Duration) {
	Init()
	loreThrottleSeconds.WithLabelValues(SanitizeSite(host)).Observe(d.Seconds())
}

// SetCatalogEntries publishes the size of the scheduled catalog.
func SetCatalogEntries(n int) {
	Init()
	loreCatalogEntries.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Package metrics provides Prometheus metrics for the MTG value service.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtgvalue_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mtgvalue_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Source adapter metrics
	AdapterRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtgvalue_adapter_requests_total",
			Help: "Edition fetches per provider",
		},
		[]string{"adapter", "result"}, // result: "ok", "empty", "failed"
	)

	AdapterLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mtgvalue_adapter_latency_seconds",
			Help:    "Provider fetch latency including print pagination",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"adapter"},
	)

	// Resolution metrics
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtgvalue_resolutions_total",
			Help: "Resolutions by the source that answered",
		},
		[]string{"source"}, // "scryfall", "justtcg", "cache", "failed"
	)

	HistoryAppendsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mtgvalue_history_appends_total",
			Help: "Price observations appended to history",
		},
	)

	PersistenceErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtgvalue_persistence_errors_total",
			Help: "Failed reads and writes of history or cache",
		},
		[]string{"op"},
	)

	// Local cache metrics
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtgvalue_cache_lookups_total",
			Help: "Local cache lookups by layer and result",
		},
		[]string{"layer", "result"}, // layer: "memory", "db"; result: "hit", "miss"
	)

	// JustTCG API Metrics
	JustTCGQuotaRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mtgvalue_justtcg_quota_remaining",
			Help: "Remaining JustTCG API requests for today",
		},
	)

	JustTCGQuotaLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mtgvalue_justtcg_quota_limit",
			Help: "Daily JustTCG API request limit",
		},
	)

	// Tracker metrics
	TrackedCards = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mtgvalue_tracked_cards",
			Help: "Number of cards on the watchlist",
		},
	)

	TrackerRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mtgvalue_tracker_run_duration_seconds",
			Help:    "Time taken to re-check every tracked card",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	TrackerChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtgvalue_tracker_checks_total",
			Help: "Tracked card checks by outcome",
		},
		[]string{"result"}, // "changed", "unchanged", "failed"
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mtgvalue_notifications_total",
			Help: "Notifications sent by channel and result",
		},
		[]string{"channel", "result"},
	)
)

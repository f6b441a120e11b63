// Package metrics provides Prometheus metrics for LogWarden.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "logwarden"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks concurrent HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)

// Ingest metrics
var (
	// IngestRequestsTotal counts ingest calls by outcome.
	IngestRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "requests_total",
			Help:      "Total ingest requests by outcome",
		},
		[]string{"outcome"}, // no_findings, incident, error
	)

	// FindingsTotal counts rule matches by rule identifier.
	FindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "findings_total",
			Help:      "Total rule matches by rule",
		},
		[]string{"rule"},
	)

	// IncidentsTotal counts created incidents by severity.
	IncidentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "incidents_total",
			Help:      "Total incidents created by severity",
		},
		[]string{"severity"},
	)

	// BruteForceTotal counts brute-force threshold crossings.
	BruteForceTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "bruteforce_total",
			Help:      "Total brute-force threshold crossings",
		},
	)

	// IngestRateLimitedTotal counts requests rejected by the per-source limiter.
	IngestRateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rate_limited_total",
			Help:      "Total ingest requests rejected by the per-source rate limiter",
		},
	)
)

// Evidence metrics
var (
	// EvidenceArchivedTotal counts successfully archived payloads.
	EvidenceArchivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evidence",
			Name:      "archived_total",
			Help:      "Total evidence payloads archived",
		},
	)

	// EvidenceErrorsTotal counts failed archive attempts.
	EvidenceErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evidence",
			Name:      "errors_total",
			Help:      "Total evidence archive failures",
		},
	)
)

// Notification metrics
var (
	// NotificationsTotal counts notification dispatches by status.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dispatches_total",
			Help:      "Total notification dispatches by status",
		},
		[]string{"status"}, // sent, failed, rate_limited
	)
)

// Buffer metrics
var (
	// BufferPending tracks events waiting to be flushed.
	BufferPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "pending_events",
			Help:      "Ingest events waiting to be flushed to the archive",
		},
	)

	// BufferDroppedTotal counts dropped events due to backpressure.
	BufferDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "dropped_total",
			Help:      "Total events dropped due to buffer overflow",
		},
	)

	// BufferFlushesTotal counts flush operations.
	BufferFlushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "flushes_total",
			Help:      "Total buffer flush operations",
		},
	)

	// BufferInsertedTotal counts successfully inserted events.
	BufferInsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "inserted_total",
			Help:      "Total events inserted to the archive",
		},
	)

	// BufferFlushErrors counts flush errors.
	BufferFlushErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "flush_errors_total",
			Help:      "Total buffer flush errors",
		},
	)
)

// Auth metrics
var (
	// AuthAttemptsTotal counts API key checks by result.
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Total API key authentication attempts",
		},
		[]string{"result"}, // success, failure
	)
)

// Info metric
var (
	// BuildInfo exposes build information.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)
)

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, commit, buildTime string) {
	BuildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store Metrics
	DBTxDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "favmirror_store_tx_duration_seconds",
			Help:    "Duration of SQLite write transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"unit"},
	)

	DBTxErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favmirror_store_tx_errors_total",
			Help: "Total number of failed SQLite write transactions",
		},
		[]string{"unit"},
	)

	SchemaVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "favmirror_schema_version",
			Help: "Current schema version of the mirror store",
		},
	)

	MigrationsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "favmirror_migrations_applied_total",
			Help: "Total number of schema migration steps applied",
		},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favmirror_api_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "favmirror_api_request_duration_seconds",
			Help:    "Duration of HTTP API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Sync Metrics
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "favmirror_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favmirror_sync_runs_total",
			Help: "Total number of sync runs by result",
		},
		[]string{"result"},
	)

	SyncItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favmirror_sync_items_total",
			Help: "Items reconciled by sync runs, by outcome",
		},
		[]string{"outcome"},
	)

	SyncPages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favmirror_sync_pages_total",
			Help: "Listing pages handled by sync runs, by result",
		},
		[]string{"result"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favmirror_sync_errors_total",
			Help: "Errors recorded during sync runs, by level",
		},
		[]string{"error_type"},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "favmirror_sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful sync run",
		},
	)

	CoversDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "favmirror_covers_downloaded_total",
			Help: "Total number of cover images written to the asset cache",
		},
	)

	CoverBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "favmirror_cover_bytes_total",
			Help: "Total bytes of cover images written to the asset cache",
		},
	)

	// Task queue Metrics
	TasksFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favmirror_tasks_total",
			Help: "Queued sync tasks that left the running state, by result",
		},
		[]string{"result"},
	)

	TasksPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "favmirror_tasks_pending",
			Help: "Sync tasks waiting in the queue after the last poll",
		},
	)

	// Remote source Metrics
	SourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favmirror_source_requests_total",
			Help: "Requests made to the remote source, by operation and result",
		},
		[]string{"operation", "result"},
	)

	SourceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "favmirror_source_request_duration_seconds",
			Help:    "Duration of remote source requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	SourceRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "favmirror_source_rate_limited_total",
			Help: "Responses from the remote source that signalled rate limiting",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total requests through circuit breaker by result",
		},
		[]string{"name", "result"},
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current count of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total state transitions by from and to state",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Application Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "favmirror_app_info",
			Help: "Application version information",
		},
		[]string{"version", "go_version"},
	)
)

// SyncCounts are the per-run totals reported to RecordSyncRun.
type SyncCounts struct {
	Added       int
	Updated     int
	Deleted     int
	Covers      int
	Errors      int
	Collections int
}

// RecordSyncRun records a finished sync run. result is one of
// "completed", "cancelled" or "failed".
func RecordSyncRun(duration time.Duration, counts SyncCounts, result string) {
	SyncDuration.Observe(duration.Seconds())
	SyncRuns.WithLabelValues(result).Inc()
	SyncItems.WithLabelValues("added").Add(float64(counts.Added))
	SyncItems.WithLabelValues("updated").Add(float64(counts.Updated))
	SyncItems.WithLabelValues("deleted").Add(float64(counts.Deleted))
	if result == "completed" {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordSyncError counts an error recorded during a run.
// errorType is item, page, cover or run.
func RecordSyncError(errorType string) {
	SyncErrors.WithLabelValues(errorType).Inc()
}

// RecordPage counts a listing page by result: committed or skipped.
func RecordPage(result string) {
	SyncPages.WithLabelValues(result).Inc()
}

// RecordCover records a cover written to disk.
func RecordCover(size int) {
	CoversDownloaded.Inc()
	CoverBytes.Add(float64(size))
}

// RecordTask counts a task leaving the running state. result is completed,
// failed, cancelled, retried or requeued.
func RecordTask(result string) {
	TasksFinished.WithLabelValues(result).Inc()
}

// RecordSourceRequest records a remote source request.
func RecordSourceRequest(operation string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	SourceRequests.WithLabelValues(operation, result).Inc()
	SourceRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTx records a store write transaction for a unit of work (page, deletion, migration).
func RecordTx(unit string, duration time.Duration, err error) {
	DBTxDuration.WithLabelValues(unit).Observe(duration.Seconds())
	if err != nil {
		DBTxErrors.WithLabelValues(unit).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

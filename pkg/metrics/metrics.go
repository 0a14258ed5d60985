package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// CacheLookups counts entity cache reads by prefix and result (hit|miss|error).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_cache_lookups_total",
			Help: "Entity cache lookups by prefix and result",
		},
		[]string{"prefix", "result"},
	)

	// SyncRuns counts last-connected sync runs by outcome (ok|stale|empty|error|skipped).
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_last_connected_sync_runs_total",
			Help: "Last-connected synchronisation runs by outcome",
		},
		[]string{"outcome"},
	)

	// SyncDuration tracks how long a sync run takes.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clinic_last_connected_sync_duration_seconds",
			Help:    "Duration of last-connected synchronisation runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SyncedRecords counts last-connected records written to the database.
	SyncedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_last_connected_records_synced_total",
			Help: "Last-connected records written to the relational store",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clinic_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

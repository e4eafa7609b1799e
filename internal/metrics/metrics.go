// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the sync engine and the reference remote store:
// - Local store (BadgerDB) operations and size
// - Week cache reads/writes
// - Pending sync queue depth and churn
// - Drain passes and individual pushes
// - Remote client requests and circuit breaker state
// - Identity and connectivity signals
// - HTTP API, WebSocket, backups

var (
	// Local store metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Duration of local store operations in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operation_errors_total",
			Help: "Total number of failed local store operations",
		},
		[]string{"operation"},
	)

	StoreSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_size_bytes",
			Help: "Local BadgerDB size (LSM + value log) in bytes",
		},
	)

	StoreGCRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_gc_runs_total",
			Help: "Total number of value log GC runs",
		},
	)

	// Week cache metrics
	CacheReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "week_cache_reads_total",
			Help: "Total week cache reads by result",
		},
		[]string{"result"}, // "hit", "miss"
	)

	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "week_cache_writes_total",
			Help: "Total week cache writes by kind",
		},
		[]string{"kind"}, // "week", "daily_log", "daily_plan", "target", "delete"
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "week_cache_errors_total",
			Help: "Total week cache errors by operation",
		},
		[]string{"operation"},
	)

	// Pending sync queue metrics
	PendingQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_sync_queue_depth",
			Help: "Current number of weeks awaiting remote confirmation",
		},
	)

	PendingEnqueues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pending_sync_enqueues_total",
			Help: "Total enqueue operations by outcome",
		},
		[]string{"outcome"}, // "inserted", "refreshed"
	)

	PendingDequeues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pending_sync_dequeues_total",
			Help: "Total items removed from the pending queue by reason",
		},
		[]string{"reason"}, // "synced", "empty", "cleared", "manual"
	)

	// Sync scheduler metrics
	SyncPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_pass_duration_seconds",
			Help:    "Duration of drain passes in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
	)

	SyncPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_passes_total",
			Help: "Total drain pass attempts by outcome",
		},
		[]string{"outcome"}, // "completed", "offline", "auth_timeout", "in_progress", "error"
	)

	SyncPushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_pushes_total",
			Help: "Total per-week push results",
		},
		[]string{"result"}, // "success", "failure", "skipped_empty", "load_error"
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of the last pass that emptied the queue",
		},
	)

	SchedulerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_scheduler_state",
			Help: "Scheduler state (0=idle, 1=waiting, 2=syncing, 3=auth_pending)",
		},
	)

	// Remote client metrics
	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_request_duration_seconds",
			Help:    "Duration of remote store requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_requests_total",
			Help: "Total remote store requests by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	RemoteRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remote_rate_limited_total",
			Help: "Total 429 responses received from the remote store",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total requests through circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current consecutive failure count",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Identity and connectivity
	IdentityReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "identity_ready",
			Help: "1 when an anonymous identity token is available",
		},
	)

	IdentitySignIns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identity_sign_ins_total",
			Help: "Total anonymous sign-in and refresh attempts",
		},
		[]string{"kind", "result"}, // kind: "sign_in", "refresh"
	)

	ConnectivityOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "connectivity_online",
			Help: "1 when the remote store health probe succeeds",
		},
	)

	ConnectivityTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectivity_transitions_total",
			Help: "Total online/offline transitions",
		},
		[]string{"to"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being processed",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"message_type"},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Backup metrics
	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backups_total",
			Help: "Total backups by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	BackupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backup_duration_seconds",
			Help:    "Duration of store snapshots in seconds",
			Buckets: []float64{.01, .1, .5, 1, 5, 30},
		},
	)

	BackupLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backup_last_success_timestamp",
			Help: "Unix timestamp of the last successful backup",
		},
	)

	BackupsRetained = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backups_retained",
			Help: "Number of backup files kept after retention",
		},
	)

	// Remote store (server side)
	RemoteStoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_store_week_writes_total",
			Help: "Total week documents written to the remote store",
		},
		[]string{"result"},
	)
)

// RecordStoreOperation records a local store operation.
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreOperationErrors.WithLabelValues(operation).Inc()
	}
}

// RecordCacheRead records a week cache lookup.
func RecordCacheRead(hit bool) {
	if hit {
		CacheReads.WithLabelValues("hit").Inc()
		return
	}
	CacheReads.WithLabelValues("miss").Inc()
}

// RecordCacheWrite records a successful cache write of the given kind.
func RecordCacheWrite(kind string) {
	CacheWrites.WithLabelValues(kind).Inc()
}

// RecordCacheError records a failed cache operation.
func RecordCacheError(operation string) {
	CacheErrors.WithLabelValues(operation).Inc()
}

// RecordEnqueue records an enqueue; refreshed is true when the week was already pending.
func RecordEnqueue(refreshed bool) {
	if refreshed {
		PendingEnqueues.WithLabelValues("refreshed").Inc()
		return
	}
	PendingEnqueues.WithLabelValues("inserted").Inc()
}

// RecordDequeue records an item leaving the queue.
func RecordDequeue(reason string, n int) {
	if n <= 0 {
		return
	}
	PendingDequeues.WithLabelValues(reason).Add(float64(n))
}

// SetPendingDepth updates the queue depth gauge.
func SetPendingDepth(n int) {
	PendingQueueDepth.Set(float64(n))
}

// RecordSyncPass records the outcome of one drain pass attempt.
func RecordSyncPass(outcome string, duration time.Duration, remaining int) {
	SyncPassesTotal.WithLabelValues(outcome).Inc()
	if outcome != "completed" {
		return
	}
	SyncPassDuration.Observe(duration.Seconds())
	if remaining == 0 {
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordPush records the result of one week push.
func RecordPush(result string) {
	SyncPushesTotal.WithLabelValues(result).Inc()
}

// SetSchedulerState updates the scheduler state gauge.
func SetSchedulerState(state int) {
	SchedulerState.Set(float64(state))
}

// RecordRemoteRequest records a remote store request. status is the HTTP
// status code, or 0 for transport failures.
func RecordRemoteRequest(endpoint string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	RemoteRequestsTotal.WithLabelValues(endpoint, label).Inc()
	RemoteRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordSignIn records an identity sign-in or refresh attempt.
func RecordSignIn(kind string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	IdentitySignIns.WithLabelValues(kind, result).Inc()
}

// SetIdentityReady updates the identity gauge.
func SetIdentityReady(ready bool) {
	IdentityReady.Set(boolToFloat(ready))
}

// SetConnectivity updates the online gauge and counts transitions.
func SetConnectivity(online, changed bool) {
	ConnectivityOnline.Set(boolToFloat(online))
	if !changed {
		return
	}
	if online {
		ConnectivityTransitions.WithLabelValues("online").Inc()
	} else {
		ConnectivityTransitions.WithLabelValues("offline").Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordBackup records a backup attempt.
func RecordBackup(trigger string, duration time.Duration, err error) {
	if err != nil {
		BackupsTotal.WithLabelValues(trigger, "failure").Inc()
		return
	}
	BackupsTotal.WithLabelValues(trigger, "success").Inc()
	BackupDuration.Observe(duration.Seconds())
	BackupLastSuccess.Set(float64(time.Now().Unix()))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

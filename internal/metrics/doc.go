// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

/*
Package metrics provides Prometheus metrics for the sync engine and the
reference remote store.

Metrics are registered on the default registry through promauto and are
exposed at /metrics by both binaries:

	curl http://127.0.0.1:8788/metrics

# Available Metrics

Sync Metrics:
  - sync_passes_total: drain pass attempts (counter)
    Labels: outcome (completed, offline, auth_timeout, in_progress, error)
  - sync_pass_duration_seconds: completed pass latency (histogram)
  - sync_pushes_total: per-week results (counter)
    Labels: result (success, failure, skipped_empty, load_error)
  - sync_scheduler_state: 0=idle, 1=waiting, 2=syncing, 3=auth_pending

Queue Metrics:
  - pending_sync_queue_depth (gauge)
  - pending_sync_enqueues_total, pending_sync_dequeues_total (counters)

Remote Metrics:
  - remote_requests_total, remote_request_duration_seconds
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open

Helpers such as RecordSyncPass and RecordCacheRead keep label values
consistent across call sites; prefer them over touching the vectors.
*/
package metrics

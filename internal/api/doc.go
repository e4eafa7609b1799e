// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

/*
Package api is the local HTTP API of the elevation-loom daemon.

Every write goes to the local cache first and is queued for sync, so the
API keeps working while the remote store is unreachable.

Routes (all under /api/v1 unless noted):

	GET    /weeks                          stored weeks with summaries
	GET    /weeks/{weekKey}                one week, e.g. 2026-W07
	PUT    /weeks/{weekKey}/target         {"value": 3000}
	POST   /weeks/{weekKey}/sync           queue the week for another push
	GET    /daily-logs/{date}              one day
	PUT    /daily-logs/{date}              elevation parts, condition, timezone
	DELETE /daily-logs/{date}
	PUT    /daily-logs/{date}/plan/{part}  part is 1 or 2
	POST   /sync                           manual drain pass
	GET    /sync/status
	GET    /sync/pending
	DELETE /sync/pending                   drop the queue without pushing
	/backups                               list, create, upload, get, delete,
	                                       download, verify
	GET    /health, /health/live, /health/ready
	GET    /ws                             (root) websocket events
	GET    /metrics                        (root) Prometheus

Responses use the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", ...}}
	{"success": false, "error": {"code": "VALIDATION_ERROR", "message": "..."}}
*/
package api

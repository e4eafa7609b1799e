// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

/*
Package websocket pushes sync progress to connected dashboards.

A Hub owns the client set. The sync scheduler registers
Hub.BroadcastSyncComplete as a pass listener, so every drain pass produces a
sync_complete frame followed by a pending_count frame:

	{"type":"sync_complete","data":{"trigger":"timer","successCount":2,"totalCount":3,"remaining":1,...}}
	{"type":"pending_count","data":{"count":1}}

Clients may send {"type":"ping"} and receive {"type":"pong"}. The server also
sends protocol-level pings every 54 seconds and drops clients that miss the
60 second pong deadline.

Slow clients are disconnected instead of blocking the hub: broadcasts use a
non-blocking send into each client's buffer, and a full buffer removes the
client.

Usage:

	hub := websocket.NewHub()
	go hub.RunWithContext(ctx)
	sched.OnPass(hub.BroadcastSyncComplete)
	r.Get("/api/v1/ws", websocket.Handler(hub, checkOrigin))
*/
package websocket

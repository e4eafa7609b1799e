// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

// Package main is the elevation-loom daemon: the local training log, its
// sync engine and the local HTTP API.
//
// # Application Architecture
//
// Components start in this order:
//
//  1. Configuration: defaults, optional YAML file, environment (koanf)
//  2. Store: BadgerDB holding weeks, the pending queue and the session token
//  3. Restore (optional): --restore <backup-id> loads a backup into an empty store
//  4. Remote client, identity gate and connectivity prober
//  5. Local cache, pending queue and sync scheduler, joined by the engine
//  6. WebSocket hub and HTTP API
//  7. Supervisor tree running every long-lived component
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. The supervisor stops its
// layers and the store is closed last.
//
// # Example Usage
//
//	export REMOTE_URL=http://127.0.0.1:8787
//	export STORE_PATH=$HOME/.local/share/elevation-loom
//	elevation-loom
//
//	elevation-loom backups list
//	elevation-loom --restore 8b0c3f2e-...
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

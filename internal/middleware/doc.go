// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

// Package middleware holds the HTTP middleware shared by the local API and
// the remote store server: request IDs and Prometheus request metrics.
// Both are plain func(http.Handler) http.Handler and plug into chi's Use.
package middleware

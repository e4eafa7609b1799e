// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package api

import (
	"net/http"
	"time"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	StoreReadable bool    `json:"storeReadable"`
	Online        *bool   `json:"online,omitempty"`
	IdentityReady *bool   `json:"identityReady,omitempty"`
	WSClients     int     `json:"wsClients"`
	Uptime        float64 `json:"uptime"`
}

// Health reports overall status. The app works offline, so only an
// unreadable local store degrades it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	_, err := h.engine.GetPendingSyncCount(r.Context())
	health := HealthStatus{
		Status:        "healthy",
		Version:       Version,
		StoreReadable: err == nil,
		Uptime:        time.Since(h.startTime).Seconds(),
	}
	if err != nil {
		health.Status = "degraded"
	}
	if h.online != nil {
		online := h.online.IsOnline()
		health.Online = &online
	}
	if h.identity != nil {
		ready := h.identity.IsReady()
		health.IdentityReady = &ready
	}
	if h.hub != nil {
		health.WSClients = h.hub.GetClientCount()
	}
	rw.Success(health)
}

// HealthLive always answers 200 while the process serves HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady answers 503 until the local store can be read.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if _, err := h.engine.GetPendingSyncCount(r.Context()); err != nil {
		rw.ServiceUnavailable("local store not readable")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}

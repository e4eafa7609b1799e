// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package api

import (
	"context"
	"time"

	"github.com/tomtom215/elevation-loom/internal/backup"
	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/syncer"
	"github.com/tomtom215/elevation-loom/internal/websocket"
)

// IdentityStatus reports the anonymous session.
type IdentityStatus interface {
	IsReady() bool
	UserID() string
}

// ConnectivityStatus reports the online signal.
type ConnectivityStatus interface {
	IsOnline() bool
	LastCheck() time.Time
}

// Handler serves the local API on top of the sync engine.
type Handler struct {
	engine    *syncer.Engine
	backups   *backup.Manager
	hub       *websocket.Hub
	identity  IdentityStatus
	online    ConnectivityStatus
	security  config.SecurityConfig
	startTime time.Time
}

// HandlerOption configures optional collaborators.
type HandlerOption func(*Handler)

// WithBackups enables the backup routes.
func WithBackups(m *backup.Manager) HandlerOption {
	return func(h *Handler) { h.backups = m }
}

// WithHub enables /ws and pending-count broadcasts after writes.
func WithHub(hub *websocket.Hub) HandlerOption {
	return func(h *Handler) { h.hub = hub }
}

// WithIdentity exposes the identity gate in the status routes.
func WithIdentity(s IdentityStatus) HandlerOption {
	return func(h *Handler) { h.identity = s }
}

// WithConnectivity exposes the online signal in the status routes.
func WithConnectivity(s ConnectivityStatus) HandlerOption {
	return func(h *Handler) { h.online = s }
}

// NewHandler creates a Handler.
func NewHandler(engine *syncer.Engine, security config.SecurityConfig, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:    engine,
		security:  security,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// notifyPending pushes the queue depth to websocket clients after a write.
func (h *Handler) notifyPending(ctx context.Context) {
	if h.hub == nil {
		return
	}
	n, err := h.engine.GetPendingSyncCount(ctx)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Could not read pending count for broadcast")
		return
	}
	h.hub.BroadcastPendingCount(n)
}

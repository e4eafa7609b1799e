// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/elevation-loom/internal/syncer"
)

// PendingResponse carries the queue depth.
type PendingResponse struct {
	Count int `json:"count"`
}

// SyncStatus describes the scheduler and its inputs.
type SyncStatus struct {
	State         string             `json:"state"`
	TimerArmed    bool               `json:"timerArmed"`
	Pending       int                `json:"pending"`
	Online        *bool              `json:"online,omitempty"`
	LastProbe     *time.Time         `json:"lastProbe,omitempty"`
	IdentityReady *bool              `json:"identityReady,omitempty"`
	UserID        string             `json:"userId,omitempty"`
	LastPass      *syncer.PassResult `json:"lastPass,omitempty"`
}

// TriggerSync runs a manual drain pass. The outcome, including failure,
// is carried in the body; the status is 200 whenever the pass was attempted.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(h.engine.TriggerManualSync(r.Context()))
}

// QueueWeek marks {weekKey} for another push, for example after the remote
// copy was lost. The week is pushed on the next pass.
func (h *Handler) QueueWeek(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	year, week, ok := weekParam(rw, r)
	if !ok {
		return
	}
	if err := h.engine.AddToPendingSync(r.Context(), year, week); err != nil {
		rw.InternalError("could not queue week", err)
		return
	}
	h.notifyPending(r.Context())
	n, err := h.engine.GetPendingSyncCount(r.Context())
	if err != nil {
		rw.InternalError("could not read pending queue", err)
		return
	}
	rw.Accepted(PendingResponse{Count: n})
}

// GetPendingCount returns the number of weeks awaiting sync.
func (h *Handler) GetPendingCount(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	n, err := h.engine.GetPendingSyncCount(r.Context())
	if err != nil {
		rw.InternalError("could not read pending queue", err)
		return
	}
	rw.Success(PendingResponse{Count: n})
}

// ClearPending drops every pending item without pushing it.
func (h *Handler) ClearPending(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.engine.ClearPendingSync(r.Context()); err != nil {
		rw.InternalError("could not clear pending queue", err)
		return
	}
	if h.hub != nil {
		h.hub.BroadcastPendingCount(0)
	}
	rw.Success(PendingResponse{Count: 0})
}

// GetSyncStatus reports scheduler state, queue depth, connectivity and identity.
func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	n, err := h.engine.GetPendingSyncCount(r.Context())
	if err != nil {
		rw.InternalError("could not read pending queue", err)
		return
	}
	sched := h.engine.Scheduler()
	status := SyncStatus{
		State:      sched.State().String(),
		TimerArmed: sched.TimerArmed(),
		Pending:    n,
	}
	if res, ok := sched.LastResult(); ok {
		status.LastPass = &res
	}
	if h.online != nil {
		online := h.online.IsOnline()
		status.Online = &online
		if last := h.online.LastCheck(); !last.IsZero() {
			status.LastProbe = &last
		}
	}
	if h.identity != nil {
		ready := h.identity.IsReady()
		status.IdentityReady = &ready
		status.UserID = h.identity.UserID()
	}
	rw.Success(status)
}

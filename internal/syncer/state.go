// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package syncer

import (
	"errors"
	"fmt"
	"time"
)

// State is the scheduler's position in its lifecycle.
type State int

const (
	// StateIdle: no timer armed, nothing known to be pending.
	StateIdle State = iota
	// StateWaiting: timer armed, waiting for the next tick or online signal.
	StateWaiting
	// StateSyncing: a drain pass is running.
	StateSyncing
	// StateAuthPending: a pass is waiting for the identity gate.
	StateAuthPending
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateSyncing:
		return "syncing"
	case StateAuthPending:
		return "auth_pending"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// busy reports whether a pass currently owns the scheduler.
func (s State) busy() bool {
	return s == StateSyncing || s == StateAuthPending
}

var (
	// ErrOffline is returned when a pass is skipped because the remote is unreachable.
	ErrOffline = errors.New("offline: sync pass skipped")

	// ErrPassInProgress is returned when a trigger arrives while a pass is
	// running or waiting for identity; the trigger is dropped.
	ErrPassInProgress = errors.New("sync pass already in progress")
)

// Pass triggers, used in logs and metrics.
const (
	TriggerTimer  = "timer"
	TriggerOnline = "online"
	TriggerManual = "manual"
)

// PassResult summarises one drain pass.
type PassResult struct {
	Trigger       string        `json:"trigger"`
	CorrelationID string        `json:"correlationId"`
	TotalCount    int           `json:"totalCount"`
	SuccessCount  int           `json:"successCount"`
	EmptyCount    int           `json:"emptyCount"`
	FailureCount  int           `json:"failureCount"`
	Remaining     int           `json:"remaining"`
	Duration      time.Duration `json:"duration"`
	StartedAt     time.Time     `json:"startedAt"`
}

// Bilingual messages reported by TriggerManualSync.
const (
	MessageAllSynced  = "すべてのデータが同期されました。\nAll data synced successfully."
	messagePendingFmt = "%d 件のデータが同期待ちです。\n%d items still pending sync."
	MessageSyncFailed = "同期に失敗しました。ネットワーク接続を確認してください。\nSync failed. Please check network connection."
)

// PendingMessage formats the "items still pending" message for n items.
func PendingMessage(n int) string {
	return fmt.Sprintf(messagePendingFmt, n, n)
}

// ManualSyncResult is returned to the user after a manual sync.
type ManualSyncResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Pending int    `json:"pending"`
}

// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package models

import "time"

// PendingSyncKey names the single persisted queue blob.
const PendingSyncKey = "elv_pending_sync"

// PendingSyncItem records that a week has local writes awaiting remote confirmation.
type PendingSyncItem struct {
	WeekKey     string    `json:"weekKey"`
	IsoYear     int       `json:"isoYear"`
	IsoWeek     int       `json:"isoWeek"`
	LastAttempt time.Time `json:"lastAttempt"`
	RetryCount  int       `json:"retryCount"`
}

// PendingSyncQueue is the persisted queue. Items hold at most one entry
// per week key and keep insertion order.
type PendingSyncQueue struct {
	Items       []PendingSyncItem `json:"items"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

// IndexOf returns the position of weekKey in Items, or -1.
func (q *PendingSyncQueue) IndexOf(weekKey string) int {
	for i := range q.Items {
		if q.Items[i].WeekKey == weekKey {
			return i
		}
	}
	return -1
}

// Remove deletes weekKey from Items and reports whether it was present.
func (q *PendingSyncQueue) Remove(weekKey string) bool {
	i := q.IndexOf(weekKey)
	if i < 0 {
		return false
	}
	q.Items = append(q.Items[:i], q.Items[i+1:]...)
	return true
}

// Snapshot returns a copy of Items.
func (q *PendingSyncQueue) Snapshot() []PendingSyncItem {
	out := make([]PendingSyncItem, len(q.Items))
	copy(out, q.Items)
	return out
}

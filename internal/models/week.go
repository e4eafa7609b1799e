// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package models

import (
	"fmt"
	"time"
)

// Epoch is the zero timestamp used by the empty week sentinel.
var Epoch = time.Unix(0, 0).UTC()

// WeekKey formats the unique identity of an ISO week, e.g. "2026-W07".
func WeekKey(isoYear, isoWeek int) string {
	return fmt.Sprintf("%d-W%02d", isoYear, isoWeek)
}

// Target is the weekly elevation goal in meters. Zero means no target set.
type Target struct {
	Value int `json:"value" validate:"min=0,max=10000,step100"`
}

// WeekData is one ISO week's full local record.
type WeekData struct {
	IsoYear   int        `json:"isoYear"`
	IsoWeek   int        `json:"isoWeek"`
	Target    Target     `json:"target"`
	DailyLogs []DailyLog `json:"dailyLogs"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// EmptyWeek returns the sentinel record for a week that has never been written.
func EmptyWeek(isoYear, isoWeek int) WeekData {
	return WeekData{
		IsoYear:   isoYear,
		IsoWeek:   isoWeek,
		DailyLogs: []DailyLog{},
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
}

// Key returns the week key.
func (w WeekData) Key() string {
	return WeekKey(w.IsoYear, w.IsoWeek)
}

// IsEmpty reports whether w is the never-written sentinel: zero target,
// no daily logs, and an epoch-zero (or unset) CreatedAt.
func (w WeekData) IsEmpty() bool {
	return w.Target.Value == 0 &&
		len(w.DailyLogs) == 0 &&
		(w.CreatedAt.IsZero() || w.CreatedAt.Equal(Epoch))
}

// Payload strips the cache-local timestamps.
func (w WeekData) Payload() WeekPayload {
	logs := w.DailyLogs
	if logs == nil {
		logs = []DailyLog{}
	}
	return WeekPayload{
		IsoYear:   w.IsoYear,
		IsoWeek:   w.IsoWeek,
		Target:    w.Target,
		DailyLogs: logs,
	}
}

// WeekPayload is WeekData without createdAt/updatedAt. It is the body
// saved by the local cache and pushed to the remote store.
type WeekPayload struct {
	IsoYear   int        `json:"isoYear" validate:"min=2000,max=2100"`
	IsoWeek   int        `json:"isoWeek" validate:"min=1,max=53"`
	Target    Target     `json:"target"`
	DailyLogs []DailyLog `json:"dailyLogs" validate:"max=7,dive"`
}

// Key returns the week key.
func (p WeekPayload) Key() string {
	return WeekKey(p.IsoYear, p.IsoWeek)
}

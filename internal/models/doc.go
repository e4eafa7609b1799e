// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

/*
Package models defines the data structures shared by the local cache, the
pending sync queue, the sync scheduler, and the HTTP layers.

Key Components:

  - WeekData: one ISO week's target and daily logs plus local bookkeeping
    timestamps. Identified by its week key "{isoYear}-W{isoWeek:02}".
  - WeekPayload: WeekData without the local timestamps; this is what gets
    pushed to the remote store.
  - DailyLog: one calendar day of elevation contributions and plans.
  - PendingSyncItem / PendingSyncQueue: the durable record of weeks with
    local writes that the remote store has not confirmed yet.

JSON Layout:

WeekData and the queue records use camelCase keys (isoYear, dailyLogs,
lastAttempt). DailyLog uses snake_case keys (elevation_part1,
daily_plan_part1) so stored day logs stay readable by older exports.

Empty Weeks:

A week that was never written loads as a zero target, no logs, and
epoch-zero CreatedAt. IsEmpty reports that sentinel; the scheduler treats
such weeks as already synced.
*/
package models

// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

// Package backup snapshots the local store to disk.
//
// Each snapshot is a BadgerDB backup stream written to
// <dir>/elv_backup_<unix millis>.bak through a temp file and rename, with its
// SHA-256 recorded in <dir>/metadata.json. Only the newest MaxBackups files
// are kept (10 by default).
//
// # Scheduling
//
// Start runs an automatic backup every Interval (24h by default). When the
// last scheduled backup is older than Interval, or none exists, one is taken
// right away. Manual backups through CreateBackup do not move the schedule.
//
// # Restore
//
// RestoreInto verifies the checksum and loads the snapshot into an empty
// store. The engine binary restores before any service opens the queue:
//
//	elevation-loom --restore <backup-id>
package backup

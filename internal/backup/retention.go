// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package backup

import (
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/metrics"
)

// applyRetentionLocked keeps the newest MaxBackups snapshots and deletes the
// rest. Must be called with metadataMu held.
func (m *Manager) applyRetentionLocked() {
	if len(m.metadata.Backups) <= m.cfg.MaxBackups {
		metrics.BackupsRetained.Set(float64(len(m.metadata.Backups)))
		return
	}

	ordered := make([]*Backup, len(m.metadata.Backups))
	copy(ordered, m.metadata.Backups)
	sortNewestFirst(ordered)

	deleted := 0
	var freed int64
	for _, b := range ordered[m.cfg.MaxBackups:] {
		if err := m.deleteLocked(b); err != nil {
			logging.Warn().Err(err).Str("backup_id", b.ID).Msg("Failed to delete expired backup")
			continue
		}
		deleted++
		freed += b.Size
	}

	metrics.BackupsRetained.Set(float64(len(m.metadata.Backups)))
	if deleted > 0 {
		logging.Info().Int("deleted", deleted).Int64("bytes_freed", freed).Msg("Backup retention applied")
	}
}

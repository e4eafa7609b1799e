// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/tomtom215/elevation-loom/internal/logging"
)

// Verify recomputes the checksum of a backup file.
func (m *Manager) Verify(id string) error {
	b, err := m.GetBackup(id)
	if err != nil {
		return err
	}
	sum, err := fileChecksum(m.path(b))
	if err != nil {
		return err
	}
	if sum != b.Checksum {
		return fmt.Errorf("%w: %s", ErrChecksumMismatch, id)
	}
	return nil
}

// RestoreInto loads a verified backup into dst, which must hold no keys.
func (m *Manager) RestoreInto(ctx context.Context, id string, dst Restorer) error {
	if err := m.Verify(id); err != nil {
		return err
	}
	n, err := dst.CountPrefix("")
	if err != nil {
		return fmt.Errorf("inspect restore target: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %d keys present", ErrTargetNotEmpty, n)
	}

	rc, b, err := m.Open(id)
	if err != nil {
		return err
	}
	defer rc.Close() //nolint:errcheck // read-only

	if err := dst.Restore(rc); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("backup_id", b.ID).Str("file", b.FileName).Msg("Backup restored")
	return nil
}

// Import stores an uploaded snapshot as a new backup. The content is not
// parsed until it is restored.
func (m *Manager) Import(ctx context.Context, r io.Reader) (*Backup, error) {
	if !m.cfg.Enabled {
		return nil, ErrDisabled
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	start := m.now()
	b := &Backup{ID: uuid.New().String(), Trigger: TriggerImport, CreatedAt: start.UTC()}
	b.FileName = m.fileName(start, b.ID)

	size, sum, err := m.writeFile(m.path(b), func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("import backup: %w", err)
	}
	b.Size = size
	b.Checksum = sum
	b.Duration = m.now().Sub(start)

	m.metadataMu.Lock()
	m.metadata.Backups = append(m.metadata.Backups, b)
	m.applyRetentionLocked()
	if err := m.saveMetadataLocked(); err != nil {
		logging.Warn().Err(err).Msg("Failed to save backup metadata")
	}
	m.metadataMu.Unlock()

	logging.Ctx(ctx).Info().Str("backup_id", b.ID).Int64("size", size).Msg("Backup imported")
	return b, nil
}

//nolint:gosec // G304: path is inside the backup directory
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck // read-only

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

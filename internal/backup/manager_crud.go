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
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/metrics"
)

// CreateBackup takes a manual snapshot.
func (m *Manager) CreateBackup(ctx context.Context) (*Backup, error) {
	return m.create(ctx, TriggerManual)
}

func (m *Manager) create(ctx context.Context, trigger Trigger) (*Backup, error) {
	if !m.cfg.Enabled {
		return nil, ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	start := m.now()
	b := &Backup{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		CreatedAt: start.UTC(),
	}
	b.FileName = m.fileName(start, b.ID)

	size, sum, err := m.writeFile(m.path(b), m.src.Backup)
	b.Duration = m.now().Sub(start)
	metrics.RecordBackup(string(trigger), b.Duration, err)
	if err != nil {
		return nil, err
	}
	b.Size = size
	b.Checksum = sum

	m.metadataMu.Lock()
	m.metadata.Backups = append(m.metadata.Backups, b)
	if trigger == TriggerScheduled {
		at := start
		m.metadata.LastScheduled = &at
	}
	m.applyRetentionLocked()
	if err := m.saveMetadataLocked(); err != nil {
		logging.Warn().Err(err).Msg("Failed to save backup metadata")
	}
	m.metadataMu.Unlock()

	logging.Ctx(ctx).Info().
		Str("backup_id", b.ID).
		Str("file", b.FileName).
		Str("trigger", string(trigger)).
		Dur("duration", b.Duration).
		Msg("Backup created")

	if m.onBackupComplete != nil {
		m.onBackupComplete(b)
	}
	return b, nil
}

// fileName is elv_backup_<unix millis>.bak, with an ID suffix on collision.
func (m *Manager) fileName(t time.Time, id string) string {
	name := fmt.Sprintf("%s%d.bak", m.cfg.Prefix, t.UnixMilli())
	if _, err := os.Stat(filepath.Join(m.cfg.Dir, name)); err == nil {
		name = fmt.Sprintf("%s%d_%s.bak", m.cfg.Prefix, t.UnixMilli(), id[:8])
	}
	return name
}

// writeFile streams fill into path through a temp file, returning the size
// and SHA-256 of what was written.
func (m *Manager) writeFile(path string, fill func(w io.Writer) error) (int64, string, error) {
	tmp, err := os.CreateTemp(m.cfg.Dir, ".backup-*")
	if err != nil {
		return 0, "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	hasher := sha256.New()
	counter := &countingWriter{}
	if err := fill(io.MultiWriter(tmp, hasher, counter)); err != nil {
		_ = tmp.Close()
		return 0, "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, "", fmt.Errorf("sync backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, "", fmt.Errorf("close backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, "", fmt.Errorf("finalize backup: %w", err)
	}
	return counter.n, hex.EncodeToString(hasher.Sum(nil)), nil
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

// ListBackups returns all known backups, newest first.
func (m *Manager) ListBackups() []*Backup {
	m.metadataMu.RLock()
	defer m.metadataMu.RUnlock()

	out := make([]*Backup, len(m.metadata.Backups))
	copy(out, m.metadata.Backups)
	sortNewestFirst(out)
	return out
}

// GetBackup returns a backup by ID.
func (m *Manager) GetBackup(id string) (*Backup, error) {
	m.metadataMu.RLock()
	defer m.metadataMu.RUnlock()

	b, _ := m.findLocked(id)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b, nil
}

// DeleteBackup removes a backup file and its metadata.
func (m *Manager) DeleteBackup(id string) error {
	m.metadataMu.Lock()
	defer m.metadataMu.Unlock()

	b, _ := m.findLocked(id)
	if b == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := m.deleteLocked(b); err != nil {
		return err
	}
	metrics.BackupsRetained.Set(float64(len(m.metadata.Backups)))
	return m.saveMetadataLocked()
}

// Open returns a reader over the snapshot file. The caller closes it.
func (m *Manager) Open(id string) (io.ReadCloser, *Backup, error) {
	b, err := m.GetBackup(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(m.path(b))
	if err != nil {
		return nil, nil, fmt.Errorf("open backup: %w", err)
	}
	return f, b, nil
}

func (m *Manager) findLocked(id string) (*Backup, int) {
	for i, b := range m.metadata.Backups {
		if b.ID == id {
			return b, i
		}
	}
	return nil, -1
}

// deleteLocked must be called with metadataMu held.
func (m *Manager) deleteLocked(b *Backup) error {
	if err := os.Remove(m.path(b)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete backup file: %w", err)
	}
	for i, existing := range m.metadata.Backups {
		if existing.ID == b.ID {
			m.metadata.Backups = append(m.metadata.Backups[:i], m.metadata.Backups[i+1:]...)
			break
		}
	}
	return nil
}

func sortNewestFirst(backups []*Backup) {
	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
}

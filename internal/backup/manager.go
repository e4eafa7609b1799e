// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/logging"
)

const metadataFileName = "metadata.json"

// Manager creates, lists, prunes and restores snapshots of the local store.
type Manager struct {
	cfg config.BackupConfig
	src Snapshotter
	now func() time.Time

	metadataFile string
	metadata     *metadata
	metadataMu   sync.RWMutex

	// serializes snapshot writes so retention never races a running backup
	createMu sync.Mutex

	schedulerStop chan struct{}
	schedulerWg   sync.WaitGroup
	running       bool
	runningMu     sync.Mutex

	onBackupComplete func(b *Backup)
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager prepares the backup directory and loads existing metadata.
func NewManager(cfg config.BackupConfig, src Snapshotter, opts ...Option) (*Manager, error) {
	if src == nil {
		return nil, errors.New("backup source is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "elv_backup_"
	}
	if cfg.MaxBackups < 1 {
		cfg.MaxBackups = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}

	m := &Manager{
		cfg:          cfg,
		src:          src,
		now:          time.Now,
		metadataFile: filepath.Join(cfg.Dir, metadataFileName),
		metadata:     &metadata{Backups: make([]*Backup, 0)},
	}
	for _, opt := range opts {
		opt(m)
	}

	if cfg.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create backup directory: %w", err)
		}
		if err := m.loadMetadata(); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Warn().Err(err).Str("file", m.metadataFile).Msg("Backup metadata unreadable, starting fresh")
		}
		m.pruneMissing()
	}
	return m, nil
}

// Start runs the automatic backup loop. A backup is taken immediately when
// the newest scheduled one is older than the interval.
func (m *Manager) Start(ctx context.Context) error {
	m.runningMu.Lock()
	defer m.runningMu.Unlock()

	if m.running {
		return errors.New("backup manager is already running")
	}
	if !m.cfg.Enabled {
		return nil
	}

	m.running = true
	m.schedulerStop = make(chan struct{})
	m.schedulerWg.Add(1)
	go m.runScheduler(ctx)
	return nil
}

// Stop ends the automatic loop and waits for an in-flight backup.
func (m *Manager) Stop() error {
	m.runningMu.Lock()
	defer m.runningMu.Unlock()

	if !m.running {
		return nil
	}
	close(m.schedulerStop)
	m.schedulerWg.Wait()
	m.running = false
	return nil
}

// IsRunning reports whether the automatic loop is active.
func (m *Manager) IsRunning() bool {
	m.runningMu.Lock()
	defer m.runningMu.Unlock()
	return m.running
}

// Enabled reports whether backups are configured on.
func (m *Manager) Enabled() bool {
	return m.cfg.Enabled
}

// SetOnBackupComplete registers a callback run after each successful backup.
func (m *Manager) SetOnBackupComplete(fn func(b *Backup)) {
	m.onBackupComplete = fn
}

func (m *Manager) runScheduler(ctx context.Context) {
	defer m.schedulerWg.Done()

	timer := time.NewTimer(m.untilNextScheduled())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.schedulerStop:
			return
		case <-timer.C:
			b, err := m.create(ctx, TriggerScheduled)
			if err != nil {
				logging.Error().Err(err).Msg("Scheduled backup failed")
			} else {
				logging.Info().Str("backup_id", b.ID).Int64("size", b.Size).Msg("Scheduled backup completed")
			}
			timer.Reset(m.untilNextScheduled())
		}
	}
}

// untilNextScheduled is zero when a scheduled backup is overdue.
func (m *Manager) untilNextScheduled() time.Duration {
	m.metadataMu.RLock()
	last := m.metadata.LastScheduled
	m.metadataMu.RUnlock()

	if last == nil {
		return 0
	}
	d := last.Add(m.cfg.Interval).Sub(m.now())
	if d < 0 {
		return 0
	}
	return d
}

func (m *Manager) loadMetadata() error {
	m.metadataMu.Lock()
	defer m.metadataMu.Unlock()

	data, err := os.ReadFile(m.metadataFile)
	if err != nil {
		return err
	}
	var md metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return err
	}
	if md.Backups == nil {
		md.Backups = make([]*Backup, 0)
	}
	m.metadata = &md
	return nil
}

// saveMetadataLocked must be called with metadataMu held.
func (m *Manager) saveMetadataLocked() error {
	data, err := json.MarshalIndent(m.metadata, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.metadataFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, m.metadataFile)
}

// pruneMissing drops metadata entries whose file was removed out of band.
func (m *Manager) pruneMissing() {
	m.metadataMu.Lock()
	defer m.metadataMu.Unlock()

	kept := m.metadata.Backups[:0]
	for _, b := range m.metadata.Backups {
		if _, err := os.Stat(m.path(b)); err != nil {
			logging.Warn().Str("backup_id", b.ID).Str("file", b.FileName).Msg("Backup file missing, dropping from metadata")
			continue
		}
		kept = append(kept, b)
	}
	if len(kept) != len(m.metadata.Backups) {
		m.metadata.Backups = kept
		if err := m.saveMetadataLocked(); err != nil {
			logging.Warn().Err(err).Msg("Failed to save backup metadata")
		}
	}
}

func (m *Manager) path(b *Backup) string {
	return filepath.Join(m.cfg.Dir, b.FileName)
}

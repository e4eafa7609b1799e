// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/metrics"
	"github.com/tomtom215/elevation-loom/internal/store"
)

// steppingClock advances one second on every call.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type failingSource struct{ err error }

func (f failingSource) Backup(io.Writer) error { return f.err }

func testConfig(t *testing.T) config.BackupConfig {
	t.Helper()
	return config.BackupConfig{
		Enabled:    true,
		Dir:        filepath.Join(t.TempDir(), "backups"),
		Prefix:     "elv_backup_",
		MaxBackups: 10,
		Interval:   24 * time.Hour,
	}
}

func seededStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	if err := s.Set(ctx, "week:2026-W10", map[string]int{"target": 3000}); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "elv_pending_sync", []string{"2026-W10"}); err != nil {
		t.Fatal(err)
	}
	return s
}

func newTestManager(t *testing.T, cfg config.BackupConfig, src Snapshotter) *Manager {
	t.Helper()
	clock := &steppingClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	m, err := NewManager(cfg, src, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestNewManagerDefaults(t *testing.T) {
	m, err := NewManager(config.BackupConfig{Dir: t.TempDir()}, seededStore(t))
	if err != nil {
		t.Fatal(err)
	}
	if m.cfg.Prefix != "elv_backup_" || m.cfg.MaxBackups != 10 || m.cfg.Interval != 24*time.Hour {
		t.Errorf("unexpected defaults %+v", m.cfg)
	}
	if m.Enabled() {
		t.Error("zero config should be disabled")
	}
	if _, err := NewManager(config.BackupConfig{}, nil); err == nil {
		t.Error("nil source should be rejected")
	}
}

func TestCreateBackup(t *testing.T) {
	cfg := testConfig(t)
	m := newTestManager(t, cfg, seededStore(t))

	before := testutil.ToFloat64(metrics.BackupsTotal.WithLabelValues("manual", "success"))
	b, err := m.CreateBackup(context.Background())
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	if !strings.HasPrefix(b.FileName, "elv_backup_") || !strings.HasSuffix(b.FileName, ".bak") {
		t.Errorf("file name = %q", b.FileName)
	}
	if b.Trigger != TriggerManual || b.Size == 0 || len(b.Checksum) != 64 {
		t.Errorf("unexpected backup %+v", b)
	}
	info, err := os.Stat(filepath.Join(cfg.Dir, b.FileName))
	if err != nil {
		t.Fatalf("backup file missing: %v", err)
	}
	if info.Size() != b.Size {
		t.Errorf("size = %d, file has %d", b.Size, info.Size())
	}
	if err := m.Verify(b.ID); err != nil {
		t.Errorf("Verify: %v", err)
	}
	if d := testutil.ToFloat64(metrics.BackupsTotal.WithLabelValues("manual", "success")) - before; d != 1 {
		t.Errorf("BackupsTotal delta = %v", d)
	}

	leftovers, _ := filepath.Glob(filepath.Join(cfg.Dir, ".backup-*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestCreateBackupErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func(t *testing.T) config.BackupConfig
		src     Snapshotter
		wantErr error
	}{
		{
			name:    "disabled",
			cfg:     func(t *testing.T) config.BackupConfig { c := testConfig(t); c.Enabled = false; return c },
			src:     failingSource{},
			wantErr: ErrDisabled,
		},
		{
			name:    "source fails",
			cfg:     testConfig,
			src:     failingSource{err: errors.New("disk gone")},
			wantErr: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, tt.cfg(t), tt.src)
			_, err := m.CreateBackup(context.Background())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if len(m.ListBackups()) != 0 {
				t.Error("failed backup should not be listed")
			}
		})
	}
}

func TestRetentionKeepsNewest(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxBackups = 3
	m := newTestManager(t, cfg, seededStore(t))

	var ids []string
	for i := 0; i < 5; i++ {
		b, err := m.CreateBackup(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, b.ID)
	}

	list := m.ListBackups()
	if len(list) != 3 {
		t.Fatalf("kept %d backups, want 3", len(list))
	}
	for i, want := range []string{ids[4], ids[3], ids[2]} {
		if list[i].ID != want {
			t.Errorf("list[%d] = %s, want %s", i, list[i].ID, want)
		}
	}
	files, _ := filepath.Glob(filepath.Join(cfg.Dir, "elv_backup_*.bak"))
	if len(files) != 3 {
		t.Errorf("%d files on disk, want 3", len(files))
	}
	if got := testutil.ToFloat64(metrics.BackupsRetained); got != 3 {
		t.Errorf("BackupsRetained = %v, want 3", got)
	}
}

func TestMetadataSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	src := seededStore(t)
	m := newTestManager(t, cfg, src)
	kept, err := m.CreateBackup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	gone, err := m.CreateBackup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(cfg.Dir, gone.FileName)); err != nil {
		t.Fatal(err)
	}

	reopened := newTestManager(t, cfg, src)
	list := reopened.ListBackups()
	if len(list) != 1 || list[0].ID != kept.ID {
		t.Errorf("after restart got %+v, want only %s", list, kept.ID)
	}
}

func TestDeleteAndGet(t *testing.T) {
	m := newTestManager(t, testConfig(t), seededStore(t))
	b, err := m.CreateBackup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got, err := m.GetBackup(b.ID); err != nil || got.ID != b.ID {
		t.Fatalf("GetBackup = %v, %v", got, err)
	}
	if err := m.DeleteBackup(b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetBackup(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetBackup after delete err = %v", err)
	}
	if err := m.DeleteBackup(b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func TestRestoreInto(t *testing.T) {
	cfg := testConfig(t)
	m := newTestManager(t, cfg, seededStore(t))
	b, err := m.CreateBackup(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	t.Run("empty target", func(t *testing.T) {
		dst, err := store.OpenInMemory()
		if err != nil {
			t.Fatal(err)
		}
		defer dst.Close()
		if err := m.RestoreInto(context.Background(), b.ID, dst); err != nil {
			t.Fatalf("RestoreInto: %v", err)
		}
		var target map[string]int
		found, err := dst.Get(context.Background(), "week:2026-W10", &target)
		if err != nil || !found || target["target"] != 3000 {
			t.Errorf("restored week = %v, %v, %v", target, found, err)
		}
	})

	t.Run("populated target", func(t *testing.T) {
		if err := m.RestoreInto(context.Background(), b.ID, seededStore(t)); !errors.Is(err, ErrTargetNotEmpty) {
			t.Errorf("err = %v, want ErrTargetNotEmpty", err)
		}
	})

	t.Run("corrupted file", func(t *testing.T) {
		dst, err := store.OpenInMemory()
		if err != nil {
			t.Fatal(err)
		}
		defer dst.Close()
		c, err := m.CreateBackup(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(cfg.Dir, c.FileName), []byte("garbage"), 0o600); err != nil {
			t.Fatal(err)
		}
		if err := m.RestoreInto(context.Background(), c.ID, dst); !errors.Is(err, ErrChecksumMismatch) {
			t.Errorf("err = %v, want ErrChecksumMismatch", err)
		}
	})
}

func TestImportAndOpen(t *testing.T) {
	m := newTestManager(t, testConfig(t), seededStore(t))

	var snapshot bytes.Buffer
	if err := seededStore(t).Backup(&snapshot); err != nil {
		t.Fatal(err)
	}
	want := snapshot.Bytes()

	b, err := m.Import(context.Background(), bytes.NewReader(want))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if b.Trigger != TriggerImport || b.Size != int64(len(want)) {
		t.Errorf("unexpected import %+v", b)
	}

	rc, _, err := m.Open(b.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Error("opened content differs from imported content")
	}
}

func TestSchedulerRunsOverdueBackup(t *testing.T) {
	m := newTestManager(t, testConfig(t), seededStore(t))
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(m.ListBackups()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no scheduled backup was taken")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
	if m.IsRunning() {
		t.Error("still running after Stop")
	}

	b := m.ListBackups()[0]
	if b.Trigger != TriggerScheduled {
		t.Errorf("trigger = %q", b.Trigger)
	}
	if d := m.untilNextScheduled(); d <= 0 || d > 24*time.Hour {
		t.Errorf("next scheduled in %v", d)
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	cfg := testConfig(t)
	cfg.Enabled = false
	m := newTestManager(t, cfg, seededStore(t))
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if m.IsRunning() {
		t.Error("disabled manager should not run")
	}
	if err := m.Stop(); err != nil {
		t.Fatal(err)
	}
}

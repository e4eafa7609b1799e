// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/tomtom215/elevation-loom/internal/backup"
	"github.com/tomtom215/elevation-loom/internal/store"
)

// The backups commands open the store directly, so the daemon must be stopped.
var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Manage local store backups while the daemon is stopped",
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBackupManager(func(m *backup.Manager) error {
			printBackups(cmd.OutOrStdout(), m.ListBackups())
			return nil
		})
	},
}

var backupsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Take a backup of the local store now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBackupManager(func(m *backup.Manager) error {
			b, err := m.CreateBackup(cmd.Context())
			if err != nil {
				return err
			}
			printBackups(cmd.OutOrStdout(), []*backup.Backup{b})
			return nil
		})
	},
}

var backupsVerifyCmd = &cobra.Command{
	Use:   "verify <backup-id>",
	Short: "Recompute a backup's checksum",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackupManager(func(m *backup.Manager) error {
			if err := m.Verify(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		})
	},
}

func withBackupManager(fn func(m *backup.Manager) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Backup.Enabled {
		return backup.ErrDisabled
	}
	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store (is the daemon running?): %w", err)
	}
	defer func() { _ = st.Close() }()

	m, err := backup.NewManager(cfg.Backup, st)
	if err != nil {
		return err
	}
	return fn(m)
}

func printBackups(w io.Writer, backups []*backup.Backup) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"ID", "Created", "Trigger", "Size", "File"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	var data [][]string
	for _, b := range backups {
		data = append(data, []string{
			b.ID,
			b.CreatedAt.Local().Format(time.RFC3339),
			string(b.Trigger),
			strconv.FormatInt(b.Size, 10),
			b.FileName,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

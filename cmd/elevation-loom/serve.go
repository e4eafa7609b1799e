// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/elevation-loom/internal/api"
	"github.com/tomtom215/elevation-loom/internal/backup"
	"github.com/tomtom215/elevation-loom/internal/cache"
	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/connectivity"
	"github.com/tomtom215/elevation-loom/internal/identity"
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/pending"
	"github.com/tomtom215/elevation-loom/internal/remote"
	"github.com/tomtom215/elevation-loom/internal/store"
	"github.com/tomtom215/elevation-loom/internal/supervisor"
	"github.com/tomtom215/elevation-loom/internal/supervisor/services"
	"github.com/tomtom215/elevation-loom/internal/syncer"
	ws "github.com/tomtom215/elevation-loom/internal/websocket"
)

const (
	weekCacheCapacity = 64
	weekCacheTTL      = 10 * time.Minute
)

// syncRetry runs the engine's retry loop as a supervised service.
type syncRetry struct{ *syncer.Engine }

func (s syncRetry) Start(ctx context.Context) error { return s.InitSyncRetry(ctx) }

//nolint:gocyclo // sequential wiring of every component
func runServe(parent context.Context, cfg *config.Config, restore string) error {
	logging.Info().
		Str("store_path", cfg.Store.Path).
		Str("remote", cfg.Remote.BaseURL).
		Str("listen", cfg.Server.Addr()).
		Bool("backups", cfg.Backup.Enabled).
		Msg("Starting elevation-loom")

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	backups, err := backup.NewManager(cfg.Backup, st)
	if err != nil {
		return fmt.Errorf("init backups: %w", err)
	}

	if restore != "" {
		if err := backups.RestoreInto(parent, restore, st); err != nil {
			if errors.Is(err, backup.ErrTargetNotEmpty) {
				return fmt.Errorf("restore %s: store at %s already holds data; move it aside first", restore, cfg.Store.Path)
			}
			return fmt.Errorf("restore %s: %w", restore, err)
		}
		logging.Info().Str("backup_id", restore).Msg("Backup restored into local store")
	}

	client := remote.NewClient(cfg.Remote)
	gate := identity.NewGate(st, client, cfg.Identity)
	client.SetTokenSource(gate)
	pusher := remote.NewCircuitBreakerPusher(client, cfg.Remote.CircuitBreaker)
	prober := connectivity.NewProber(client, cfg.Connectivity)

	localCache := cache.New(st, cache.WithMemoryCache(weekCacheCapacity, weekCacheTTL))
	queue := pending.New(st)
	sched := syncer.NewScheduler(queue, localCache, pusher, gate, cfg.Sync, syncer.WithConnectivity(prober))
	engine := syncer.NewEngine(localCache, queue, sched)

	hub := ws.NewHub()
	prober.OnChange(sched.NotifyOnline)
	sched.OnPass(hub.BroadcastSyncComplete)
	backups.SetOnBackupComplete(func(b *backup.Backup) {
		logging.Info().
			Str("backup_id", b.ID).
			Str("trigger", string(b.Trigger)).
			Int64("size", b.Size).
			Msg("Backup completed")
	})

	handler := api.NewHandler(engine, cfg.Security,
		api.WithBackups(backups),
		api.WithHub(hub),
		api.WithIdentity(gate),
		api.WithConnectivity(prober),
	)
	httpServer := api.NewRouter(handler).HTTPServer(cfg.Server)

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeCfg)
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddStorageService(services.NewLifecycleService("store-gc", store.NewGCLoop(st)))
	if backups.Enabled() {
		tree.AddStorageService(services.NewLifecycleServiceWithError("backup-scheduler", backups))
	}
	tree.AddSyncService(services.NewLifecycleService("identity-gate", gate))
	tree.AddSyncService(services.NewLifecycleService("connectivity-prober", prober))
	tree.AddSyncService(services.NewLifecycleService("sync-scheduler", syncRetry{engine}))
	tree.AddSyncService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService("http-server", httpServer, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", httpServer.Addr).Msg("Local API listening")

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return fmt.Errorf("supervisor: %w", serveErr)
	}

	if n, err := engine.GetPendingSyncCount(context.Background()); err == nil && n > 0 {
		logging.Info().Int("pending", n).Msg("Weeks left pending; they are pushed on next start")
	}
	logging.Info().Msg("elevation-loom stopped")
	return nil
}

// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

// Package main runs the reference remote store that elevation-loom pushes
// weeks to. It issues anonymous JWT sessions and keeps one document per
// user and ISO week in its own BadgerDB.
//
// By default it listens on the host and port of remote.base_url, so both
// binaries can share one config file. --addr overrides it.
//
//	export REMOTE_STORE_JWT_SECRET=$(openssl rand -base64 32)
//	remote-store --addr 127.0.0.1:8787
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/elevation-loom/internal/auth"
	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/remotestore"
	"github.com/tomtom215/elevation-loom/internal/store"
	"github.com/tomtom215/elevation-loom/internal/supervisor"
	"github.com/tomtom215/elevation-loom/internal/supervisor/services"
)

var (
	configPath string
	listenAddr string
)

var rootCmd = &cobra.Command{
	Use:          "remote-store",
	Short:        "Reference remote document store for elevation-loom",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file (overrides CONFIG_PATH)")
	rootCmd.Flags().StringVar(&listenAddr, "addr", "", "Listen address (default: host:port of remote.base_url)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(parent context.Context) error {
	if configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, configPath); err != nil {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateRemoteStore(); err != nil {
		return err
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	addr := listenAddr
	if addr == "" {
		u, err := url.Parse(cfg.Remote.BaseURL)
		if err != nil {
			return fmt.Errorf("parse remote.base_url: %w", err)
		}
		addr = u.Host
	}

	storeCfg := cfg.Store
	storeCfg.Path = cfg.RemoteStore.StorePath
	st, err := store.Open(storeCfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	jwtManager, err := auth.NewJWTManager(cfg.RemoteStore)
	if err != nil {
		return err
	}

	srv := remotestore.NewServer(st, jwtManager, cfg.Security)
	httpServer := srv.HTTPServer(cfg.Server)
	httpServer.Addr = addr

	if n, err := srv.CountDocuments(parent); err == nil {
		logging.Info().Int("documents", n).Str("store_path", storeCfg.Path).Msg("Remote store opened")
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.Name = "remote-store"
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeCfg)
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	tree.AddStorageService(services.NewLifecycleService("store-gc", store.NewGCLoop(st)))
	tree.AddAPIService(services.NewHTTPServerService("remote-store-http", httpServer, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", addr).Msg("Remote store listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}
	logging.Info().Msg("Remote store stopped")
	return nil
}

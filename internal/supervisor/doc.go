// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

/*
Package supervisor runs the long-lived services of both binaries under a
suture v4 tree.

The engine binary builds:

	RootSupervisor ("elevation-loom")
	├── "storage-layer"
	│   ├── GCLoopService     (BadgerDB value log GC)
	│   └── BackupService     (scheduled snapshots)
	├── "sync-layer"
	│   ├── IdentityService   (anonymous sign-in and refresh)
	│   ├── ProberService     (connectivity checks)
	│   ├── SchedulerService  (pending queue drain timer)
	│   └── WebSocketHubService
	└── "api-layer"
	    └── HTTPServerService

The remote store binary uses the same tree with only the storage and api
layers populated.

Supervisor events go through sutureslog into the zerolog-backed slog handler
from internal/logging:

	logger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	tree.AddSyncService(services.NewLifecycleService("sync-scheduler", sched))
	errCh := tree.ServeBackground(ctx)
*/
package supervisor

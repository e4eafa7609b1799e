// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

/*
Package services adapts application components to suture.Service.

  - HTTPServerService: ListenAndServe plus graceful Shutdown
  - WebSocketHubService: delegates to Hub.RunWithContext
  - LifecycleService: Start(ctx) / Stop() components such as the sync
    scheduler, identity gate, connectivity prober, GC loop and backup manager
*/
package services

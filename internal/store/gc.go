// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package store

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/metrics"
)

// GCLoop periodically runs value log GC and refreshes the store size gauge.
type GCLoop struct {
	store    *Store
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

// NewGCLoop creates a GC loop using the store's configured interval.
func NewGCLoop(s *Store) *GCLoop {
	interval := s.Config().GCInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &GCLoop{store: s, interval: interval}
}

// Start begins the background GC loop.
func (g *GCLoop) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return nil
	}
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.running = true
	g.mu.Unlock()

	g.wg.Add(1)
	go g.run()

	logging.Info().Dur("interval", g.interval).Msg("Store GC loop started")
	return nil
}

// Stop gracefully stops the loop and waits for it to exit.
func (g *GCLoop) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	g.cancel()
	g.running = false
	g.mu.Unlock()

	g.wg.Wait()
	logging.Info().Msg("Store GC loop stopped")
}

// IsRunning returns whether the loop is active.
func (g *GCLoop) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// LastRun returns when GC last completed.
func (g *GCLoop) LastRun() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRun
}

func (g *GCLoop) run() {
	defer g.wg.Done()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			return
		case <-ticker.C:
			g.RunNow()
		}
	}
}

// RunNow runs one GC cycle synchronously.
func (g *GCLoop) RunNow() {
	if err := g.store.RunGC(); err != nil {
		logging.Warn().Err(err).Msg("Store GC failed")
		return
	}
	metrics.StoreSizeBytes.Set(float64(g.store.Size()))

	g.mu.Lock()
	g.lastRun = time.Now()
	g.mu.Unlock()
}

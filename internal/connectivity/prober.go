// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

// Package connectivity decides whether the remote store is reachable and
// emits a signal on every offline-to-online transition.
package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/metrics"
)

// Checker performs one reachability check.
type Checker interface {
	Health(ctx context.Context, path string) error
}

// Listener is told about every state change.
type Listener func(online bool)

// Prober periodically probes the remote store. It starts offline; the
// first successful probe counts as "connectivity restored".
type Prober struct {
	checker Checker
	cfg     config.ConnectivityConfig

	mu        sync.RWMutex
	online    bool
	lastCheck time.Time
	listeners []Listener

	lifeMu   sync.Mutex
	running  bool
	cancel   context.CancelFunc
	stopDone chan struct{}
}

// NewProber creates a Prober. Zero config values fall back to a 10s
// interval, 5s timeout and "/healthz".
func NewProber(checker Checker, cfg config.ConnectivityConfig) *Prober {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 10 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.ProbePath == "" {
		cfg.ProbePath = "/healthz"
	}
	return &Prober{checker: checker, cfg: cfg}
}

// OnChange registers fn for state transitions. Listeners run synchronously
// on the probing goroutine and must not block.
func (p *Prober) OnChange(fn Listener) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// IsOnline reports the result of the latest probe.
func (p *Prober) IsOnline() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}

// LastCheck returns when the latest probe finished.
func (p *Prober) LastCheck() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastCheck
}

// Check runs one probe, updates the state and notifies listeners on change.
func (p *Prober) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	err := p.checker.Health(probeCtx, p.cfg.ProbePath)
	cancel()
	if ctx.Err() != nil {
		// Shutdown, not a connectivity verdict.
		return p.IsOnline()
	}
	online := err == nil

	p.mu.Lock()
	changed := online != p.online
	p.online = online
	p.lastCheck = time.Now()
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.Unlock()

	metrics.SetConnectivity(online, changed)
	if changed {
		if online {
			logging.Info().Msg("Remote store reachable, connectivity restored")
		} else {
			logging.Warn().Err(err).Msg("Remote store unreachable, working offline")
		}
		for _, fn := range listeners {
			fn(online)
		}
	}
	return online
}

// Start runs an immediate probe and then probes every ProbeInterval.
func (p *Prober) Start(ctx context.Context) error {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	if p.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.stopDone = make(chan struct{})
	p.running = true
	go p.run(loopCtx, p.stopDone)

	logging.Info().
		Dur("interval", p.cfg.ProbeInterval).
		Str("path", p.cfg.ProbePath).
		Msg("Connectivity prober started")
	return nil
}

// Stop halts probing and waits for the goroutine to exit.
func (p *Prober) Stop() {
	p.lifeMu.Lock()
	if !p.running {
		p.lifeMu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	done := p.stopDone
	p.lifeMu.Unlock()

	<-done
	logging.Info().Msg("Connectivity prober stopped")
}

// IsRunning reports whether the probe loop is active.
func (p *Prober) IsRunning() bool {
	p.lifeMu.Lock()
	defer p.lifeMu.Unlock()
	return p.running
}

func (p *Prober) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.Check(ctx)
	ticker := time.NewTicker(p.cfg.ProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

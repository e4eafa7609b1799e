// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package services

import (
	"context"
	"fmt"

	"github.com/tomtom215/elevation-loom/internal/logging"
)

// StartStopper matches components that spawn their own goroutine on Start
// and wait for it on Stop.
//
// Satisfied by:
//   - *identity.Gate
//   - *connectivity.Prober
//   - *syncer.Scheduler and the engine wrapping it
//   - *store.GCLoop
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
}

// StartStopperWithError is StartStopper for components whose Stop reports
// an error, such as *backup.Manager.
type StartStopperWithError interface {
	Start(ctx context.Context) error
	Stop() error
}

// LifecycleService adapts Start/Stop to suture's Serve:
//  1. Start(ctx) launches the component
//  2. Serve blocks until ctx is canceled
//  3. Stop() waits for the component's goroutines
//
// A failing Start is returned so suture restarts the service with backoff.
type LifecycleService struct {
	name  string
	start func(ctx context.Context) error
	stop  func() error
}

// NewLifecycleService wraps a component whose Stop returns nothing.
func NewLifecycleService(name string, c StartStopper) *LifecycleService {
	return &LifecycleService{
		name:  name,
		start: c.Start,
		stop: func() error {
			c.Stop()
			return nil
		},
	}
}

// NewLifecycleServiceWithError wraps a component whose Stop returns an error.
func NewLifecycleServiceWithError(name string, c StartStopperWithError) *LifecycleService {
	return &LifecycleService{
		name:  name,
		start: c.Start,
		stop:  c.Stop,
	}
}

// Serve implements suture.Service.
func (s *LifecycleService) Serve(ctx context.Context) error {
	if err := s.start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()

	if err := s.stop(); err != nil {
		logging.Warn().Err(err).Str("service", s.name).Msg("Service stop reported an error")
	}
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *LifecycleService) String() string {
	return s.name
}

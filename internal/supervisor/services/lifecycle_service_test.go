// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*LifecycleService)(nil)

type mockComponent struct {
	startErr error
	stopErr  error
	starts   atomic.Int32
	stops    atomic.Int32
	started  chan struct{}
}

func newMockComponent() *mockComponent {
	return &mockComponent{started: make(chan struct{}, 8)}
}

func (m *mockComponent) Start(context.Context) error {
	m.starts.Add(1)
	select {
	case m.started <- struct{}{}:
	default:
	}
	return m.startErr
}

func (m *mockComponent) Stop() { m.stops.Add(1) }

// erroringComponent has the backup manager's Stop signature.
type erroringComponent struct{ *mockComponent }

func (e erroringComponent) Stop() error {
	e.stops.Add(1)
	return e.stopErr
}

func TestLifecycleServiceServe(t *testing.T) {
	tests := []struct {
		name      string
		build     func(c *mockComponent) *LifecycleService
		startErr  error
		stopErr   error
		wantStops int32
	}{
		{
			name:      "plain stop",
			build:     func(c *mockComponent) *LifecycleService { return NewLifecycleService("gc", c) },
			wantStops: 1,
		},
		{
			name: "stop with error is logged",
			build: func(c *mockComponent) *LifecycleService {
				return NewLifecycleServiceWithError("backup", erroringComponent{c})
			},
			stopErr:   errors.New("flush failed"),
			wantStops: 1,
		},
		{
			name:      "start failure",
			build:     func(c *mockComponent) *LifecycleService { return NewLifecycleService("prober", c) },
			startErr:  errors.New("already running"),
			wantStops: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newMockComponent()
			c.startErr = tt.startErr
			c.stopErr = tt.stopErr
			svc := tt.build(c)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			errCh := make(chan error, 1)
			go func() { errCh <- svc.Serve(ctx) }()

			<-c.started
			if tt.startErr == nil {
				cancel()
			}

			select {
			case err := <-errCh:
				switch {
				case tt.startErr != nil && !errors.Is(err, tt.startErr):
					t.Errorf("err = %v, want %v", err, tt.startErr)
				case tt.startErr == nil && !errors.Is(err, context.Canceled):
					t.Errorf("err = %v, want context.Canceled", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Serve did not return")
			}
			if got := c.stops.Load(); got != tt.wantStops {
				t.Errorf("stops = %d, want %d", got, tt.wantStops)
			}
		})
	}
}

func TestLifecycleServiceRestartedBySupervisor(t *testing.T) {
	c := newMockComponent()
	c.startErr = errors.New("remote unreachable")
	svc := NewLifecycleService("identity-gate", c)
	if svc.String() != "identity-gate" {
		t.Errorf("name = %q", svc.String())
	}

	sup := suture.New("test", suture.Spec{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(svc)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	deadline := time.Now().Add(3 * time.Second)
	for c.starts.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("supervisor did not restart the service")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-errCh
}

// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

// Package syncer pushes locally written weeks to the remote store. A
// Scheduler drains the pending queue on a fixed timer, on reconnect and
// on demand; Engine wires the cache, queue and scheduler together.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/identity"
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/metrics"
	"github.com/tomtom215/elevation-loom/internal/models"
	"github.com/tomtom215/elevation-loom/internal/pending"
)

// Queue is the subset of the pending queue the scheduler drains.
type Queue interface {
	PeekAll(ctx context.Context) ([]models.PendingSyncItem, error)
	CompareAndDequeue(ctx context.Context, item models.PendingSyncItem, reason string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// WeekLoader reads the current local copy of a week.
type WeekLoader interface {
	Load(ctx context.Context, isoYear, isoWeek int) (models.WeekData, error)
}

// Pusher uploads one week to the remote store.
type Pusher interface {
	Push(ctx context.Context, payload models.WeekPayload) error
}

// Gate reports identity readiness.
type Gate interface {
	IsReady() bool
	WaitUntilReady(ctx context.Context, timeout time.Duration) error
}

// Connectivity reports whether the remote store is reachable.
type Connectivity interface {
	IsOnline() bool
}

// PassListener is told about every completed pass.
type PassListener func(PassResult)

// Scheduler drains the pending queue. At most one pass runs at a time;
// triggers arriving while a pass owns the scheduler are dropped. While
// items are pending a fixed-interval timer drives passes; the timer is
// cancelled when the queue drains.
type Scheduler struct {
	queue  Queue
	weeks  WeekLoader
	pusher Pusher
	gate   Gate
	conn   Connectivity
	cfg    config.SyncConfig

	mu         sync.Mutex
	state      State
	timerStop  chan struct{} // non-nil while the timer is armed
	listeners  []PassListener
	running    bool
	baseCtx    context.Context
	cancel     context.CancelFunc
	lastResult *PassResult

	wg sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithConnectivity makes passes skip with ErrOffline while conn reports offline.
func WithConnectivity(conn Connectivity) SchedulerOption {
	return func(s *Scheduler) { s.conn = conn }
}

// NewScheduler creates a Scheduler. Zero config values fall back to a 30s
// interval and a 5s identity wait.
func NewScheduler(q Queue, weeks WeekLoader, pusher Pusher, gate Gate, cfg config.SyncConfig, opts ...SchedulerOption) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.AuthWaitTimeout <= 0 {
		cfg.AuthWaitTimeout = 5 * time.Second
	}
	s := &Scheduler{
		queue:  q,
		weeks:  weeks,
		pusher: pusher,
		gate:   gate,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.SetSchedulerState(int(StateIdle))
	return s
}

// OnPass registers fn to receive every pass result.
func (s *Scheduler) OnPass(fn PassListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TimerArmed reports whether the periodic timer is active.
func (s *Scheduler) TimerArmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timerStop != nil
}

// LastResult returns the most recent pass result, if any.
func (s *Scheduler) LastResult() (PassResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastResult == nil {
		return PassResult{}, false
	}
	return *s.lastResult, true
}

// Start enables timer and online triggers. If the persisted queue already
// holds items the timer is armed right away, which runs an immediate pass.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	n, err := s.queue.Count(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Could not read pending queue at scheduler start")
	}

	s.mu.Lock()
	if n > 0 {
		s.armLocked()
	}
	s.mu.Unlock()

	logging.Info().
		Int("pending", n).
		Dur("interval", s.cfg.Interval).
		Msg("Sync scheduler started")
	return nil
}

// Stop cancels the timer and waits for running passes to exit. A pass
// stops before its next item; an in-flight push is not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.disarmLocked()
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	if !s.state.busy() {
		s.setStateLocked(StateIdle)
	}
	s.mu.Unlock()
	logging.Info().Msg("Sync scheduler stopped")
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NotifyEnqueued arms the timer if it is not already armed. It is
// installed as the pending queue's enqueue hook.
func (s *Scheduler) NotifyEnqueued(item models.PendingSyncItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if s.timerStop == nil {
		logging.Debug().Str("week", item.WeekKey).Msg("Pending item added, arming sync timer")
		s.armLocked()
	}
}

// NotifyOnline handles connectivity changes. Going online triggers an
// immediate pass and arms the timer if items remain.
func (s *Scheduler) NotifyOnline(online bool) {
	if !online {
		return
	}
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	ctx := s.baseCtx
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		_, err := s.RunPass(ctx, TriggerOnline)
		if err != nil && !errors.Is(err, ErrPassInProgress) && !errors.Is(err, context.Canceled) {
			logging.Warn().Err(err).Msg("Sync pass after reconnect did not run")
		}
	}()
}

// TriggerManualSync runs a pass on the caller's goroutine and reports the
// outcome as a user-facing message.
func (s *Scheduler) TriggerManualSync(ctx context.Context) ManualSyncResult {
	res, err := s.RunPass(ctx, TriggerManual)
	switch {
	case err == nil:
		return manualResult(res.Remaining)
	case errors.Is(err, ErrOffline), errors.Is(err, ErrPassInProgress), errors.Is(err, identity.ErrAuthTimeout):
		n, cerr := s.queue.Count(ctx)
		if cerr != nil {
			return ManualSyncResult{Success: false, Message: MessageSyncFailed}
		}
		return manualResult(n)
	default:
		logging.Ctx(ctx).Error().Err(err).Msg("Manual sync failed")
		return ManualSyncResult{Success: false, Message: MessageSyncFailed}
	}
}

func manualResult(pendingCount int) ManualSyncResult {
	if pendingCount == 0 {
		return ManualSyncResult{Success: true, Message: MessageAllSynced}
	}
	return ManualSyncResult{Success: false, Message: PendingMessage(pendingCount), Pending: pendingCount}
}

// RunPass runs one drain pass. It returns ErrPassInProgress when another
// pass owns the scheduler, ErrOffline when the remote is unreachable and
// identity.ErrAuthTimeout when the gate stays unready past the wait.
func (s *Scheduler) RunPass(ctx context.Context, trigger string) (PassResult, error) {
	ctx = logging.ContextWithLogger(logging.ContextWithNewCorrelationID(ctx), logging.WithComponent("sync-scheduler"))
	log := logging.Ctx(ctx).With().Str("trigger", trigger).Logger()

	s.mu.Lock()
	if s.state.busy() {
		s.mu.Unlock()
		metrics.RecordSyncPass("in_progress", 0, 0)
		log.Debug().Msg("Sync pass already running, trigger dropped")
		return PassResult{}, ErrPassInProgress
	}
	if s.conn != nil && !s.conn.IsOnline() {
		s.mu.Unlock()
		metrics.RecordSyncPass("offline", 0, 0)
		log.Debug().Msg("Offline, sync pass skipped")
		return PassResult{}, ErrOffline
	}

	if s.gate != nil && !s.gate.IsReady() {
		s.setStateLocked(StateAuthPending)
		s.mu.Unlock()

		err := s.gate.WaitUntilReady(ctx, s.cfg.AuthWaitTimeout)

		s.mu.Lock()
		if err != nil {
			s.setStateLocked(s.restingStateLocked())
			s.mu.Unlock()
			outcome := "error"
			if errors.Is(err, identity.ErrAuthTimeout) {
				outcome = "auth_timeout"
			}
			metrics.RecordSyncPass(outcome, 0, 0)
			log.Warn().Err(err).Msg("Identity not ready, sync pass skipped")
			return PassResult{}, err
		}
	}
	s.setStateLocked(StateSyncing)
	s.mu.Unlock()

	res, err := s.drain(ctx, trigger)

	s.mu.Lock()
	remaining, cerr := s.queue.Count(ctx)
	if cerr != nil && err == nil {
		err = cerr
	}
	res.Remaining = remaining
	switch {
	case err != nil:
		s.setStateLocked(s.restingStateLocked())
	case remaining == 0:
		s.disarmLocked()
		s.setStateLocked(StateIdle)
	default:
		if s.running && s.timerStop == nil {
			s.armTickerLocked(false)
		}
		s.setStateLocked(StateWaiting)
	}
	s.lastResult = &res
	listeners := append([]PassListener(nil), s.listeners...)
	s.mu.Unlock()

	if err != nil {
		metrics.RecordSyncPass("error", res.Duration, remaining)
		log.Error().Err(err).Msg("Sync pass failed")
		return res, err
	}

	metrics.RecordSyncPass("completed", res.Duration, remaining)
	log.Info().
		Int("total", res.TotalCount).
		Int("synced", res.SuccessCount).
		Int("empty", res.EmptyCount).
		Int("failed", res.FailureCount).
		Int("remaining", remaining).
		Dur("duration", res.Duration).
		Msg("Sync pass completed")

	for _, fn := range listeners {
		fn(res)
	}
	return res, nil
}

// drain pushes every item in a snapshot of the queue. An item is dequeued
// only if it is unchanged since the snapshot, so a week re-written during
// its push stays queued for the next pass.
func (s *Scheduler) drain(ctx context.Context, trigger string) (PassResult, error) {
	start := time.Now()
	res := PassResult{
		Trigger:       trigger,
		CorrelationID: logging.CorrelationIDFromContext(ctx),
		StartedAt:     start,
	}

	items, err := s.queue.PeekAll(ctx)
	if err != nil {
		res.Duration = time.Since(start)
		return res, err
	}
	res.TotalCount = len(items)

	log := logging.Ctx(ctx)
	// Stop ends a pass between items; a push already started runs to
	// completion and its dequeue is recorded.
	pushCtx := context.WithoutCancel(ctx)
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}

		week, err := s.weeks.Load(ctx, item.IsoYear, item.IsoWeek)
		if err != nil {
			res.FailureCount++
			metrics.RecordPush("load_error")
			log.Warn().Err(err).Str("week", item.WeekKey).Msg("Could not load week for sync, keeping it queued")
			continue
		}

		if week.IsEmpty() {
			if _, err := s.queue.CompareAndDequeue(ctx, item, pending.ReasonEmpty); err != nil {
				res.FailureCount++
				log.Warn().Err(err).Str("week", item.WeekKey).Msg("Could not dequeue empty week")
				continue
			}
			res.EmptyCount++
			metrics.RecordPush("skipped_empty")
			continue
		}

		if err := s.pusher.Push(pushCtx, week.Payload()); err != nil {
			res.FailureCount++
			metrics.RecordPush("failure")
			log.Warn().Err(err).Str("week", item.WeekKey).Msg("Push failed, will retry next pass")
			continue
		}
		metrics.RecordPush("success")
		res.SuccessCount++

		removed, err := s.queue.CompareAndDequeue(pushCtx, item, pending.ReasonSynced)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("week", item.WeekKey).Msg("Pushed week could not be dequeued, it will be pushed again")
		case !removed:
			log.Debug().Str("week", item.WeekKey).Msg("Week changed during push, keeping it queued")
		}
	}

	res.Duration = time.Since(start)
	return res, nil
}

// armLocked arms the timer and runs an immediate pass on it.
func (s *Scheduler) armLocked() {
	s.armTickerLocked(true)
}

func (s *Scheduler) armTickerLocked(immediate bool) {
	if s.timerStop != nil || !s.running {
		return
	}
	stop := make(chan struct{})
	s.timerStop = stop
	if s.state == StateIdle {
		s.setStateLocked(StateWaiting)
	}
	s.wg.Add(1)
	go s.tick(s.baseCtx, stop, immediate)
}

// disarmLocked cancels the timer. Safe to call from the timer goroutine.
func (s *Scheduler) disarmLocked() {
	if s.timerStop == nil {
		return
	}
	close(s.timerStop)
	s.timerStop = nil
}

func (s *Scheduler) tick(ctx context.Context, stop chan struct{}, immediate bool) {
	defer s.wg.Done()

	if immediate {
		s.timerPass(ctx)
	}
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.timerPass(ctx)
		}
	}
}

func (s *Scheduler) timerPass(ctx context.Context) {
	_, err := s.RunPass(ctx, TriggerTimer)
	switch {
	case err == nil,
		errors.Is(err, ErrPassInProgress),
		errors.Is(err, ErrOffline),
		errors.Is(err, identity.ErrAuthTimeout),
		errors.Is(err, context.Canceled):
	default:
		logging.Warn().Err(err).Msg("Scheduled sync pass failed")
	}
}

// restingStateLocked is the state to return to after a pass ends early.
func (s *Scheduler) restingStateLocked() State {
	if s.timerStop != nil {
		return StateWaiting
	}
	return StateIdle
}

func (s *Scheduler) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.state = st
	metrics.SetSchedulerState(int(st))
}

// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package syncer

import (
	"context"

	"github.com/tomtom215/elevation-loom/internal/cache"
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/pending"
)

// Engine is the façade the rest of the application talks to. It wires the
// cache write hook to the pending queue and the queue to the scheduler.
type Engine struct {
	cache *cache.LocalCache
	queue *pending.Queue
	sched *Scheduler
}

// NewEngine connects c, q and sched. After this every successful local
// write enqueues its week and every enqueue arms the scheduler.
func NewEngine(c *cache.LocalCache, q *pending.Queue, sched *Scheduler) *Engine {
	c.SetWriteHook(q.Enqueue)
	q.OnEnqueue(sched.NotifyEnqueued)
	return &Engine{cache: c, queue: q, sched: sched}
}

// Cache returns the local cache.
func (e *Engine) Cache() *cache.LocalCache { return e.cache }

// Scheduler returns the sync scheduler.
func (e *Engine) Scheduler() *Scheduler { return e.sched }

// AddToPendingSync marks a week as needing a push.
func (e *Engine) AddToPendingSync(ctx context.Context, isoYear, isoWeek int) error {
	return e.queue.Enqueue(ctx, isoYear, isoWeek)
}

// TriggerManualSync runs a pass now and reports the result.
func (e *Engine) TriggerManualSync(ctx context.Context) ManualSyncResult {
	return e.sched.TriggerManualSync(ctx)
}

// GetPendingSyncCount returns the number of weeks awaiting sync.
func (e *Engine) GetPendingSyncCount(ctx context.Context) (int, error) {
	return e.queue.Count(ctx)
}

// ClearPendingSync drops every pending item without pushing it.
func (e *Engine) ClearPendingSync(ctx context.Context) error {
	if err := e.queue.Clear(ctx); err != nil {
		return err
	}
	logging.Ctx(ctx).Warn().Msg("Pending sync queue cleared by user")
	return nil
}

// InitSyncRetry starts the scheduler; pending items left from a previous
// run are pushed immediately.
func (e *Engine) InitSyncRetry(ctx context.Context) error {
	return e.sched.Start(ctx)
}

// Stop stops the scheduler.
func (e *Engine) Stop() {
	e.sched.Stop()
}

// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package pending

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/elevation-loom/internal/isoweek"
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/metrics"
	"github.com/tomtom215/elevation-loom/internal/models"
	"github.com/tomtom215/elevation-loom/internal/store"
)

// Dequeue reasons reported to metrics.
const (
	ReasonSynced  = "synced"
	ReasonEmpty   = "empty"
	ReasonManual  = "manual"
	ReasonCleared = "cleared"
)

// EnqueueHook runs after an enqueue has been persisted.
type EnqueueHook func(item models.PendingSyncItem)

// Queue is the durable set of weeks awaiting a successful push.
//
// The whole queue is one blob under models.PendingSyncKey. Every mutation
// is a read-modify-write of that blob inside a single store transaction,
// serialized by mu, so concurrent enqueues never lose an entry.
type Queue struct {
	store *store.Store
	key   string
	now   func() time.Time

	mu     sync.Mutex
	hookMu sync.RWMutex
	hook   EnqueueHook
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithKey stores the queue under a different key.
func WithKey(key string) Option {
	return func(q *Queue) { q.key = key }
}

// New creates a Queue persisted in s.
func New(s *store.Store, opts ...Option) *Queue {
	q := &Queue{
		store: s,
		key:   models.PendingSyncKey,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// OnEnqueue registers fn to run after every successful Enqueue.
// The scheduler uses it to arm its timer.
func (q *Queue) OnEnqueue(fn EnqueueHook) {
	q.hookMu.Lock()
	q.hook = fn
	q.hookMu.Unlock()
}

// Enqueue records the week as pending. An existing entry has its
// LastAttempt refreshed and RetryCount incremented; a new entry is
// appended with RetryCount 0.
func (q *Queue) Enqueue(ctx context.Context, isoYear, isoWeek int) error {
	if err := isoweek.Validate(isoYear, isoWeek); err != nil {
		return err
	}
	weekKey := models.WeekKey(isoYear, isoWeek)

	var (
		item      models.PendingSyncItem
		refreshed bool
		depth     int
	)
	err := q.mutate(ctx, func(pq *models.PendingSyncQueue, now time.Time) bool {
		if i := pq.IndexOf(weekKey); i >= 0 {
			pq.Items[i].LastAttempt = now
			pq.Items[i].RetryCount++
			item = pq.Items[i]
			refreshed = true
		} else {
			item = models.PendingSyncItem{
				WeekKey:     weekKey,
				IsoYear:     isoYear,
				IsoWeek:     isoWeek,
				LastAttempt: now,
			}
			pq.Items = append(pq.Items, item)
		}
		depth = len(pq.Items)
		return true
	})
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", weekKey, err)
	}

	metrics.RecordEnqueue(refreshed)
	metrics.SetPendingDepth(depth)
	logging.Debug().
		Str("week_key", weekKey).
		Int("retry_count", item.RetryCount).
		Int("pending", depth).
		Msg("Week queued for sync")

	q.hookMu.RLock()
	hook := q.hook
	q.hookMu.RUnlock()
	if hook != nil {
		hook(item)
	}
	return nil
}

// Dequeue removes the week. Removing an absent week is a no-op.
func (q *Queue) Dequeue(ctx context.Context, isoYear, isoWeek int) error {
	return q.DequeueKey(ctx, models.WeekKey(isoYear, isoWeek), ReasonManual)
}

// DequeueKey removes weekKey, labelling the removal with reason.
func (q *Queue) DequeueKey(ctx context.Context, weekKey, reason string) error {
	removed := false
	depth := 0
	err := q.mutate(ctx, func(pq *models.PendingSyncQueue, _ time.Time) bool {
		removed = pq.Remove(weekKey)
		depth = len(pq.Items)
		return removed
	})
	if err != nil {
		return fmt.Errorf("dequeue %s: %w", weekKey, err)
	}
	if removed {
		metrics.RecordDequeue(reason, 1)
		metrics.SetPendingDepth(depth)
	}
	return nil
}

// CompareAndDequeue removes item only if the stored entry still has the
// same RetryCount and LastAttempt, i.e. the week was not re-enqueued while
// the caller was pushing the snapshot it took. It reports whether the
// entry was removed.
func (q *Queue) CompareAndDequeue(ctx context.Context, item models.PendingSyncItem, reason string) (bool, error) {
	removed := false
	depth := 0
	err := q.mutate(ctx, func(pq *models.PendingSyncQueue, _ time.Time) bool {
		i := pq.IndexOf(item.WeekKey)
		if i < 0 {
			depth = len(pq.Items)
			return false
		}
		cur := pq.Items[i]
		if cur.RetryCount != item.RetryCount || !cur.LastAttempt.Equal(item.LastAttempt) {
			depth = len(pq.Items)
			return false
		}
		pq.Items = append(pq.Items[:i], pq.Items[i+1:]...)
		removed = true
		depth = len(pq.Items)
		return true
	})
	if err != nil {
		return false, fmt.Errorf("dequeue %s: %w", item.WeekKey, err)
	}
	if removed {
		metrics.RecordDequeue(reason, 1)
		metrics.SetPendingDepth(depth)
	}
	return removed, nil
}

// Clear empties the queue unconditionally.
func (q *Queue) Clear(ctx context.Context) error {
	n := 0
	err := q.mutate(ctx, func(pq *models.PendingSyncQueue, _ time.Time) bool {
		n = len(pq.Items)
		pq.Items = []models.PendingSyncItem{}
		return true
	})
	if err != nil {
		return fmt.Errorf("clear pending queue: %w", err)
	}
	metrics.RecordDequeue(ReasonCleared, n)
	metrics.SetPendingDepth(0)
	logging.Info().Int("removed", n).Msg("Pending sync queue cleared")
	return nil
}

// PeekAll returns a snapshot of the queue in insertion order.
func (q *Queue) PeekAll(ctx context.Context) ([]models.PendingSyncItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pq, err := q.read(ctx)
	if err != nil {
		return nil, err
	}
	return pq.Snapshot(), nil
}

// Count returns the number of pending weeks.
func (q *Queue) Count(ctx context.Context) (int, error) {
	items, err := q.PeekAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// mutate applies fn to the decoded queue and persists the result when fn
// reports a change. LastUpdated is stamped on every persisted change.
func (q *Queue) mutate(ctx context.Context, fn func(pq *models.PendingSyncQueue, now time.Time) bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.store.Update(ctx, q.key, func(current []byte) ([]byte, error) {
		pq := q.decode(current)
		now := q.now().UTC()
		if !fn(&pq, now) {
			return current, nil
		}
		pq.LastUpdated = now
		return json.Marshal(pq)
	})
}

func (q *Queue) read(ctx context.Context) (models.PendingSyncQueue, error) {
	data, err := q.store.GetRaw(ctx, q.key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.PendingSyncQueue{Items: []models.PendingSyncItem{}}, nil
		}
		return models.PendingSyncQueue{}, fmt.Errorf("read pending queue: %w", err)
	}
	return q.decode(data), nil
}

// decode parses the stored blob. A missing or unreadable blob yields an
// empty queue; the next mutation overwrites it.
func (q *Queue) decode(data []byte) models.PendingSyncQueue {
	pq := models.PendingSyncQueue{Items: []models.PendingSyncItem{}}
	if len(data) == 0 {
		return pq
	}
	if err := json.Unmarshal(data, &pq); err != nil {
		logging.Warn().Err(err).Str("key", q.key).Msg("Pending sync queue unreadable, starting empty")
		return models.PendingSyncQueue{Items: []models.PendingSyncItem{}}
	}
	if pq.Items == nil {
		pq.Items = []models.PendingSyncItem{}
	}
	return pq
}

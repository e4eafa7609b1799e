// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/elevation-loom/internal/isoweek"
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/metrics"
	"github.com/tomtom215/elevation-loom/internal/models"
	"github.com/tomtom215/elevation-loom/internal/store"
)

// weekPrefix namespaces week records in the shared store.
const weekPrefix = "week:"

// ErrCache matches every *CacheError through errors.Is.
var ErrCache = errors.New("local cache error")

// ErrNoDailyLog is returned by DeleteDailyLog when the date has no record.
var ErrNoDailyLog = errors.New("no daily log for date")

// CacheError is a local storage read, write, or serialization failure.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// Is reports ErrCache as a match.
func (e *CacheError) Is(target error) bool { return target == ErrCache }

// WriteHook runs after every successful local write of a week.
// The sync engine registers the pending queue's Enqueue here.
type WriteHook func(ctx context.Context, isoYear, isoWeek int) error

// PlanPart selects which plan field SaveDailyPlan updates.
type PlanPart int

const (
	PlanPart1 PlanPart = iota + 1
	PlanPart2
)

// DailyLogInput is the user-entered data for one day.
type DailyLogInput struct {
	Date      string
	Part1     *int
	Part2     *int
	Condition *models.Condition
	Timezone  string
}

// LocalCache stores WeekData records keyed by ISO week. Operations on the
// same week are serialized; distinct weeks proceed independently. Reads go
// through a small in-memory LRU that is updated under the same week lock.
type LocalCache struct {
	store *store.Store
	locks *keyedMutex
	mem   *lruCache[models.WeekData]
	hook  WriteHook
	now   func() time.Time
}

// Option configures a LocalCache.
type Option func(*LocalCache)

// WithWriteHook registers fn to run after each successful write.
func WithWriteHook(fn WriteHook) Option {
	return func(c *LocalCache) { c.hook = fn }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *LocalCache) { c.now = now }
}

// WithMemoryCache sets the in-memory LRU capacity and TTL.
func WithMemoryCache(capacity int, ttl time.Duration) Option {
	return func(c *LocalCache) { c.mem = newLRUCache[models.WeekData](capacity, ttl) }
}

// New creates a LocalCache backed by s.
func New(s *store.Store, opts ...Option) *LocalCache {
	c := &LocalCache{
		store: s,
		locks: newKeyedMutex(),
		mem:   newLRUCache[models.WeekData](64, 10*time.Minute),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetWriteHook replaces the write hook. Used during wiring when the queue
// is constructed after the cache.
func (c *LocalCache) SetWriteHook(fn WriteHook) {
	c.hook = fn
}

func storeKey(weekKey string) string {
	return weekPrefix + weekKey
}

// Load returns the week record, or the empty sentinel when none exists.
func (c *LocalCache) Load(ctx context.Context, isoYear, isoWeek int) (models.WeekData, error) {
	key := models.WeekKey(isoYear, isoWeek)
	unlock := c.locks.Lock(key)
	defer unlock()
	return c.load(ctx, isoYear, isoWeek)
}

// load must be called with the week lock held.
func (c *LocalCache) load(ctx context.Context, isoYear, isoWeek int) (models.WeekData, error) {
	key := models.WeekKey(isoYear, isoWeek)
	if w, ok := c.mem.Get(key); ok {
		metrics.RecordCacheRead(true)
		return cloneWeek(w), nil
	}

	var w models.WeekData
	found, err := c.store.Get(ctx, storeKey(key), &w)
	if err != nil {
		metrics.RecordCacheError("load")
		return models.WeekData{}, &CacheError{Op: "load", Key: key, Err: err}
	}
	metrics.RecordCacheRead(found)
	if !found {
		return models.EmptyWeek(isoYear, isoWeek), nil
	}
	if w.DailyLogs == nil {
		w.DailyLogs = []models.DailyLog{}
	}
	c.mem.Add(key, cloneWeek(w))
	return w, nil
}

// Save replaces the week's target and logs with payload. UpdatedAt is set
// to now; CreatedAt is preserved when a record already exists.
func (c *LocalCache) Save(ctx context.Context, payload models.WeekPayload) error {
	key := payload.Key()
	unlock := c.locks.Lock(key)
	defer unlock()

	if _, err := c.saveLocked(ctx, payload, "week"); err != nil {
		return err
	}
	return c.afterWrite(ctx, payload.IsoYear, payload.IsoWeek)
}

// saveLocked must be called with the week lock held.
func (c *LocalCache) saveLocked(ctx context.Context, payload models.WeekPayload, kind string) (models.WeekData, error) {
	key := payload.Key()
	existing, err := c.load(ctx, payload.IsoYear, payload.IsoWeek)
	if err != nil {
		return models.WeekData{}, err
	}

	now := c.now().UTC()
	created := now
	if !existing.CreatedAt.IsZero() && !existing.CreatedAt.Equal(models.Epoch) {
		created = existing.CreatedAt
	}

	logs := make([]models.DailyLog, len(payload.DailyLogs))
	copy(logs, payload.DailyLogs)
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].Date < logs[j].Date })

	w := models.WeekData{
		IsoYear:   payload.IsoYear,
		IsoWeek:   payload.IsoWeek,
		Target:    payload.Target,
		DailyLogs: logs,
		CreatedAt: created,
		UpdatedAt: now,
	}

	if err := c.store.Set(ctx, storeKey(key), w); err != nil {
		c.mem.Remove(key)
		metrics.RecordCacheError("save")
		return models.WeekData{}, &CacheError{Op: "save", Key: key, Err: err}
	}
	c.mem.Add(key, cloneWeek(w))
	metrics.RecordCacheWrite(kind)
	return w, nil
}

func (c *LocalCache) afterWrite(ctx context.Context, isoYear, isoWeek int) error {
	if c.hook == nil {
		return nil
	}
	// The record is already stored; the enqueue must survive a caller
	// that goes away between the two writes.
	if err := c.hook(context.WithoutCancel(ctx), isoYear, isoWeek); err != nil {
		key := models.WeekKey(isoYear, isoWeek)
		logging.Error().Err(err).Str("week_key", key).Msg("Local write saved but enqueue failed")
		return &CacheError{Op: "enqueue", Key: key, Err: err}
	}
	return nil
}

// SetTarget sets the week's target value, keeping its daily logs.
func (c *LocalCache) SetTarget(ctx context.Context, isoYear, isoWeek, value int) (models.WeekData, error) {
	key := models.WeekKey(isoYear, isoWeek)
	unlock := c.locks.Lock(key)
	defer unlock()

	w, err := c.load(ctx, isoYear, isoWeek)
	if err != nil {
		return models.WeekData{}, err
	}
	p := w.Payload()
	p.Target = models.Target{Value: value}

	saved, err := c.saveLocked(ctx, p, "target")
	if err != nil {
		return models.WeekData{}, err
	}
	return saved, c.afterWrite(ctx, isoYear, isoWeek)
}

// SaveDailyLog upserts the day's elevation parts and condition.
// The total is recomputed from the parts, the owning week is derived from
// the date, and existing plan values and created_at are preserved.
func (c *LocalCache) SaveDailyLog(ctx context.Context, in DailyLogInput) (models.WeekData, error) {
	info, err := weekOf(in.Date)
	if err != nil {
		return models.WeekData{}, err
	}
	return c.mutateDay(ctx, info, in.Date, "daily_log", func(d *models.DailyLog) {
		d.ElevationPart1 = in.Part1
		d.ElevationPart2 = in.Part2
		d.RecomputeTotal()
		d.SubjectiveCondition = in.Condition
		if in.Timezone != "" {
			d.Timezone = in.Timezone
		}
	})
}

// SaveDailyPlan updates one plan part for the date, leaving every other
// field of the day as stored.
func (c *LocalCache) SaveDailyPlan(ctx context.Context, date string, part PlanPart, value *int) (models.WeekData, error) {
	if part != PlanPart1 && part != PlanPart2 {
		return models.WeekData{}, fmt.Errorf("unknown plan part %d", part)
	}
	info, err := weekOf(date)
	if err != nil {
		return models.WeekData{}, err
	}
	return c.mutateDay(ctx, info, date, "daily_plan", func(d *models.DailyLog) {
		if part == PlanPart1 {
			d.DailyPlanPart1 = value
		} else {
			d.DailyPlanPart2 = value
		}
	})
}

// DeleteDailyLog removes the day's record from its week.
func (c *LocalCache) DeleteDailyLog(ctx context.Context, date string) (models.WeekData, error) {
	info, err := weekOf(date)
	if err != nil {
		return models.WeekData{}, err
	}
	key := info.Key()
	unlock := c.locks.Lock(key)
	defer unlock()

	w, err := c.load(ctx, info.IsoYear, info.IsoWeek)
	if err != nil {
		return models.WeekData{}, err
	}
	p := w.Payload()
	idx := indexOfDate(p.DailyLogs, date)
	if idx < 0 {
		return models.WeekData{}, fmt.Errorf("%w: %s", ErrNoDailyLog, date)
	}
	p.DailyLogs = append(p.DailyLogs[:idx:idx], p.DailyLogs[idx+1:]...)

	saved, err := c.saveLocked(ctx, p, "delete")
	if err != nil {
		return models.WeekData{}, err
	}
	return saved, c.afterWrite(ctx, info.IsoYear, info.IsoWeek)
}

// GetDailyLog returns the stored record for date, if any.
func (c *LocalCache) GetDailyLog(ctx context.Context, date string) (*models.DailyLog, error) {
	info, err := weekOf(date)
	if err != nil {
		return nil, err
	}
	w, err := c.Load(ctx, info.IsoYear, info.IsoWeek)
	if err != nil {
		return nil, err
	}
	if idx := indexOfDate(w.DailyLogs, date); idx >= 0 {
		d := w.DailyLogs[idx]
		return &d, nil
	}
	return nil, nil
}

func (c *LocalCache) mutateDay(ctx context.Context, info isoweek.WeekInfo, date, kind string, apply func(*models.DailyLog)) (models.WeekData, error) {
	key := info.Key()
	unlock := c.locks.Lock(key)
	defer unlock()

	w, err := c.load(ctx, info.IsoYear, info.IsoWeek)
	if err != nil {
		return models.WeekData{}, err
	}
	p := w.Payload()
	logs := make([]models.DailyLog, len(p.DailyLogs))
	copy(logs, p.DailyLogs)

	now := c.now().UTC()
	idx := indexOfDate(logs, date)
	var day models.DailyLog
	if idx >= 0 {
		day = logs[idx]
	} else {
		day = models.DailyLog{Date: date, CreatedAt: now, Timezone: models.DefaultTimezone}
	}
	apply(&day)
	day.IsoYear = info.IsoYear
	day.WeekNumber = info.IsoWeek
	if day.Timezone == "" {
		day.Timezone = models.DefaultTimezone
	}
	if day.CreatedAt.IsZero() {
		day.CreatedAt = now
	}
	day.UpdatedAt = now

	if idx >= 0 {
		logs[idx] = day
	} else {
		logs = append(logs, day)
	}
	p.DailyLogs = logs

	saved, err := c.saveLocked(ctx, p, kind)
	if err != nil {
		return models.WeekData{}, err
	}
	return saved, c.afterWrite(ctx, info.IsoYear, info.IsoWeek)
}

// ListWeeks returns every stored week, oldest key first.
func (c *LocalCache) ListWeeks(ctx context.Context) ([]models.WeekData, error) {
	var weeks []models.WeekData
	err := c.store.IteratePrefix(ctx, weekPrefix, func(key string, value []byte) error {
		var w models.WeekData
		if err := json.Unmarshal(value, &w); err != nil {
			return fmt.Errorf("%s: %w", strings.TrimPrefix(key, weekPrefix), err)
		}
		weeks = append(weeks, w)
		return nil
	})
	if err != nil {
		metrics.RecordCacheError("list")
		return nil, &CacheError{Op: "list", Key: weekPrefix + "*", Err: err}
	}
	return weeks, nil
}

// Invalidate drops every in-memory entry. Called after a store restore.
func (c *LocalCache) Invalidate() {
	c.mem.Clear()
}

func weekOf(date string) (isoweek.WeekInfo, error) {
	t, err := isoweek.ParseDate(date, time.UTC)
	if err != nil {
		return isoweek.WeekInfo{}, err
	}
	info := isoweek.DeriveWeekInfo(t)
	if err := isoweek.Validate(info.IsoYear, info.IsoWeek); err != nil {
		return isoweek.WeekInfo{}, err
	}
	return info, nil
}

func indexOfDate(logs []models.DailyLog, date string) int {
	for i := range logs {
		if logs[i].Date == date {
			return i
		}
	}
	return -1
}

func cloneWeek(w models.WeekData) models.WeekData {
	logs := make([]models.DailyLog, len(w.DailyLogs))
	copy(logs, w.DailyLogs)
	w.DailyLogs = logs
	return w
}

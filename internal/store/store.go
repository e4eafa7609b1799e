// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

// Package store wraps the local BadgerDB instance shared by the week cache,
// the pending sync queue, the identity token, and the remote store's
// document collection.
//
// Values are JSON documents (goccy/go-json). Keys are plain strings with a
// namespace prefix ("week:", "doc:", ...). Every write runs in its own
// Badger transaction and is fsynced when SyncWrites is enabled.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/elevation-loom/internal/config"
	"github.com/tomtom215/elevation-loom/internal/logging"
	"github.com/tomtom215/elevation-loom/internal/metrics"
)

// Errors
var (
	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("store is closed")

	// ErrNotFound is returned by GetRaw when a key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrEmptyKey is returned when an empty key is provided.
	ErrEmptyKey = errors.New("key cannot be empty")
)

// maxConflictRetries bounds retries of Update on badger.ErrConflict.
const maxConflictRetries = 5

// Store is a small key/value facade over BadgerDB.
type Store struct {
	db     *badger.DB
	config config.StoreConfig

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the BadgerDB database at cfg.Path.
func Open(cfg config.StoreConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("open store: %w", &config.ConfigError{Field: "store.path", Message: "path is required"})
	}
	return open(cfg, badger.DefaultOptions(cfg.Path))
}

// OpenInMemory opens a non-persistent store. Used by tests and by
// backup verification.
func OpenInMemory() (*Store, error) {
	cfg := config.StoreConfig{
		MemTableSize:     16 << 20,
		ValueLogFileSize: 16 << 20,
		NumCompactors:    2,
		GCRatio:          0.5,
		CloseTimeout:     10 * time.Second,
	}
	return open(cfg, badger.DefaultOptions("").WithInMemory(true))
}

func open(cfg config.StoreConfig, opts badger.Options) (*Store, error) {
	if cfg.NumCompactors < 2 {
		cfg.NumCompactors = 2 // BadgerDB minimum
	}
	if cfg.GCRatio == 0 {
		cfg.GCRatio = 0.5
	}
	if cfg.CloseTimeout == 0 {
		cfg.CloseTimeout = 30 * time.Second
	}

	opts.SyncWrites = cfg.SyncWrites
	opts.NumCompactors = cfg.NumCompactors
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	if !opts.InMemory {
		logging.Info().
			Str("path", cfg.Path).
			Bool("sync_writes", cfg.SyncWrites).
			Bool("compression", cfg.Compression).
			Msg("Store opened")
	}

	return &Store{db: db, config: cfg}, nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// GetRaw returns the raw value for key, or ErrNotFound.
func (s *Store) GetRaw(ctx context.Context, key string) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordStoreOperation("get", time.Since(start), err)
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	metrics.RecordStoreOperation("get", time.Since(start), nil)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get decodes the JSON value for key into v. found is false when the key
// does not exist; v is left untouched in that case.
func (s *Store) Get(ctx context.Context, key string, v any) (found bool, err error) {
	data, err := s.GetRaw(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return true, nil
}

// Set encodes v as JSON and stores it under key.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.SetRaw(ctx, key, data)
}

// SetRaw stores data under key.
func (s *Store) SetRaw(ctx context.Context, key string, data []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	metrics.RecordStoreOperation("set", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Update runs a read-modify-write of key inside one transaction. fn
// receives the current value (nil if absent) and returns the new value;
// returning nil deletes the key. Conflicting concurrent writers are retried.
func (s *Store) Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}

	start := time.Now()
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = ctx.Err(); err != nil {
			break
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			var current []byte
			item, getErr := txn.Get([]byte(key))
			switch {
			case errors.Is(getErr, badger.ErrKeyNotFound):
			case getErr != nil:
				return getErr
			default:
				if current, getErr = item.ValueCopy(nil); getErr != nil {
					return getErr
				}
			}

			next, fnErr := fn(current)
			if fnErr != nil {
				return fnErr
			}
			if next == nil {
				if current == nil {
					return nil
				}
				return txn.Delete([]byte(key))
			}
			return txn.Set([]byte(key), next)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	metrics.RecordStoreOperation("update", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	metrics.RecordStoreOperation("delete", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// IteratePrefix calls fn for every key with the given prefix in key order.
// Iteration runs on a consistent snapshot; returning an error from fn stops it.
func (s *Store) IteratePrefix(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			if err := item.Value(func(val []byte) error {
				return fn(string(item.Key()), val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
	metrics.RecordStoreOperation("iterate", time.Since(start), err)
	return err
}

// CountPrefix returns the number of keys with the given prefix.
func (s *Store) CountPrefix(prefix string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Backup streams a full snapshot of the database to w.
func (s *Store) Backup(w io.Writer) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.db.Backup(w, 0); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return nil
}

// Restore loads a snapshot produced by Backup. Existing keys are overwritten.
func (s *Store) Restore(r io.Reader) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.db.Load(r, 256); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return nil
}

// Size returns the LSM plus value log size in bytes.
func (s *Store) Size() int64 {
	if s.checkOpen() != nil {
		return 0
	}
	lsm, vlog := s.db.Size()
	return lsm + vlog
}

// RunGC triggers BadgerDB value log garbage collection until nothing is rewritten.
func (s *Store) RunGC() error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		metrics.RecordStoreOperation("gc", time.Since(start), nil)
		metrics.StoreGCRuns.Inc()
	}()

	for {
		err := s.db.RunValueLogGC(s.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close gracefully shuts down the database with the configured timeout.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	timeout := s.config.CloseTimeout
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Debug().Msg("Store closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}

// Config returns the store configuration.
func (s *Store) Config() config.StoreConfig {
	return s.config
}

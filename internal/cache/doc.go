// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

/*
Package cache is the local week cache: the authoritative-until-synced copy of
each ISO week's target and daily logs.

Records live in the shared BadgerDB store under "week:{weekKey}". A missing
record loads as the empty sentinel (zero target, no logs, epoch-zero
timestamps) instead of an error.

Concurrency:

Every operation takes a per-week lock, so read-modify-write sequences on
one week never interleave while different weeks proceed in parallel. An
in-memory LRU of decoded weeks is read and updated under the same lock.

Write hook:

After each successful write the registered WriteHook runs (the sync engine
registers the pending queue's Enqueue). A hook failure is reported as a
*CacheError with Op "enqueue"; the local write itself has already been
persisted.

Errors:

Storage and serialization failures are returned as *CacheError, which
matches ErrCache with errors.Is and unwraps to the underlying cause.
*/
package cache

// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLRUCache_BasicOperations(t *testing.T) {
	c := newLRUCache[int](10, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss")
	}
	c.Add("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	c.Add("a", 2)
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("update failed, got %v", v)
	}
	if !c.Remove("a") || c.Remove("a") {
		t.Error("Remove should succeed once")
	}
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache[int](3, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)
	c.Get("a") // a becomes most recent
	c.Add("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should be present", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}

func TestLRUCache_TTLExpiration(t *testing.T) {
	c := newLRUCache[int](10, 10*time.Millisecond)
	c.Add("a", 1)
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("entry should have expired")
	}
	if c.Len() != 0 {
		t.Error("expired entry should be removed on access")
	}
}

func TestLRUCache_ClearAndStats(t *testing.T) {
	c := newLRUCache[int](10, time.Minute)
	c.Add("a", 1)
	c.Get("a")
	c.Get("b")

	hits, misses, size := c.Stats()
	if hits != 1 || misses != 1 || size != 1 {
		t.Errorf("Stats = %d/%d/%d", hits, misses, size)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Error("Clear should empty the cache")
	}
}

func TestLRUCache_Concurrent(t *testing.T) {
	c := newLRUCache[int](50, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (n*100+j)%80)
				c.Add(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() > 50 {
		t.Errorf("capacity exceeded: %d", c.Len())
	}
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	k := newKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("2026-W07")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
	if k.size() != 0 {
		t.Errorf("locks not released: %d", k.size())
	}
}

func TestKeyedMutexDistinctKeysIndependent(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked by lock on a")
	}
}

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock lets tests move time without sleeping.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestLRU(capacity int, ttl time.Duration) (*LRU[int], *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRU[int](capacity, ttl)
	c.now = clock.Now
	return c, clock
}

func TestLRU_BasicOperations(t *testing.T) {
	c, _ := newTestLRU(3, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	for key, want := range map[string]int{"a": 1, "b": 2, "c": 3} {
		got, ok := c.Get(key)
		if !ok || got != want {
			t.Errorf("Get(%q) = %d, %v; want %d, true", key, got, ok, want)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
}

func TestLRU_Eviction(t *testing.T) {
	c, _ := newTestLRU(3, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Get("a") // a becomes most recently used
	c.Set("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := c.Get(key); !ok {
			t.Errorf("expected %q to be present", key)
		}
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestLRU_ExpiredIsMissButStaleReadable(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)

	c.Set("user:1", 42)
	clock.Advance(2 * time.Minute)

	if _, ok := c.Get("user:1"); ok {
		t.Error("Get returned an expired entry")
	}

	v, stale, ok := c.GetStale("user:1")
	if !ok {
		t.Fatal("GetStale lost the expired entry")
	}
	if !stale {
		t.Error("stale = false, want true for expired entry")
	}
	if v != 42 {
		t.Errorf("value = %d, want 42", v)
	}
}

func TestLRU_GetStaleFresh(t *testing.T) {
	c, _ := newTestLRU(10, time.Minute)
	c.Set("k", 7)

	_, stale, ok := c.GetStale("k")
	if !ok || stale {
		t.Errorf("GetStale = stale %v ok %v, want false true", stale, ok)
	}
	if _, _, ok := c.GetStale("missing"); ok {
		t.Error("GetStale found a key that was never set")
	}
}

func TestLRU_SetRefreshesTTL(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)

	c.Set("k", 1)
	clock.Advance(50 * time.Second)
	c.Set("k", 2)
	clock.Advance(50 * time.Second)

	got, ok := c.Get("k")
	if !ok || got != 2 {
		t.Errorf("Get = %d, %v; want 2, true", got, ok)
	}
}

func TestLRU_CleanupExpired(t *testing.T) {
	c, clock := newTestLRU(10, time.Minute)

	c.Set("old", 1)
	clock.Advance(30 * time.Second)
	c.Set("new", 2)
	clock.Advance(2 * time.Minute)

	// old expired 90s ago, new 60s ago
	if removed := c.CleanupExpired(75 * time.Second); removed != 1 {
		t.Errorf("CleanupExpired removed %d, want 1", removed)
	}
	if _, _, ok := c.GetStale("new"); !ok {
		t.Error("entry inside grace period was removed")
	}
}

func TestLRU_RemoveAndClear(t *testing.T) {
	c, _ := newTestLRU(10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	if !c.Remove("a") {
		t.Error("Remove(a) = false, want true")
	}
	if c.Remove("a") {
		t.Error("second Remove(a) = true, want false")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
	c.Set("c", 3)
	if _, ok := c.Get("c"); !ok {
		t.Error("cache unusable after Clear")
	}
}

func TestLRU_Stats(t *testing.T) {
	c, _ := newTestLRU(10, time.Minute)
	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("b")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Size != 1 {
		t.Errorf("Stats = %+v, want 2 hits, 1 miss, size 1", s)
	}
}

func TestLRU_Defaults(t *testing.T) {
	t.Parallel()
	c := NewLRU[string](0, 0)
	if c.capacity != 10000 {
		t.Errorf("capacity = %d, want 10000", c.capacity)
	}
	if c.TTL() != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", c.TTL())
	}
}

func TestLRU_Concurrent(t *testing.T) {
	t.Parallel()
	c := NewLRU[int](100, time.Minute)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", (g*500+i)%150)
				c.Set(key, i)
				c.Get(key)
				c.GetStale(key)
			}
		}(g)
	}
	wg.Wait()

	if c.Len() > 100 {
		t.Errorf("Len() = %d exceeds capacity 100", c.Len())
	}
}

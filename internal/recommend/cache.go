// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package recommend

import (
	"context"
	"encoding/hex"
	"hash/fnv"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/smartrank/internal/cache"
)

// responseCache is a read-through cache of responses. Concurrent misses for
// one key share a single computation, which runs on a context detached from
// any one caller and is cancelled when the last waiting caller leaves.
type responseCache struct {
	lru   *cache.LRU[*Response]
	group singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the shared computation for one key.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func newResponseCache(cfg CacheConfig) *responseCache {
	return &responseCache{
		lru:     cache.NewLRU[*Response](cfg.MaxEntries, cfg.TTL),
		flights: make(map[string]*flight),
	}
}

// get returns a copy of a fresh cached response.
func (c *responseCache) get(key string) (*Response, bool) {
	resp, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return resp.clone(), true
}

// do runs compute for key unless a computation for key is already in
// flight, in which case it waits for that one. Successful non-degraded
// responses are cached. shared reports whether the result came from
// another caller's computation.
func (c *responseCache) do(ctx context.Context, key string, compute func(context.Context) (*Response, error)) (resp *Response, shared bool, err error) {
	c.mu.Lock()
	f, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	ch := c.group.DoChan(key, func() (any, error) {
		defer c.finish(key, f)
		r, err := compute(f.ctx)
		if err == nil && !r.Degraded {
			c.lru.Set(key, r)
		}
		return r, err
	})
	c.mu.Unlock()
	defer c.leave(key, f)

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Shared, res.Err
		}
		return res.Val.(*Response).clone(), res.Shared, nil
	}
}

// finish retires a flight whose computation returned.
func (c *responseCache) finish(key string, f *flight) {
	c.mu.Lock()
	if c.flights[key] == f {
		delete(c.flights, key)
	}
	c.mu.Unlock()
	f.cancel()
}

// leave drops one waiter and cancels the computation when none remain.
func (c *responseCache) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[key] == f {
		delete(c.flights, key)
		c.group.Forget(key)
	}
}

// sweep drops expired responses. Responses are never served stale.
func (c *responseCache) sweep() int {
	return c.lru.CleanupExpired(0)
}

func (c *responseCache) stats() cache.Stats {
	return c.lru.Stats()
}

// cacheKey is the user id plus a hash of the context bucket: platform,
// content type, time-of-day window, segment, sorted topic filters and limit.
func cacheKey(userID string, rc *Context, window int) string {
	topics := slices.Clone(rc.TopicFilters)
	slices.Sort(topics)

	h := fnv.New64a()
	write := func(s string) {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	write(rc.Platform)
	write(rc.ContentType)
	write(strconv.Itoa(window))
	write(rc.Segment)
	write(strconv.Itoa(len(topics)))
	for _, t := range topics {
		write(t)
	}
	write(strconv.Itoa(rc.Limit))

	return userID + ":" + hex.EncodeToString(h.Sum(nil))
}

// timeWindow returns the time-of-day bucket of t.
func timeWindow(t time.Time, hours int) int {
	if hours < 1 {
		return 0
	}
	return t.UTC().Hour() / hours
}

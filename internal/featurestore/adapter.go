// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package featurestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/smartrank/internal/cache"
	"github.com/tomtom215/smartrank/internal/metrics"
)

// MaxCacheTTL is the longest a feature snapshot may be served as fresh.
const MaxCacheTTL = 5 * time.Minute

var errRateLimited = errors.New("featurestore: upstream rate limit exceeded")

// Config configures the Adapter.
type Config struct {
	CacheSize int
	CacheTTL  time.Duration

	// Deadline bounds every upstream call regardless of the caller's context.
	Deadline time.Duration

	RateLimit float64
	RateBurst int

	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// StaleGrace is how long past its TTL an entry stays available as a
	// fallback before Sweep drops it.
	StaleGrace time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CacheSize:       50000,
		CacheTTL:        5 * time.Minute,
		Deadline:        50 * time.Millisecond,
		RateLimit:       2000,
		RateBurst:       200,
		BreakerFailures: 5,
		BreakerTimeout:  10 * time.Second,
		StaleGrace:      30 * time.Minute,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.CacheSize < 1 {
		return fmt.Errorf("cache size must be at least 1")
	}
	if c.CacheTTL <= 0 || c.CacheTTL > MaxCacheTTL {
		return fmt.Errorf("cache TTL must be in (0, %v], got %v", MaxCacheTTL, c.CacheTTL)
	}
	if c.Deadline <= 0 {
		return fmt.Errorf("deadline must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst < 1 {
		return fmt.Errorf("rate limit and burst must be positive")
	}
	if c.BreakerFailures == 0 {
		return fmt.Errorf("breaker failure threshold must be at least 1")
	}
	if c.StaleGrace < 0 {
		return fmt.Errorf("stale grace must not be negative")
	}
	return nil
}

// Adapter fronts a Source with a bounded TTL cache, a hard per-call
// deadline, a token bucket and a circuit breaker.
//
// When the upstream fails or times out the adapter answers from cache only,
// marking entries past their TTL as Stale and the batch as Degraded. It
// returns ErrUpstreamUnavailable only when nothing usable is cached.
type Adapter struct {
	source  Source
	cfg     Config
	users   *cache.LRU[UserFeatures]
	items   *cache.LRU[ItemFeatures]
	top     *cache.LRU[[]string]
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[any]
	logger  zerolog.Logger
}

// NewAdapter creates an Adapter over source.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAdapter(source Source, cfg Config, logger zerolog.Logger) (*Adapter, error) {
	if source == nil {
		return nil, fmt.Errorf("featurestore: source is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("featurestore: invalid config: %w", err)
	}

	logger = logger.With().Str("component", "featurestore").Logger()
	return &Adapter{
		source:  source,
		cfg:     cfg,
		users:   cache.NewLRU[UserFeatures](cfg.CacheSize, cfg.CacheTTL),
		items:   cache.NewLRU[ItemFeatures](cfg.CacheSize, cfg.CacheTTL),
		top:     cache.NewLRU[[]string](16, cfg.CacheTTL),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		breaker: newBreaker("feature-store", cfg.BreakerFailures, cfg.BreakerTimeout, logger),
		logger:  logger,
	}, nil
}

// newBreaker builds the upstream circuit breaker. ErrNotFound and caller
// cancellation are not failures.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newBreaker(name string, failures uint32, timeout time.Duration, logger zerolog.Logger) *gobreaker.CircuitBreaker[any] {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
	})
}

// call runs fn against the upstream. It never blocks past the configured
// deadline even if fn ignores its context.
func (a *Adapter) call(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	start := time.Now()
	if !a.limiter.Allow() {
		metrics.RecordFeatureUpstream(op, "rate_limited", 0)
		return nil, errRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Deadline)
	defer cancel()

	type result struct {
		v   any
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := a.breaker.Execute(func() (any, error) { return fn(ctx) })
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		metrics.RecordFeatureUpstream(op, classifyError(r.err), time.Since(start))
		return r.v, r.err
	case <-ctx.Done():
		metrics.RecordFeatureUpstream(op, "timeout", time.Since(start))
		return nil, ctx.Err()
	}
}

func classifyError(err error) string {
	switch {
	case err == nil, errors.Is(err, ErrNotFound):
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	default:
		return "other"
	}
}

// GetUserFeatures returns the user's features, ErrNotFound for unknown
// users, or ErrUpstreamUnavailable when the upstream failed and the user
// was never cached.
func (a *Adapter) GetUserFeatures(ctx context.Context, id string) (UserFeatures, error) {
	if u, ok := a.users.Get(id); ok {
		metrics.RecordFeatureLookup("user", "hit", 1)
		return u, nil
	}

	v, err := a.call(ctx, "get_user", func(ctx context.Context) (any, error) {
		return a.source.GetUser(ctx, id)
	})
	if err == nil {
		u := v.(UserFeatures)
		a.users.Set(id, u)
		metrics.RecordFeatureLookup("user", "miss", 1)
		return u, nil
	}
	if errors.Is(err, ErrNotFound) {
		metrics.RecordFeatureLookup("user", "not_found", 1)
		return UserFeatures{}, ErrNotFound
	}

	if u, stale, ok := a.users.GetStale(id); ok {
		u.Stale = stale
		metrics.RecordFeatureLookup("user", "stale", 1)
		a.logger.Debug().Err(err).Str("user_id", id).Msg("serving cached user features")
		return u, nil
	}
	return UserFeatures{}, fmt.Errorf("%w: user %s: %w", ErrUpstreamUnavailable, id, err)
}

// GetItemFeatures returns features for ids. Duplicate ids are looked up once.
func (a *Adapter) GetItemFeatures(ctx context.Context, ids []string) (ItemBatch, error) {
	batch := ItemBatch{Items: make(map[string]ItemFeatures, len(ids))}

	seen := make(map[string]struct{}, len(ids))
	var misses []string
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if it, ok := a.items.Get(id); ok {
			batch.Items[id] = it
			continue
		}
		misses = append(misses, id)
	}
	metrics.RecordFeatureLookup("item", "hit", len(batch.Items))
	if len(misses) == 0 {
		return batch, nil
	}

	v, err := a.call(ctx, "get_items", func(ctx context.Context) (any, error) {
		return a.source.GetItems(ctx, misses)
	})
	if err == nil {
		found := v.(map[string]ItemFeatures)
		for _, id := range misses {
			it, ok := found[id]
			if !ok {
				batch.Missing = append(batch.Missing, id)
				continue
			}
			a.items.Set(id, it)
			batch.Items[id] = it
		}
		metrics.RecordFeatureLookup("item", "miss", len(misses)-len(batch.Missing))
		metrics.RecordFeatureLookup("item", "not_found", len(batch.Missing))
		return batch, nil
	}

	batch.Degraded = true
	served := 0
	for _, id := range misses {
		it, stale, ok := a.items.GetStale(id)
		if !ok {
			batch.Missing = append(batch.Missing, id)
			continue
		}
		it.Stale = stale
		batch.Items[id] = it
		served++
	}
	metrics.RecordFeatureLookup("item", "stale", served)

	if len(batch.Items) == 0 {
		return ItemBatch{}, fmt.Errorf("%w: %d items: %w", ErrUpstreamUnavailable, len(misses), err)
	}
	a.logger.Debug().Err(err).
		Int("requested", len(misses)).
		Int("served_stale", served).
		Msg("item features degraded to cache")
	return batch, nil
}

// TopPopular returns up to k item ids by descending popularity, starting
// at offset. Pages are cached like features and served stale when the
// upstream is down.
func (a *Adapter) TopPopular(ctx context.Context, offset, k int) ([]string, error) {
	if k <= 0 || offset < 0 {
		return nil, nil
	}
	key := strconv.Itoa(offset) + ":" + strconv.Itoa(k)
	if ids, ok := a.top.Get(key); ok {
		return ids, nil
	}

	v, err := a.call(ctx, "top_popular", func(ctx context.Context) (any, error) {
		return a.source.TopPopular(ctx, offset, k)
	})
	if err == nil {
		ids := v.([]string)
		a.top.Set(key, ids)
		return ids, nil
	}
	if ids, _, ok := a.top.GetStale(key); ok {
		return ids, nil
	}
	return nil, fmt.Errorf("%w: top popular: %w", ErrUpstreamUnavailable, err)
}

// HasUser reports whether the user exists upstream.
func (a *Adapter) HasUser(ctx context.Context, id string) (bool, error) {
	_, err := a.GetUserFeatures(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// HasItem reports whether the item exists upstream. An item that could not
// be confirmed because the upstream is down is an error, not a false.
func (a *Adapter) HasItem(ctx context.Context, id string) (bool, error) {
	batch, err := a.GetItemFeatures(ctx, []string{id})
	if err != nil {
		return false, err
	}
	if _, ok := batch.Items[id]; ok {
		return true, nil
	}
	if batch.Degraded {
		return false, ErrUpstreamUnavailable
	}
	return false, nil
}

// Invalidate drops cached entries for an item so the next read goes upstream.
func (a *Adapter) Invalidate(itemIDs ...string) {
	for _, id := range itemIDs {
		a.items.Remove(id)
	}
	a.top.Clear()
}

// Stats is a snapshot of the adapter's caches and breaker.
type Stats struct {
	Users   cache.Stats `json:"users"`
	Items   cache.Stats `json:"items"`
	Breaker string      `json:"breaker"`
}

// Stats returns cache counters and the breaker state.
func (a *Adapter) Stats() Stats {
	return Stats{
		Users:   a.users.Stats(),
		Items:   a.items.Stats(),
		Breaker: a.breaker.State().String(),
	}
}

// Sweep drops cache entries that expired more than StaleGrace ago and
// returns how many were removed.
func (a *Adapter) Sweep() int {
	grace := a.cfg.StaleGrace
	return a.users.CleanupExpired(grace) + a.items.CleanupExpired(grace) + a.top.CleanupExpired(grace)
}

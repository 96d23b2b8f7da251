// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package recommend

import (
	"fmt"
	"time"
)

// Config contains all configuration for the recommendation engine.
type Config struct {
	// Limits contains operational limits.
	Limits LimitsConfig `json:"limits"`

	// Fusion contains the score fusion parameters.
	Fusion FusionConfig `json:"fusion"`

	// Diversity contains parameters for the topic diversity pass.
	Diversity DiversityConfig `json:"diversity"`

	// Cache contains caching parameters.
	Cache CacheConfig `json:"cache"`

	// SignalTimeout bounds each signal computation. A signal that misses it
	// contributes nothing to the request.
	SignalTimeout time.Duration `json:"signal_timeout"`

	// RetryAfter is advertised to callers when no ranking can be produced.
	RetryAfter time.Duration `json:"retry_after"`
}

// LimitsConfig contains operational limits.
type LimitsConfig struct {
	// DefaultLimit is used when the request does not set a limit.
	DefaultLimit int `json:"default_limit"`

	// MaxLimit caps the requested limit.
	MaxLimit int `json:"max_limit"`

	// CandidatePool is how many ids each candidate source may contribute.
	CandidatePool int `json:"candidate_pool"`
}

// FusionConfig contains the score fusion parameters.
type FusionConfig struct {
	// Epsilon keeps scores inside (0,1) before the logit.
	Epsilon float64 `json:"epsilon"`

	// TieEpsilon is the fused score distance treated as a tie.
	TieEpsilon float64 `json:"tie_epsilon"`
}

// DiversityConfig contains parameters for the topic diversity pass.
type DiversityConfig struct {
	// Enabled toggles the pass.
	Enabled bool `json:"enabled"`

	// Window is the number of consecutive positions checked.
	Window int `json:"window"`

	// MaxPerTopic is how many items in a window may share a topic.
	MaxPerTopic int `json:"max_per_topic"`
}

// CacheConfig contains caching parameters.
type CacheConfig struct {
	// Enabled toggles response caching.
	Enabled bool `json:"enabled"`

	// TTL is how long responses are cached.
	TTL time.Duration `json:"ttl"`

	// MaxEntries is the maximum number of cached responses.
	MaxEntries int `json:"max_entries"`

	// TimeWindowHours buckets the hour of day into the cache key.
	TimeWindowHours int `json:"time_window_hours"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Limits: LimitsConfig{
			DefaultLimit:  20,
			MaxLimit:      100,
			CandidatePool: 200,
		},
		Fusion: FusionConfig{
			Epsilon:    1e-6,
			TieEpsilon: 1e-6,
		},
		Diversity: DiversityConfig{
			Enabled:     true,
			Window:      4,
			MaxPerTopic: 3,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             2 * time.Minute,
			MaxEntries:      10000,
			TimeWindowHours: 6,
		},
		SignalTimeout: 80 * time.Millisecond,
		RetryAfter:    5 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Limits.DefaultLimit < 1 {
		return fmt.Errorf("limits.default_limit must be positive, got %d", c.Limits.DefaultLimit)
	}
	if c.Limits.MaxLimit < c.Limits.DefaultLimit {
		return fmt.Errorf("limits.max_limit must be >= limits.default_limit, got %d < %d", c.Limits.MaxLimit, c.Limits.DefaultLimit)
	}
	if c.Limits.CandidatePool < c.Limits.MaxLimit {
		return fmt.Errorf("limits.candidate_pool must be >= limits.max_limit, got %d < %d", c.Limits.CandidatePool, c.Limits.MaxLimit)
	}

	if c.Fusion.Epsilon <= 0 || c.Fusion.Epsilon >= 0.5 {
		return fmt.Errorf("fusion.epsilon must be in (0, 0.5), got %g", c.Fusion.Epsilon)
	}
	if c.Fusion.TieEpsilon < 0 {
		return fmt.Errorf("fusion.tie_epsilon must be non-negative, got %g", c.Fusion.TieEpsilon)
	}

	if c.Diversity.Enabled {
		if c.Diversity.Window < 2 {
			return fmt.Errorf("diversity.window must be at least 2, got %d", c.Diversity.Window)
		}
		if c.Diversity.MaxPerTopic < 1 || c.Diversity.MaxPerTopic >= c.Diversity.Window {
			return fmt.Errorf("diversity.max_per_topic must be in [1, window), got %d", c.Diversity.MaxPerTopic)
		}
	}

	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive, got %v", c.Cache.TTL)
		}
		if c.Cache.MaxEntries < 1 {
			return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
		}
	}
	if c.Cache.TimeWindowHours < 1 || c.Cache.TimeWindowHours > 24 {
		return fmt.Errorf("cache.time_window_hours must be in [1, 24], got %d", c.Cache.TimeWindowHours)
	}

	if c.SignalTimeout <= 0 {
		return fmt.Errorf("signal_timeout must be positive, got %v", c.SignalTimeout)
	}
	if c.RetryAfter <= 0 {
		return fmt.Errorf("retry_after must be positive, got %v", c.RetryAfter)
	}

	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

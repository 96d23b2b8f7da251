// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package config

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateLogging,
		c.validateFeatureStore,
		c.validateEmbedding,
		c.validateRecommend,
		c.validateArtifacts,
		c.validateFeedback,
		c.validateNATS,
		c.validateSecurity,
	}

	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

// validateServer validates HTTP server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

// maxFeatureCacheTTL bounds how stale a served feature snapshot may become.
const maxFeatureCacheTTL = 5 * time.Minute

// validateFeatureStore validates feature store configuration
func (c *Config) validateFeatureStore() error {
	fs := c.FeatureStore
	switch fs.Backend {
	case "redis":
		if fs.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when feature_store.backend is redis")
		}
	case "memory":
	default:
		return fmt.Errorf("FEATURE_STORE_BACKEND must be redis or memory")
	}
	if fs.CacheSize < 1 {
		return fmt.Errorf("FEATURE_CACHE_SIZE must be at least 1")
	}
	if fs.CacheTTL <= 0 || fs.CacheTTL > maxFeatureCacheTTL {
		return fmt.Errorf("FEATURE_CACHE_TTL must be between 1ns and %v", maxFeatureCacheTTL)
	}
	if fs.Deadline <= 0 {
		return fmt.Errorf("FEATURE_STORE_DEADLINE must be positive")
	}
	if fs.RateLimit <= 0 || fs.RateBurst < 1 {
		return fmt.Errorf("FEATURE_STORE_RPS and FEATURE_STORE_BURST must be positive")
	}
	return nil
}

// validateEmbedding validates embedding index configuration
func (c *Config) validateEmbedding() error {
	e := c.Embedding
	switch e.Backend {
	case "pgvector":
		if e.DSN == "" {
			return fmt.Errorf("EMBEDDING_DSN is required when embedding.backend is pgvector")
		}
		if !isSQLIdentifier(e.Table) {
			return fmt.Errorf("EMBEDDING_TABLE %q is not a valid table name", e.Table)
		}
	case "memory":
	default:
		return fmt.Errorf("EMBEDDING_BACKEND must be pgvector or memory")
	}
	if e.Dimension < 1 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be at least 1")
	}
	return nil
}

// isSQLIdentifier reports whether s is safe to interpolate as a table name.
func isSQLIdentifier(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// validateRecommend validates serving path configuration
func (c *Config) validateRecommend() error {
	r := c.Recommend
	if r.DefaultLimit < 1 || r.MaxLimit < r.DefaultLimit {
		return fmt.Errorf("recommend limits invalid: default %d, max %d", r.DefaultLimit, r.MaxLimit)
	}
	if r.CandidatePool < r.MaxLimit {
		return fmt.Errorf("RECOMMEND_CANDIDATE_POOL must be at least RECOMMEND_MAX_LIMIT")
	}
	if r.SignalTimeout <= 0 {
		return fmt.Errorf("RECOMMEND_SIGNAL_TIMEOUT must be positive")
	}
	if r.Epsilon <= 0 || r.Epsilon >= 0.5 {
		return fmt.Errorf("RECOMMEND_EPSILON must be in (0, 0.5)")
	}
	if r.TieEpsilon < 0 {
		return fmt.Errorf("RECOMMEND_TIE_EPSILON must not be negative")
	}
	if r.DiversityWindow < 1 || r.DiversityMaxPerTopic < 1 {
		return fmt.Errorf("recommend diversity window and max per topic must be at least 1")
	}
	if err := validateWeights(r.DefaultWeights); err != nil {
		return fmt.Errorf("RECOMMEND_DEFAULT_WEIGHTS: %w", err)
	}
	if r.CacheTTL <= 0 || r.CacheSize < 1 {
		return fmt.Errorf("recommend cache TTL and size must be positive")
	}
	if r.TimeWindowHours < 1 || r.TimeWindowHours > 24 || 24%r.TimeWindowHours != 0 {
		return fmt.Errorf("RECOMMEND_TIME_WINDOW_HOURS must divide 24")
	}
	return nil
}

// validateWeights checks the collaborative, content and popularity weights.
func validateWeights(w []float64) error {
	if len(w) != 3 {
		return fmt.Errorf("expected 3 weights, got %d", len(w))
	}
	var sum float64
	for _, v := range w {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weights must be finite and non-negative")
		}
		sum += v
	}
	if sum == 0 {
		return fmt.Errorf("weights must not all be zero")
	}
	return nil
}

// validateArtifacts validates artifact registry configuration
func (c *Config) validateArtifacts() error {
	if c.Artifacts.Path == "" {
		return fmt.Errorf("ARTIFACTS_PATH is required")
	}
	if c.Artifacts.PollInterval < time.Second {
		return fmt.Errorf("ARTIFACTS_POLL_INTERVAL must be at least 1s")
	}
	return nil
}

// validateFeedback validates feedback ingestion configuration (only if enabled)
func (c *Config) validateFeedback() error {
	f := c.Feedback
	if !f.Enabled {
		return nil
	}
	if f.LogPath == "" {
		return fmt.Errorf("FEEDBACK_LOG_PATH is required when feedback is enabled")
	}
	if _, err := cron.ParseStandard(f.Schedule); err != nil {
		return fmt.Errorf("FEEDBACK_SCHEDULE is invalid: %w", err)
	}
	if _, err := time.LoadLocation(f.Timezone); err != nil {
		return fmt.Errorf("FEEDBACK_TIMEZONE is invalid: %w", err)
	}
	if f.DecayRate < 0 {
		return fmt.Errorf("FEEDBACK_DECAY_RATE must not be negative")
	}
	if f.BatchSize < 1 {
		return fmt.Errorf("FEEDBACK_BATCH_SIZE must be at least 1")
	}
	if f.EngagementWindow < 0 {
		return fmt.Errorf("FEEDBACK_ENGAGEMENT_WINDOW must not be negative")
	}
	if f.Forward && !c.NATS.Enabled {
		return fmt.Errorf("FEEDBACK_FORWARD requires NATS_ENABLED=true")
	}
	return nil
}

// NATS limit constants
const (
	natsMinMemory = 64 * 1024 * 1024  // 64MB
	natsMinStore  = 100 * 1024 * 1024 // 100MB
)

// validateNATS validates NATS configuration (only if enabled)
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}

	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if c.NATS.Topic == "" {
		return fmt.Errorf("NATS_TOPIC is required")
	}
	if c.NATS.EmbeddedServer {
		if c.NATS.MaxMemory < natsMinMemory {
			return fmt.Errorf("NATS_MAX_MEMORY must be at least 64MB (67108864 bytes)")
		}
		if c.NATS.MaxStore < natsMinStore {
			return fmt.Errorf("NATS_MAX_STORE must be at least 100MB (104857600 bytes)")
		}
	}
	return nil
}

// validateNATSURL checks the scheme and host of a NATS URL.
func validateNATSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "nats", "tls", "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// validateSecurity validates rate limiting bounds
func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

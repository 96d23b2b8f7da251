// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package config

import (
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any mapped setting
//
// Configuration Categories:
//
//  1. Serving:
//     - Server: HTTP listener
//     - Recommend: fusion, diversity, limits, cache and signal timeouts
//     - Artifacts: model registry location and refresh interval
//
//  2. Upstreams:
//     - FeatureStore: Redis feature store and local feature cache
//     - Embedding: Postgres/pgvector embedding index
//
//  3. Offline:
//     - Feedback: interaction event log and popularity batch
//     - NATS: optional event forwarding (embedded or external server)
//
//  4. Cross-cutting:
//     - Security: CORS and rate limiting
//     - Logging: level and output format
//
// Config is immutable after Load() and safe for concurrent reads.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Logging      LoggingConfig      `koanf:"logging"`
	FeatureStore FeatureStoreConfig `koanf:"feature_store"`
	Embedding    EmbeddingConfig    `koanf:"embedding"`
	Recommend    RecommendConfig    `koanf:"recommend"`
	Artifacts    ArtifactsConfig    `koanf:"artifacts"`
	Feedback     FeedbackConfig     `koanf:"feedback"`
	NATS         NATSConfig         `koanf:"nats"`
	Security     SecurityConfig     `koanf:"security"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// FeatureStoreConfig configures the Redis feature store and the local
// feature cache in front of it.
//
// Environment Variables:
//   - REDIS_ADDR: host:port of the feature store (default: 127.0.0.1:6379)
//   - REDIS_PASSWORD, REDIS_DB
//   - FEATURE_CACHE_SIZE: local cache entries (default: 50000)
//   - FEATURE_CACHE_TTL: local cache TTL, at most 5m (default: 5m)
//   - FEATURE_STORE_DEADLINE: hard per-call deadline (default: 50ms)
//   - FEATURE_STORE_RPS: upstream token bucket rate (default: 2000)
type FeatureStoreConfig struct {
	// Backend selects the upstream: "redis" or "memory".
	// "memory" is intended for local development and tests.
	Backend  string `koanf:"backend"`
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`

	// KeyPrefix namespaces all feature keys in Redis.
	KeyPrefix string `koanf:"key_prefix"`

	CacheSize int           `koanf:"cache_size"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
	Deadline  time.Duration `koanf:"deadline"`

	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// Circuit breaker around the upstream.
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// EmbeddingConfig configures the embedding index.
//
// Environment Variables:
//   - EMBEDDING_BACKEND: pgvector or memory (default: pgvector)
//   - EMBEDDING_DSN: Postgres connection string
//   - EMBEDDING_TABLE: table holding item embeddings (default: item_embeddings)
//   - EMBEDDING_DIMENSION: vector dimension (default: 384)
type EmbeddingConfig struct {
	Backend   string        `koanf:"backend"`
	DSN       string        `koanf:"dsn"`
	Table     string        `koanf:"table"`
	Dimension int           `koanf:"dimension"`
	Timeout   time.Duration `koanf:"timeout"`
	MaxConns  int           `koanf:"max_conns"`
}

// RecommendConfig configures the serving path.
type RecommendConfig struct {
	DefaultLimit  int `koanf:"default_limit"`
	MaxLimit      int `koanf:"max_limit"`
	CandidatePool int `koanf:"candidate_pool"`

	SignalTimeout time.Duration `koanf:"signal_timeout"`

	// Epsilon clamps scores away from 0 and 1 before logit.
	Epsilon float64 `koanf:"epsilon"`
	// TieEpsilon is the fused score distance treated as a tie.
	TieEpsilon float64 `koanf:"tie_epsilon"`

	DiversityWindow      int `koanf:"diversity_window"`
	DiversityMaxPerTopic int `koanf:"diversity_max_per_topic"`

	// DefaultWeights are used until the first trained fusion artifact is active.
	DefaultWeights []float64 `koanf:"default_weights"`

	CacheTTL        time.Duration `koanf:"cache_ttl"`
	CacheSize       int           `koanf:"cache_size"`
	TimeWindowHours int           `koanf:"time_window_hours"`

	RetryAfter time.Duration `koanf:"retry_after"`
}

// ArtifactsConfig configures the model artifact registry.
//
// Environment Variables:
//   - ARTIFACTS_PATH: directory of versioned artifact files (default: /data/artifacts)
//   - ARTIFACTS_POLL_INTERVAL: how often to look for new versions (default: 30s)
type ArtifactsConfig struct {
	Path         string        `koanf:"path"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

// FeedbackConfig configures the interaction event log and offline batch.
//
// Environment Variables:
//   - FEEDBACK_ENABLED (default: true)
//   - FEEDBACK_LOG_PATH: BadgerDB directory (default: /data/feedback)
//   - FEEDBACK_SCHEDULE: cron schedule of the batch (default: */15 * * * *)
//   - FEEDBACK_DECAY_RATE: popularity decay per hour (default: 0.01)
//   - FEEDBACK_FORWARD: forward accepted events to NATS (default: false)
//   - FEEDBACK_ENGAGEMENT_WINDOW: how long a view waits for an engagement (default: 30m)
type FeedbackConfig struct {
	Enabled   bool    `koanf:"enabled"`
	LogPath   string  `koanf:"log_path"`
	Schedule  string  `koanf:"schedule"`
	Timezone  string  `koanf:"timezone"`
	DecayRate float64 `koanf:"decay_rate"`
	BatchSize int     `koanf:"batch_size"`
	Forward   bool    `koanf:"forward"`

	EngagementWindow time.Duration `koanf:"engagement_window"`

	// SyncWrites makes every append fsync before acknowledging.
	SyncWrites bool `koanf:"sync_writes"`
}

// NATSConfig configures the optional NATS JetStream connection used to
// forward interaction events to downstream trainers.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`
	Topic          string `koanf:"topic"`

	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// SecurityConfig holds CORS and rate limiting settings.
// Authentication is handled by the gateway in front of the engine.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// Load loads configuration from defaults, config file and environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

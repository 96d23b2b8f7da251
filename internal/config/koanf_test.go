// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns the documented defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8085 {
		t.Errorf("Server.Port = %d, want 8085", cfg.Server.Port)
	}
	if cfg.FeatureStore.CacheSize != 50000 {
		t.Errorf("FeatureStore.CacheSize = %d, want 50000", cfg.FeatureStore.CacheSize)
	}
	if cfg.FeatureStore.CacheTTL != 5*time.Minute {
		t.Errorf("FeatureStore.CacheTTL = %v, want 5m", cfg.FeatureStore.CacheTTL)
	}
	if cfg.FeatureStore.Deadline != 50*time.Millisecond {
		t.Errorf("FeatureStore.Deadline = %v, want 50ms", cfg.FeatureStore.Deadline)
	}
	if cfg.Recommend.SignalTimeout != 80*time.Millisecond {
		t.Errorf("Recommend.SignalTimeout = %v, want 80ms", cfg.Recommend.SignalTimeout)
	}
	if cfg.Recommend.DiversityWindow != 4 || cfg.Recommend.DiversityMaxPerTopic != 3 {
		t.Errorf("diversity = %d/%d, want 4/3", cfg.Recommend.DiversityWindow, cfg.Recommend.DiversityMaxPerTopic)
	}
	if cfg.Recommend.CacheTTL != 2*time.Minute {
		t.Errorf("Recommend.CacheTTL = %v, want 2m", cfg.Recommend.CacheTTL)
	}
	if len(cfg.Recommend.DefaultWeights) != 3 {
		t.Fatalf("DefaultWeights = %v, want 3 entries", cfg.Recommend.DefaultWeights)
	}
	for i, w := range cfg.Recommend.DefaultWeights {
		if w != 1.0/3 {
			t.Errorf("DefaultWeights[%d] = %v, want 1/3", i, w)
		}
	}
	if cfg.Feedback.Schedule != "*/15 * * * *" {
		t.Errorf("Feedback.Schedule = %q, want */15 * * * *", cfg.Feedback.Schedule)
	}
	if cfg.NATS.Enabled {
		t.Error("NATS.Enabled should be false by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"HTTP_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"REDIS_ADDR", "feature_store.addr"},
		{"FEATURE_CACHE_TTL", "feature_store.cache_ttl"},
		{"DATABASE_URL", "embedding.dsn"},
		{"RECOMMEND_SIGNAL_TIMEOUT", "recommend.signal_timeout"},
		{"RECOMMEND_DEFAULT_WEIGHTS", "recommend.default_weights"},
		{"FEEDBACK_SCHEDULE", "feedback.schedule"},
		{"FEEDBACK_ENGAGEMENT_WINDOW", "feedback.engagement_window"},
		{"NATS_EMBEDDED", "nats.embedded_server"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"redis_addr", "feature_store.addr"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// TestFindConfigFile tests config file discovery
func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	t.Run("no config file exists", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "")
		if got := findConfigFile(); got != "" {
			t.Errorf("findConfigFile() = %q, want empty string", got)
		}
	})

	t.Run("config.yaml exists", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("server: {}"), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		defer os.Remove(filepath.Join(tmpDir, "config.yaml"))

		t.Setenv(ConfigPathEnvVar, "")
		if got := findConfigFile(); got != "config.yaml" {
			t.Errorf("findConfigFile() = %q, want config.yaml", got)
		}
	})

	t.Run("CONFIG_PATH env var takes precedence", func(t *testing.T) {
		customPath := filepath.Join(tmpDir, "custom.yaml")
		if err := os.WriteFile(customPath, []byte("server: {}"), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		t.Setenv(ConfigPathEnvVar, customPath)
		if got := findConfigFile(); got != customPath {
			t.Errorf("findConfigFile() = %q, want %q", got, customPath)
		}
	})

	t.Run("CONFIG_PATH with non-existent file falls back", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "/non/existent/config.yaml")
		if got := findConfigFile(); got != "" {
			t.Errorf("findConfigFile() = %q, want empty string", got)
		}
	})
}

// TestLoadWithKoanfEnvVars tests loading configuration from environment variables
func TestLoadWithKoanfEnvVars(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_ADDR", "redis.internal:6380")
	t.Setenv("FEATURE_CACHE_TTL", "90s")
	t.Setenv("RECOMMEND_DEFAULT_WEIGHTS", "0.5, 0.3,0.2")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.FeatureStore.Addr != "redis.internal:6380" {
		t.Errorf("FeatureStore.Addr = %q, want redis.internal:6380", cfg.FeatureStore.Addr)
	}
	if cfg.FeatureStore.CacheTTL != 90*time.Second {
		t.Errorf("FeatureStore.CacheTTL = %v, want 90s", cfg.FeatureStore.CacheTTL)
	}
	want := []float64{0.5, 0.3, 0.2}
	if len(cfg.Recommend.DefaultWeights) != len(want) {
		t.Fatalf("DefaultWeights = %v, want %v", cfg.Recommend.DefaultWeights, want)
	}
	for i := range want {
		if cfg.Recommend.DefaultWeights[i] != want[i] {
			t.Errorf("DefaultWeights[%d] = %v, want %v", i, cfg.Recommend.DefaultWeights[i], want[i])
		}
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
}

// TestLoadWithKoanfEnvOverridesFile tests that env vars win over the config file
func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	configPath := filepath.Join(tmpDir, "smartrank.yaml")
	content := `
server:
  port: 7000
logging:
  level: warn
recommend:
  diversity_window: 5
  default_weights: [0.6, 0.2, 0.2]
feedback:
  schedule: "*/5 * * * *"
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("HTTP_PORT", "7100")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 7100 {
		t.Errorf("Server.Port = %d, want 7100 (env override)", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn (from file)", cfg.Logging.Level)
	}
	if cfg.Recommend.DiversityWindow != 5 {
		t.Errorf("DiversityWindow = %d, want 5", cfg.Recommend.DiversityWindow)
	}
	if cfg.Recommend.DefaultWeights[0] != 0.6 {
		t.Errorf("DefaultWeights = %v, want [0.6 0.2 0.2]", cfg.Recommend.DefaultWeights)
	}
	if cfg.Feedback.Schedule != "*/5 * * * *" {
		t.Errorf("Feedback.Schedule = %q", cfg.Feedback.Schedule)
	}
	if cfg.Recommend.MaxLimit != 100 {
		t.Errorf("Recommend.MaxLimit = %d, want default 100", cfg.Recommend.MaxLimit)
	}
}

// TestLoadWithKoanfValidation tests that invalid values fail loading
func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"feature cache TTL above bound", map[string]string{"FEATURE_CACHE_TTL": "10m"}},
		{"negative weight", map[string]string{"RECOMMEND_DEFAULT_WEIGHTS": "0.5,-0.1,0.6"}},
		{"non-numeric weight", map[string]string{"RECOMMEND_DEFAULT_WEIGHTS": "a,b,c"}},
		{"bad cron schedule", map[string]string{"FEEDBACK_SCHEDULE": "every now and then"}},
		{"port out of range", map[string]string{"HTTP_PORT": "70000"}},
		{"forward without nats", map[string]string{"FEEDBACK_FORWARD": "true"}},
		{"bad table name", map[string]string{"EMBEDDING_TABLE": "items; DROP TABLE x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(ConfigPathEnvVar, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadWithKoanf(); err == nil {
				t.Error("LoadWithKoanf() succeeded, want validation error")
			}
		})
	}
}

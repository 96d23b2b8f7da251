// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/smartrank/internal/config"
	"github.com/tomtom215/smartrank/internal/logging"
	"github.com/tomtom215/smartrank/internal/supervisor"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0, Timeout: 5 * time.Second, ShutdownTimeout: time.Second},
		FeatureStore: config.FeatureStoreConfig{
			Backend:         "memory",
			CacheSize:       100,
			CacheTTL:        time.Minute,
			Deadline:        50 * time.Millisecond,
			RateLimit:       1000,
			RateBurst:       100,
			BreakerFailures: 5,
			BreakerTimeout:  time.Second,
		},
		Embedding: config.EmbeddingConfig{Backend: "memory", Dimension: 4},
		Recommend: config.RecommendConfig{
			DefaultLimit:         10,
			MaxLimit:             50,
			CandidatePool:        100,
			SignalTimeout:        80 * time.Millisecond,
			Epsilon:              1e-6,
			TieEpsilon:           1e-6,
			DiversityWindow:      4,
			DiversityMaxPerTopic: 3,
			DefaultWeights:       []float64{0.5, 0.3, 0.2},
			CacheTTL:             time.Minute,
			CacheSize:            100,
			TimeWindowHours:      6,
			RetryAfter:           3 * time.Second,
		},
		Artifacts: config.ArtifactsConfig{Path: filepath.Join(dir, "artifacts"), PollInterval: time.Minute},
		Feedback: config.FeedbackConfig{
			Enabled:   true,
			LogPath:   filepath.Join(dir, "feedback"),
			Schedule:  "*/15 * * * *",
			Timezone:  "UTC",
			DecayRate: 0.02,
			BatchSize: 100,
			Forward:   true,
		},
		Security: config.SecurityConfig{RateLimitDisabled: true},
	}
}

func TestRegistryConfig_Weights(t *testing.T) {
	t.Parallel()
	cfg := memoryConfig(t)

	rcfg := registryConfig(cfg)
	if rcfg.DefaultWeights.Collaborative != 0.5 || rcfg.DefaultWeights.Content != 0.3 || rcfg.DefaultWeights.Popularity != 0.2 {
		t.Errorf("DefaultWeights = %+v, want 0.5/0.3/0.2", rcfg.DefaultWeights)
	}
	if rcfg.ContentDimension != 4 || rcfg.PollInterval != time.Minute {
		t.Errorf("registryConfig() = %+v", rcfg)
	}

	cfg.Recommend.DefaultWeights = []float64{1}
	if got := registryConfig(cfg).DefaultWeights; got.Collaborative == 1 {
		t.Errorf("malformed weights applied: %+v", got)
	}
}

func TestEngineConfig_Mapping(t *testing.T) {
	t.Parallel()
	cfg := memoryConfig(t)

	ecfg := engineConfig(&cfg.Recommend)
	if ecfg.Limits.DefaultLimit != 10 || ecfg.Limits.MaxLimit != 50 || ecfg.Limits.CandidatePool != 100 {
		t.Errorf("Limits = %+v", ecfg.Limits)
	}
	if ecfg.Cache.MaxEntries != 100 || ecfg.Cache.TTL != time.Minute || ecfg.RetryAfter != 3*time.Second {
		t.Errorf("engineConfig() = %+v", ecfg)
	}
}

func TestFeedbackConfig_ForwardRequiresNATS(t *testing.T) {
	t.Parallel()
	cfg := memoryConfig(t)

	if fcfg := feedbackConfig(cfg); fcfg.Forward {
		t.Error("Forward enabled without NATS")
	}
	cfg.NATS.Enabled = true
	fcfg := feedbackConfig(cfg)
	if !fcfg.Forward {
		t.Error("Forward disabled with NATS enabled")
	}
	if fcfg.DecayRate != 0.02 || fcfg.BatchSize != 100 || fcfg.LogPath != cfg.Feedback.LogPath {
		t.Errorf("feedbackConfig() = %+v", fcfg)
	}
}

func TestInit_MemoryBackendsServeHealth(t *testing.T) {
	cfg := memoryConfig(t)
	ctx := context.Background()

	rc, err := initRecommend(ctx, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("initRecommend() error = %v", err)
	}
	defer rc.Close()
	if !rc.Registry.Ready() {
		t.Error("registry not ready after init")
	}

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	fc, err := initFeedback(ctx, cfg, rc, tree, zerolog.Nop())
	if err != nil {
		t.Fatalf("initFeedback() error = %v", err)
	}
	defer fc.Close()
	if fc.Forwarder != nil {
		t.Error("forwarder created without NATS")
	}
	if r := fc.Reporter(); r.Forwarder != nil || r.Log == nil || r.Batch == nil {
		t.Errorf("Reporter() = %+v", r)
	}

	server, err := newHTTPServer(cfg, rc, fc)
	if err != nil {
		t.Fatalf("newHTTPServer() error = %v", err)
	}

	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready", "/api/v1/recommendations/status"} {
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200: %s", path, rec.Code, rec.Body.String())
		}
	}
}

func TestInit_FeedbackDisabled(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Feedback.Enabled = false

	rc, err := initRecommend(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("initRecommend() error = %v", err)
	}
	defer rc.Close()

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	fc, err := initFeedback(context.Background(), cfg, rc, tree, zerolog.Nop())
	if err != nil || fc != nil {
		t.Fatalf("initFeedback() = %v, %v, want nil, nil", fc, err)
	}
	if err := fc.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}

	server, err := newHTTPServer(cfg, rc, fc)
	if err != nil {
		t.Fatalf("newHTTPServer() error = %v", err)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/feedback/events", http.NoBody)
	server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("POST feedback = %d, want 503", rec.Code)
	}
}

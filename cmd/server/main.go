// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/smartrank/internal/api"
	"github.com/tomtom215/smartrank/internal/cache"
	"github.com/tomtom215/smartrank/internal/config"
	"github.com/tomtom215/smartrank/internal/logging"
	"github.com/tomtom215/smartrank/internal/middleware"
	"github.com/tomtom215/smartrank/internal/supervisor"
	"github.com/tomtom215/smartrank/internal/supervisor/services"
)

const (
	// perfWindow is the number of recent requests kept for latency stats.
	perfWindow = 1000

	// slowRequestThreshold logs requests slower than the serving target.
	slowRequestThreshold = 100 * time.Millisecond

	// cacheSweepInterval is how often expired cache entries are purged.
	cacheSweepInterval = time.Minute
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("feature_store", cfg.FeatureStore.Backend).
		Str("embedding_index", cfg.Embedding.Backend).
		Bool("feedback", cfg.Feedback.Enabled).
		Bool("nats", cfg.NATS.Enabled).
		Msg("Starting Smartrank with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slogLogger := logging.NewSlogLogger()
	tree := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	rc, err := initRecommend(ctx, cfg, logging.WithComponent("recommend"))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize recommendation engine")
	}
	defer func() {
		if err := rc.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing recommendation components")
		}
	}()
	tree.AddDataService(rc.Registry)
	tree.AddDataService(cache.NewSweeper(cacheSweepInterval, logging.WithComponent("cache"), rc.Features, rc.Engine))

	fc, err := initFeedback(ctx, cfg, rc, tree, logging.WithComponent("feedback"))
	if err != nil {
		// Fatal skips deferred closes
		_ = rc.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize feedback pipeline")
	}

	server, err := newHTTPServer(cfg, rc, fc)
	if err != nil {
		_ = fc.Close()
		_ = rc.Close()
		logging.Fatal().Err(err).Msg("Failed to initialize HTTP API")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		cancel()
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Unstopped service")
		}
	}

	// services are stopped, nothing appends to the log any more
	if err := fc.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing feedback pipeline")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// newHTTPServer assembles handlers, middleware and the router.
func newHTTPServer(cfg *config.Config, rc *RecommendComponents, fc *FeedbackComponents) (*http.Server, error) {
	perfMon := middleware.NewPerformanceMonitor(perfWindow, slowRequestThreshold, logging.WithComponent("http"))

	deps := api.HandlerDeps{
		Recommender: rc.Engine,
		Readiness:   rc.Registry,
		Feedback:    fc.Reporter(),
		PerfMon:     perfMon,
		RetryAfter:  cfg.Recommend.RetryAfter,
	}
	if fc != nil {
		deps.Events = fc.Ingestor
	}
	handler, err := api.NewHandler(deps)
	if err != nil {
		return nil, err
	}

	mw := api.NewChiMiddleware(api.ChiMiddlewareConfigFrom(&cfg.Security))
	router := api.NewRouter(handler, mw)

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}, nil
}

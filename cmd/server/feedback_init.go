// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/smartrank/internal/api"
	"github.com/tomtom215/smartrank/internal/config"
	"github.com/tomtom215/smartrank/internal/feedback"
	"github.com/tomtom215/smartrank/internal/logging"
	"github.com/tomtom215/smartrank/internal/supervisor"
	"github.com/tomtom215/smartrank/internal/supervisor/services"
)

// FeedbackComponents holds the feedback pipeline. Forwarder and NATS are
// nil unless event forwarding is enabled.
type FeedbackComponents struct {
	Log       *feedback.EventLog
	Ingestor  *feedback.Ingestor
	Batch     *feedback.Batch
	Scheduler *feedback.Scheduler
	Forwarder *feedback.Forwarder
	NATS      *feedback.EmbeddedServer
}

// Reporter returns the state exposed by the status endpoint. Only non-nil
// components are set so the interface fields stay nil when disabled.
func (fc *FeedbackComponents) Reporter() api.FeedbackReporter {
	var r api.FeedbackReporter
	if fc == nil {
		return r
	}
	r.Log = fc.Log
	r.Batch = fc.Batch
	if fc.Forwarder != nil {
		r.Forwarder = fc.Forwarder
	}
	return r
}

// Close shuts the pipeline down after the supervisor tree has stopped.
func (fc *FeedbackComponents) Close() error {
	if fc == nil {
		return nil
	}
	var errs []error
	if fc.Forwarder != nil {
		if err := fc.Forwarder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if err := fc.Log.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close event log: %w", err))
	}
	if fc.NATS != nil {
		fc.NATS.Shutdown()
	}
	return errors.Join(errs...)
}

// initFeedback opens the event log and builds the ingestor, the offline
// batch and, when NATS is enabled, the outbox forwarder. Services are added
// to the tree; the caller closes the components after the tree stops.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initFeedback(ctx context.Context, cfg *config.Config, rc *RecommendComponents, tree *supervisor.SupervisorTree, logger zerolog.Logger) (*FeedbackComponents, error) {
	if !cfg.Feedback.Enabled {
		logger.Info().Msg("Feedback ingestion disabled (FEEDBACK_ENABLED=false)")
		return nil, nil
	}

	fcfg := feedbackConfig(cfg)
	eventLog, err := feedback.OpenEventLog(&fcfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	fc := &FeedbackComponents{Log: eventLog}
	fail := func(err error) (*FeedbackComponents, error) {
		if cerr := fc.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("cleanup after failed feedback init")
		}
		return nil, err
	}

	fc.Ingestor, err = feedback.NewIngestor(eventLog, rc.Features, &fcfg, logger)
	if err != nil {
		return fail(fmt.Errorf("feedback ingestor: %w", err))
	}
	fc.Batch, err = feedback.NewBatch(eventLog, feedback.BatchDeps{
		Writer:      rc.Writer,
		Items:       rc.Features,
		Invalidator: rc.Features,
	}, &fcfg, logger)
	if err != nil {
		return fail(fmt.Errorf("feedback batch: %w", err))
	}
	fc.Scheduler, err = feedback.NewScheduler(fc.Batch, eventLog, &fcfg, logger)
	if err != nil {
		return fail(fmt.Errorf("feedback scheduler: %w", err))
	}
	tree.AddDataService(fc.Scheduler)

	if fcfg.Forward {
		if err := initForwarder(ctx, cfg, fc, tree, logger); err != nil {
			return fail(err)
		}
	}

	logger.Info().
		Str("log_path", fcfg.LogPath).
		Str("schedule", fcfg.Schedule).
		Bool("forward", fcfg.Forward).
		Msg("Feedback pipeline initialized")
	return fc, nil
}

// initForwarder connects the outbox to NATS JetStream, starting an embedded
// server first when configured.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initForwarder(ctx context.Context, cfg *config.Config, fc *FeedbackComponents, tree *supervisor.SupervisorTree, logger zerolog.Logger) error {
	url := cfg.NATS.URL
	streamCfg := feedback.DefaultStreamConfig(cfg.NATS.Topic)
	if cfg.NATS.EmbeddedServer {
		ns, err := feedback.NewEmbeddedServer(&feedback.ServerConfig{
			Host:              "127.0.0.1",
			Port:              4222,
			StoreDir:          cfg.NATS.StoreDir,
			JetStreamMaxMem:   cfg.NATS.MaxMemory,
			JetStreamMaxStore: cfg.NATS.MaxStore,
		})
		if err != nil {
			return fmt.Errorf("start embedded NATS: %w", err)
		}
		fc.NATS = ns
		url = ns.ClientURL()
		streamCfg = feedback.StreamConfigForStore(cfg.NATS.Topic, cfg.NATS.MaxStore)
		tree.AddMessagingService(services.NewEmbeddedNATSService(ns, 0))
		logger.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	if err := feedback.EnsureStreamAt(ctx, url, streamCfg); err != nil {
		return fmt.Errorf("ensure stream: %w", err)
	}

	pub, err := feedback.NewNATSPublisher(feedback.DefaultPublisherConfig(url), logging.NewWatermillLogger(logger))
	if err != nil {
		return fmt.Errorf("NATS publisher: %w", err)
	}

	fwd := feedback.DefaultForwardConfig()
	fwd.Topic = cfg.NATS.Topic
	if cfg.NATS.BreakerFailures > 0 {
		fwd.BreakerFailures = cfg.NATS.BreakerFailures
	}
	if cfg.NATS.BreakerTimeout > 0 {
		fwd.BreakerTimeout = cfg.NATS.BreakerTimeout
	}
	fc.Forwarder, err = feedback.NewForwarder(fc.Log, pub, &fwd, logger)
	if err != nil {
		_ = pub.Close()
		return fmt.Errorf("feedback forwarder: %w", err)
	}
	tree.AddMessagingService(fc.Forwarder)
	logger.Info().Str("url", url).Str("topic", fwd.Topic).Msg("Event forwarding to NATS enabled")
	return nil
}

func feedbackConfig(cfg *config.Config) feedback.Config {
	fcfg := feedback.DefaultConfig()
	fcfg.LogPath = cfg.Feedback.LogPath
	fcfg.SyncWrites = cfg.Feedback.SyncWrites
	fcfg.Forward = cfg.Feedback.Forward && cfg.NATS.Enabled
	if cfg.Feedback.Schedule != "" {
		fcfg.Schedule = cfg.Feedback.Schedule
	}
	if cfg.Feedback.Timezone != "" {
		fcfg.Timezone = cfg.Feedback.Timezone
	}
	if cfg.Feedback.BatchSize > 0 {
		fcfg.BatchSize = cfg.Feedback.BatchSize
	}
	fcfg.DecayRate = cfg.Feedback.DecayRate
	if cfg.Feedback.EngagementWindow > 0 {
		fcfg.EngagementWindow = cfg.Feedback.EngagementWindow
	}
	return fcfg
}

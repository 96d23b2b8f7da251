// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// gcRatio is the badger value log discard ratio used after each run.
const gcRatio = 0.5

// Scheduler runs the batch on a cron schedule. It implements suture.Service.
type Scheduler struct {
	batch    *Batch
	log      *EventLog
	schedule cron.Schedule
	spec     string
	location *time.Location
	logger   zerolog.Logger
}

// NewScheduler parses cfg.Schedule in cfg.Timezone.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewScheduler(batch *Batch, log *EventLog, cfg *Config, logger zerolog.Logger) (*Scheduler, error) {
	if batch == nil {
		return nil, fmt.Errorf("feedback: batch is required")
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("feedback: invalid timezone %q: %w", cfg.Timezone, err)
	}
	sched, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("feedback: invalid schedule %q: %w", cfg.Schedule, err)
	}
	return &Scheduler{
		batch:    batch,
		log:      log,
		schedule: sched,
		spec:     cfg.Schedule,
		location: loc,
		logger:   logger.With().Str("component", "feedback-scheduler").Logger(),
	}, nil
}

// Serve runs until ctx is canceled. A run in progress is allowed to finish
// before Serve returns.
func (s *Scheduler) Serve(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.location))
	c.Schedule(s.schedule, cron.FuncJob(func() { s.runOnce(ctx) }))
	c.Start()

	s.logger.Info().
		Str("schedule", s.spec).
		Str("timezone", s.location.String()).
		Time("next_run", s.schedule.Next(time.Now().In(s.location))).
		Msg("feedback batch scheduled")

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// String implements fmt.Stringer for suture.
func (s *Scheduler) String() string {
	return "feedback-batch-scheduler"
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.batch.Run(ctx); err != nil {
		if errors.Is(err, ErrBatchRunning) {
			s.logger.Warn().Msg("previous feedback batch still running, skipping")
		}
		return
	}
	if s.log != nil {
		if err := s.log.RunGC(gcRatio); err != nil {
			s.logger.Warn().Err(err).Msg("event log gc failed")
		}
	}
}

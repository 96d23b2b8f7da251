// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweepable is a cache owner that can purge its expired entries.
type Sweepable interface {
	Sweep() int
}

// Sweeper periodically purges expired entries from a set of caches.
// Implements suture.Service.
type Sweeper struct {
	interval time.Duration
	targets  []Sweepable
	logger   zerolog.Logger
}

// NewSweeper creates a Sweeper that runs every interval.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSweeper(interval time.Duration, logger zerolog.Logger, targets ...Sweepable) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{interval: interval, targets: targets, logger: logger}
}

// SweepOnce sweeps every target and returns the total removed.
func (s *Sweeper) SweepOnce() int {
	removed := 0
	for _, t := range s.targets {
		removed += t.Sweep()
	}
	return removed
}

// Serve sweeps on every tick until ctx is done.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.SweepOnce(); n > 0 {
				s.logger.Debug().Int("removed", n).Msg("Expired cache entries swept")
			}
		}
	}
}

// String implements fmt.Stringer for suture logs.
func (s *Sweeper) String() string {
	return "cache-sweeper"
}

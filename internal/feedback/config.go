// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package feedback

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Config configures the event log, ingestor and batch.
type Config struct {
	// LogPath is the BadgerDB directory.
	LogPath string

	// SyncWrites fsyncs every append before it is acknowledged.
	SyncWrites bool

	// Forward also queues accepted events in the outbox for the Forwarder.
	Forward bool

	// MaxClockSkew is how far in the future an event timestamp may be.
	MaxClockSkew time.Duration

	// Schedule is the standard 5-field cron expression of the batch.
	Schedule string

	// Timezone is the IANA location the schedule is evaluated in.
	Timezone string

	// BatchSize is the number of events labeled together.
	BatchSize int

	// DecayRate is the popularity decay per hour of item age.
	DecayRate float64

	// SettleDelay keeps the batch away from events accepted in the last few
	// seconds, whose append may not have committed yet.
	SettleDelay time.Duration

	// WriteChunk is the number of popularity scores per feature store write.
	WriteChunk int

	// EngagementWindow is how long after acceptance a view waits for an
	// engagement before it is labeled not engaged.
	EngagementWindow time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		LogPath:      "/data/feedback",
		SyncWrites:   true,
		MaxClockSkew: 5 * time.Minute,
		Schedule:     "*/15 * * * *",
		Timezone:     "UTC",
		BatchSize:    1000,
		DecayRate:    0.01,
		SettleDelay:  10 * time.Second,
		WriteChunk:   500,

		EngagementWindow: 30 * time.Minute,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.LogPath == "" {
		return fmt.Errorf("feedback: log path is required")
	}
	if c.MaxClockSkew < 0 {
		return fmt.Errorf("feedback: max clock skew must not be negative")
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("feedback: invalid schedule %q: %w", c.Schedule, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("feedback: invalid timezone %q: %w", c.Timezone, err)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("feedback: batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.DecayRate < 0 {
		return fmt.Errorf("feedback: decay rate must not be negative, got %g", c.DecayRate)
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("feedback: settle delay must not be negative")
	}
	if c.WriteChunk < 1 {
		return fmt.Errorf("feedback: write chunk must be at least 1, got %d", c.WriteChunk)
	}
	if c.EngagementWindow < 0 {
		return fmt.Errorf("feedback: engagement window must not be negative")
	}
	return nil
}

// ForwardConfig configures the NATS forwarder.
type ForwardConfig struct {
	// Topic is the subject events are published to.
	Topic string

	// Interval is how often the outbox is drained.
	Interval time.Duration

	// BatchSize bounds the entries published per drain.
	BatchSize int

	// MaxAttempts drops an entry after this many failed publishes.
	MaxAttempts int

	// BreakerFailures consecutive failures open the circuit breaker.
	BreakerFailures uint32

	// BreakerTimeout is how long the breaker stays open.
	BreakerTimeout time.Duration
}

// DefaultForwardConfig returns the forwarder defaults.
func DefaultForwardConfig() ForwardConfig {
	return ForwardConfig{
		Topic:           "smartrank.interactions",
		Interval:        time.Second,
		BatchSize:       256,
		MaxAttempts:     100,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// Validate checks the configuration.
func (c *ForwardConfig) Validate() error {
	if c.Topic == "" {
		return fmt.Errorf("feedback: forward topic is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("feedback: forward interval must be positive")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("feedback: forward batch size must be at least 1")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("feedback: forward max attempts must be at least 1")
	}
	if c.BreakerFailures < 1 {
		return fmt.Errorf("feedback: breaker failures must be at least 1")
	}
	if c.BreakerTimeout <= 0 {
		return fmt.Errorf("feedback: breaker timeout must be positive")
	}
	return nil
}

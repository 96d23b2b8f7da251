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

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/smartrank/internal/metrics"
)

// Forwarder drains the outbox to a Watermill publisher. It implements
// suture.Service.
type Forwarder struct {
	log     *EventLog
	pub     message.Publisher
	breaker *gobreaker.CircuitBreaker[interface{}]
	cfg     ForwardConfig
	logger  zerolog.Logger
}

// NewForwarder creates a forwarder publishing outbox entries to pub.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewForwarder(log *EventLog, pub message.Publisher, cfg *ForwardConfig, logger zerolog.Logger) (*Forwarder, error) {
	if log == nil {
		return nil, fmt.Errorf("feedback: event log is required")
	}
	if pub == nil {
		return nil, fmt.Errorf("feedback: publisher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With().Str("component", "feedback-forwarder").Logger()
	return &Forwarder{
		log:     log,
		pub:     pub,
		breaker: newBreaker("feedback-forwarder", cfg.BreakerFailures, cfg.BreakerTimeout, logger),
		cfg:     *cfg,
		logger:  logger,
	}, nil
}

func newBreaker(name string, failures uint32, timeout time.Duration, logger zerolog.Logger) *gobreaker.CircuitBreaker[interface{}] {
	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}

// Serve drains the outbox every Interval until ctx is canceled.
func (f *Forwarder) Serve(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.Interval)
	defer ticker.Stop()

	f.logger.Info().
		Str("topic", f.cfg.Topic).
		Dur("interval", f.cfg.Interval).
		Msg("feedback forwarder started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := f.Flush(ctx); err != nil && ctx.Err() == nil {
				f.logger.Warn().Err(err).Msg("outbox flush failed")
			}
		}
	}
}

// String implements fmt.Stringer for suture.
func (f *Forwarder) String() string {
	return "feedback-forwarder"
}

// BreakerState returns the circuit breaker state name.
func (f *Forwarder) BreakerState() string {
	return f.breaker.State().String()
}

// Flush publishes up to BatchSize outbox entries and returns how many were
// forwarded. It stops early while the breaker is open.
func (f *Forwarder) Flush(ctx context.Context) (int, error) {
	entries, err := f.log.Pending(ctx, f.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range entries {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		entry := &entries[i]

		err := f.publish(entry)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordFeedbackForward("breaker_open")
			return sent, nil
		}
		if err != nil {
			f.recordFailure(ctx, entry, err)
			continue
		}

		if err := f.log.Confirm(ctx, entry.Key); err != nil && !errors.Is(err, ErrEntryNotFound) {
			return sent, err
		}
		metrics.RecordFeedbackForward("published")
		sent++
	}
	return sent, nil
}

func (f *Forwarder) publish(entry *OutboxEntry) error {
	payload, err := json.Marshal(&entry.Event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(entry.Event.ID, payload)
	msg.Metadata.Set(natsgo.MsgIdHdr, entry.Event.ID)
	msg.Metadata.Set("event_type", string(entry.Event.Type))
	msg.Metadata.Set("user_id", entry.Event.UserID)
	msg.Metadata.Set("item_id", entry.Event.ItemID)

	_, err = f.breaker.Execute(func() (interface{}, error) {
		return nil, f.pub.Publish(f.cfg.Topic, msg)
	})
	return err
}

func (f *Forwarder) recordFailure(ctx context.Context, entry *OutboxEntry, cause error) {
	updated, err := f.log.UpdateAttempt(ctx, entry.Key, cause)
	if err != nil {
		f.logger.Warn().Err(err).Str("key", entry.Key).Msg("recording forward attempt failed")
		return
	}
	if updated.Attempts < f.cfg.MaxAttempts {
		metrics.RecordFeedbackForward("retry")
		return
	}

	if err := f.log.Drop(ctx, entry.Key); err != nil {
		f.logger.Warn().Err(err).Str("key", entry.Key).Msg("dropping outbox entry failed")
		return
	}
	metrics.RecordFeedbackForward("dropped")
	f.logger.Error().
		Err(cause).
		Str("event_id", entry.Event.ID).
		Int("attempts", updated.Attempts).
		Msg("event dropped from outbox after max attempts")
}

// Close closes the publisher.
func (f *Forwarder) Close() error {
	return f.pub.Close()
}

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/smartrank/internal/logging"
	"github.com/tomtom215/smartrank/internal/metrics"
	"github.com/tomtom215/smartrank/internal/validation"
)

// Directory answers whether users and items exist. The feature store
// adapter implements it.
type Directory interface {
	HasUser(ctx context.Context, id string) (bool, error)
	HasItem(ctx context.Context, id string) (bool, error)
}

// Ingestor accepts interaction events into the event log.
type Ingestor struct {
	log     *EventLog
	dir     Directory
	forward bool
	skew    time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// NewIngestor creates an ingestor writing to log and resolving ids via dir.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewIngestor(log *EventLog, dir Directory, cfg *Config, logger zerolog.Logger) (*Ingestor, error) {
	if log == nil {
		return nil, fmt.Errorf("feedback: event log is required")
	}
	if dir == nil {
		return nil, fmt.Errorf("feedback: directory is required")
	}
	return &Ingestor{
		log:     log,
		dir:     dir,
		forward: cfg.Forward,
		skew:    cfg.MaxClockSkew,
		now:     time.Now,
		logger:  logger.With().Str("component", "feedback-ingestor").Logger(),
	}, nil
}

// RecordEvent validates the event, confirms its user and item exist and
// appends it to the log. A *RejectedError means the event will never be
// accepted as sent; any other error is transient.
//
//nolint:gocritic // hugeParam: ev passed by value for immutability
func (i *Ingestor) RecordEvent(ctx context.Context, ev Event) (Ack, error) {
	logger := logging.FromContext(ctx, i.logger)

	if rej := i.validate(&ev); rej != nil {
		metrics.RecordFeedbackEvent(typeLabel(ev.Type), false, string(rej.Reason))
		logger.Debug().Str("reason", string(rej.Reason)).Str("detail", rej.Detail).Msg("event rejected")
		return Ack{}, rej
	}

	if ok, err := i.dir.HasUser(ctx, ev.UserID); err != nil {
		return Ack{}, fmt.Errorf("check user %s: %w", ev.UserID, err)
	} else if !ok {
		metrics.RecordFeedbackEvent(string(ev.Type), false, string(ReasonUnknownUser))
		return Ack{}, rejectf(ReasonUnknownUser, "user %q does not exist", ev.UserID)
	}

	if ok, err := i.dir.HasItem(ctx, ev.ItemID); err != nil {
		return Ack{}, fmt.Errorf("check item %s: %w", ev.ItemID, err)
	} else if !ok {
		metrics.RecordFeedbackEvent(string(ev.Type), false, string(ReasonUnknownItem))
		return Ack{}, rejectf(ReasonUnknownItem, "item %q does not exist", ev.ItemID)
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Timestamp = ev.Timestamp.UTC()
	receivedAt := i.now().UTC()

	if _, err := i.log.Append(ctx, ev, receivedAt, i.forward); err != nil {
		return Ack{}, err
	}

	metrics.RecordFeedbackEvent(string(ev.Type), true, "")
	logger.Debug().
		Str("event_id", ev.ID).
		Str("user_id", ev.UserID).
		Str("item_id", ev.ItemID).
		Str("type", string(ev.Type)).
		Msg("event recorded")

	return Ack{EventID: ev.ID, ReceivedAt: receivedAt}, nil
}

func (i *Ingestor) validate(ev *Event) *RejectedError {
	if verr := validation.ValidateStruct(ev); verr != nil {
		return &RejectedError{Reason: ReasonMalformedEvent, Detail: verr.Error(), Validation: verr}
	}
	if ev.Timestamp.Before(time.Unix(0, 0)) {
		return rejectf(ReasonMalformedEvent, "timestamp %s is before the unix epoch", ev.Timestamp.Format(time.RFC3339))
	}
	if limit := i.now().Add(i.skew); ev.Timestamp.After(limit) {
		return rejectf(ReasonMalformedEvent, "timestamp %s is in the future", ev.Timestamp.Format(time.RFC3339))
	}
	return nil
}

// typeLabel keeps client-supplied garbage out of metric labels.
func typeLabel(t EventType) string {
	switch t {
	case EventView, EventClick, EventLike, EventShare, EventComment:
		return string(t)
	default:
		return "invalid"
	}
}

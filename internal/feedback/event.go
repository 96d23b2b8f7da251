// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package feedback

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/smartrank/internal/validation"
)

// EventType is the kind of interaction.
type EventType string

// Interaction types.
const (
	EventView    EventType = "view"
	EventClick   EventType = "click"
	EventLike    EventType = "like"
	EventShare   EventType = "share"
	EventComment EventType = "comment"
)

// IsEngagement reports whether the interaction counts as engagement with a
// shown item. Views are impressions, everything else is engagement.
func (t EventType) IsEngagement() bool {
	switch t {
	case EventClick, EventLike, EventShare, EventComment:
		return true
	default:
		return false
	}
}

// Event is one user interaction with a content item.
type Event struct {
	// ID is assigned by the ingestor when empty. It doubles as the NATS
	// message id so redelivered events are deduplicated downstream.
	ID            string    `json:"id,omitempty" validate:"omitempty,uuid"`
	UserID        string    `json:"user_id" validate:"required,identifier"`
	ItemID        string    `json:"item_id" validate:"required,identifier"`
	Type          EventType `json:"type" validate:"required,oneof=view click like share comment"`
	Timestamp     time.Time `json:"timestamp" validate:"required"`
	ContextBucket string    `json:"context_bucket,omitempty" validate:"omitempty,max=128"`
}

// Ack confirms that an event is durably recorded.
type Ack struct {
	EventID    string    `json:"event_id"`
	ReceivedAt time.Time `json:"received_at"`
}

// RejectReason says why an event was not recorded.
type RejectReason string

// Rejection reasons.
const (
	ReasonMalformedEvent RejectReason = "malformed_event"
	ReasonUnknownUser    RejectReason = "unknown_user"
	ReasonUnknownItem    RejectReason = "unknown_item"
)

// RejectedError is returned for events that will never be accepted as sent.
type RejectedError struct {
	Reason RejectReason
	Detail string

	// Validation is set for malformed events that failed field validation.
	Validation *validation.RequestValidationError
}

func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("feedback: event rejected: %s", e.Reason)
	}
	return fmt.Sprintf("feedback: event rejected: %s: %s", e.Reason, e.Detail)
}

// Errors returned by the event log.
var (
	ErrLogClosed     = errors.New("feedback: event log closed")
	ErrEntryNotFound = errors.New("feedback: entry not found")
	ErrBatchRunning  = errors.New("feedback: batch already running")
)

func rejectf(reason RejectReason, format string, args ...any) *RejectedError {
	return &RejectedError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

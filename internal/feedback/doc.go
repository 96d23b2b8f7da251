// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

/*
Package feedback records user interactions and turns them into training
inputs for the recommendation models.

Nothing in this package runs on the serving path. The pieces are:

  - Ingestor validates an Event, checks that its user and item exist and
    appends it to the EventLog. The acknowledgement is sent only after the
    append is durable.
  - EventLog is a BadgerDB store holding the append-only event log, the
    forwarding outbox, labeled examples, per-item aggregates and the batch
    checkpoint.
  - Batch reads events past the checkpoint, emits labeled examples, updates
    the aggregates and writes decayed popularity scores back to the feature
    store. Scheduler runs it on a cron schedule.
  - Forwarder drains the outbox to NATS JetStream through a Watermill
    publisher guarded by a circuit breaker. Forwarding failures never reject
    an event; entries stay in the outbox until published or dropped after
    MaxAttempts.

# Key Layout

	event:<received unix nanos, 20 digits>:<event id>    accepted events
	outbox:<received unix nanos, 20 digits>:<event id>   events awaiting forwarding
	example:<view unix nanos, 20 digits>:<user>:<item>   labeled examples
	agg:<item id>                                        cumulative item aggregates
	meta:checkpoint                                      last event key consumed by the batch

Event keys are ordered by the time the ingestor accepted the event, not by
the client timestamp, so a late-arriving event can never fall behind the
checkpoint.

# Usage

	log, err := feedback.OpenEventLog(cfg, logger)
	ingestor, err := feedback.NewIngestor(log, adapter, cfg, logger)
	ack, err := ingestor.RecordEvent(ctx, feedback.Event{
	    UserID: "u-1", ItemID: "a-9", Type: feedback.EventClick, Timestamp: time.Now(),
	})
	var rejected *feedback.RejectedError
	if errors.As(err, &rejected) {
	    // 422 with rejected.Reason
	}
*/
package feedback

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package feedback

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/smartrank/internal/featurestore"
	"github.com/tomtom215/smartrank/internal/metrics"
	"github.com/tomtom215/smartrank/internal/recommend/signals"
)

// ItemSource supplies item creation times for popularity decay.
type ItemSource interface {
	GetItemFeatures(ctx context.Context, ids []string) (featurestore.ItemBatch, error)
}

// Invalidator drops cached item features after popularity is rewritten.
type Invalidator interface {
	Invalidate(itemIDs ...string)
}

// BatchDeps are the collaborators of a Batch. Writer is required.
type BatchDeps struct {
	Writer      featurestore.PopularityWriter
	Items       ItemSource
	Invalidator Invalidator
	Now         func() time.Time
}

// BatchResult summarizes one run.
type BatchResult struct {
	Events     int           `json:"events"`
	Examples   int           `json:"examples"`
	Engaged    int           `json:"engaged"`
	NotEngaged int           `json:"not_engaged"`
	Items      int           `json:"items"`
	Pending    int           `json:"pending"`
	Checkpoint string        `json:"checkpoint,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// Batch turns logged events into labeled examples, item aggregates and
// popularity scores.
type Batch struct {
	log    *EventLog
	deps   BatchDeps
	cfg    Config
	logger zerolog.Logger

	mu   sync.Mutex
	last atomic.Pointer[BatchResult]
}

// NewBatch creates a batch over log.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBatch(log *EventLog, deps BatchDeps, cfg *Config, logger zerolog.Logger) (*Batch, error) {
	if log == nil {
		return nil, fmt.Errorf("feedback: event log is required")
	}
	if deps.Writer == nil {
		return nil, fmt.Errorf("feedback: popularity writer is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Batch{
		log:    log,
		deps:   deps,
		cfg:    *cfg,
		logger: logger.With().Str("component", "feedback-batch").Logger(),
	}, nil
}

// Run processes every event accepted since the checkpoint. Only one run
// executes at a time; a concurrent call returns ErrBatchRunning.
func (b *Batch) Run(ctx context.Context) (BatchResult, error) {
	if !b.mu.TryLock() {
		return BatchResult{}, ErrBatchRunning
	}
	defer b.mu.Unlock()

	start := time.Now()
	res, err := b.run(ctx, b.deps.Now())
	res.Duration = time.Since(start)
	metrics.RecordFeedbackBatch(res.Duration, res.Events, res.Engaged, res.NotEngaged, err)

	if err != nil {
		b.logger.Error().Err(err).
			Int("events", res.Events).
			Str("checkpoint", res.Checkpoint).
			Msg("feedback batch failed")
		return res, err
	}

	b.last.Store(&res)
	b.logger.Info().
		Int("events", res.Events).
		Int("examples", res.Examples).
		Int("engaged", res.Engaged).
		Int("pending", res.Pending).
		Int("items", res.Items).
		Dur("duration", res.Duration).
		Msg("feedback batch complete")
	return res, nil
}

// LastResult returns the most recent successful run, if any.
func (b *Batch) LastResult() (BatchResult, bool) {
	if r := b.last.Load(); r != nil {
		return *r, true
	}
	return BatchResult{}, false
}

func (b *Batch) run(ctx context.Context, now time.Time) (BatchResult, error) {
	res := BatchResult{StartedAt: now}

	checkpoint, err := b.log.Checkpoint()
	if err != nil {
		return res, err
	}
	res.Checkpoint = checkpoint
	upto := eventBound(now.Add(-b.cfg.SettleDelay))

	pending, err := b.log.PendingViews(ctx)
	if err != nil {
		return res, err
	}

	for {
		records, err := b.log.Events(ctx, checkpoint, upto, b.cfg.BatchSize)
		if err != nil {
			return res, err
		}
		if len(records) == 0 {
			break
		}

		examples, deltas, views := label(records, pending)
		last := records[len(records)-1].Key
		if err := b.log.SaveBatch(ctx, BatchUpdate{Examples: examples, Deltas: deltas, Views: views, Checkpoint: last}); err != nil {
			return res, err
		}

		checkpoint = last
		res.Checkpoint = last
		res.Events += len(records)
		res.count(examples)

		if len(records) < b.cfg.BatchSize {
			break
		}
	}

	// views left unengaged past the window are final
	expired, views := expire(pending, now.Add(-b.cfg.EngagementWindow))
	if len(expired) > 0 {
		if err := b.log.SaveBatch(ctx, BatchUpdate{Examples: expired, Views: views, Checkpoint: checkpoint}); err != nil {
			return res, err
		}
		res.count(expired)
	}
	res.Pending = len(pending)

	n, err := b.refreshPopularity(ctx, now)
	res.Items = n
	return res, err
}

func (r *BatchResult) count(examples []Example) {
	r.Examples += len(examples)
	for i := range examples {
		if examples[i].Engaged {
			r.Engaged++
		} else {
			r.NotEngaged++
		}
	}
}

// label builds aggregate deltas for one chunk of records and matches views
// with engagements. A view waits in pending until the same user engages
// with the item, in this chunk or a later one, which yields an engaged
// example. Views are applied before engagements, so an engagement anywhere
// in the chunk counts. The returned view changes mirror the edits made to
// pending.
func label(records []Record, pending map[string]*PendingView) ([]Example, map[string]*Aggregate, map[string]*PendingView) {
	deltas := make(map[string]*Aggregate)
	views := make(map[string]*PendingView)

	for i := range records {
		rec := &records[i]
		ev := &rec.Event

		d, ok := deltas[ev.ItemID]
		if !ok {
			d = &Aggregate{ItemID: ev.ItemID, FirstSeen: ev.Timestamp}
			deltas[ev.ItemID] = d
		}
		if ev.Timestamp.Before(d.FirstSeen) {
			d.FirstSeen = ev.Timestamp
		}
		if ev.Timestamp.After(d.LastEventAt) {
			d.LastEventAt = ev.Timestamp
		}

		if ev.Type != EventView {
			continue
		}
		d.Impressions++
		key := viewKey(ev.UserID, ev.ItemID)
		if pv, seen := pending[key]; !seen {
			pv = &PendingView{
				Example: Example{
					UserID:        ev.UserID,
					ItemID:        ev.ItemID,
					ContextBucket: ev.ContextBucket,
					ViewedAt:      ev.Timestamp,
				},
				SeenAt: rec.ReceivedAt,
			}
			pending[key] = pv
			views[key] = pv
		} else if ev.Timestamp.Before(pv.ViewedAt) {
			pv.ViewedAt = ev.Timestamp
			pv.ContextBucket = ev.ContextBucket
			views[key] = pv
		}
	}

	var examples []Example
	for i := range records {
		ev := &records[i].Event
		if !ev.Type.IsEngagement() {
			continue
		}
		deltas[ev.ItemID].Engagements++
		key := viewKey(ev.UserID, ev.ItemID)
		pv, ok := pending[key]
		if !ok {
			continue
		}
		ex := pv.Example
		ex.Engaged = true
		examples = append(examples, ex)
		delete(pending, key)
		views[key] = nil
	}
	return examples, deltas, views
}

// expire removes views accepted before cutoff from pending and returns them
// as unengaged examples, ordered by key, with the matching view deletions.
func expire(pending map[string]*PendingView, cutoff time.Time) ([]Example, map[string]*PendingView) {
	var keys []string
	for key, pv := range pending {
		if pv.SeenAt.Before(cutoff) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	examples := make([]Example, 0, len(keys))
	views := make(map[string]*PendingView, len(keys))
	for _, key := range keys {
		examples = append(examples, pending[key].Example)
		delete(pending, key)
		views[key] = nil
	}
	return examples, views
}

// refreshPopularity recomputes the decayed popularity of every aggregated
// item and writes it to the feature store. Scores decay with time, so this
// runs even when no new events arrived.
func (b *Batch) refreshPopularity(ctx context.Context, now time.Time) (int, error) {
	aggs, err := b.log.Aggregates(ctx)
	if err != nil {
		return 0, err
	}
	if len(aggs) == 0 {
		return 0, nil
	}

	chunk := b.cfg.WriteChunk
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for start := 0; start < len(aggs); start += chunk {
		part := aggs[start:min(start+chunk, len(aggs))]
		g.Go(func() error {
			created := b.createdAt(gctx, part)
			scores := make(map[string]float64, len(part))
			ids := make([]string, len(part))
			for i := range part {
				a := &part[i]
				ts, ok := created[a.ItemID]
				if !ok {
					ts = a.FirstSeen
				}
				scores[a.ItemID] = min(signals.DecayedPopularity(a.Engagements, a.Impressions, ts, now, b.cfg.DecayRate), 1)
				ids[i] = a.ItemID
			}
			if err := b.deps.Writer.WritePopularity(gctx, scores); err != nil {
				return fmt.Errorf("write popularity: %w", err)
			}
			if b.deps.Invalidator != nil {
				b.deps.Invalidator.Invalidate(ids...)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(aggs), nil
}

// createdAt looks up item creation times. Lookup failures fall back to the
// first time the batch saw the item.
func (b *Batch) createdAt(ctx context.Context, aggs []Aggregate) map[string]time.Time {
	if b.deps.Items == nil {
		return nil
	}
	ids := make([]string, len(aggs))
	for i := range aggs {
		ids[i] = aggs[i].ItemID
	}
	batch, err := b.deps.Items.GetItemFeatures(ctx, ids)
	if err != nil {
		b.logger.Warn().Err(err).Int("items", len(ids)).Msg("item lookup failed, decaying from first seen")
		return nil
	}
	out := make(map[string]time.Time, len(batch.Items))
	for id, it := range batch.Items {
		if !it.CreatedAt.IsZero() {
			out[id] = it.CreatedAt
		}
	}
	return out
}

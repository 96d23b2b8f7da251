// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/smartrank/internal/featurestore"
)

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
}

type failingWriter struct{ err error }

func (w failingWriter) WritePopularity(context.Context, map[string]float64) error { return w.err }

type batchEnv struct {
	log   *EventLog
	store *featurestore.MemorySource
	inv   *recordingInvalidator
	batch *Batch
	seq   int
	now   time.Time
}

func newBatchEnv(t *testing.T, batchSize int) *batchEnv {
	t.Helper()
	env := &batchEnv{
		log:   newTestLog(t),
		store: featurestore.NewMemorySource(),
		inv:   &recordingInvalidator{},
		now:   testNow,
	}
	env.store.PutItem(featurestore.ItemFeatures{ID: "a", CreatedAt: testNow.Add(-10 * time.Hour)})
	env.store.PutItem(featurestore.ItemFeatures{ID: "b", CreatedAt: testNow})

	items, err := featurestore.NewAdapter(env.store, featurestore.DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	cfg := testConfig(t)
	cfg.BatchSize = batchSize
	batch, err := NewBatch(env.log, BatchDeps{
		Writer:      env.store,
		Items:       items,
		Invalidator: env.inv,
		Now:         func() time.Time { return env.now },
	}, &cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBatch() error = %v", err)
	}
	env.batch = batch
	return env
}

// add appends an event accepted an hour before testNow, one second apart.
func (e *batchEnv) add(t *testing.T, user, item string, typ EventType) {
	t.Helper()
	e.seq++
	ts := testNow.Add(-time.Hour + time.Duration(e.seq)*time.Second)
	ev := testEvent(fmt.Sprintf("%s-%s-%d", user, item, e.seq), user, item, typ, ts)
	if _, err := e.log.Append(context.Background(), ev, ts, false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
}

func (e *batchEnv) popularity(t *testing.T, id string) float64 {
	t.Helper()
	items, err := e.store.GetItems(context.Background(), []string{id})
	if err != nil {
		t.Fatalf("GetItems() error = %v", err)
	}
	return items[id].Popularity
}

func TestBatch_LabelsAggregatesAndPopularity(t *testing.T) {
	t.Parallel()
	env := newBatchEnv(t, 1000)
	ctx := context.Background()

	env.add(t, "u1", "a", EventView)
	env.add(t, "u1", "a", EventClick)
	env.add(t, "u2", "a", EventView)
	env.add(t, "u2", "b", EventView)
	env.add(t, "u1", "b", EventLike) // engagement without a view: no example

	res, err := env.batch.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Events != 5 || res.Examples != 3 || res.Engaged != 1 || res.NotEngaged != 2 || res.Items != 2 {
		t.Errorf("Run() = %+v, want 5 events, 3 examples (1 engaged), 2 items", res)
	}

	examples, _ := env.log.Examples(ctx, 0)
	got := make([]string, len(examples))
	for i, ex := range examples {
		label := "no"
		if ex.Engaged {
			label = "yes"
		}
		got[i] = ex.UserID + "/" + ex.ItemID + "/" + label
	}
	want := []string{"u1/a/yes", "u2/a/no", "u2/b/no"}
	if !slices.Equal(got, want) {
		t.Errorf("examples = %v, want %v", got, want)
	}

	aggs, _ := env.log.Aggregates(ctx)
	if len(aggs) != 2 || aggs[0].Impressions != 2 || aggs[0].Engagements != 1 || aggs[1].Impressions != 1 || aggs[1].Engagements != 1 {
		t.Errorf("aggregates = %+v, want a{2,1} b{1,1}", aggs)
	}

	// a: 1 engagement over 2 impressions, 10h old at 0.01/h
	wantA := 0.5 * math.Exp(-0.1)
	if got := env.popularity(t, "a"); math.Abs(got-wantA) > 1e-9 {
		t.Errorf("popularity(a) = %v, want %v", got, wantA)
	}
	if got := env.popularity(t, "b"); got != 1 {
		t.Errorf("popularity(b) = %v, want 1", got)
	}

	slices.Sort(env.inv.ids)
	if !slices.Equal(env.inv.ids, []string{"a", "b"}) {
		t.Errorf("invalidated = %v, want [a b]", env.inv.ids)
	}

	last, ok := env.batch.LastResult()
	if !ok || last.Checkpoint != res.Checkpoint {
		t.Errorf("LastResult() = %+v, %v, want the run", last, ok)
	}
}

func TestBatch_CheckpointPreventsReprocessing(t *testing.T) {
	t.Parallel()
	env := newBatchEnv(t, 1000)
	ctx := context.Background()

	env.add(t, "u1", "a", EventView)
	first, err := env.batch.Run(ctx)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	second, err := env.batch.Run(ctx)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.Events != 0 || second.Checkpoint != first.Checkpoint {
		t.Errorf("second Run() = %+v, want no events at checkpoint %s", second, first.Checkpoint)
	}
	if second.Items != 1 {
		t.Errorf("second Run() refreshed %d items, want 1", second.Items)
	}

	aggs, _ := env.log.Aggregates(ctx)
	if aggs[0].Impressions != 1 {
		t.Errorf("impressions = %d after rerun, want 1", aggs[0].Impressions)
	}
}

func TestBatch_LeavesUnsettledEvents(t *testing.T) {
	t.Parallel()
	env := newBatchEnv(t, 1000)
	ctx := context.Background()

	env.add(t, "u1", "a", EventView)
	recent := testEvent("recent", "u1", "b", EventView, testNow)
	if _, err := env.log.Append(ctx, recent, testNow.Add(-time.Second), false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	res, err := env.batch.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Events != 1 {
		t.Errorf("Run() processed %d events, want 1 (recent one unsettled)", res.Events)
	}
}

func TestBatch_EngagementInLaterChunk(t *testing.T) {
	t.Parallel()
	env := newBatchEnv(t, 1)

	env.add(t, "u1", "a", EventView)
	env.add(t, "u1", "a", EventClick)

	res, err := env.batch.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Events != 2 || res.Examples != 1 || res.Engaged != 1 || res.Pending != 0 {
		t.Errorf("Run() = %+v, want 2 events and one engaged example", res)
	}
}

func TestBatch_EngagementInLaterRun(t *testing.T) {
	t.Parallel()
	env := newBatchEnv(t, 1000)
	ctx := context.Background()

	// accepted five minutes before the first run, well inside the window
	view := testEvent("v1", "u1", "a", EventView, testNow.Add(-5*time.Minute))
	if _, err := env.log.Append(ctx, view, testNow.Add(-5*time.Minute), false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	first, err := env.batch.Run(ctx)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if first.Events != 1 || first.Examples != 0 || first.Pending != 1 {
		t.Errorf("first Run() = %+v, want the view held pending", first)
	}

	click := testEvent("c1", "u1", "a", EventClick, testNow.Add(time.Minute))
	if _, err := env.log.Append(ctx, click, testNow.Add(time.Minute), false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	env.now = testNow.Add(15 * time.Minute)

	second, err := env.batch.Run(ctx)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.Events != 1 || second.Examples != 1 || second.Engaged != 1 || second.Pending != 0 {
		t.Errorf("second Run() = %+v, want one engaged example", second)
	}

	examples, _ := env.log.Examples(ctx, 0)
	if len(examples) != 1 || !examples[0].Engaged || !examples[0].ViewedAt.Equal(testNow.Add(-5*time.Minute)) {
		t.Errorf("examples = %+v, want the engaged view", examples)
	}
}

func TestBatch_PendingViewExpiresUnengaged(t *testing.T) {
	t.Parallel()
	env := newBatchEnv(t, 1000)
	ctx := context.Background()

	view := testEvent("v1", "u1", "a", EventView, testNow.Add(-time.Minute))
	if _, err := env.log.Append(ctx, view, testNow.Add(-time.Minute), false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if res, err := env.batch.Run(ctx); err != nil || res.Pending != 1 {
		t.Fatalf("first Run() = %+v, %v; want one pending view", res, err)
	}

	env.now = testNow.Add(time.Hour)
	res, err := env.batch.Run(ctx)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if res.Events != 0 || res.Examples != 1 || res.NotEngaged != 1 || res.Pending != 0 {
		t.Errorf("second Run() = %+v, want the view finalized unengaged", res)
	}

	pending, _ := env.log.PendingViews(ctx)
	if len(pending) != 0 {
		t.Errorf("PendingViews() = %v, want none after expiry", pending)
	}
}

func TestBatch_WriterFailure(t *testing.T) {
	t.Parallel()
	log := newTestLog(t)
	errRedis := errors.New("redis: connection refused")
	cfg := testConfig(t)
	batch, err := NewBatch(log, BatchDeps{Writer: failingWriter{errRedis}, Now: func() time.Time { return testNow }}, &cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewBatch() error = %v", err)
	}

	ev := testEvent("e1", "u1", "a", EventView, testNow.Add(-time.Hour))
	if _, err := log.Append(context.Background(), ev, testNow.Add(-time.Hour), false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	res, err := batch.Run(context.Background())
	if !errors.Is(err, errRedis) {
		t.Fatalf("Run() error = %v, want writer error", err)
	}
	// examples and checkpoint are committed before popularity is written
	if res.Events != 1 {
		t.Errorf("Run() events = %d, want 1", res.Events)
	}
	if _, ok := batch.LastResult(); ok {
		t.Error("LastResult() set after a failed run")
	}
}

func TestNewBatch_RequiresWriter(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	if _, err := NewBatch(newTestLog(t), BatchDeps{}, &cfg, zerolog.Nop()); err == nil {
		t.Error("NewBatch() without writer succeeded")
	}
}

func TestLabel_FirstViewWins(t *testing.T) {
	t.Parallel()
	records := []Record{
		{Event: Event{UserID: "u1", ItemID: "a", Type: EventView, Timestamp: testNow, ContextBucket: "late"}},
		{Event: Event{UserID: "u1", ItemID: "a", Type: EventView, Timestamp: testNow.Add(-time.Minute), ContextBucket: "early"}},
		{Event: Event{UserID: "u1", ItemID: "a", Type: EventShare, Timestamp: testNow.Add(time.Minute)}},
	}

	pending := make(map[string]*PendingView)
	examples, deltas, views := label(records, pending)
	if len(examples) != 1 {
		t.Fatalf("label() produced %d examples, want 1", len(examples))
	}
	ex := examples[0]
	if !ex.Engaged || ex.ContextBucket != "early" || !ex.ViewedAt.Equal(testNow.Add(-time.Minute)) {
		t.Errorf("example = %+v, want engaged first view", ex)
	}
	d := deltas["a"]
	if d.Impressions != 2 || d.Engagements != 1 {
		t.Errorf("delta = %+v, want 2 impressions, 1 engagement", d)
	}
	if !d.FirstSeen.Equal(testNow.Add(-time.Minute)) || !d.LastEventAt.Equal(testNow.Add(time.Minute)) {
		t.Errorf("delta window = %v..%v", d.FirstSeen, d.LastEventAt)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %v, want the engaged view resolved", pending)
	}
	if v, ok := views[viewKey("u1", "a")]; !ok || v != nil {
		t.Errorf("views = %v, want a deletion for u1/a", views)
	}
}

func TestLabel_EngagementWithoutViewIgnored(t *testing.T) {
	t.Parallel()
	records := []Record{
		{Event: Event{UserID: "u1", ItemID: "a", Type: EventLike, Timestamp: testNow}},
		{Event: Event{UserID: "u2", ItemID: "a", Type: EventView, Timestamp: testNow}, ReceivedAt: testNow},
	}

	pending := make(map[string]*PendingView)
	examples, deltas, views := label(records, pending)
	if len(examples) != 0 {
		t.Errorf("label() produced %v, want no examples", examples)
	}
	if deltas["a"].Engagements != 1 || deltas["a"].Impressions != 1 {
		t.Errorf("delta = %+v, want 1 impression, 1 engagement", deltas["a"])
	}
	if pv := views[viewKey("u2", "a")]; pv == nil || !pv.SeenAt.Equal(testNow) {
		t.Errorf("views = %v, want u2/a pending since %v", views, testNow)
	}
}

func TestExpire_OnlyViewsBeforeCutoff(t *testing.T) {
	t.Parallel()
	pending := map[string]*PendingView{
		viewKey("u1", "a"): {Example: Example{UserID: "u1", ItemID: "a"}, SeenAt: testNow.Add(-time.Hour)},
		viewKey("u2", "a"): {Example: Example{UserID: "u2", ItemID: "a"}, SeenAt: testNow},
	}

	examples, views := expire(pending, testNow.Add(-30*time.Minute))
	if len(examples) != 1 || examples[0].UserID != "u1" || examples[0].Engaged {
		t.Errorf("expire() = %+v, want u1 unengaged", examples)
	}
	if _, ok := pending[viewKey("u2", "a")]; !ok || len(pending) != 1 {
		t.Errorf("pending = %v, want only u2/a", pending)
	}
	if v, ok := views[viewKey("u1", "a")]; !ok || v != nil || len(views) != 1 {
		t.Errorf("views = %v, want a deletion for u1/a", views)
	}
}

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestRecordAPIRequest tests API request metric recording
func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/recommendations", "200"))
	RecordAPIRequest("POST", "/api/v1/recommendations", "200", 12*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/recommendations", "200"))

	if after-before != 1 {
		t.Errorf("APIRequestsTotal delta = %v, want 1", after-before)
	}
}

// TestTrackActiveRequest tests the active request gauge
func TestTrackActiveRequest(t *testing.T) {
	start := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	TrackActiveRequest(true)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests) - start; got != 1 {
		t.Errorf("APIActiveRequests delta = %v, want 1", got)
	}
	TrackActiveRequest(false)
}

// TestRecordRecommendation tests outcome and degraded reason counters
func TestRecordRecommendation(t *testing.T) {
	tests := []struct {
		name    string
		outcome string
		reason  string
	}{
		{"ok", "ok", ""},
		{"cold start", "degraded", "cold_start"},
		{"feature store timeout", "degraded", "feature_store_timeout"},
		{"unavailable", "unavailable", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(RecommendRequests.WithLabelValues(tt.outcome))
			var degradedBefore float64
			if tt.reason != "" {
				degradedBefore = testutil.ToFloat64(RecommendDegraded.WithLabelValues(tt.reason))
			}

			RecordRecommendation(tt.outcome, tt.reason, 42, 30*time.Millisecond)

			if got := testutil.ToFloat64(RecommendRequests.WithLabelValues(tt.outcome)) - before; got != 1 {
				t.Errorf("RecommendRequests[%s] delta = %v, want 1", tt.outcome, got)
			}
			if tt.reason != "" {
				if got := testutil.ToFloat64(RecommendDegraded.WithLabelValues(tt.reason)) - degradedBefore; got != 1 {
					t.Errorf("RecommendDegraded[%s] delta = %v, want 1", tt.reason, got)
				}
			}
		})
	}
}

// TestRecordCacheLookup tests cache hit/miss counters
func TestRecordCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(RecommendCacheHits)
	misses := testutil.ToFloat64(RecommendCacheMisses)

	RecordCacheLookup(true)
	RecordCacheLookup(false)
	RecordCacheLookup(false)

	if got := testutil.ToFloat64(RecommendCacheHits) - hits; got != 1 {
		t.Errorf("hits delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(RecommendCacheMisses) - misses; got != 2 {
		t.Errorf("misses delta = %v, want 2", got)
	}
}

// TestRecordFeatureLookup tests that empty lookups are not recorded
func TestRecordFeatureLookup(t *testing.T) {
	before := testutil.ToFloat64(FeatureStoreLookups.WithLabelValues("item", "stale"))
	RecordFeatureLookup("item", "stale", 0)
	RecordFeatureLookup("item", "stale", 3)
	if got := testutil.ToFloat64(FeatureStoreLookups.WithLabelValues("item", "stale")) - before; got != 3 {
		t.Errorf("stale lookups delta = %v, want 3", got)
	}
}

// TestRecordCircuitBreakerTransition tests the breaker state gauge mapping
func TestRecordCircuitBreakerTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     float64
	}{
		{"closed", "open", 2},
		{"open", "half-open", 1},
		{"half-open", "closed", 0},
	}

	for _, tt := range tests {
		RecordCircuitBreakerTransition("feature-store", tt.from, tt.to)
		if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("feature-store")); got != tt.want {
			t.Errorf("after %s->%s state = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

// TestSetActiveArtifact tests that the previous version label is dropped
func TestSetActiveArtifact(t *testing.T) {
	SetActiveArtifact("fusion", "", "v1")
	SetActiveArtifact("fusion", "v1", "v2")

	if got := testutil.ToFloat64(ArtifactActive.WithLabelValues("fusion", "v2")); got != 1 {
		t.Errorf("active v2 = %v, want 1", got)
	}
	if ArtifactActive.DeleteLabelValues("fusion", "v1") {
		t.Error("v1 label still present after swap")
	}
}

// TestRecordFeedbackEvent tests accepted and rejected event counters
func TestRecordFeedbackEvent(t *testing.T) {
	rejected := testutil.ToFloat64(FeedbackRejections.WithLabelValues("unknown_item"))
	accepted := testutil.ToFloat64(FeedbackEvents.WithLabelValues("click", "accepted"))

	RecordFeedbackEvent("click", true, "")
	RecordFeedbackEvent("click", false, "unknown_item")

	if got := testutil.ToFloat64(FeedbackEvents.WithLabelValues("click", "accepted")) - accepted; got != 1 {
		t.Errorf("accepted delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(FeedbackRejections.WithLabelValues("unknown_item")) - rejected; got != 1 {
		t.Errorf("rejections delta = %v, want 1", got)
	}
}

// TestRecordFeedbackBatch tests that failed batches only count errors
func TestRecordFeedbackBatch(t *testing.T) {
	events := testutil.ToFloat64(FeedbackBatchEvents)
	errs := testutil.ToFloat64(FeedbackBatchErrors)

	RecordFeedbackBatch(time.Second, 100, 10, 40, nil)
	RecordFeedbackBatch(time.Second, 50, 0, 0, errors.New("badger: closed"))

	if got := testutil.ToFloat64(FeedbackBatchEvents) - events; got != 100 {
		t.Errorf("batch events delta = %v, want 100", got)
	}
	if got := testutil.ToFloat64(FeedbackBatchErrors) - errs; got != 1 {
		t.Errorf("batch errors delta = %v, want 1", got)
	}
	if testutil.ToFloat64(FeedbackBatchLastSuccess) == 0 {
		t.Error("last success timestamp not set")
	}
}

// TestConcurrentRecording tests that helpers are safe for concurrent use
func TestConcurrentRecording(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordSignal("collaborative", "ok", time.Millisecond)
				RecordEmbeddingQuery("nearest", time.Millisecond, nil)
				RecordFeatureUpstream("get_items", "", time.Millisecond)
				RecordCacheShared()
			}
		}()
	}
	wg.Wait()
}

// TestMetricGathering tests that metrics can be gathered using testutil
func TestMetricGathering(t *testing.T) {
	RecordAPIRequest("GET", "/api/v1/health/live", "200", time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Fatalf("GatherAndLint() error = %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s: %s", p.Metric, p.Text)
	}
}

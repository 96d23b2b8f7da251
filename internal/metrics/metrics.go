// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets covers the sub-100ms serving budget with headroom.
var latencyBuckets = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.08, 0.1, 0.25, 0.5, 1}

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrank_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartrank_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: latencyBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartrank_api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)

	// Recommendation Metrics
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrank_recommend_requests_total",
			Help: "Recommendation requests by outcome",
		},
		[]string{"outcome"}, // "ok", "degraded", "unavailable", "error"
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartrank_recommend_duration_seconds",
			Help:    "End-to-end recommendation computation time, cache misses only",
			Buckets: latencyBuckets,
		},
	)

	RecommendDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrank_recommend_degraded_total",
			Help: "Degraded recommendation responses by reason",
		},
		[]string{"reason"}, // "feature_store_timeout", "cold_start"
	)

	RecommendCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartrank_recommend_candidates",
			Help:    "Eligible candidates scored per request",
			Buckets: []float64{0, 10, 25, 50, 100, 200, 400, 800},
		},
	)

	SignalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartrank_signal_duration_seconds",
			Help:    "Time spent computing a signal for one request",
			Buckets: latencyBuckets,
		},
		[]string{"signal"},
	)

	SignalOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrank_signal_outcomes_total",
			Help: "Signal computations by outcome",
		},
		[]string{"signal", "outcome"}, // outcome: "ok", "timeout", "error"
	)

	// Recommendation Cache Metrics
	RecommendCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartrank_recommend_cache_hits_total",
			Help: "Recommendation cache hits",
		},
	)

	RecommendCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartrank_recommend_cache_misses_total",
			Help: "Recommendation cache misses",
		},
	)

	RecommendCacheShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartrank_recommend_cache_shared_total",
			Help: "Requests that joined an in-flight computation for the same key",
		},
	)

	// Feature Store Metrics
	FeatureStoreLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrank_feature_store_lookups_total",
			Help: "Feature lookups by entity kind and result",
		},
		[]string{"kind", "result"}, // kind: "user", "item"; result: "hit", "miss", "stale", "not_found"
	)

	FeatureStoreUpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartrank_feature_store_upstream_duration_seconds",
			Help:    "Duration of feature store upstream calls",
			Buckets: latencyBuckets,
		},
		[]string{"operation"},
	)

	FeatureStoreUpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrank_feature_store_upstream_errors_total",
			Help: "Feature store upstream failures",
		},
		[]string{"operation", "error_type"}, // error_type: "timeout", "rate_limited", "circuit_open", "other"
	)

	// Embedding Index Metrics
	EmbeddingQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartrank_embedding_query_duration_seconds",
			Help:    "Duration of embedding index queries",
			Buckets: latencyBuckets,
		},
		[]string{"operation"},
	)

	EmbeddingQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrank_embedding_query_errors_total",
			Help: "Embedding index query errors",
		},
		[]string{"operation"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartrank_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrank_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Model Artifact Metrics
	ArtifactLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrank_artifact_loads_total",
			Help: "Artifact activation attempts by kind and result",
		},
		[]string{"kind", "result"}, // result: "activated", "rejected", "unchanged"
	)

	ArtifactActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartrank_artifact_active_info",
			Help: "Active artifact version per kind (value is always 1)",
		},
		[]string{"kind", "version"},
	)

	// Feedback Metrics
	FeedbackEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrank_feedback_events_total",
			Help: "Interaction events by type and result",
		},
		[]string{"type", "result"}, // result: "accepted", "rejected"
	)

	FeedbackRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrank_feedback_rejections_total",
			Help: "Rejected interaction events by reason",
		},
		[]string{"reason"},
	)

	FeedbackForwarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrank_feedback_forwarded_total",
			Help: "Interaction events forwarded to NATS by result",
		},
		[]string{"result"}, // "ok", "error", "circuit_open"
	)

	FeedbackBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smartrank_feedback_batch_duration_seconds",
			Help:    "Duration of offline feedback batch runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	FeedbackBatchEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartrank_feedback_batch_events_total",
			Help: "Events consumed by feedback batch runs",
		},
	)

	FeedbackBatchExamples = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartrank_feedback_batch_examples_total",
			Help: "Labeled examples emitted by feedback batch runs",
		},
		[]string{"label"}, // "engaged", "not_engaged"
	)

	FeedbackBatchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "smartrank_feedback_batch_errors_total",
			Help: "Failed feedback batch runs",
		},
	)

	FeedbackBatchLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartrank_feedback_batch_last_success_timestamp",
			Help: "Unix timestamp of the last successful feedback batch",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRecommendation records the outcome of one computed recommendation.
// reason is empty unless the response was degraded.
func RecordRecommendation(outcome, reason string, candidates int, duration time.Duration) {
	RecommendRequests.WithLabelValues(outcome).Inc()
	RecommendDuration.Observe(duration.Seconds())
	RecommendCandidates.Observe(float64(candidates))
	if reason != "" {
		RecommendDegraded.WithLabelValues(reason).Inc()
	}
}

// RecordSignal records one signal computation.
func RecordSignal(signal, outcome string, duration time.Duration) {
	SignalDuration.WithLabelValues(signal).Observe(duration.Seconds())
	SignalOutcomes.WithLabelValues(signal, outcome).Inc()
}

// RecordCacheLookup records a recommendation cache lookup.
func RecordCacheLookup(hit bool) {
	if hit {
		RecommendCacheHits.Inc()
	} else {
		RecommendCacheMisses.Inc()
	}
}

// RecordCacheShared records a request that joined an in-flight computation.
func RecordCacheShared() {
	RecommendCacheShared.Inc()
}

// RecordFeatureLookup records cache results for a feature lookup.
func RecordFeatureLookup(kind, result string, n int) {
	if n <= 0 {
		return
	}
	FeatureStoreLookups.WithLabelValues(kind, result).Add(float64(n))
}

// RecordFeatureUpstream records an upstream feature store call.
// errorType is empty on success.
func RecordFeatureUpstream(operation, errorType string, duration time.Duration) {
	FeatureStoreUpstreamDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if errorType != "" {
		FeatureStoreUpstreamErrors.WithLabelValues(operation, errorType).Inc()
	}
}

// RecordEmbeddingQuery records an embedding index query.
func RecordEmbeddingQuery(operation string, duration time.Duration, err error) {
	EmbeddingQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		EmbeddingQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordCircuitBreakerTransition records a state change of a named breaker.
// States follow gobreaker's String() values: "closed", "half-open", "open".
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordArtifactLoad records an artifact activation attempt.
func RecordArtifactLoad(kind, result string) {
	ArtifactLoads.WithLabelValues(kind, result).Inc()
}

// SetActiveArtifact replaces the active version label for kind.
func SetActiveArtifact(kind, previous, version string) {
	if previous != "" {
		ArtifactActive.DeleteLabelValues(kind, previous)
	}
	ArtifactActive.WithLabelValues(kind, version).Set(1)
}

// RecordFeedbackEvent records an accepted or rejected interaction event.
func RecordFeedbackEvent(eventType string, accepted bool, reason string) {
	if accepted {
		FeedbackEvents.WithLabelValues(eventType, "accepted").Inc()
		return
	}
	FeedbackEvents.WithLabelValues(eventType, "rejected").Inc()
	FeedbackRejections.WithLabelValues(reason).Inc()
}

// RecordFeedbackForward records the result of forwarding an event to NATS.
func RecordFeedbackForward(result string) {
	FeedbackForwarded.WithLabelValues(result).Inc()
}

// RecordFeedbackBatch records one offline batch run.
func RecordFeedbackBatch(duration time.Duration, events, engaged, notEngaged int, err error) {
	FeedbackBatchDuration.Observe(duration.Seconds())
	if err != nil {
		FeedbackBatchErrors.Inc()
		return
	}
	FeedbackBatchEvents.Add(float64(events))
	FeedbackBatchExamples.WithLabelValues("engaged").Add(float64(engaged))
	FeedbackBatchExamples.WithLabelValues("not_engaged").Add(float64(notEngaged))
	FeedbackBatchLastSuccess.Set(float64(time.Now().Unix()))
}

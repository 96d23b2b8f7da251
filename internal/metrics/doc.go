// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

/*
Package metrics provides Prometheus metrics collection and export.

Collectors are registered on the default registry with promauto and exposed
at /metrics by the API router. Components call the Record* helpers rather
than touching collectors directly.

# Available Metrics

Serving:
  - smartrank_api_requests_total, smartrank_api_request_duration_seconds
  - smartrank_recommend_requests_total{outcome}
  - smartrank_recommend_degraded_total{reason}
  - smartrank_signal_duration_seconds{signal}, smartrank_signal_outcomes_total
  - smartrank_recommend_cache_{hits,misses,shared}_total

Upstreams:
  - smartrank_feature_store_lookups_total{kind,result}
  - smartrank_feature_store_upstream_errors_total{operation,error_type}
  - smartrank_embedding_query_duration_seconds
  - smartrank_circuit_breaker_state{name}

Models and feedback:
  - smartrank_artifact_active_info{kind,version}
  - smartrank_feedback_events_total{type,result}
  - smartrank_feedback_batch_duration_seconds

# Example PromQL

	histogram_quantile(0.99, rate(smartrank_recommend_duration_seconds_bucket[5m]))
	sum by (reason) (rate(smartrank_recommend_degraded_total[5m]))
*/
package metrics

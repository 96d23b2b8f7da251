// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

/*
Package api provides the Smartrank HTTP API.

Routing uses go-chi/chi with go-chi/cors and go-chi/httprate. JSON is encoded
with goccy/go-json.

Endpoints:

	POST /api/v1/recommendations                       ranked list for a user and context
	GET  /api/v1/recommendations/similar/{itemID}      items close to an item in embedding space
	GET  /api/v1/recommendations/status                model versions, weights, counters
	POST /api/v1/feedback/events                       record an interaction event
	GET  /api/v1/health/live                           liveness probe
	GET  /api/v1/health/ready                          readiness probe (artifacts loaded)
	GET  /metrics                                      Prometheus metrics

Successful responses are the bare payload of the endpoint, for example:

	{
	  "recommendations": [{"item_id": "...", "score": 0.91, "rank": 1, ...}],
	  "model_versions": {"collaborative": "v12", "content_based": "v4", "fusion": "v7"},
	  "degraded": true,
	  "reason": "cold_start"
	}

Errors share one envelope:

	{
	  "status": "error",
	  "error": {"code": "SERVICE_UNAVAILABLE", "message": "...", "details": {...}},
	  "retry_after_seconds": 5,
	  "metadata": {"timestamp": "...", "request_id": "..."}
	}

Error mapping:

  - validation failures: 400 VALIDATION_ERROR
  - unknown item on the similar endpoint: 404 NOT_FOUND
  - rejected feedback events: 422 EVENT_REJECTED with the rejection reason
  - no ranking possible or upstream down: 503 SERVICE_UNAVAILABLE with Retry-After
  - rate limited: 429 RATE_LIMITED
*/
package api

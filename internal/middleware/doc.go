// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

/*
Package middleware provides HTTP middleware shared by the Smartrank API.

All middleware uses the standard func(http.Handler) http.Handler shape so it
plugs directly into a chi router:

  - RequestID: propagates or generates X-Request-ID and stores it in the context
  - PrometheusMetrics: request counts, latency and in-flight gauge per route pattern
  - PerformanceMonitor: access logging, slow-request warnings and recent latency percentiles

Typical stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(perfMon.Middleware)
	r.Use(middleware.PrometheusMetrics)

Route labels come from chi's RoutePattern, so metrics for
/api/v1/recommendations/similar/{itemID} share one series regardless of the
item requested. Requests that match no route are labeled "unmatched".
*/
package middleware

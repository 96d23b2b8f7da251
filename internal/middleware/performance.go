// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package middleware

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/smartrank/internal/logging"
)

// RequestMetrics describes one completed request.
type RequestMetrics struct {
	Method     string
	Route      string
	StatusCode int
	Duration   time.Duration
	Timestamp  time.Time
}

// LatencyStats summarizes recent latency for one route.
type LatencyStats struct {
	Route  string        `json:"route"`
	Count  int           `json:"count"`
	P50    time.Duration `json:"p50"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Max    time.Duration `json:"max"`
	Errors int           `json:"errors"`
}

// PerformanceMonitor keeps a bounded window of recent requests, logs access
// lines and warns about requests slower than the configured threshold.
type PerformanceMonitor struct {
	mu            sync.Mutex
	window        []RequestMetrics
	next          int
	full          bool
	slowThreshold time.Duration
	logger        zerolog.Logger
}

// NewPerformanceMonitor creates a monitor holding at most size requests.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPerformanceMonitor(size int, slowThreshold time.Duration, logger zerolog.Logger) *PerformanceMonitor {
	if size <= 0 {
		size = 1000
	}
	return &PerformanceMonitor{
		window:        make([]RequestMetrics, size),
		slowThreshold: slowThreshold,
		logger:        logger.With().Str("component", "http").Logger(),
	}
}

// RecordRequest adds a request to the window, overwriting the oldest entry.
func (pm *PerformanceMonitor) RecordRequest(m RequestMetrics) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.window[pm.next] = m
	pm.next = (pm.next + 1) % len(pm.window)
	if pm.next == 0 {
		pm.full = true
	}
}

// Stats returns per-route latency percentiles over the window.
func (pm *PerformanceMonitor) Stats() []LatencyStats {
	pm.mu.Lock()
	n := pm.next
	if pm.full {
		n = len(pm.window)
	}
	byRoute := make(map[string][]RequestMetrics)
	for _, m := range pm.window[:n] {
		byRoute[m.Route] = append(byRoute[m.Route], m)
	}
	pm.mu.Unlock()

	stats := make([]LatencyStats, 0, len(byRoute))
	for route, reqs := range byRoute {
		durations := make([]time.Duration, len(reqs))
		errs := 0
		for i, m := range reqs {
			durations[i] = m.Duration
			if m.StatusCode >= http.StatusInternalServerError {
				errs++
			}
		}
		slices.Sort(durations)
		stats = append(stats, LatencyStats{
			Route:  route,
			Count:  len(reqs),
			P50:    percentile(durations, 0.50),
			P95:    percentile(durations, 0.95),
			P99:    percentile(durations, 0.99),
			Max:    durations[len(durations)-1],
			Errors: errs,
		})
	}
	slices.SortFunc(stats, func(a, b LatencyStats) int {
		if a.Route < b.Route {
			return -1
		}
		if a.Route > b.Route {
			return 1
		}
		return 0
	})
	return stats
}

// Middleware records each request and writes a request-scoped access log.
func (pm *PerformanceMonitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newStatusWriter(w)
		next.ServeHTTP(rw, r)
		elapsed := time.Since(start)

		route := routeLabel(r)
		pm.RecordRequest(RequestMetrics{
			Method:     r.Method,
			Route:      route,
			StatusCode: rw.status,
			Duration:   elapsed,
			Timestamp:  start,
		})

		logger := logging.FromContext(r.Context(), pm.logger)
		var event *zerolog.Event
		switch {
		case rw.status >= http.StatusInternalServerError:
			event = logger.Error()
		case pm.slowThreshold > 0 && elapsed > pm.slowThreshold:
			event = logger.Warn().Dur("threshold", pm.slowThreshold)
		default:
			event = logger.Debug()
		}
		event.
			Str("method", r.Method).
			Str("route", route).
			Int("status", rw.status).
			Dur("duration", elapsed).
			Msg("request completed")
	})
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}

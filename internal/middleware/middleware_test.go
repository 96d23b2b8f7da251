// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestRequestID_GeneratesNewID(t *testing.T) {
	t.Parallel()
	var captured string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	got := rec.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("X-Request-ID = %q, want a UUID", got)
	}
	if captured != got {
		t.Errorf("context ID = %q, header = %q", captured, got)
	}
}

func TestRequestID_ReusesClientID(t *testing.T) {
	t.Parallel()
	var captured string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "client-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if captured != "client-123" || rec.Header().Get(RequestIDHeader) != "client-123" {
		t.Errorf("request ID = %q / %q, want client-123", captured, rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_ReplacesOversizedID(t *testing.T) {
	t.Parallel()
	h := RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); len(got) > maxRequestIDLen {
		t.Errorf("oversized request ID was echoed (%d bytes)", len(got))
	}
}

func newTestRouter(mw ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(mw...)
	r.Get("/items/{itemID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return r
}

func TestRouteLabel_UsesPattern(t *testing.T) {
	t.Parallel()
	var label string
	r := chi.NewRouter()
	r.Get("/items/{itemID}", func(w http.ResponseWriter, r *http.Request) {
		label = routeLabel(r)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/abc", nil))

	if label != "/items/{itemID}" {
		t.Errorf("routeLabel() = %q, want /items/{itemID}", label)
	}
	if got := routeLabel(httptest.NewRequest(http.MethodGet, "/x", nil)); got != "unmatched" {
		t.Errorf("routeLabel() without chi context = %q, want unmatched", got)
	}
}

func TestPrometheusMetrics_PassesStatusThrough(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	newTestRouter(PrometheusMetrics).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestStatusWriter_FirstHeaderWins(t *testing.T) {
	t.Parallel()
	w := newStatusWriter(httptest.NewRecorder())
	_, _ = w.Write([]byte("ok"))
	w.WriteHeader(http.StatusBadRequest)
	if w.status != http.StatusOK {
		t.Errorf("status = %d after implicit 200, want 200", w.status)
	}
}

func TestPerformanceMonitor_StatsAndLogging(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	pm := NewPerformanceMonitor(10, 10*time.Millisecond, zerolog.New(&buf))
	router := newTestRouter(pm.Middleware)

	for _, path := range []string{"/items/1", "/items/2", "/slow", "/boom"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	stats := pm.Stats()
	if len(stats) != 3 {
		t.Fatalf("Stats() = %+v, want three routes", stats)
	}
	byRoute := make(map[string]LatencyStats)
	for _, s := range stats {
		byRoute[s.Route] = s
	}
	if byRoute["/items/{itemID}"].Count != 2 {
		t.Errorf("items count = %d, want 2", byRoute["/items/{itemID}"].Count)
	}
	if byRoute["/boom"].Errors != 1 {
		t.Errorf("boom errors = %d, want 1", byRoute["/boom"].Errors)
	}
	if byRoute["/slow"].Max < 20*time.Millisecond {
		t.Errorf("slow max = %v, want >= 20ms", byRoute["/slow"].Max)
	}

	logs := buf.String()
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"route":"/slow"`) {
		t.Errorf("slow request not logged at warn: %s", logs)
	}
	if !strings.Contains(logs, `"level":"error"`) {
		t.Errorf("5xx not logged at error: %s", logs)
	}
}

func TestPerformanceMonitor_WindowWraps(t *testing.T) {
	t.Parallel()
	pm := NewPerformanceMonitor(2, 0, zerolog.Nop())
	for i := range 5 {
		pm.RecordRequest(RequestMetrics{Route: "/r", Duration: time.Duration(i) * time.Millisecond})
	}
	stats := pm.Stats()
	if len(stats) != 1 || stats[0].Count != 2 || stats[0].Max != 4*time.Millisecond {
		t.Errorf("Stats() = %+v, want the two newest requests", stats)
	}
}

func TestPercentile(t *testing.T) {
	t.Parallel()
	if percentile(nil, 0.5) != 0 {
		t.Error("percentile(nil) != 0")
	}
	sorted := []time.Duration{1, 2, 3, 4, 5}
	if got := percentile(sorted, 0.5); got != 3 {
		t.Errorf("p50 = %v, want 3", got)
	}
	if got := percentile(sorted, 1); got != 5 {
		t.Errorf("p100 = %v, want 5", got)
	}
}

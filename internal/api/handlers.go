// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package api

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/smartrank/internal/embedding"
	"github.com/tomtom215/smartrank/internal/feedback"
	"github.com/tomtom215/smartrank/internal/middleware"
	"github.com/tomtom215/smartrank/internal/recommend"
	"github.com/tomtom215/smartrank/internal/recommend/artifacts"
)

// Recommender serves ranked and similar-item lists. *recommend.Engine
// implements it.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (*recommend.Response, error)
	Similar(ctx context.Context, itemID string, limit int, threshold float64, filter embedding.Filter) (*recommend.SimilarResponse, error)
	Status() recommend.Status
}

// EventRecorder accepts interaction events. *feedback.Ingestor implements it.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev feedback.Event) (feedback.Ack, error)
}

// Readiness reports whether model artifacts are loaded.
// *artifacts.Registry implements it.
type Readiness interface {
	Ready() bool
	Versions() artifacts.Versions
}

// FeedbackReporter exposes event log and batch state for the status
// endpoint. Either field may be nil.
type FeedbackReporter struct {
	Log interface {
		Stats() feedback.LogStats
	}
	Batch interface {
		LastResult() (feedback.BatchResult, bool)
	}
	Forwarder interface {
		BreakerState() string
	}
}

// HandlerDeps are the services behind the API. Recommender and Readiness
// are required; Events is nil when feedback ingestion is disabled.
type HandlerDeps struct {
	Recommender Recommender
	Readiness   Readiness
	Events      EventRecorder
	Feedback    FeedbackReporter
	PerfMon     *middleware.PerformanceMonitor

	// RetryAfter is advertised when an upstream dependency is unavailable
	// outside the recommendation engine.
	RetryAfter time.Duration
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_recommend.go: recommendations, similar items, status
//   - handlers_feedback.go: interaction events
//   - handlers_health.go: probes
type Handler struct {
	recommender Recommender
	readiness   Readiness
	events      EventRecorder
	feedback    FeedbackReporter
	perfMon     *middleware.PerformanceMonitor
	retryAfter  time.Duration
	startTime   time.Time
}

// NewHandler creates the API handler.
func NewHandler(deps HandlerDeps) (*Handler, error) {
	if deps.Recommender == nil {
		return nil, errors.New("api: recommender is required")
	}
	if deps.Readiness == nil {
		return nil, errors.New("api: readiness is required")
	}
	retryAfter := deps.RetryAfter
	if retryAfter <= 0 {
		retryAfter = 5 * time.Second
	}
	return &Handler{
		recommender: deps.Recommender,
		readiness:   deps.Readiness,
		events:      deps.Events,
		feedback:    deps.Feedback,
		perfMon:     deps.PerfMon,
		retryAfter:  retryAfter,
		startTime:   time.Now(),
	}, nil
}

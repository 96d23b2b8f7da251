// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/smartrank/internal/embedding"
	"github.com/tomtom215/smartrank/internal/feedback"
	"github.com/tomtom215/smartrank/internal/logging"
	"github.com/tomtom215/smartrank/internal/middleware"
	"github.com/tomtom215/smartrank/internal/recommend"
	"github.com/tomtom215/smartrank/internal/validation"
)

// defaultSimilarityThreshold is the minimum cosine similarity returned by
// the similar endpoint when the caller does not pass one.
const defaultSimilarityThreshold = 0.7

// StatusResponse extends the engine status with serving-side details.
type StatusResponse struct {
	recommend.Status

	Feedback *FeedbackStatus           `json:"feedback,omitempty"`
	Latency  []middleware.LatencyStats `json:"latency,omitempty"`
}

// FeedbackStatus summarises the interaction pipeline.
type FeedbackStatus struct {
	Log              *feedback.LogStats    `json:"log,omitempty"`
	LastBatch        *feedback.BatchResult `json:"last_batch,omitempty"`
	ForwarderBreaker string                `json:"forwarder_breaker,omitempty"`
}

// Recommend handles POST /api/v1/recommendations.
//
// @Summary Ranked recommendations
// @Description Returns a ranked, diversified list for the user in the given context.
// @Tags Recommendations
// @Accept json
// @Produce json
// @Success 200 {object} recommend.Response
// @Failure 400 {object} ErrorResponse "Malformed request"
// @Failure 503 {object} ErrorResponse "No ranking could be produced"
// @Router /recommendations [post]
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommend.Request
	if err := decodeJSON(w, r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}

	ctx := r.Context()
	if validation.IsIdentifier(req.UserID) {
		ctx = logging.ContextWithUserID(ctx, req.UserID)
	}

	resp, err := h.recommender.Recommend(ctx, req)
	if err != nil {
		h.respondServiceError(w, r.WithContext(ctx), err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Similar handles GET /api/v1/recommendations/similar/{itemID}.
//
// Query parameters: limit, threshold (cosine similarity in [-1, 1], default
// 0.7), platform, content_type, topics (comma separated).
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	limit, err := getIntParam(r, "limit", 0)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, &APIError{Code: ErrCodeValidation, Message: err.Error()}, 0, nil)
		return
	}
	threshold, err := getFloatParam(r, "threshold", defaultSimilarityThreshold)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, &APIError{Code: ErrCodeValidation, Message: err.Error()}, 0, nil)
		return
	}

	q := r.URL.Query()
	filter := embedding.Filter{
		Platform:    q.Get("platform"),
		ContentType: q.Get("content_type"),
		Topics:      parseCommaSeparated(q.Get("topics")),
	}

	resp, err := h.recommender.Similar(r.Context(), itemID, limit, threshold, filter)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Status handles GET /api/v1/recommendations/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Status: h.recommender.Status()}

	fb := h.feedback
	if fb.Log != nil || fb.Batch != nil || fb.Forwarder != nil {
		status := &FeedbackStatus{}
		if fb.Log != nil {
			stats := fb.Log.Stats()
			status.Log = &stats
		}
		if fb.Batch != nil {
			if last, ok := fb.Batch.LastResult(); ok {
				status.LastBatch = &last
			}
		}
		if fb.Forwarder != nil {
			status.ForwarderBreaker = fb.Forwarder.BreakerState()
		}
		resp.Feedback = status
	}
	if h.perfMon != nil {
		resp.Latency = h.perfMon.Stats()
	}

	respondJSON(w, http.StatusOK, &resp)
}

// respondServiceError maps engine and ingestion errors to HTTP responses.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr        *validation.RequestValidationError
		unavailable *recommend.UnavailableError
		rejected    *feedback.RejectedError
	)

	switch {
	case errors.As(err, &verr):
		respondValidation(w, r, verr)

	case errors.Is(err, recommend.ErrMalformedRequest):
		respondError(w, r, http.StatusBadRequest, &APIError{
			Code:    ErrCodeValidation,
			Message: err.Error(),
		}, 0, nil)

	case errors.Is(err, recommend.ErrItemNotFound):
		respondError(w, r, http.StatusNotFound, &APIError{
			Code:    ErrCodeNotFound,
			Message: "item not found",
		}, 0, nil)

	case errors.As(err, &rejected):
		respondRejected(w, r, rejected)

	case errors.As(err, &unavailable):
		respondError(w, r, http.StatusServiceUnavailable, &APIError{
			Code:    ErrCodeUnavailable,
			Message: "recommendations temporarily unavailable",
		}, unavailable.RetryAfter, err)

	case errors.Is(err, recommend.ErrUpstreamUnavailable), errors.Is(err, feedback.ErrLogClosed):
		respondError(w, r, http.StatusServiceUnavailable, &APIError{
			Code:    ErrCodeUnavailable,
			Message: "dependency temporarily unavailable",
		}, h.retryAfter, err)

	case errors.Is(err, context.Canceled):
		logging.Ctx(r.Context()).Debug().Int("status", statusClientClosedRequest).Msg("client closed request")
		w.WriteHeader(statusClientClosedRequest)

	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, &APIError{
			Code:    ErrCodeTimeout,
			Message: "request timed out",
		}, 0, err)

	default:
		respondError(w, r, http.StatusInternalServerError, &APIError{
			Code:    ErrCodeInternal,
			Message: "internal error",
		}, 0, err)
	}
}

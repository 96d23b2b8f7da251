// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package api

import (
	"net/http"

	"github.com/tomtom215/smartrank/internal/feedback"
)

// RecordEvent handles POST /api/v1/feedback/events.
//
// Returns 202 with the acknowledgement once the event is durable, 422 when
// the event is rejected and 503 when the feature store cannot confirm the
// user or item.
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		respondError(w, r, http.StatusServiceUnavailable, &APIError{
			Code:    ErrCodeUnavailable,
			Message: "feedback ingestion is disabled",
		}, 0, nil)
		return
	}

	var ev feedback.Event
	if err := decodeJSON(w, r, &ev); err != nil {
		respondDecodeError(w, r, err)
		return
	}

	ack, err := h.events.RecordEvent(r.Context(), ev)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, &ack)
}

func respondRejected(w http.ResponseWriter, r *http.Request, rej *feedback.RejectedError) {
	details := map[string]interface{}{
		"reason": string(rej.Reason),
	}
	if rej.Validation != nil {
		for k, v := range rej.Validation.ToAPIError().Details {
			details[k] = v
		}
	}
	message := rej.Detail
	if message == "" {
		message = "event rejected"
	}
	respondError(w, r, http.StatusUnprocessableEntity, &APIError{
		Code:    ErrCodeRejected,
		Message: message,
		Details: details,
	}, 0, nil)
}

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/smartrank/internal/logging"
	"github.com/tomtom215/smartrank/internal/validation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// statusClientClosedRequest is logged when the caller went away.
const statusClientClosedRequest = 499

var errBodyTooLarge = errors.New("request body too large")

// sanitizeLogValue removes control characters from strings to prevent log injection.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&result, "\\x%02x", r)
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON writes v as JSON with the given status.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError writes the error envelope. retryAfter > 0 also sets the
// Retry-After header, rounded up to whole seconds.
func respondError(w http.ResponseWriter, r *http.Request, status int, apiErr *APIError, retryAfter time.Duration, cause error) {
	logger := logging.Ctx(r.Context())
	if cause != nil {
		event := logger.Warn()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.
			Str("code", apiErr.Code).
			Int("status", status).
			Str("error", sanitizeLogValue(cause.Error())).
			Msg("API error")
	}

	resp := ErrorResponse{
		Status: "error",
		Error:  apiErr,
		Metadata: Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	}
	if retryAfter > 0 {
		secs := int(math.Ceil(retryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		resp.RetryAfterSeconds = secs
	}
	respondJSON(w, status, &resp)
}

// respondValidation writes a 400 for a struct validation failure.
func respondValidation(w http.ResponseWriter, r *http.Request, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	respondError(w, r, http.StatusBadRequest, &APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}, 0, nil)
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errBodyTooLarge
		}
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return errors.New("request body is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// respondDecodeError maps a decodeJSON failure to a response.
func respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		respondError(w, r, http.StatusRequestEntityTooLarge, &APIError{
			Code:    ErrCodeRequestTooLarge,
			Message: fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes),
		}, 0, nil)
		return
	}
	respondError(w, r, http.StatusBadRequest, &APIError{
		Code:    ErrCodeBadRequest,
		Message: err.Error(),
	}, 0, nil)
}

// getIntParam returns an integer query parameter, or def when absent.
func getIntParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

// getFloatParam returns a float query parameter, or def when absent.
func getFloatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}

// parseCommaSeparated splits a comma-separated query value, dropping blanks.
func parseCommaSeparated(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

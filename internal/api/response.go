// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package api

import (
	"time"

	"github.com/tomtom215/smartrank/internal/recommend/artifacts"
)

// Error codes returned in APIError.Code.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeRejected         = "EVENT_REJECTED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeUnavailable      = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeInternal         = "INTERNAL_ERROR"
	ErrCodeRequestTooLarge  = "REQUEST_TOO_LARGE"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Status string    `json:"status"`
	Error  *APIError `json:"error"`

	// RetryAfterSeconds mirrors the Retry-After header on 503 and 429.
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`

	Metadata Metadata `json:"metadata"`
}

// APIError describes what went wrong.
type APIError struct {
	// Code is a machine-readable error code
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// Details contains additional error details (optional)
	Details map[string]interface{} `json:"details,omitempty"`
}

// Metadata is attached to error responses for tracing.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// HealthResponse is returned by the health probes.
type HealthResponse struct {
	Status        string              `json:"status"`
	UptimeSeconds float64             `json:"uptime_seconds"`
	Checks        map[string]bool     `json:"checks,omitempty"`
	ModelVersions *artifacts.Versions `json:"model_versions,omitempty"`
}

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package recommend

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/smartrank/internal/featurestore"
	"github.com/tomtom215/smartrank/internal/recommend/artifacts"
)

var (
	// ErrSignalTimeout marks a signal that missed its deadline. It never
	// fails a request; the signal simply contributes nothing.
	ErrSignalTimeout = errors.New("recommend: signal timed out")

	// ErrColdStart marks a user without history or preference vector.
	ErrColdStart = errors.New("recommend: cold start")

	// ErrUpstreamUnavailable is the feature store's unavailability sentinel.
	ErrUpstreamUnavailable = featurestore.ErrUpstreamUnavailable

	// ErrMalformedRequest wraps request validation failures.
	ErrMalformedRequest = errors.New("recommend: malformed request")

	// ErrArtifactLoad is returned by the registry when an artifact cannot be
	// activated. The previous artifact stays active.
	ErrArtifactLoad = artifacts.ErrLoad

	// ErrItemNotFound is returned by Similar for an unknown item.
	ErrItemNotFound = errors.New("recommend: item not found")
)

// UnavailableError is returned when no ranking can be produced at all.
type UnavailableError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *UnavailableError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("recommend: unavailable, retry after %s", e.RetryAfter)
	}
	return fmt.Sprintf("recommend: unavailable, retry after %s: %v", e.RetryAfter, e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared process-wide; it caches struct
// metadata, so reusing it is much cheaper than building one per request.
// Field names in errors follow the json tag of the field, so messages match
// what API clients sent.
//
// Custom tags:
//   - identifier: 1-128 characters of letters, digits and . _ : -
//   - topic: 1-64 printable characters without leading or trailing space
//
// Example:
//
//	type Context struct {
//	    Platform     string   `json:"platform" validate:"required,identifier"`
//	    TopicFilters []string `json:"topic_filters" validate:"max=20,dive,topic"`
//	}
//
//	if verr := validation.ValidateStruct(&ctx); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	}
package validation

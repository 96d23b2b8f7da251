// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

// Package signals implements the three relevance signals fused by the engine.
//
// The set is closed: Collaborative, ContentBased and Popularity. Each
// implements Signal and returns one Score per candidate, with a value in
// [0,1] and a confidence in [0,1]. Confidence 0 means "no opinion"; the
// engine then leaves the signal out of fusion for that item instead of
// reading the score as zero relevance.
//
// Signals never fail a request for missing data. A missing artifact, an
// unknown user or an item without a vector yields confidence 0. Errors are
// reserved for cancellation.
package signals

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

// Package recommend implements the hybrid recommendation engine.
//
// # Architecture
//
// A request flows through one pipeline:
//
//  1. User lookup in the feature store (cold start and outages detected here)
//  2. Candidate supply: nearest neighbours of the user's preference vector
//     in the embedding index, united with the most popular items
//  3. Eligibility: platform, content type and topic filters remove items
//     before any signal runs
//  4. Fan-out to the collaborative, content-based and popularity signals in
//     parallel, each under its own timeout
//  5. Logit-space weighted fusion with per-item renormalisation over the
//     signals that had confidence
//  6. Tie-break (newer first, then id) and a greedy topic diversity pass
//  7. Explanations built from the strongest positive contributions
//
// # Degradation
//
// A signal that times out or fails contributes nothing; the request still
// succeeds. Users without history get a popularity-only ranking marked
// degraded with reason "cold_start". Feature store outages served from
// cache are marked "feature_store_timeout". Only when no signal can score
// any candidate does Recommend return *UnavailableError.
//
// # Usage
//
//	engine, err := recommend.NewEngine(cfg, recommend.Deps{
//	    Features:  adapter,
//	    Index:     index,
//	    Artifacts: registry,
//	}, logger)
//
//	resp, err := engine.Recommend(ctx, recommend.Request{
//	    UserID:  "u-42",
//	    Context: recommend.Context{Platform: "web", ContentType: "article", Limit: 10},
//	})
//
// # Thread Safety
//
// The engine is safe for concurrent use. Artifacts are read through atomic
// pointers, so a model swap never blocks serving. Concurrent cache misses
// for the same key share one computation.
package recommend

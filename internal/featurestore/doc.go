// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

// Package featurestore reads per-user and per-item features from the
// external feature store and caches them locally.
//
// The Adapter is the only type the serving path talks to. It bounds every
// upstream call with a hard deadline, a token bucket and a circuit breaker,
// and degrades to cached snapshots when the upstream misbehaves:
//
//	batch, err := adapter.GetItemFeatures(ctx, ids)
//	switch {
//	case errors.Is(err, featurestore.ErrUpstreamUnavailable):
//	    // nothing cached, upstream down
//	case batch.Degraded:
//	    // some entries may carry Stale=true
//	}
//
// RedisSource is the production upstream; MemorySource backs local runs and
// tests. Both also implement PopularityWriter for the feedback batch.
package featurestore

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

// Package testinfra provides container helpers for integration tests.
//
// This package uses testcontainers-go to run the real upstreams the engine
// depends on: Redis for the feature store and Postgres with pgvector for the
// embedding index. All files carry the integration build tag:
//
//	go test -tags integration ./internal/featurestore/... ./internal/embedding/...
//
// # Example
//
//	func TestRedisSource(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    redisC, err := testinfra.NewRedisContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    testinfra.CleanupContainer(t, redisC)
//
//	    client := redis.NewClient(&redis.Options{Addr: redisC.Addr})
//	    // ...
//	}
//
// # CI Considerations
//
// Tests are skipped gracefully if Docker is unavailable. The first run pulls
// images; later runs use the local cache.
package testinfra

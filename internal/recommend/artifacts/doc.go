// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

// Package artifacts holds the active model artifacts of the serving path.
//
// There is exactly one active artifact per kind (collaborative, content,
// fusion). Each is an immutable snapshot referenced through an
// atomic.Pointer: readers load the pointer without locking, and the single
// writer loads and validates a new version off the hot path before swapping
// it in with compare-and-swap. A version that fails validation is never
// activated and the previous one stays in place.
//
// Lifecycle:
//
//	reg, _ := artifacts.NewRegistry(store, cfg, logger)
//	_ = reg.Init(ctx)      // load whatever is present at startup
//	go reg.Serve(ctx)      // poll for new versions (suture service)
//	defer reg.Close()
//
// Until a fusion artifact exists the configured default weights are used.
package artifacts

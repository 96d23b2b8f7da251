// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

// Package embedding is the client side of the item embedding index.
//
// The index answers top-k nearest-neighbour queries by cosine similarity,
// filtered by item metadata. PgvectorIndex queries a Postgres table with the
// pgvector extension; MemoryIndex does the same by brute force for local
// runs and tests.
package embedding

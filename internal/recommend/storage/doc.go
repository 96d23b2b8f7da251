// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

// Package storage persists versioned model artifacts on disk.
//
// The offline training job writes artifacts here and the serving process
// polls the directory for new versions. Each file holds one artifact:
//
//	filename: {name}_v{version}.gob.gz
//
//	structure:
//	  - Metadata (name, version, training counts, checksum)
//	  - CompressedData (gzip-compressed gob-encoded state)
//
// Files are written to a temporary name and renamed into place, so a reader
// never observes a partially written artifact. The SHA-256 checksum of the
// uncompressed state is verified on every load.
//
// # Usage
//
//	store, err := storage.NewStore("/data/artifacts")
//	if err != nil {
//	    return err
//	}
//
//	// training side
//	err = store.Save(ctx, "fusion", 4, storage.FusionState{...}, storage.Metadata{ExampleCount: n})
//
//	// serving side
//	if _, err := store.Rescan(); err != nil {
//	    return err
//	}
//	var state storage.FusionState
//	meta, err := store.Load(ctx, "fusion", 0, &state) // 0 = latest
package storage

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package storage

import "encoding/gob"

// Artifact names used as file prefixes.
const (
	NameCollaborative = "collaborative"
	NameContent       = "content_based"
	NameFusion        = "fusion"
)

// CollaborativeState is the serialized latent factor model.
type CollaborativeState struct {
	// Rank is the latent dimension shared by all factor vectors.
	Rank        int
	UserFactors map[string][]float32
	ItemFactors map[string][]float32
}

// ContentState pins the embedding space the content signal scores in.
type ContentState struct {
	// EmbeddingModel names the encoder that produced item and user vectors.
	EmbeddingModel string
	Dimension      int
}

// FusionWeights are the logit-space weights of the three signals.
type FusionWeights struct {
	Collaborative float64
	Content       float64
	Popularity    float64
}

// FusionState is the serialized fusion model.
type FusionState struct {
	Default FusionWeights
	// ByContentType overrides Default for requests of a content type.
	ByContentType map[string]FusionWeights
	// ByTimeWindow overrides by time-of-day window index (0 = first window of the day).
	ByTimeWindow map[int]FusionWeights
}

//nolint:gochecknoinits // gob.Register must be called in init for type registration
func init() {
	gob.Register(CollaborativeState{})
	gob.Register(ContentState{})
	gob.Register(FusionState{})
	gob.Register(Metadata{})
	gob.Register(storedFile{})
}

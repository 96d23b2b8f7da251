// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package signals

import (
	"context"
	"math"

	"github.com/tomtom215/smartrank/internal/featurestore"
	"github.com/tomtom215/smartrank/internal/recommend/artifacts"
)

// Kind identifies a signal.
type Kind int

// The closed set of signals, in fusion order.
const (
	Collaborative Kind = iota
	ContentBased
	Popularity

	// NumKinds is the number of signals.
	NumKinds = 3
)

// Kinds lists every signal in fusion order.
var Kinds = [NumKinds]Kind{Collaborative, ContentBased, Popularity}

// String returns the wire name of the signal.
func (k Kind) String() string {
	switch k {
	case Collaborative:
		return "collaborative"
	case ContentBased:
		return "content_based"
	case Popularity:
		return "popularity"
	default:
		return "unknown"
	}
}

// Score is one signal's opinion about one item.
type Score struct {
	ItemID string
	Kind   Kind
	// Value is in [0,1].
	Value float64
	// Confidence is in [0,1]; 0 excludes the score from fusion.
	Confidence float64
}

// Input is what every signal scores.
type Input struct {
	UserID string
	// User is nil when the feature store has no profile (cold start) or
	// could not be reached.
	User *featurestore.UserFeatures
	// Items are the eligible candidates in a fixed order.
	Items []featurestore.ItemFeatures
}

// Signal scores candidates for a user.
type Signal interface {
	Kind() Kind
	// Score returns one Score per input item, in input order.
	Score(ctx context.Context, in Input) ([]Score, error)
}

// Artifacts is the read side of the artifact registry.
type Artifacts interface {
	Collaborative() *artifacts.Collaborative
	Content() *artifacts.Content
}

// checkEvery is how many items are scored between cancellation checks.
const checkEvery = 256

// absent returns confidence-0 scores for every item.
func absent(kind Kind, items []featurestore.ItemFeatures) []Score {
	out := make([]Score, len(items))
	for i := range items {
		out[i] = Score{ItemID: items[i].ID, Kind: kind}
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}

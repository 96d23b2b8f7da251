// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package signals

import (
	"context"

	"github.com/tomtom215/smartrank/internal/embedding"
	"github.com/tomtom215/smartrank/internal/featurestore"
)

// ContentSignal scores items by cosine similarity between the user's
// preference vector and the item embedding, rescaled to (cos+1)/2.
type ContentSignal struct {
	artifacts Artifacts
}

// NewContent creates the content-based signal.
func NewContent(a Artifacts) *ContentSignal {
	return &ContentSignal{artifacts: a}
}

// Kind implements Signal.
func (s *ContentSignal) Kind() Kind { return ContentBased }

// Score implements Signal. Confidence is 1 whenever both vectors exist and
// have the active embedding dimension.
func (s *ContentSignal) Score(ctx context.Context, in Input) ([]Score, error) {
	if in.User == nil || len(in.User.Preference) == 0 {
		return absent(ContentBased, in.Items), nil
	}
	dim := len(in.User.Preference)
	if art := s.artifacts.Content(); art != nil && art.Dimension() != dim {
		return absent(ContentBased, in.Items), nil
	}

	out := make([]Score, len(in.Items))
	for i := range in.Items {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		item := &in.Items[i]
		out[i] = Score{ItemID: item.ID, Kind: ContentBased}
		if cos, ok := embedding.Cosine(in.User.Preference, item.Embedding); ok {
			out[i].Value = clamp01((cos + 1) / 2)
			out[i].Confidence = 1
		}
	}
	return out, nil
}

// Eligible reports whether item passes the request's hard filter: platform
// and content type must match when set, and the item must carry at least one
// requested topic when topics are given.
func Eligible(item *featurestore.ItemFeatures, f embedding.Filter) bool {
	if f.Platform != "" && item.Platform != f.Platform {
		return false
	}
	if f.ContentType != "" && item.ContentType != f.ContentType {
		return false
	}
	return len(f.Topics) == 0 || item.HasTopic(f.Topics)
}

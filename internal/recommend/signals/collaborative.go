// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package signals

import (
	"context"

	"github.com/tomtom215/smartrank/internal/featurestore"
)

// CollaborativeSignal scores items by the inner product of the user and item
// latent factors of the active collaborative artifact, squashed with the
// logistic function.
type CollaborativeSignal struct {
	artifacts Artifacts
}

// NewCollaborative creates the collaborative signal.
func NewCollaborative(a Artifacts) *CollaborativeSignal {
	return &CollaborativeSignal{artifacts: a}
}

// Kind implements Signal.
func (s *CollaborativeSignal) Kind() Kind { return Collaborative }

// Score implements Signal. Users or items absent from the trained model get
// confidence 0; no score is imputed for them.
func (s *CollaborativeSignal) Score(ctx context.Context, in Input) ([]Score, error) {
	model := s.artifacts.Collaborative()
	if model == nil {
		return absent(Collaborative, in.Items), nil
	}
	userVec, ok := model.UserFactors(in.UserID)
	if !ok {
		return absent(Collaborative, in.Items), nil
	}

	out := make([]Score, len(in.Items))
	for i := range in.Items {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		out[i] = s.scoreItem(userVec, model.ItemFactors, &in.Items[i])
	}
	return out, nil
}

func (s *CollaborativeSignal) scoreItem(userVec []float32, lookup func(string) ([]float32, bool), item *featurestore.ItemFeatures) Score {
	score := Score{ItemID: item.ID, Kind: Collaborative}
	itemVec, ok := lookup(item.ID)
	if !ok {
		return score
	}
	var dot float64
	for k := range userVec {
		dot += float64(userVec[k]) * float64(itemVec[k])
	}
	score.Value = sigmoid(dot)
	score.Confidence = 1
	return score
}

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package signals

import (
	"context"
	"math"
	"time"
)

// PopularitySignal reads the decayed engagement rate precomputed on each item
// by the feedback batch. It is the fallback signal: it never depends on the
// user, so it scores cold-start requests too.
type PopularitySignal struct{}

// NewPopularity creates the popularity signal.
func NewPopularity() *PopularitySignal {
	return &PopularitySignal{}
}

// Kind implements Signal.
func (s *PopularitySignal) Kind() Kind { return Popularity }

// Score implements Signal.
func (s *PopularitySignal) Score(ctx context.Context, in Input) ([]Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Score, len(in.Items))
	for i := range in.Items {
		out[i] = Score{
			ItemID:     in.Items[i].ID,
			Kind:       Popularity,
			Value:      clamp01(in.Items[i].Popularity),
			Confidence: 1,
		}
	}
	return out, nil
}

// DecayedPopularity computes engagements * exp(-decayRate * ageHours) / impressions.
// Items without impressions score 0. ageHours is measured from createdAt to now.
func DecayedPopularity(engagements, impressions int64, createdAt, now time.Time, decayRate float64) float64 {
	if impressions <= 0 || engagements <= 0 {
		return 0
	}
	age := now.Sub(createdAt).Hours()
	if age < 0 {
		age = 0
	}
	return float64(engagements) * math.Exp(-decayRate*age) / float64(impressions)
}

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package recommend

import (
	"cmp"
	"math"
	"slices"

	"github.com/tomtom215/smartrank/internal/featurestore"
	"github.com/tomtom215/smartrank/internal/recommend/artifacts"
	"github.com/tomtom215/smartrank/internal/recommend/signals"
)

// fusedItem is a candidate after fusion.
type fusedItem struct {
	item  *featurestore.ItemFeatures
	score float64

	// raw and weight are indexed by signals.Kind. weight is the effective
	// weight after confidence scaling and renormalisation; zero means the
	// signal did not contribute.
	raw    [signals.NumKinds]float64
	weight [signals.NumKinds]float64
}

// contribution returns the signal's term in logit space.
func (f *fusedItem) contribution(k signals.Kind, eps float64) float64 {
	if f.weight[k] == 0 {
		return 0
	}
	return f.weight[k] * logit(f.raw[k], eps)
}

func weightVector(w artifacts.Weights) [signals.NumKinds]float64 {
	var v [signals.NumKinds]float64
	v[signals.Collaborative] = w.Collaborative
	v[signals.ContentBased] = w.Content
	v[signals.Popularity] = w.Popularity
	return v
}

// fuse combines per-signal scores into one score per item:
//
//	fused = sigmoid(Σ w_i * logit(clamp(s_i, eps, 1-eps)))
//
// w_i is the configured weight scaled by the signal's confidence and
// renormalised over the signals present for the item. When the scaled
// weights sum to zero but popularity has a score, popularity is used alone.
// Items no signal could score are dropped.
//
// results is indexed by signals.Kind; a nil entry means the signal failed.
// Each non-nil entry holds one score per item in item order.
func fuse(items []featurestore.ItemFeatures, results *[signals.NumKinds][]signals.Score, w artifacts.Weights, eps float64) []fusedItem {
	base := weightVector(w)
	out := make([]fusedItem, 0, len(items))

	for i := range items {
		f := fusedItem{item: &items[i]}
		var sum float64
		for _, k := range signals.Kinds {
			scores := results[k]
			if scores == nil || scores[i].Confidence <= 0 {
				continue
			}
			f.raw[k] = scores[i].Value
			f.weight[k] = base[k] * math.Min(scores[i].Confidence, 1)
			sum += f.weight[k]
		}

		if sum <= 0 {
			pop := results[signals.Popularity]
			if pop == nil || pop[i].Confidence <= 0 {
				continue
			}
			f.weight = [signals.NumKinds]float64{}
			f.weight[signals.Popularity] = 1
			sum = 1
		}

		var z float64
		for _, k := range signals.Kinds {
			f.weight[k] /= sum
			z += f.contribution(k, eps)
		}
		f.score = sigmoid(z)
		out = append(out, f)
	}
	return out
}

// sortFused orders items by fused score, descending. Scores within tieEps of the
// first item of a run are ties, ordered newest first and then by item id.
func sortFused(items []fusedItem, tieEps float64) {
	slices.SortFunc(items, func(a, b fusedItem) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.item.ID, b.item.ID)
	})

	for start := 0; start < len(items); {
		end := start + 1
		for end < len(items) && items[start].score-items[end].score <= tieEps {
			end++
		}
		if end-start > 1 {
			slices.SortFunc(items[start:end], func(a, b fusedItem) int {
				if c := b.item.CreatedAt.Compare(a.item.CreatedAt); c != 0 {
					return c
				}
				return cmp.Compare(a.item.ID, b.item.ID)
			})
		}
		start = end
	}
}

func logit(p, eps float64) float64 {
	p = math.Min(math.Max(p, eps), 1-eps)
	return math.Log(p / (1 - p))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

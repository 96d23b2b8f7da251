// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package recommend

import (
	"context"

	"github.com/tomtom215/smartrank/internal/cache"
	"github.com/tomtom215/smartrank/internal/embedding"
	"github.com/tomtom215/smartrank/internal/featurestore"
	"github.com/tomtom215/smartrank/internal/recommend/artifacts"
	"github.com/tomtom215/smartrank/internal/recommend/signals"
)

// Degraded reasons.
const (
	ReasonFeatureStoreTimeout = "feature_store_timeout"
	ReasonColdStart           = "cold_start"
)

// SignalScore is one signal's opinion of one item.
type SignalScore = signals.Score

// Context describes where the recommendations will be shown.
type Context struct {
	Platform     string   `json:"platform" validate:"required,identifier"`
	ContentType  string   `json:"content_type" validate:"required,identifier"`
	TopicFilters []string `json:"topic_filters,omitempty" validate:"omitempty,max=32,dive,topic"`

	// Limit is the maximum number of recommendations. Zero selects the
	// configured default; values above the configured maximum are capped.
	Limit int `json:"limit,omitempty" validate:"gte=0"`

	// Segment optionally overrides the user's stored segment in the cache key.
	Segment string `json:"segment,omitempty" validate:"omitempty,identifier"`
}

// filter returns the eligibility filter of the context.
//
//nolint:gocritic // hugeParam: value receiver keeps Context immutable
func (c Context) filter() embedding.Filter {
	return embedding.Filter{Platform: c.Platform, ContentType: c.ContentType, Topics: c.TopicFilters}
}

// Request is a recommendation request.
type Request struct {
	UserID  string  `json:"user_id" validate:"required,identifier"`
	Context Context `json:"context"`
}

// Response is a ranked recommendation list.
type Response struct {
	Recommendations []RankedRecommendation `json:"recommendations"`
	ModelVersions   artifacts.Versions     `json:"model_versions"`

	// Degraded is set when the list was produced without some inputs;
	// Reason says which.
	Degraded bool   `json:"degraded,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// clone returns a copy whose recommendation slice can be modified freely.
func (r *Response) clone() *Response {
	c := *r
	c.Recommendations = append([]RankedRecommendation(nil), r.Recommendations...)
	if c.Recommendations == nil {
		c.Recommendations = []RankedRecommendation{}
	}
	return &c
}

// RankedRecommendation is one recommended item.
type RankedRecommendation struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
	// Rank is 1-based.
	Rank                int                 `json:"rank"`
	Explanation         string              `json:"explanation"`
	ContributingSignals ContributingSignals `json:"contributing_signals"`
}

// ContributingSignals lists the signals that shaped a fused score. A nil
// entry means the signal had no confidence for the item.
type ContributingSignals struct {
	Collaborative *Contribution `json:"collaborative,omitempty"`
	ContentBased  *Contribution `json:"content_based,omitempty"`
	Popularity    *Contribution `json:"popularity,omitempty"`
}

// Contribution is a signal's raw score and its effective weight after
// confidence weighting and renormalisation.
type Contribution struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// SimilarResponse lists items similar to a reference item.
type SimilarResponse struct {
	ItemID  string               `json:"item_id"`
	Similar []embedding.Neighbor `json:"similar"`
}

// Status is a snapshot of the engine for operators.
type Status struct {
	ModelVersions artifacts.Versions `json:"model_versions"`
	Weights       artifacts.Weights  `json:"weights"`
	Counters      Counters           `json:"counters"`
	Cache         cache.Stats        `json:"cache"`
}

// Counters are cumulative engine counters.
type Counters struct {
	Requests       int64 `json:"requests"`
	CacheHits      int64 `json:"cache_hits"`
	CacheMisses    int64 `json:"cache_misses"`
	SharedFlights  int64 `json:"shared_flights"`
	Degraded       int64 `json:"degraded"`
	Unavailable    int64 `json:"unavailable"`
	SignalTimeouts int64 `json:"signal_timeouts"`
	Errors         int64 `json:"errors"`
}

// FeatureStore is the subset of the feature store adapter the engine reads.
type FeatureStore interface {
	GetUserFeatures(ctx context.Context, id string) (featurestore.UserFeatures, error)
	GetItemFeatures(ctx context.Context, ids []string) (featurestore.ItemBatch, error)
	TopPopular(ctx context.Context, offset, k int) ([]string, error)
}

// ArtifactSource exposes the active model artifacts.
type ArtifactSource interface {
	signals.Artifacts
	// Fusion never returns nil.
	Fusion() *artifacts.Fusion
	Versions() artifacts.Versions
}

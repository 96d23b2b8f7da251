// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package featurestore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the upstream has no record for the id.
	ErrNotFound = errors.New("featurestore: not found")

	// ErrUpstreamUnavailable is returned when the upstream failed or timed out
	// and no cached entry could be served instead.
	ErrUpstreamUnavailable = errors.New("featurestore: upstream unavailable")
)

// UserFeatures is a read-only snapshot of a user.
type UserFeatures struct {
	ID               string    `json:"id"`
	Preference       []float32 `json:"preference"`
	Interests        []string  `json:"interests,omitempty"`
	Segment          string    `json:"segment,omitempty"`
	InteractionCount int64     `json:"interaction_count"`

	// Stale is set when the snapshot was served from an expired cache entry
	// because the upstream could not be reached.
	Stale bool `json:"-"`
}

// ItemFeatures is a read-only snapshot of a content item.
type ItemFeatures struct {
	ID              string    `json:"id"`
	Embedding       []float32 `json:"embedding"`
	Topics          []string  `json:"topics,omitempty"`
	Platform        string    `json:"platform"`
	ContentType     string    `json:"content_type"`
	CreatedAt       time.Time `json:"created_at"`
	EngagementCount int64     `json:"engagement_count"`
	Impressions     int64     `json:"impressions"`

	// Popularity is the decayed engagement rate written by the feedback batch.
	Popularity float64 `json:"popularity"`

	Stale bool `json:"-"`
}

// HasTopic reports whether the item carries any of the given topics.
func (f *ItemFeatures) HasTopic(topics []string) bool {
	for _, want := range topics {
		for _, have := range f.Topics {
			if have == want {
				return true
			}
		}
	}
	return false
}

// ItemBatch is the result of a multi-item lookup.
type ItemBatch struct {
	Items map[string]ItemFeatures

	// Missing lists requested ids with no features, in request order.
	Missing []string

	// Degraded is set when the upstream failed and the batch was assembled
	// from cache only.
	Degraded bool
}

// Source is the upstream feature store.
type Source interface {
	// GetUser returns ErrNotFound for unknown users.
	GetUser(ctx context.Context, id string) (UserFeatures, error)
	// GetItems returns the items that exist; absent ids are simply omitted.
	GetItems(ctx context.Context, ids []string) (map[string]ItemFeatures, error)
	// TopPopular returns up to k item ids by descending popularity,
	// skipping the first offset. A short page means the ranking is exhausted.
	TopPopular(ctx context.Context, offset, k int) ([]string, error)
}

// PopularityWriter receives recomputed popularity scores from the feedback batch.
type PopularityWriter interface {
	WritePopularity(ctx context.Context, scores map[string]float64) error
}

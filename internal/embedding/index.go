// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package embedding

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrNotFound is returned by Similar when the reference item has no embedding.
var ErrNotFound = errors.New("embedding: item not found")

const (
	defaultK = 10
	maxK     = 1000
)

// Filter restricts a query to items matching request metadata.
// Empty fields match everything. Topics match when the item carries any of them.
type Filter struct {
	Platform    string
	ContentType string
	Topics      []string
}

// Neighbor is a single search hit.
type Neighbor struct {
	ItemID     string  `json:"item_id"`
	Similarity float64 `json:"similarity"`
}

// Entry is an item as stored in the index.
type Entry struct {
	ItemID      string
	Embedding   []float32
	Platform    string
	ContentType string
	Topics      []string
	CreatedAt   time.Time
}

// Index is a nearest-neighbour index over item embeddings.
// Results are ordered by descending similarity, then item id.
type Index interface {
	// Nearest returns up to k items closest to vector.
	Nearest(ctx context.Context, vector []float32, k int, filter Filter) ([]Neighbor, error)
	// Similar returns up to k items closest to itemID with similarity of at
	// least threshold, excluding itemID itself.
	Similar(ctx context.Context, itemID string, k int, threshold float64, filter Filter) ([]Neighbor, error)
}

// normalizeK applies the default and upper bound to a requested result count.
func normalizeK(k int) int {
	if k <= 0 {
		return defaultK
	}
	if k > maxK {
		return maxK
	}
	return k
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
// ok is false when the vectors differ in length or either has zero norm.
func Cosine(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	sim = dot / (math.Sqrt(na) * math.Sqrt(nb))
	// rounding can push |sim| marginally past 1
	return math.Max(-1, math.Min(1, sim)), true
}

// matches reports whether e passes the filter.
func (f Filter) matches(e *Entry) bool {
	if f.Platform != "" && e.Platform != f.Platform {
		return false
	}
	if f.ContentType != "" && e.ContentType != f.ContentType {
		return false
	}
	if len(f.Topics) == 0 {
		return true
	}
	for _, want := range f.Topics {
		for _, have := range e.Topics {
			if want == have {
				return true
			}
		}
	}
	return false
}

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
)

func seededMemoryIndex(t *testing.T) *MemoryIndex {
	t.Helper()
	idx := NewMemoryIndex()
	entries := []Entry{
		{ItemID: "a", Embedding: []float32{1, 0}, Platform: "web", ContentType: "article", Topics: []string{"ai"}},
		{ItemID: "b", Embedding: []float32{0.8, 0.6}, Platform: "web", ContentType: "article", Topics: []string{"ai", "ml"}},
		{ItemID: "c", Embedding: []float32{0, 1}, Platform: "web", ContentType: "article", Topics: []string{"sports"}},
		{ItemID: "d", Embedding: []float32{1, 0}, Platform: "mobile", ContentType: "video", Topics: []string{"ai"}},
	}
	for _, e := range entries {
		if err := idx.Upsert(context.Background(), e); err != nil {
			t.Fatalf("Upsert(%s) error = %v", e.ItemID, err)
		}
	}
	return idx
}

func TestCosine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		a, b   []float32
		want   float64
		wantOK bool
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1, true},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0, true},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1, true},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0, false},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0, false},
		{"empty", nil, nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Cosine(tt.a, tt.b)
			if ok != tt.wantOK {
				t.Fatalf("Cosine ok = %v, want %v", ok, tt.wantOK)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryIndex_NearestFiltersAndOrders(t *testing.T) {
	t.Parallel()
	idx := seededMemoryIndex(t)

	got, err := idx.Nearest(context.Background(), []float32{1, 0}, 10, Filter{Platform: "web", ContentType: "article"})
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Nearest() returned %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ItemID != want[i] {
			t.Errorf("result[%d] = %s, want %s", i, got[i].ItemID, want[i])
		}
	}
}

func TestMemoryIndex_NearestTopicFilterAndLimit(t *testing.T) {
	t.Parallel()
	idx := seededMemoryIndex(t)

	got, err := idx.Nearest(context.Background(), []float32{0, 1}, 1, Filter{Topics: []string{"ai"}})
	if err != nil {
		t.Fatalf("Nearest() error = %v", err)
	}
	if len(got) != 1 || got[0].ItemID != "b" {
		t.Errorf("Nearest() = %+v, want [b]", got)
	}
}

func TestMemoryIndex_SimilarExcludesSelfAndAppliesThreshold(t *testing.T) {
	t.Parallel()
	idx := seededMemoryIndex(t)

	got, err := idx.Similar(context.Background(), "a", 10, 0.5, Filter{})
	if err != nil {
		t.Fatalf("Similar() error = %v", err)
	}
	// d ties a at 1.0, b is 0.8, c is below threshold
	if len(got) != 2 || got[0].ItemID != "d" || got[1].ItemID != "b" {
		t.Errorf("Similar() = %+v, want [d b]", got)
	}

	if _, err := idx.Similar(context.Background(), "ghost", 10, 0, Filter{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Similar(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryIndex_CanceledContext(t *testing.T) {
	t.Parallel()
	idx := seededMemoryIndex(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := idx.Nearest(ctx, []float32{1, 0}, 5, Filter{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Nearest() error = %v, want context.Canceled", err)
	}
}

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package embedding

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// MemoryIndex is a brute-force Index for development and tests.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryIndex creates an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]Entry)}
}

// Upsert stores or replaces an entry.
func (m *MemoryIndex) Upsert(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ItemID] = e
	return nil
}

// Len returns the number of stored entries.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Nearest implements Index.
func (m *MemoryIndex) Nearest(ctx context.Context, vector []float32, k int, filter Filter) ([]Neighbor, error) {
	return m.search(ctx, vector, "", normalizeK(k), -1, filter)
}

// Similar implements Index.
func (m *MemoryIndex) Similar(ctx context.Context, itemID string, k int, threshold float64, filter Filter) ([]Neighbor, error) {
	m.mu.RLock()
	ref, ok := m.entries[itemID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return m.search(ctx, ref.Embedding, itemID, normalizeK(k), threshold, filter)
}

func (m *MemoryIndex) search(ctx context.Context, vector []float32, exclude string, k int, threshold float64, filter Filter) ([]Neighbor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	results := make([]Neighbor, 0, min(k, len(m.entries)))
	for id := range m.entries {
		e := m.entries[id]
		if id == exclude || !filter.matches(&e) {
			continue
		}
		sim, ok := Cosine(vector, e.Embedding)
		if !ok || sim < threshold {
			continue
		}
		results = append(results, Neighbor{ItemID: id, Similarity: sim})
	}
	m.mu.RUnlock()

	slices.SortFunc(results, func(a, b Neighbor) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.ItemID, b.ItemID)
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

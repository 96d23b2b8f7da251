// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package featurestore

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// MemorySource is an in-process Source for development and tests.
type MemorySource struct {
	mu    sync.RWMutex
	users map[string]UserFeatures
	items map[string]ItemFeatures
}

// NewMemorySource creates an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		users: make(map[string]UserFeatures),
		items: make(map[string]ItemFeatures),
	}
}

// PutUser stores or replaces a user.
func (m *MemorySource) PutUser(u UserFeatures) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// PutItem stores or replaces an item.
func (m *MemorySource) PutItem(it ItemFeatures) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.ID] = it
}

// GetUser implements Source.
func (m *MemorySource) GetUser(ctx context.Context, id string) (UserFeatures, error) {
	if err := ctx.Err(); err != nil {
		return UserFeatures{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return UserFeatures{}, ErrNotFound
	}
	return u, nil
}

// GetItems implements Source.
func (m *MemorySource) GetItems(ctx context.Context, ids []string) (map[string]ItemFeatures, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]ItemFeatures, len(ids))
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

// TopPopular implements Source. Ties are broken by id.
func (m *MemorySource) TopPopular(ctx context.Context, offset, k int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	items := make([]ItemFeatures, 0, len(m.items))
	for _, it := range m.items {
		items = append(items, it)
	}
	m.mu.RUnlock()

	slices.SortFunc(items, func(a, b ItemFeatures) int {
		if c := cmp.Compare(b.Popularity, a.Popularity); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if offset < 0 || offset >= len(items) || k <= 0 {
		return []string{}, nil
	}
	items = items[offset:min(offset+k, len(items))]
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	return ids, nil
}

// WritePopularity implements PopularityWriter. Unknown items are ignored.
func (m *MemorySource) WritePopularity(ctx context.Context, scores map[string]float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, score := range scores {
		if it, ok := m.items[id]; ok {
			it.Popularity = score
			m.items[id] = it
		}
	}
	return nil
}

var (
	_ Source           = (*MemorySource)(nil)
	_ PopularityWriter = (*MemorySource)(nil)
)

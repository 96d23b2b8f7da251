// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package artifacts

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/smartrank/internal/recommend/storage"
)

func newTestRegistry(t *testing.T) (*Registry, *storage.Store) {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	reg, err := NewRegistry(store, DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	return reg, store
}

func collabState(rank int) storage.CollaborativeState {
	vec := make([]float32, rank)
	for i := range vec {
		vec[i] = 0.5
	}
	return storage.CollaborativeState{
		Rank:        rank,
		UserFactors: map[string][]float32{"u1": vec},
		ItemFactors: map[string][]float32{"i1": vec},
	}
}

func TestNewRegistry_ServesDefaultFusion(t *testing.T) {
	t.Parallel()
	reg, _ := newTestRegistry(t)

	if reg.Collaborative() != nil || reg.Content() != nil {
		t.Error("expected no collaborative or content artifact before Init")
	}
	f := reg.Fusion()
	if f == nil || f.Version() != DefaultVersion {
		t.Fatalf("Fusion() = %v, want default artifact", f)
	}
	if w := f.Default(); math.Abs(w.Collaborative-1.0/3) > 1e-12 || w.Content != w.Popularity {
		t.Errorf("default weights = %+v, want equal thirds", w)
	}
	if reg.Ready() {
		t.Error("Ready() = true before Init")
	}
}

func TestNewRegistry_RejectsBadDefaults(t *testing.T) {
	t.Parallel()
	store, _ := storage.NewStore(t.TempDir())
	cfg := DefaultConfig()
	cfg.DefaultWeights = Weights{}
	if _, err := NewRegistry(store, cfg, zerolog.Nop()); err == nil {
		t.Error("NewRegistry() with all-zero weights succeeded")
	}
	if _, err := NewRegistry(nil, DefaultConfig(), zerolog.Nop()); err == nil {
		t.Error("NewRegistry(nil store) succeeded")
	}
}

func TestRegistry_InitLoadsLatest(t *testing.T) {
	t.Parallel()
	reg, store := newTestRegistry(t)
	ctx := context.Background()

	mustSave(t, store, storage.NameCollaborative, 1, collabState(2))
	mustSave(t, store, storage.NameCollaborative, 2, collabState(3))
	mustSave(t, store, storage.NameContent, 1, storage.ContentState{EmbeddingModel: "minilm", Dimension: 384})

	if err := reg.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !reg.Ready() {
		t.Error("Ready() = false after Init")
	}

	want := Versions{Collaborative: "v2", ContentBased: "v1", Fusion: DefaultVersion}
	if got := reg.Versions(); got != want {
		t.Errorf("Versions() = %+v, want %+v", got, want)
	}
	if rank := reg.Collaborative().Rank(); rank != 3 {
		t.Errorf("Rank() = %d, want 3", rank)
	}
}

func TestRegistry_RefreshSwapsAndKeepsOldOnFailure(t *testing.T) {
	t.Parallel()
	reg, store := newTestRegistry(t)
	ctx := context.Background()

	mustSave(t, store, storage.NameFusion, 1, storage.FusionState{
		Default: storage.FusionWeights{Collaborative: 0.5, Content: 0.3, Popularity: 0.2},
	})
	if err := reg.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if v := reg.Fusion().Version(); v != "v1" {
		t.Fatalf("Fusion version = %s, want v1", v)
	}

	// negative weight fails validation
	mustSave(t, store, storage.NameFusion, 2, storage.FusionState{
		Default: storage.FusionWeights{Collaborative: -1, Content: 1, Popularity: 1},
	})
	activated, err := reg.Refresh(ctx)
	if !errors.Is(err, ErrLoad) || !errors.Is(err, ErrInvalid) {
		t.Errorf("Refresh() error = %v, want ErrLoad wrapping ErrInvalid", err)
	}
	if len(activated) != 0 {
		t.Errorf("activated = %v, want none", activated)
	}
	if v := reg.Fusion().Version(); v != "v1" {
		t.Errorf("Fusion version after failed load = %s, want v1", v)
	}

	mustSave(t, store, storage.NameFusion, 3, storage.FusionState{
		Default: storage.FusionWeights{Collaborative: 0.1, Content: 0.1, Popularity: 0.8},
	})
	activated, err = reg.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !slices.Equal(activated, []Kind{KindFusion}) {
		t.Errorf("activated = %v, want [fusion]", activated)
	}
	if w := reg.Fusion().Default(); w.Popularity != 0.8 {
		t.Errorf("Popularity weight = %v, want 0.8", w.Popularity)
	}
}

func TestRegistry_RefreshRetriesUnreadableVersion(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store, err := storage.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	reg, err := NewRegistry(store, DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	ctx := context.Background()

	mustSave(t, store, storage.NameFusion, 1, storage.FusionState{
		Default: storage.FusionWeights{Collaborative: 0.5, Content: 0.3, Popularity: 0.2},
	})
	if err := reg.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	// a trainer still writing v2
	partial := filepath.Join(dir, storage.NameFusion+"_v2.gob.gz")
	if err := os.WriteFile(partial, []byte{0x1f, 0x8b}, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := reg.Refresh(ctx); !errors.Is(err, ErrLoad) {
		t.Fatalf("Refresh() with partial file error = %v, want ErrLoad", err)
	}
	if v := reg.Fusion().Version(); v != "v1" {
		t.Fatalf("Fusion version = %s, want v1 kept", v)
	}

	mustSave(t, store, storage.NameFusion, 2, storage.FusionState{
		Default: storage.FusionWeights{Collaborative: 0.2, Content: 0.2, Popularity: 0.6},
	})
	activated, err := reg.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !slices.Equal(activated, []Kind{KindFusion}) || reg.Fusion().Version() != "v2" {
		t.Errorf("activated = %v, version = %s; want [fusion] at v2", activated, reg.Fusion().Version())
	}

	// nothing new: no swaps, no errors
	activated, err = reg.Refresh(ctx)
	if err != nil || len(activated) != 0 {
		t.Errorf("idle Refresh() = %v, %v; want none", activated, err)
	}
}

func TestRegistry_InvalidVersionNotReloaded(t *testing.T) {
	t.Parallel()
	reg, store := newTestRegistry(t)
	ctx := context.Background()

	mustSave(t, store, storage.NameCollaborative, 1, storage.CollaborativeState{Rank: 0})
	if _, err := reg.Refresh(ctx); !errors.Is(err, ErrInvalid) {
		t.Fatalf("first Refresh() error = %v, want ErrInvalid", err)
	}
	if _, err := reg.Refresh(ctx); err != nil {
		t.Errorf("second Refresh() error = %v, want the rejected version skipped", err)
	}
	if reg.Collaborative() != nil {
		t.Error("invalid collaborative artifact activated")
	}
}

func TestRegistry_ContentDimensionMismatchRejected(t *testing.T) {
	t.Parallel()
	store, _ := storage.NewStore(t.TempDir())
	cfg := DefaultConfig()
	cfg.ContentDimension = 384
	reg, err := NewRegistry(store, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	mustSave(t, store, storage.NameContent, 1, storage.ContentState{EmbeddingModel: "big", Dimension: 1536})
	if err := reg.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if reg.Content() != nil {
		t.Error("content artifact with wrong dimension was activated")
	}
}

func TestRegistry_ConcurrentReadsDuringSwaps(t *testing.T) {
	t.Parallel()
	reg, store := newTestRegistry(t)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				f := reg.Fusion()
				w := f.Default()
				// every published artifact has weights summing to 1
				if sum := w.Collaborative + w.Content + w.Popularity; math.Abs(sum-1) > 1e-9 {
					t.Errorf("observed torn weights %+v", w)
					return
				}
			}
		}()
	}

	ctx := context.Background()
	for i := 1; i <= 30; i++ {
		p := float64(i%10) / 10
		mustSave(t, store, storage.NameFusion, i, storage.FusionState{
			Default: storage.FusionWeights{Collaborative: (1 - p) / 2, Content: (1 - p) / 2, Popularity: p},
		})
		if _, err := reg.Refresh(ctx); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
	}
	close(stop)
	wg.Wait()

	if v := reg.Fusion().Version(); v != "v30" {
		t.Errorf("Fusion version = %s, want v30", v)
	}
}

func TestRegistry_ServeStopsOnClose(t *testing.T) {
	t.Parallel()
	store, _ := storage.NewStore(t.TempDir())
	cfg := DefaultConfig()
	cfg.PollInterval = 10 * time.Millisecond
	reg, err := NewRegistry(store, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- reg.Serve(context.Background()) }()

	mustSave(t, store, storage.NameCollaborative, 1, collabState(2))
	deadline := time.Now().Add(2 * time.Second)
	for reg.Collaborative() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if reg.Collaborative() == nil {
		t.Error("poller did not activate the new artifact")
	}

	_ = reg.Close()
	_ = reg.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil after Close", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Close")
	}
	if _, err := reg.Refresh(context.Background()); err == nil {
		t.Error("Refresh() after Close succeeded")
	}
}

func TestNewCollaborative_Validation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		state storage.CollaborativeState
	}{
		{"zero rank", storage.CollaborativeState{Rank: 0, ItemFactors: map[string][]float32{"i": {}}}},
		{"no items", storage.CollaborativeState{Rank: 2}},
		{"short item vector", storage.CollaborativeState{Rank: 2, ItemFactors: map[string][]float32{"i": {1}}}},
		{"NaN user factor", storage.CollaborativeState{
			Rank:        1,
			UserFactors: map[string][]float32{"u": {float32(math.NaN())}},
			ItemFactors: map[string][]float32{"i": {1}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCollaborative("v1", tt.state); !errors.Is(err, ErrInvalid) {
				t.Errorf("NewCollaborative() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestFusion_WeightsForPrecedence(t *testing.T) {
	t.Parallel()
	f, err := NewFusion("v1", storage.FusionState{
		Default:       storage.FusionWeights{Collaborative: 1, Content: 1, Popularity: 1},
		ByContentType: map[string]storage.FusionWeights{"video": {Popularity: 1}},
		ByTimeWindow:  map[int]storage.FusionWeights{2: {Content: 1}},
	})
	if err != nil {
		t.Fatalf("NewFusion() error = %v", err)
	}

	tests := []struct {
		contentType string
		window      int
		want        Weights
	}{
		{"video", 2, Weights{Popularity: 1}},
		{"article", 2, Weights{Content: 1}},
		{"article", 0, Weights{Collaborative: 1, Content: 1, Popularity: 1}},
	}
	for _, tt := range tests {
		if got := f.WeightsFor(tt.contentType, tt.window); got != tt.want {
			t.Errorf("WeightsFor(%q, %d) = %+v, want %+v", tt.contentType, tt.window, got, tt.want)
		}
	}
}

func mustSave(t *testing.T, store *storage.Store, name string, version int, state interface{}) {
	t.Helper()
	if err := store.Save(context.Background(), name, version, state, storage.Metadata{}); err != nil {
		t.Fatalf("Save(%s v%d) error = %v", name, version, err)
	}
}

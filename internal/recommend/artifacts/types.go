// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package artifacts

import (
	"errors"
	"fmt"
	"math"

	"github.com/tomtom215/smartrank/internal/recommend/storage"
)

var (
	// ErrInvalid marks an artifact that failed validation.
	ErrInvalid = errors.New("artifacts: validation failed")

	// ErrLoad marks an artifact that could not be loaded or activated.
	ErrLoad = errors.New("artifacts: load failed")
)

// Kind names an artifact type.
type Kind string

// Artifact kinds.
const (
	KindCollaborative Kind = storage.NameCollaborative
	KindContent       Kind = storage.NameContent
	KindFusion        Kind = storage.NameFusion
)

// DefaultVersion is reported for the built-in fusion weights.
const DefaultVersion = "default"

// Collaborative is an immutable latent factor model.
type Collaborative struct {
	version string
	rank    int
	users   map[string][]float32
	items   map[string][]float32
}

// NewCollaborative validates state and builds an artifact.
func NewCollaborative(version string, state storage.CollaborativeState) (*Collaborative, error) {
	if state.Rank < 1 {
		return nil, fmt.Errorf("%w: collaborative rank %d", ErrInvalid, state.Rank)
	}
	if len(state.ItemFactors) == 0 {
		return nil, fmt.Errorf("%w: collaborative model has no item factors", ErrInvalid)
	}
	for kind, factors := range map[string]map[string][]float32{"user": state.UserFactors, "item": state.ItemFactors} {
		for id, vec := range factors {
			if len(vec) != state.Rank {
				return nil, fmt.Errorf("%w: %s %q has %d factors, want %d", ErrInvalid, kind, id, len(vec), state.Rank)
			}
			if !finite32(vec) {
				return nil, fmt.Errorf("%w: %s %q has non-finite factors", ErrInvalid, kind, id)
			}
		}
	}
	return &Collaborative{
		version: version,
		rank:    state.Rank,
		users:   state.UserFactors,
		items:   state.ItemFactors,
	}, nil
}

// Version returns the artifact version.
func (c *Collaborative) Version() string { return c.version }

// Rank returns the latent dimension.
func (c *Collaborative) Rank() int { return c.rank }

// UserFactors returns the latent vector of a user. The slice must not be modified.
func (c *Collaborative) UserFactors(id string) ([]float32, bool) {
	v, ok := c.users[id]
	return v, ok
}

// ItemFactors returns the latent vector of an item. The slice must not be modified.
func (c *Collaborative) ItemFactors(id string) ([]float32, bool) {
	v, ok := c.items[id]
	return v, ok
}

// Content pins the embedding space used by the content signal.
type Content struct {
	version   string
	model     string
	dimension int
}

// NewContent validates state against the expected dimension (0 skips the check).
func NewContent(version string, state storage.ContentState, wantDimension int) (*Content, error) {
	if state.EmbeddingModel == "" {
		return nil, fmt.Errorf("%w: content artifact has no embedding model", ErrInvalid)
	}
	if state.Dimension < 1 {
		return nil, fmt.Errorf("%w: content dimension %d", ErrInvalid, state.Dimension)
	}
	if wantDimension > 0 && state.Dimension != wantDimension {
		return nil, fmt.Errorf("%w: content dimension %d, index serves %d", ErrInvalid, state.Dimension, wantDimension)
	}
	return &Content{version: version, model: state.EmbeddingModel, dimension: state.Dimension}, nil
}

// Version returns the artifact version.
func (c *Content) Version() string { return c.version }

// EmbeddingModel names the encoder the vectors come from.
func (c *Content) EmbeddingModel() string { return c.model }

// Dimension returns the vector dimension.
func (c *Content) Dimension() int { return c.dimension }

// Weights are the fusion weights of the three signals.
type Weights struct {
	Collaborative float64 `json:"collaborative"`
	Content       float64 `json:"content_based"`
	Popularity    float64 `json:"popularity"`
}

func (w Weights) validate() error {
	var sum float64
	for _, v := range []float64{w.Collaborative, w.Content, w.Popularity} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weights must be finite and non-negative: %+v", w)
		}
		sum += v
	}
	if sum == 0 {
		return fmt.Errorf("weights must not all be zero")
	}
	return nil
}

func weightsFromState(w storage.FusionWeights) Weights {
	return Weights{Collaborative: w.Collaborative, Content: w.Content, Popularity: w.Popularity}
}

// Fusion is an immutable set of fusion weights with context overrides.
type Fusion struct {
	version       string
	def           Weights
	byContentType map[string]Weights
	byWindow      map[int]Weights
}

// NewFusion validates state and builds an artifact.
func NewFusion(version string, state storage.FusionState) (*Fusion, error) {
	f := &Fusion{
		version:       version,
		def:           weightsFromState(state.Default),
		byContentType: make(map[string]Weights, len(state.ByContentType)),
		byWindow:      make(map[int]Weights, len(state.ByTimeWindow)),
	}
	if err := f.def.validate(); err != nil {
		return nil, fmt.Errorf("%w: default %w", ErrInvalid, err)
	}
	for ct, w := range state.ByContentType {
		cw := weightsFromState(w)
		if err := cw.validate(); err != nil {
			return nil, fmt.Errorf("%w: content type %q: %w", ErrInvalid, ct, err)
		}
		f.byContentType[ct] = cw
	}
	for window, w := range state.ByTimeWindow {
		ww := weightsFromState(w)
		if window < 0 {
			return nil, fmt.Errorf("%w: negative time window %d", ErrInvalid, window)
		}
		if err := ww.validate(); err != nil {
			return nil, fmt.Errorf("%w: time window %d: %w", ErrInvalid, window, err)
		}
		f.byWindow[window] = ww
	}
	return f, nil
}

// DefaultFusion builds the fusion artifact used before any trained one exists.
func DefaultFusion(w Weights) (*Fusion, error) {
	if err := w.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return &Fusion{
		version:       DefaultVersion,
		def:           w,
		byContentType: map[string]Weights{},
		byWindow:      map[int]Weights{},
	}, nil
}

// Version returns the artifact version.
func (f *Fusion) Version() string { return f.version }

// Default returns the context-free weights.
func (f *Fusion) Default() Weights { return f.def }

// WeightsFor returns the weights for a request context. A content type
// override wins over a time window override.
func (f *Fusion) WeightsFor(contentType string, window int) Weights {
	if w, ok := f.byContentType[contentType]; ok {
		return w
	}
	if w, ok := f.byWindow[window]; ok {
		return w
	}
	return f.def
}

func finite32(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

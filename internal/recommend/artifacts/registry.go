// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package artifacts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/smartrank/internal/metrics"
	"github.com/tomtom215/smartrank/internal/recommend/storage"
)

// Store is the artifact source. *storage.Store implements it.
type Store interface {
	Rescan() ([]string, error)
	LatestVersion(name string) (int, bool)
	Load(ctx context.Context, name string, version int, target interface{}) (*storage.Metadata, error)
}

// Config configures the registry.
type Config struct {
	// PollInterval is how often Serve looks for new versions.
	PollInterval time.Duration

	// DefaultWeights are served until a fusion artifact is activated.
	DefaultWeights Weights

	// ContentDimension, when positive, must match every content artifact.
	ContentDimension int
}

// DefaultConfig returns equal-thirds default weights and a 30s poll.
func DefaultConfig() Config {
	return Config{
		PollInterval:   30 * time.Second,
		DefaultWeights: Weights{Collaborative: 1.0 / 3, Content: 1.0 / 3, Popularity: 1.0 / 3},
	}
}

// Versions reports the active version of each kind. Empty means none.
type Versions struct {
	Collaborative string `json:"collaborative"`
	ContentBased  string `json:"content_based"`
	Fusion        string `json:"fusion"`
}

// Registry holds the active artifacts.
type Registry struct {
	store  Store
	cfg    Config
	logger zerolog.Logger

	collaborative atomic.Pointer[Collaborative]
	content       atomic.Pointer[Content]
	fusion        atomic.Pointer[Fusion]

	// writeMu serializes activations; reads never take it.
	writeMu sync.Mutex

	// active file versions, guarded by writeMu
	loaded map[Kind]int

	// versions that failed validation, guarded by writeMu. Read errors are
	// not recorded so a file still being written is retried.
	rejected map[Kind]int

	ready     atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewRegistry creates a registry serving the default fusion weights.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRegistry(store Store, cfg Config, logger zerolog.Logger) (*Registry, error) {
	if store == nil {
		return nil, errors.New("artifacts: store is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	def, err := DefaultFusion(cfg.DefaultWeights)
	if err != nil {
		return nil, fmt.Errorf("default weights: %w", err)
	}

	r := &Registry{
		store:  store,
		cfg:    cfg,
		logger: logger.With().Str("component", "artifact_registry").Logger(),
		loaded:   make(map[Kind]int),
		rejected: make(map[Kind]int),
		done:     make(chan struct{}),
	}
	r.fusion.Store(def)
	return r, nil
}

// Init loads the latest version of every kind present in the store. Invalid
// artifacts are logged and skipped; only an unreadable store is an error.
func (r *Registry) Init(ctx context.Context) error {
	if _, err := r.store.Rescan(); err != nil {
		return fmt.Errorf("%w: scan artifact store: %w", ErrLoad, err)
	}
	for _, kind := range allKinds {
		if _, err := r.refreshKind(ctx, kind); err != nil {
			r.logger.Error().Err(err).Str("kind", string(kind)).Msg("Initial artifact load failed")
		}
	}
	r.ready.Store(true)

	v := r.Versions()
	r.logger.Info().
		Str("collaborative", v.Collaborative).
		Str("content_based", v.ContentBased).
		Str("fusion", v.Fusion).
		Msg("Artifact registry initialized")
	return nil
}

// Ready reports whether Init has completed.
func (r *Registry) Ready() bool {
	return r.ready.Load()
}

// allKinds lists the artifact kinds in activation order.
var allKinds = []Kind{KindCollaborative, KindContent, KindFusion}

// Refresh rescans the store and activates every kind whose latest version
// differs from the active one. It returns the kinds that were swapped.
// Failed kinds keep their current artifact and are reported in the joined
// error; a version that could not be read is retried on the next call.
func (r *Registry) Refresh(ctx context.Context) ([]Kind, error) {
	if r.closed.Load() {
		return nil, errors.New("artifacts: registry closed")
	}
	if _, err := r.store.Rescan(); err != nil {
		return nil, fmt.Errorf("%w: scan artifact store: %w", ErrLoad, err)
	}

	var (
		activated []Kind
		errs      []error
	)
	for _, kind := range allKinds {
		swapped, err := r.refreshKind(ctx, kind)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if swapped {
			activated = append(activated, kind)
		}
	}
	return activated, errors.Join(errs...)
}

// refreshKind loads and activates the latest version of kind if it differs
// from the active one and has not already failed validation.
func (r *Registry) refreshKind(ctx context.Context, kind Kind) (bool, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	version, ok := r.store.LatestVersion(string(kind))
	if !ok || version == r.loaded[kind] || version == r.rejected[kind] {
		return false, nil
	}

	label := fmt.Sprintf("v%d", version)
	log := r.logger.With().Str("kind", string(kind)).Str("version", label).Logger()

	var err error
	switch kind {
	case KindCollaborative:
		err = r.loadCollaborative(ctx, version, label)
	case KindContent:
		err = r.loadContent(ctx, version, label)
	case KindFusion:
		err = r.loadFusion(ctx, version, label)
	}
	if err != nil {
		result := "error"
		if errors.Is(err, ErrInvalid) {
			result = "invalid"
			r.rejected[kind] = version
		}
		metrics.RecordArtifactLoad(string(kind), result)
		log.Error().Err(err).Msg("Artifact activation aborted, keeping current version")
		return false, fmt.Errorf("%w: %s %s: %w", ErrLoad, kind, label, err)
	}

	r.loaded[kind] = version
	delete(r.rejected, kind)
	metrics.RecordArtifactLoad(string(kind), "success")
	log.Info().Msg("Artifact activated")
	return true, nil
}

func (r *Registry) loadCollaborative(ctx context.Context, version int, label string) error {
	var state storage.CollaborativeState
	if _, err := r.store.Load(ctx, string(KindCollaborative), version, &state); err != nil {
		return err
	}
	next, err := NewCollaborative(label, state)
	if err != nil {
		return err
	}
	return swap(&r.collaborative, next, KindCollaborative)
}

func (r *Registry) loadContent(ctx context.Context, version int, label string) error {
	var state storage.ContentState
	if _, err := r.store.Load(ctx, string(KindContent), version, &state); err != nil {
		return err
	}
	next, err := NewContent(label, state, r.cfg.ContentDimension)
	if err != nil {
		return err
	}
	return swap(&r.content, next, KindContent)
}

func (r *Registry) loadFusion(ctx context.Context, version int, label string) error {
	var state storage.FusionState
	if _, err := r.store.Load(ctx, string(KindFusion), version, &state); err != nil {
		return err
	}
	next, err := NewFusion(label, state)
	if err != nil {
		return err
	}
	return swap(&r.fusion, next, KindFusion)
}

// swap replaces the active artifact with compare-and-swap.
func swap[A any, P interface {
	*A
	Version() string
}](p *atomic.Pointer[A], next P, kind Kind) error {
	if next == nil {
		return fmt.Errorf("%w: nil %s artifact", ErrInvalid, kind)
	}
	old := p.Load()
	prev := ""
	if old != nil {
		prev = P(old).Version()
	}
	if !p.CompareAndSwap(old, (*A)(next)) {
		return fmt.Errorf("concurrent activation of %s", kind)
	}
	metrics.SetActiveArtifact(string(kind), prev, next.Version())
	return nil
}

// Collaborative returns the active collaborative model, or nil.
func (r *Registry) Collaborative() *Collaborative {
	return r.collaborative.Load()
}

// Content returns the active content artifact, or nil.
func (r *Registry) Content() *Content {
	return r.content.Load()
}

// Fusion returns the active fusion weights. It is never nil.
func (r *Registry) Fusion() *Fusion {
	return r.fusion.Load()
}

// Versions returns the active version of each kind.
func (r *Registry) Versions() Versions {
	var v Versions
	if c := r.Collaborative(); c != nil {
		v.Collaborative = c.Version()
	}
	if c := r.Content(); c != nil {
		v.ContentBased = c.Version()
	}
	v.Fusion = r.Fusion().Version()
	return v
}

// Serve polls the store until ctx is cancelled or Close is called.
// It implements suture.Service.
func (r *Registry) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.cfg.PollInterval).Msg("Artifact poller started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		case <-ticker.C:
			activated, err := r.Refresh(ctx)
			if err != nil {
				r.logger.Warn().Err(err).Msg("Artifact refresh incomplete")
			}
			if len(activated) > 0 {
				r.logger.Info().Interface("kinds", activated).Msg("Artifacts refreshed")
			}
		}
	}
}

// String implements fmt.Stringer for suture logs.
func (r *Registry) String() string {
	return "artifact-registry"
}

// Close stops the poller. Active artifacts remain readable for in-flight
// requests. Close is idempotent.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
	})
	return nil
}

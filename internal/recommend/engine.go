// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package recommend

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/smartrank/internal/embedding"
	"github.com/tomtom215/smartrank/internal/featurestore"
	"github.com/tomtom215/smartrank/internal/logging"
	"github.com/tomtom215/smartrank/internal/metrics"
	"github.com/tomtom215/smartrank/internal/recommend/signals"
	"github.com/tomtom215/smartrank/internal/validation"
)

// Deps are the collaborators of the engine.
type Deps struct {
	Features  FeatureStore
	Index     embedding.Index
	Artifacts ArtifactSource

	// Signals overrides the three built-in signals. Tests use it to inject
	// slow or failing signals.
	Signals []signals.Signal

	// Now overrides the clock.
	Now func() time.Time
}

// Engine fuses the collaborative, content-based and popularity signals into
// one ranking. It is safe for concurrent use.
type Engine struct {
	config *Config
	logger zerolog.Logger

	features  FeatureStore
	index     embedding.Index
	artifacts ArtifactSource
	signals   []signals.Signal
	now       func() time.Time

	cache *responseCache

	requests       atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
	shared         atomic.Int64
	degraded       atomic.Int64
	unavailable    atomic.Int64
	signalTimeouts atomic.Int64
	errorCount     atomic.Int64
}

// NewEngine creates a new recommendation engine.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewEngine(cfg *Config, deps Deps, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Features == nil || deps.Index == nil || deps.Artifacts == nil {
		return nil, errors.New("recommend: features, index and artifacts are required")
	}

	e := &Engine{
		config:    cfg.Clone(),
		logger:    logger.With().Str("component", "recommend").Logger(),
		features:  deps.Features,
		index:     deps.Index,
		artifacts: deps.Artifacts,
		signals:   deps.Signals,
		now:       deps.Now,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if len(e.signals) == 0 {
		e.signals = []signals.Signal{
			signals.NewCollaborative(deps.Artifacts),
			signals.NewContent(deps.Artifacts),
			signals.NewPopularity(),
		}
	}
	if cfg.Cache.Enabled {
		e.cache = newResponseCache(cfg.Cache)
	}
	return e, nil
}

// Recommend returns a ranked list for the request.
//
// Errors: ErrMalformedRequest for invalid requests, *UnavailableError when
// no ranking can be produced, or the caller's context error.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := e.now()
	e.requests.Add(1)

	req, err := e.prepareRequest(req)
	if err != nil {
		e.errorCount.Add(1)
		return nil, err
	}
	logger := e.requestLogger(ctx, req)

	if e.cache == nil {
		resp, err := e.compute(ctx, req, start, logger)
		return resp, e.observe(resp, err)
	}

	key := cacheKey(req.UserID, &req.Context, timeWindow(start, e.config.Cache.TimeWindowHours))
	if resp, ok := e.cache.get(key); ok {
		e.cacheHits.Add(1)
		metrics.RecordCacheLookup(true)
		logger.Debug().Msg("cache hit")
		return resp, nil
	}
	e.cacheMisses.Add(1)
	metrics.RecordCacheLookup(false)

	resp, shared, err := e.cache.do(ctx, key, func(ctx context.Context) (*Response, error) {
		return e.compute(ctx, req, start, logger)
	})
	if shared {
		e.shared.Add(1)
		metrics.RecordCacheShared()
	}
	return resp, e.observe(resp, err)
}

// observe updates the engine counters for a finished request.
func (e *Engine) observe(resp *Response, err error) error {
	var unavailable *UnavailableError
	switch {
	case errors.As(err, &unavailable):
		e.unavailable.Add(1)
	case err != nil:
		e.errorCount.Add(1)
	case resp.Degraded:
		e.degraded.Add(1)
	}
	return err
}

// prepareRequest validates the request and applies limit defaults.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) prepareRequest(req Request) (Request, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return req, fmt.Errorf("%w: %w", ErrMalformedRequest, verr)
	}
	if req.Context.Limit == 0 {
		req.Context.Limit = e.config.Limits.DefaultLimit
	}
	req.Context.Limit = min(req.Context.Limit, e.config.Limits.MaxLimit)
	return req, nil
}

// requestLogger creates a logger with request context.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) requestLogger(ctx context.Context, req Request) zerolog.Logger {
	return logging.FromContext(ctx, e.logger).With().
		Str("user_id", req.UserID).
		Str("platform", req.Context.Platform).
		Str("content_type", req.Context.ContentType).
		Logger()
}

// compute produces a fresh response.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) compute(ctx context.Context, req Request, start time.Time, logger zerolog.Logger) (*Response, error) {
	resp, candidates, err := e.rank(ctx, req, start, logger)

	outcome, reason := "ok", ""
	var unavailable *UnavailableError
	switch {
	case errors.As(err, &unavailable):
		outcome = "unavailable"
		logger.Warn().Err(err).Msg("no ranking available")
	case err != nil:
		outcome = "error"
	case resp.Degraded:
		outcome, reason = "degraded", resp.Reason
	}
	metrics.RecordRecommendation(outcome, reason, candidates, time.Since(start))

	if err == nil {
		logger.Debug().
			Int("candidates", candidates).
			Int("returned", len(resp.Recommendations)).
			Bool("degraded", resp.Degraded).
			Str("reason", resp.Reason).
			Msg("recommendation complete")
	}
	return resp, err
}

// rank runs the pipeline: user lookup, candidate supply, eligibility,
// signal fan-out, fusion, tie-break, diversity and explanations.
//
//nolint:gocritic // hugeParam: req passed by value for immutability
func (e *Engine) rank(ctx context.Context, req Request, start time.Time, logger zerolog.Logger) (*Response, int, error) {
	filter := req.Context.filter()
	user, userErr := e.lookupUser(ctx, req.UserID, logger)
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	coldStart := errors.Is(userErr, ErrColdStart)

	resp := &Response{
		Recommendations: []RankedRecommendation{},
		ModelVersions:   e.artifacts.Versions(),
	}
	switch {
	case errors.Is(userErr, ErrUpstreamUnavailable):
		resp.Degraded, resp.Reason = true, ReasonFeatureStoreTimeout
	case coldStart:
		resp.Degraded, resp.Reason = true, ReasonColdStart
	}

	ids, morePopular, err := e.candidates(ctx, user, filter, logger)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		return nil, 0, e.unavailableError(err)
	}

	batch, err := e.features.GetItemFeatures(ctx, ids)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		return nil, 0, e.unavailableError(fmt.Errorf("item features: %w", err))
	}
	if batch.Degraded {
		resp.Degraded, resp.Reason = true, ReasonFeatureStoreTimeout
	}

	items := make([]featurestore.ItemFeatures, 0, len(ids))
	for _, id := range ids {
		if it, ok := batch.Items[id]; ok && signals.Eligible(&it, filter) {
			items = append(items, it)
		}
	}
	if morePopular && len(items) < req.Context.Limit {
		var degraded bool
		items, degraded = e.pagePopular(ctx, ids, items, filter, req.Context.Limit, logger)
		if degraded {
			resp.Degraded, resp.Reason = true, ReasonFeatureStoreTimeout
		}
	}
	if len(items) == 0 {
		logger.Debug().Msg("no eligible candidates")
		return resp, 0, nil
	}

	active := e.signals
	if coldStart {
		active = onlyKind(e.signals, signals.Popularity)
	}
	results := e.runSignals(ctx, signals.Input{UserID: req.UserID, User: user, Items: items}, active, logger)
	if err := ctx.Err(); err != nil {
		return nil, len(items), err
	}

	weights := e.artifacts.Fusion().WeightsFor(req.Context.ContentType, timeWindow(start, e.config.Cache.TimeWindowHours))
	fused := fuse(items, &results, weights, e.config.Fusion.Epsilon)
	if len(fused) == 0 {
		return nil, len(items), e.unavailableError(errors.New("no signal could score any candidate"))
	}
	sortFused(fused, e.config.Fusion.TieEpsilon)
	if e.config.Diversity.Enabled {
		fused = diversify(fused, req.Context.Limit, e.config.Diversity.Window, e.config.Diversity.MaxPerTopic)
	} else if len(fused) > req.Context.Limit {
		fused = fused[:req.Context.Limit]
	}

	resp.Recommendations = make([]RankedRecommendation, len(fused))
	for i := range fused {
		resp.Recommendations[i] = e.buildRecommendation(&fused[i], i+1, req.Context.Platform, user, coldStart)
	}
	return resp, len(items), nil
}

// lookupUser returns the user's features. The error is ErrColdStart for
// users without history, ErrUpstreamUnavailable when the feature store
// could not serve the user, and nil otherwise. A nil user is returned
// whenever the profile is unusable.
func (e *Engine) lookupUser(ctx context.Context, id string, logger zerolog.Logger) (*featurestore.UserFeatures, error) {
	u, err := e.features.GetUserFeatures(ctx, id)
	switch {
	case errors.Is(err, featurestore.ErrNotFound):
		return nil, ErrColdStart
	case err != nil:
		logger.Warn().Err(err).Msg("user features unavailable")
		return nil, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	case u.InteractionCount == 0 && len(u.Preference) == 0:
		return &u, ErrColdStart
	case u.Stale:
		return &u, ErrUpstreamUnavailable
	}
	return &u, nil
}

// candidates returns the union of the user's nearest neighbours in the
// embedding index and the first page of popular items, sorted by id. It
// fails only when no source produced anything usable. morePopular reports
// that the popularity ranking continues past the first page.
func (e *Engine) candidates(ctx context.Context, user *featurestore.UserFeatures, filter embedding.Filter, logger zerolog.Logger) (ids []string, morePopular bool, err error) {
	pool := e.config.Limits.CandidatePool

	var (
		wg         sync.WaitGroup
		nearest    []embedding.Neighbor
		nearestErr error
		popular    []string
		popularErr error
	)
	queryIndex := user != nil && len(user.Preference) > 0
	if queryIndex {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nearest, nearestErr = e.index.Nearest(ctx, user.Preference, pool, filter)
		}()
	}
	popular, popularErr = e.features.TopPopular(ctx, 0, pool)
	wg.Wait()

	if nearestErr != nil {
		logger.Warn().Err(nearestErr).Msg("embedding index unavailable, using popular candidates")
	}
	if popularErr != nil {
		logger.Warn().Err(popularErr).Msg("popular candidates unavailable")
	}
	if popularErr != nil && (!queryIndex || nearestErr != nil) {
		return nil, false, errors.Join(fmt.Errorf("top popular: %w", popularErr), nearestErr)
	}

	seen := make(map[string]struct{}, len(nearest)+len(popular))
	ids = make([]string, 0, len(nearest)+len(popular))
	add := func(id string) {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, n := range nearest {
		add(n.ItemID)
	}
	for _, id := range popular {
		add(id)
	}
	slices.Sort(ids)
	return ids, popularErr == nil && len(popular) == pool, nil
}

// pagePopular walks the popularity ranking past the first page until limit
// candidates are eligible or the ranking is exhausted, so a filter that
// excludes every popular item still finds the eligible tail. Upstream
// failures stop the walk and report degraded. The result is sorted by id.
func (e *Engine) pagePopular(ctx context.Context, seenIDs []string, items []featurestore.ItemFeatures, filter embedding.Filter, limit int, logger zerolog.Logger) ([]featurestore.ItemFeatures, bool) {
	pool := e.config.Limits.CandidatePool
	seen := make(map[string]struct{}, len(seenIDs))
	for _, id := range seenIDs {
		seen[id] = struct{}{}
	}

	degraded := false
	for offset := pool; len(items) < limit && ctx.Err() == nil; offset += pool {
		page, err := e.features.TopPopular(ctx, offset, pool)
		if err != nil {
			logger.Warn().Err(err).Int("offset", offset).Msg("popular candidates page unavailable")
			degraded = true
			break
		}
		fresh := make([]string, 0, len(page))
		for _, id := range page {
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				fresh = append(fresh, id)
			}
		}
		if len(fresh) > 0 {
			batch, err := e.features.GetItemFeatures(ctx, fresh)
			if err != nil {
				logger.Warn().Err(err).Int("offset", offset).Msg("item features unavailable for popular page")
				degraded = true
				break
			}
			degraded = degraded || batch.Degraded
			for _, id := range fresh {
				if it, ok := batch.Items[id]; ok && signals.Eligible(&it, filter) {
					items = append(items, it)
				}
			}
		}
		if len(page) < pool {
			break
		}
	}

	slices.SortFunc(items, func(a, b featurestore.ItemFeatures) int { return cmp.Compare(a.ID, b.ID) })
	return items, degraded
}

// runSignals runs the signals in parallel, each under its own timeout. The
// result is indexed by signal kind; a nil entry means the signal failed or
// timed out.
func (e *Engine) runSignals(ctx context.Context, in signals.Input, active []signals.Signal, logger zerolog.Logger) [signals.NumKinds][]signals.Score {
	var results [signals.NumKinds][]signals.Score
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, s := range active {
		wg.Add(1)
		go func(s signals.Signal) {
			defer wg.Done()
			scores := e.runSignal(ctx, s, in, logger)
			mu.Lock()
			results[s.Kind()] = scores
			mu.Unlock()
		}(s)
	}
	wg.Wait()
	return results
}

type signalResult struct {
	scores []signals.Score
	err    error
}

// runSignal runs one signal and returns its scores, or nil when it failed,
// timed out or returned a malformed result.
func (e *Engine) runSignal(ctx context.Context, s signals.Signal, in signals.Input, logger zerolog.Logger) []signals.Score {
	kind := s.Kind()
	sctx, cancel := context.WithTimeout(ctx, e.config.SignalTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan signalResult, 1)
	go func() {
		scores, err := s.Score(sctx, in)
		done <- signalResult{scores: scores, err: err}
	}()

	var res signalResult
	select {
	case res = <-done:
	case <-sctx.Done():
		res.err = sctx.Err()
	}
	if res.err == nil && len(res.scores) != len(in.Items) {
		res.err = fmt.Errorf("%s returned %d scores for %d items", kind, len(res.scores), len(in.Items))
	}

	switch {
	case res.err == nil:
		metrics.RecordSignal(kind.String(), "ok", time.Since(start))
		return res.scores
	case ctx.Err() != nil:
		metrics.RecordSignal(kind.String(), "canceled", time.Since(start))
	case errors.Is(res.err, context.DeadlineExceeded):
		e.signalTimeouts.Add(1)
		metrics.RecordSignal(kind.String(), "timeout", time.Since(start))
		logger.Warn().Err(ErrSignalTimeout).Str("signal", kind.String()).
			Dur("timeout", e.config.SignalTimeout).Msg("signal dropped")
	default:
		metrics.RecordSignal(kind.String(), "error", time.Since(start))
		logger.Warn().Err(res.err).Str("signal", kind.String()).Msg("signal dropped")
	}
	return nil
}

func (e *Engine) buildRecommendation(f *fusedItem, rank int, platform string, user *featurestore.UserFeatures, coldStart bool) RankedRecommendation {
	rec := RankedRecommendation{
		ItemID:      f.item.ID,
		Score:       f.score,
		Rank:        rank,
		Explanation: explain(f, platform, user, coldStart, e.config.Fusion.Epsilon),
	}
	contribution := func(k signals.Kind) *Contribution {
		if f.weight[k] == 0 {
			return nil
		}
		return &Contribution{Score: f.raw[k], Weight: f.weight[k]}
	}
	rec.ContributingSignals = ContributingSignals{
		Collaborative: contribution(signals.Collaborative),
		ContentBased:  contribution(signals.ContentBased),
		Popularity:    contribution(signals.Popularity),
	}
	return rec
}

func (e *Engine) unavailableError(cause error) error {
	return &UnavailableError{RetryAfter: e.config.RetryAfter, Cause: cause}
}

// Similar returns items whose embeddings are close to itemID's, restricted
// by filter. Empty filter fields match everything.
//
// Errors: ErrMalformedRequest, ErrItemNotFound, *UnavailableError, or the
// caller's context error.
func (e *Engine) Similar(ctx context.Context, itemID string, limit int, threshold float64, filter embedding.Filter) (*SimilarResponse, error) {
	if !validation.IsIdentifier(itemID) {
		return nil, fmt.Errorf("%w: invalid item id %q", ErrMalformedRequest, itemID)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be non-negative, got %d", ErrMalformedRequest, limit)
	}
	if threshold < -1 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be in [-1, 1], got %g", ErrMalformedRequest, threshold)
	}
	if limit == 0 {
		limit = e.config.Limits.DefaultLimit
	}
	limit = min(limit, e.config.Limits.MaxLimit)

	neighbors, err := e.index.Similar(ctx, itemID, limit, threshold, filter)
	switch {
	case errors.Is(err, embedding.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	case err != nil && ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		e.unavailable.Add(1)
		logger := logging.FromContext(ctx, e.logger)
		logger.Warn().Err(err).Str("item_id", itemID).Msg("similar items unavailable")
		return nil, e.unavailableError(fmt.Errorf("similar items: %w", err))
	}
	if neighbors == nil {
		neighbors = []embedding.Neighbor{}
	}
	return &SimilarResponse{ItemID: itemID, Similar: neighbors}, nil
}

// Status returns active model versions, default fusion weights, counters
// and cache statistics.
func (e *Engine) Status() Status {
	s := Status{
		ModelVersions: e.artifacts.Versions(),
		Weights:       e.artifacts.Fusion().Default(),
		Counters: Counters{
			Requests:       e.requests.Load(),
			CacheHits:      e.cacheHits.Load(),
			CacheMisses:    e.cacheMisses.Load(),
			SharedFlights:  e.shared.Load(),
			Degraded:       e.degraded.Load(),
			Unavailable:    e.unavailable.Load(),
			SignalTimeouts: e.signalTimeouts.Load(),
			Errors:         e.errorCount.Load(),
		},
	}
	if e.cache != nil {
		s.Cache = e.cache.stats()
	}
	return s
}

// Sweep purges expired cached responses. Implements cache.Sweepable.
func (e *Engine) Sweep() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.sweep()
}

// GetConfig returns a copy of the current configuration.
func (e *Engine) GetConfig() *Config {
	return e.config.Clone()
}

func onlyKind(all []signals.Signal, kind signals.Kind) []signals.Signal {
	out := make([]signals.Signal, 0, 1)
	for _, s := range all {
		if s.Kind() == kind {
			out = append(out, s)
		}
	}
	return out
}

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/smartrank/internal/config"
	"github.com/tomtom215/smartrank/internal/embedding"
	"github.com/tomtom215/smartrank/internal/featurestore"
	"github.com/tomtom215/smartrank/internal/recommend"
	"github.com/tomtom215/smartrank/internal/recommend/artifacts"
	"github.com/tomtom215/smartrank/internal/recommend/storage"
)

// RecommendComponents holds the serving-path components.
type RecommendComponents struct {
	Features *featurestore.Adapter
	Source   featurestore.Source
	Writer   featurestore.PopularityWriter
	Index    embedding.Index
	Registry *artifacts.Registry
	Engine   *recommend.Engine

	closers []func() error
}

// Close releases upstream connections in reverse order of creation.
func (c *RecommendComponents) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initRecommend builds the feature store adapter, the embedding index, the
// artifact registry and the engine. The registry is initialized before
// returning so the first request sees loaded artifacts.
//
//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initRecommend(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*RecommendComponents, error) {
	rc := &RecommendComponents{}
	fail := func(err error) (*RecommendComponents, error) {
		if cerr := rc.Close(); cerr != nil {
			logger.Warn().Err(cerr).Msg("cleanup after failed init")
		}
		return nil, err
	}

	source, writer, closeSource, err := initFeatureSource(ctx, &cfg.FeatureStore, logger)
	if err != nil {
		return fail(err)
	}
	rc.Source, rc.Writer = source, writer
	if closeSource != nil {
		rc.closers = append(rc.closers, closeSource)
	}

	rc.Features, err = featurestore.NewAdapter(source, featurestoreConfig(&cfg.FeatureStore), logger)
	if err != nil {
		return fail(fmt.Errorf("feature store adapter: %w", err))
	}

	index, db, err := initEmbeddingIndex(ctx, &cfg.Embedding, logger)
	if err != nil {
		return fail(err)
	}
	rc.Index = index
	if db != nil {
		rc.closers = append(rc.closers, db.Close)
	}

	store, err := storage.NewStore(cfg.Artifacts.Path)
	if err != nil {
		return fail(fmt.Errorf("artifact store: %w", err))
	}
	rc.Registry, err = artifacts.NewRegistry(store, registryConfig(cfg), logger)
	if err != nil {
		return fail(fmt.Errorf("artifact registry: %w", err))
	}
	rc.closers = append(rc.closers, rc.Registry.Close)
	if err := rc.Registry.Init(ctx); err != nil {
		return fail(err)
	}

	rc.Engine, err = recommend.NewEngine(engineConfig(&cfg.Recommend), recommend.Deps{
		Features:  rc.Features,
		Index:     rc.Index,
		Artifacts: rc.Registry,
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("recommendation engine: %w", err))
	}

	logger.Info().
		Str("feature_store", cfg.FeatureStore.Backend).
		Str("embedding_index", cfg.Embedding.Backend).
		Str("artifacts", cfg.Artifacts.Path).
		Msg("Recommendation engine initialized")
	return rc, nil
}

//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initFeatureSource(ctx context.Context, cfg *config.FeatureStoreConfig, logger zerolog.Logger) (featurestore.Source, featurestore.PopularityWriter, func() error, error) {
	if cfg.Backend == "memory" {
		logger.Warn().Msg("Using in-memory feature store (FEATURE_STORE_BACKEND=memory); features are not shared or persisted")
		mem := featurestore.NewMemorySource()
		return mem, mem, nil, nil
	}

	client, err := featurestore.NewRedisClient(ctx, featurestore.RedisOptions{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect feature store: %w", err)
	}
	src := featurestore.NewRedisSource(client, cfg.KeyPrefix)
	logger.Info().Str("addr", cfg.Addr).Str("prefix", cfg.KeyPrefix).Msg("Connected to Redis feature store")
	return src, src, client.Close, nil
}

//nolint:gocritic // hugeParam: logger passed by value for zerolog chaining
func initEmbeddingIndex(ctx context.Context, cfg *config.EmbeddingConfig, logger zerolog.Logger) (embedding.Index, *sql.DB, error) {
	if cfg.Backend == "memory" {
		logger.Warn().Msg("Using in-memory embedding index (EMBEDDING_BACKEND=memory)")
		return embedding.NewMemoryIndex(), nil, nil
	}

	ecfg := embedding.Config{
		DSN:       cfg.DSN,
		Table:     cfg.Table,
		Dimension: cfg.Dimension,
		Timeout:   cfg.Timeout,
		MaxConns:  cfg.MaxConns,
	}
	db, err := embedding.Open(ctx, ecfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect embedding index: %w", err)
	}
	index, err := embedding.NewPgvectorIndex(db, ecfg)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("embedding index: %w", err)
	}
	if err := index.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("embedding schema: %w", err)
	}
	logger.Info().Str("table", cfg.Table).Int("dimension", cfg.Dimension).Msg("Connected to pgvector embedding index")
	return index, db, nil
}

func featurestoreConfig(cfg *config.FeatureStoreConfig) featurestore.Config {
	fcfg := featurestore.DefaultConfig()
	fcfg.CacheSize = cfg.CacheSize
	fcfg.CacheTTL = cfg.CacheTTL
	fcfg.Deadline = cfg.Deadline
	fcfg.RateLimit = cfg.RateLimit
	fcfg.RateBurst = cfg.RateBurst
	fcfg.BreakerFailures = cfg.BreakerFailures
	fcfg.BreakerTimeout = cfg.BreakerTimeout
	return fcfg
}

func registryConfig(cfg *config.Config) artifacts.Config {
	rcfg := artifacts.DefaultConfig()
	rcfg.PollInterval = cfg.Artifacts.PollInterval
	rcfg.ContentDimension = cfg.Embedding.Dimension
	if w := cfg.Recommend.DefaultWeights; len(w) == 3 {
		rcfg.DefaultWeights = artifacts.Weights{Collaborative: w[0], Content: w[1], Popularity: w[2]}
	}
	return rcfg
}

func engineConfig(cfg *config.RecommendConfig) *recommend.Config {
	ecfg := recommend.DefaultConfig()
	ecfg.Limits.DefaultLimit = cfg.DefaultLimit
	ecfg.Limits.MaxLimit = cfg.MaxLimit
	ecfg.Limits.CandidatePool = cfg.CandidatePool
	ecfg.SignalTimeout = cfg.SignalTimeout
	ecfg.Fusion.Epsilon = cfg.Epsilon
	ecfg.Fusion.TieEpsilon = cfg.TieEpsilon
	ecfg.Diversity.Window = cfg.DiversityWindow
	ecfg.Diversity.MaxPerTopic = cfg.DiversityMaxPerTopic
	ecfg.Cache.TTL = cfg.CacheTTL
	ecfg.Cache.MaxEntries = cfg.CacheSize
	ecfg.Cache.TimeWindowHours = cfg.TimeWindowHours
	ecfg.RetryAfter = cfg.RetryAfter
	return ecfg
}

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultRedisImage is the Redis image used for feature store tests.
	DefaultRedisImage = "redis:7.4-alpine"

	redisPort = "6379/tcp"
)

// RedisContainer is a running Redis instance.
type RedisContainer struct {
	testcontainers.Container
	Addr string
}

// ContainerOption configures a test container.
type ContainerOption func(*containerConfig)

type containerConfig struct {
	image        string
	logger       log.Logger
	startTimeout time.Duration
}

// WithImage overrides the container image.
func WithImage(image string) ContainerOption {
	return func(c *containerConfig) {
		c.image = image
	}
}

// WithLogger routes testcontainers output to logger, typically a ContainerLogger.
func WithLogger(logger log.Logger) ContainerOption {
	return func(c *containerConfig) {
		c.logger = logger
	}
}

// WithStartTimeout sets how long to wait for the container to become ready.
func WithStartTimeout(timeout time.Duration) ContainerOption {
	return func(c *containerConfig) {
		c.startTimeout = timeout
	}
}

func applyOptions(image string, opts []ContainerOption) *containerConfig {
	cfg := &containerConfig{image: image, startTimeout: 60 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func startContainer(ctx context.Context, cfg *containerConfig, req testcontainers.ContainerRequest) (testcontainers.Container, error) {
	greq := testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	}
	if cfg.logger != nil {
		greq.Logger = cfg.logger
	}
	return testcontainers.GenericContainer(ctx, greq)
}

// NewRedisContainer starts Redis and returns its host:port address.
//
//	redisC, err := testinfra.NewRedisContainer(ctx, testinfra.WithLogger(testinfra.NewContainerLogger(t)))
//	if err != nil {
//	    t.Fatal(err)
//	}
//	testinfra.CleanupContainer(t, redisC)
func NewRedisContainer(ctx context.Context, opts ...ContainerOption) (*RedisContainer, error) {
	cfg := applyOptions(DefaultRedisImage, opts)

	container, err := startContainer(ctx, cfg, testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{redisPort},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(redisPort),
			wait.ForLog("Ready to accept connections"),
		).WithStartupTimeout(cfg.startTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("create redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get redis host: %w", err)
	}
	port, err := container.MappedPort(ctx, redisPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get redis port: %w", err)
	}

	return &RedisContainer{
		Container: container,
		Addr:      fmt.Sprintf("%s:%s", host, port.Port()),
	}, nil
}

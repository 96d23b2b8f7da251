// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

//go:build integration

package testinfra

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultPgvectorImage is Postgres with the pgvector extension preinstalled.
	DefaultPgvectorImage = "pgvector/pgvector:pg16"

	postgresPort     = "5432/tcp"
	postgresUser     = "smartrank"
	postgresPassword = "smartrank"
	postgresDB       = "smartrank"
)

// PostgresContainer is a running Postgres instance with pgvector available.
type PostgresContainer struct {
	testcontainers.Container
	DSN string
}

// NewPgvectorContainer starts Postgres with pgvector and returns a pgx DSN.
// The vector extension still has to be created by the caller.
func NewPgvectorContainer(ctx context.Context, opts ...ContainerOption) (*PostgresContainer, error) {
	cfg := applyOptions(DefaultPgvectorImage, opts)

	container, err := startContainer(ctx, cfg, testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{postgresPort},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDB,
		},
		// Postgres restarts once after init; wait for the second ready line.
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(postgresPort),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithStartupTimeout(cfg.startTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("create pgvector container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get postgres host: %w", err)
	}
	port, err := container.MappedPort(ctx, postgresPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get postgres port: %w", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN: fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			postgresUser, postgresPassword, host, port.Port(), postgresDB),
	}, nil
}

// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

/*
Package main is the entry point for the Smartrank server.

Smartrank serves personalized content rankings. Each request fuses three
signals (collaborative filtering, embedding similarity and decayed
popularity) with per-segment weights, applies a diversity pass and returns
scored items with an explanation of why each was chosen. Interaction events
posted back to the engine feed an offline batch that relabels training
examples and rewrites item popularity.

# Application Architecture

Services run under a Suture v4 supervisor tree:

	RootSupervisor ("smartrank")
	├── DataSupervisor ("data-layer")
	│   ├── Artifact registry (model hot reload)
	│   ├── Feature cache sweeper
	│   └── Feedback batch scheduler (cron)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Embedded NATS server (optional)
	│   └── Outbox forwarder (optional)
	└── APISupervisor ("api-layer")
	    └── HTTP server

Initialization order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Logging: zerolog with JSON or console output
 3. Feature store: Redis (or in-memory) behind a cached, rate limited,
    circuit broken adapter
 4. Embedding index: PostgreSQL with pgvector (or in-memory)
 5. Artifact registry: versioned model files, loaded before serving
 6. Feedback pipeline: BadgerDB event log, batch scheduler, NATS forwarder
 7. HTTP server: Chi router with request id, metrics, CORS and rate limits

# Configuration

	HTTP_PORT=8085               # HTTP port
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	FEATURE_STORE_BACKEND=redis  # redis or memory
	REDIS_ADDR=localhost:6379

	EMBEDDING_BACKEND=pgvector   # pgvector or memory
	EMBEDDING_DSN=postgres://...

	ARTIFACTS_PATH=/data/artifacts

	FEEDBACK_ENABLED=true
	FEEDBACK_LOG_PATH=/data/feedback
	FEEDBACK_FORWARD=false       # requires NATS_ENABLED=true

	NATS_ENABLED=false
	NATS_URL=nats://127.0.0.1:4222
	NATS_EMBEDDED=true

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains in-flight
requests, the scheduler and forwarder stop, and the event log and upstream
connections are closed once the tree has exited.
*/
package main

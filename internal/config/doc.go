// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

/*
Package config provides centralized configuration management for Smartrank.

Configuration is layered with Koanf v2: built-in defaults, then an optional
YAML file, then environment variables. The first config file found in
DefaultConfigPaths is used unless CONFIG_PATH points elsewhere.

# Sections

  - server: HTTP listener (HTTP_PORT, HTTP_HOST, HTTP_TIMEOUT)
  - logging: LOG_LEVEL, LOG_FORMAT, LOG_CALLER
  - feature_store: Redis upstream and local feature cache (REDIS_ADDR, FEATURE_CACHE_TTL, ...)
  - embedding: pgvector index (EMBEDDING_DSN, EMBEDDING_TABLE, EMBEDDING_DIMENSION)
  - recommend: limits, signal timeout, fusion epsilon, diversity, result cache
  - artifacts: model registry directory and poll interval
  - feedback: Badger event log, batch schedule, popularity decay
  - nats: optional JetStream forwarding of interaction events
  - security: CORS and rate limiting

Only environment variables listed in the mapping table are read; anything
else in the process environment is ignored.

# Example config.yaml

	server:
	  port: 8085
	feature_store:
	  addr: redis:6379
	  cache_ttl: 2m
	recommend:
	  default_weights: [0.5, 0.3, 0.2]
	feedback:
	  schedule: "@every 5m"

# Validation

Validate rejects out-of-range values at startup, for example a feature cache
TTL above five minutes, fusion weights that are negative or all zero, or a
batch schedule that robfig/cron cannot parse.

# Thread Safety

Config is immutable after Load() and safe for concurrent reads.
*/
package config

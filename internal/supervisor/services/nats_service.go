// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"
)

// NATSServer is satisfied by *feedback.EmbeddedServer.
type NATSServer interface {
	IsRunning() bool
	Shutdown()
}

// EmbeddedNATSService supervises an embedded NATS server that was started
// before the tree so publishers could connect to it.
type EmbeddedNATSService struct {
	server        NATSServer
	checkInterval time.Duration
}

// NewEmbeddedNATSService wraps server. checkInterval controls how often the
// server is probed; zero selects five seconds.
func NewEmbeddedNATSService(server NATSServer, checkInterval time.Duration) *EmbeddedNATSService {
	if checkInterval <= 0 {
		checkInterval = 5 * time.Second
	}
	return &EmbeddedNATSService{server: server, checkInterval: checkInterval}
}

// Serve waits for ctx to be canceled and shuts the server down. A server
// that stops by itself ends the service without a restart.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.server.Shutdown()
			return ctx.Err()
		case <-ticker.C:
			if !s.server.IsRunning() {
				return fmt.Errorf("embedded nats server stopped: %w", suture.ErrDoNotRestart)
			}
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *EmbeddedNATSService) String() string {
	return "embedded-nats"
}

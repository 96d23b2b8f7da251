// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

/*
Package supervisor provides process supervision for Smartrank using suture v4.

Services are grouped into three layers for failure isolation:

	RootSupervisor ("smartrank")
	├── DataSupervisor ("data-layer")
	│   ├── artifacts.Registry (polls the artifact store)
	│   └── feedback.Scheduler (cron-driven batch, if FEEDBACK_ENABLED)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── services.EmbeddedNATSService (if NATS_EMBEDDED_SERVER)
	│   └── feedback.Forwarder (if FEEDBACK_FORWARD)
	└── APISupervisor ("api-layer")
	    └── services.HTTPServerService

Crashed services restart with suture's backoff; a failure in one layer never
restarts another. Supervisor events are logged through sutureslog using the
zerolog-backed slog handler from internal/logging.

Usage:

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(registry)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	errCh := tree.ServeBackground(ctx)
*/
package supervisor

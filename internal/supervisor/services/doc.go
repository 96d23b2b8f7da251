// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

/*
Package services provides suture.Service wrappers for Smartrank components
whose lifecycle does not already follow suture's Serve(ctx) pattern.

HTTP Server (HTTPServerService):
  - Wraps *http.Server, translating ListenAndServe into Serve
  - Drains connections on shutdown within a configurable timeout

Embedded NATS (EmbeddedNATSService):
  - Owns the embedded JetStream server started by cmd/server
  - Fails with suture.ErrDoNotRestart if the server stops on its own, since
    an embedded server cannot be restarted in place
  - Shuts the server down when the tree stops

The artifact registry poller, the feedback batch scheduler and the feedback
forwarder implement suture.Service themselves and are added to the tree
directly.
*/
package services

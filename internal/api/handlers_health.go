// Smartrank - Hybrid Content Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/smartrank

package api

import (
	"net/http"
	"time"
)

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK whenever the process can serve HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &HealthResponse{
		Status:        "alive",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Returns 200 OK once the artifact registry has been initialized, 503 before.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ready := h.readiness.Ready()
	versions := h.readiness.Versions()

	resp := &HealthResponse{
		Status:        "ready",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Checks: map[string]bool{
			"artifacts_loaded": ready,
			"feedback_enabled": h.events != nil,
		},
		ModelVersions: &versions,
	}
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
		resp.Status = "not_ready"
	}
	respondJSON(w, status, resp)
}

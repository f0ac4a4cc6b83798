// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// healthCheckTimeout bounds each dependency probe.
const healthCheckTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

type breakerState interface {
	State() gobreaker.State
}

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status string            `json:"status"`
	Uptime float64           `json:"uptime_seconds"`
	Checks map[string]string `json:"checks,omitempty"`

	AuditPending int `json:"audit_pending"`
	TasksPending int `json:"tasks_pending"`
}

// HealthLive returns 200 while the process is serving. These endpoints run
// outside the authorization pipeline.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HealthStatus{
		Status: "alive",
		Uptime: time.Since(h.startTime).Seconds(),
	})
}

// HealthReady probes the session and account stores. It returns 503 when
// either is unreachable or the account store breaker is open.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true

	probe := func(name string, target any) {
		p, ok := target.(pinger)
		if !ok {
			checks[name] = "ok"
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			checks[name] = "unavailable"
			ready = false
			return
		}
		checks[name] = "ok"
	}
	probe("sessions", h.modules.Sessions)
	probe("accounts", h.modules.Accounts)

	if b, ok := h.modules.Accounts.(breakerState); ok && b.State() == gobreaker.StateOpen {
		checks["accounts"] = "circuit_open"
		ready = false
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	health := HealthStatus{
		Status: status,
		Uptime: time.Since(h.startTime).Seconds(),
		Checks: checks,
	}
	if h.modules.Audit != nil {
		health.AuditPending = h.modules.Audit.Pending()
	}
	if h.modules.Tasks != nil {
		health.TasksPending = h.modules.Tasks.Pending()
	}
	respondJSON(w, code, health)
}

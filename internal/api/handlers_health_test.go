// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gatehouse/internal/auth"
)

type unreachableSessions struct {
	*auth.MemorySessionStore
}

func (unreachableSessions) Ping(context.Context) error {
	return errors.New("connection refused")
}

func TestHealthLive(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})

	rec := serve(env.router(), newRequest(http.MethodGet, "/healthz", "", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var health HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("failed to decode health: %v", err)
	}
	if health.Status != "alive" {
		t.Errorf("Status = %q, want alive", health.Status)
	}
}

func TestHealthReady(t *testing.T) {
	t.Parallel()

	t.Run("ready", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, envOptions{})
		rec := serve(env.router(), newRequest(http.MethodGet, "/readyz", "", ""))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var health HealthStatus
		if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
			t.Fatalf("failed to decode health: %v", err)
		}
		if health.Status != "ready" || health.Checks["sessions"] != "ok" || health.Checks["accounts"] != "ok" {
			t.Errorf("health = %+v", health)
		}
	})

	t.Run("session store down", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, envOptions{})
		env.modules.Sessions = unreachableSessions{env.sessions}

		rec := serve(env.router(), newRequest(http.MethodGet, "/readyz", "", ""))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
		var health HealthStatus
		if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
			t.Fatalf("failed to decode health: %v", err)
		}
		if health.Status != "not_ready" || health.Checks["sessions"] != "unavailable" {
			t.Errorf("health = %+v", health)
		}
	})
}

// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gatehouse/internal/audit"
	"github.com/tomtom215/gatehouse/internal/auth"
)

// seededAuditLogger returns a logger over a store holding three events.
func seededAuditLogger(t *testing.T) *audit.Logger {
	t.Helper()
	store := audit.NewMemoryStore(100)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []audit.Event{
		{ID: "e1", Timestamp: base, Type: audit.EventTypeLogin, Outcome: audit.OutcomeSuccess,
			Actor: audit.Actor{UserID: "u-store-owner", AccountID: "a-store-owner"}, Action: "login"},
		{ID: "e2", Timestamp: base.Add(time.Minute), Type: audit.EventTypeLoginFailure, Outcome: audit.OutcomeFailure,
			Actor: audit.Actor{UserID: "u-store-owner"}, Action: "login"},
		{ID: "e3", Timestamp: base.Add(2 * time.Minute), Type: audit.EventTypeAction, Outcome: audit.OutcomeSuccess,
			Actor: audit.Actor{UserID: "u-store-owner", AccountID: "a-store-owner", WorkspaceID: "ws-store-1"},
			Action: "create_listing", RequestID: "req-1"},
	}
	if err := store.SaveBatch(context.Background(), events); err != nil {
		t.Fatalf("SaveBatch() error = %v", err)
	}
	return audit.NewLogger(store, nil)
}

// =====================================================
// Audit Query
// =====================================================

func TestAuditEvents_Query(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{audit: seededAuditLogger(t)})
	router := env.router()
	token := env.login(t, "a-staff")

	tests := []struct {
		name      string
		query     string
		wantIDs   []string
		wantTotal int64
	}{
		{"all newest first", "", []string{"e3", "e2", "e1"}, 3},
		{"by type list", "?type=auth.login,auth.login_failure", []string{"e2", "e1"}, 2},
		{"by outcome", "?outcome=failure", []string{"e2"}, 1},
		{"by workspace", "?workspace_id=ws-store-1", []string{"e3"}, 1},
		{"by request id", "?request_id=req-1", []string{"e3"}, 1},
		{"paged", "?limit=1&offset=1", []string{"e2"}, 3},
		{"time window", "?start_time=2026-03-01T12:00:30Z&end_time=2026-03-01T12:01:30Z", []string{"e2"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, newRequest(http.MethodGet, "/api/admin/audit"+tt.query, token, ""))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
			}
			var resp AuditEventsResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			var ids []string
			for _, e := range resp.Events {
				ids = append(ids, e.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
			if resp.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", resp.Total, tt.wantTotal)
			}
		})
	}
}

func TestAuditEvents_InvalidParams(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{audit: seededAuditLogger(t)})
	router := env.router()
	token := env.login(t, "a-staff")

	for _, query := range []string{"?limit=0", "?limit=5000", "?limit=abc", "?offset=-1", "?format=xml", "?start_time=yesterday"} {
		rec := serve(router, newRequest(http.MethodGet, "/api/admin/audit"+query, token, ""))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", query, rec.Code, http.StatusBadRequest)
			continue
		}
		if body := decodeError(t, rec); body.Code != CodeValidation {
			t.Errorf("%s: code = %q, want %q", query, body.Code, CodeValidation)
		}
	}
}

func TestAuditEvents_Export(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{audit: seededAuditLogger(t)})
	router := env.router()
	token := env.login(t, "a-staff")

	tests := []struct {
		format      string
		contentType string
		ext         string
		prefix      string
	}{
		{"json", "application/json", ".json", "["},
		{"cef", "text/plain; charset=utf-8", ".cef", "CEF:0|"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rec := serve(router, newRequest(http.MethodGet, "/api/admin/audit?format="+tt.format, token, ""))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
			cd := rec.Header().Get("Content-Disposition")
			if !strings.HasPrefix(cd, "attachment;") || !strings.Contains(cd, tt.ext) {
				t.Errorf("Content-Disposition = %q", cd)
			}
			if body := strings.TrimSpace(rec.Body.String()); !strings.HasPrefix(body, tt.prefix) {
				t.Errorf("body starts %q, want prefix %q", body[:min(len(body), 20)], tt.prefix)
			}
		})
	}
}

func TestAuditEvents_Access(t *testing.T) {
	t.Parallel()

	t.Run("store owner lacks audit.read", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, envOptions{audit: seededAuditLogger(t)})
		rec := serve(env.router(), newRequest(http.MethodGet, "/api/admin/audit", env.login(t, "a-store-owner"), ""))
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("disabled without a logger", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t, envOptions{})
		rec := serve(env.router(), newRequest(http.MethodGet, "/api/admin/audit", env.login(t, "a-staff"), ""))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
		if body := decodeError(t, rec); body.Code != CodeAuditDisabled {
			t.Errorf("code = %q, want %q", body.Code, CodeAuditDisabled)
		}
	})
}

// =====================================================
// Account Suspension
// =====================================================

func TestSuspendAccount(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})
	router := env.router()
	staff := env.login(t, "a-staff")
	owner := env.login(t, "a-store-owner")

	rec := serve(router, newRequest(http.MethodPost, "/api/admin/accounts/a-store-owner/suspend", staff, `{"reason":"chargebacks"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp SuspendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Suspended || resp.SessionsRevoked != 1 || resp.AccountID != "a-store-owner" {
		t.Errorf("response = %+v", resp)
	}

	account, err := env.accounts.GetAccount(context.Background(), "a-store-owner")
	if err != nil {
		t.Fatalf("GetAccount() error = %v", err)
	}
	if !account.Suspended {
		t.Error("account not suspended")
	}

	// The revoked session no longer authenticates.
	rec = serve(router, newRequest(http.MethodGet, "/api/workspaces/ws-store-1/listings", owner, ""))
	if body := decodeError(t, rec); body.Code != string(auth.CodeSessionInvalid) {
		t.Errorf("revoked session code = %q, want %q", body.Code, auth.CodeSessionInvalid)
	}

	// A fresh login reaches the account but is refused as suspended.
	rec = serve(router, newRequest(http.MethodGet, "/api/workspaces/ws-store-1/listings", env.login(t, "a-store-owner"), ""))
	if body := decodeError(t, rec); body.Code != string(auth.CodeAccountSuspended) {
		t.Errorf("new session code = %q, want %q", body.Code, auth.CodeAccountSuspended)
	}

	events := env.sink.Events()
	if len(events) != 1 {
		t.Fatalf("len(action events) = %d, want 1", len(events))
	}
	if events[0].Actor.AccountID != "a-staff" || events[0].Status != http.StatusOK {
		t.Errorf("action event = %+v", events[0])
	}

	// Reinstate.
	rec = serve(router, newRequest(http.MethodPost, "/api/admin/accounts/a-store-owner/suspend", staff, `{"suspended":false}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("reinstate status = %d, want %d", rec.Code, http.StatusOK)
	}
	account, _ = env.accounts.GetAccount(context.Background(), "a-store-owner")
	if account.Suspended {
		t.Error("account still suspended after reinstating")
	}
}

func TestSuspendAccount_Rejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})
	router := env.router()
	staff := env.login(t, "a-staff")

	tests := []struct {
		name       string
		token      string
		path       string
		body       string
		wantStatus int
	}{
		{"self", staff, "/api/admin/accounts/a-staff/suspend", "", http.StatusBadRequest},
		{"unknown account", staff, "/api/admin/accounts/a-nobody/suspend", "", http.StatusNotFound},
		{"bad body", staff, "/api/admin/accounts/a-provider/suspend", `{"suspended":"yes"}`, http.StatusBadRequest},
		{"not staff", env.login(t, "a-store-owner"), "/api/admin/accounts/a-provider/suspend", "", http.StatusForbidden},
		{"guest", "", "/api/admin/accounts/a-provider/suspend", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, newRequest(http.MethodPost, tt.path, tt.token, tt.body))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}

	account, _ := env.accounts.GetAccount(context.Background(), "a-provider")
	if account.Suspended {
		t.Error("a rejected request suspended the account")
	}
}

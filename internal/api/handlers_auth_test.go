// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gatehouse/internal/accounts"
	"github.com/tomtom215/gatehouse/internal/audit"
)

func loginBody(email, password string) string {
	b, _ := json.Marshal(map[string]string{"email": email, "password": password})
	return string(b)
}

func decodeMe(t *testing.T, rec *httptest.ResponseRecorder) MeResponse {
	t.Helper()
	var me MeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("failed to decode me response %q: %v", rec.Body.String(), err)
	}
	return me
}

// =====================================================
// Login
// =====================================================

func TestLogin_Success(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})
	router := env.router()

	rec := serve(router, newRequest(http.MethodPost, "/api/auth/login", "", loginBody("Owner@Store.test", accounts.DemoPassword)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("token is empty")
	}
	if resp.User == nil || resp.User.AccountID != "a-store-owner" || resp.User.Role != "store_owner" {
		t.Errorf("User = %+v", resp.User)
	}
	if resp.ExpiresAt.IsZero() {
		t.Error("ExpiresAt is zero")
	}

	cookieName := env.authorizer.Credentials().CookieName()
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value != resp.Token {
		t.Fatalf("session cookie = %+v, want token", cookie)
	}
	if !cookie.HttpOnly {
		t.Error("session cookie is not HttpOnly")
	}

	// The cookie alone authenticates.
	req := newRequest(http.MethodGet, "/api/auth/me", "", "")
	req.AddCookie(&http.Cookie{Name: cookieName, Value: cookie.Value})
	me := decodeMe(t, serve(router, req))
	if !me.Authenticated || me.Context.AccountID != "a-store-owner" {
		t.Errorf("me = %+v, want authenticated a-store-owner", me)
	}
}

func TestLogin_PicksRequestedAccount(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})
	env.accounts.PutAccount(&accounts.Account{
		ID: "a-store-owner-2", UserID: "u-store-owner", Role: "store_editor",
		WorkspaceID: "ws-store-5", WorkspaceType: accounts.WorkspaceStore,
	})
	router := env.router()

	body := `{"email":"owner@store.test","password":"` + accounts.DemoPassword + `","account_id":"a-store-owner-2"}`
	rec := serve(router, newRequest(http.MethodPost, "/api/auth/login", "", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	if resp.User.AccountID != "a-store-owner-2" {
		t.Errorf("AccountID = %q, want a-store-owner-2", resp.User.AccountID)
	}

	body = `{"email":"owner@store.test","password":"` + accounts.DemoPassword + `","account_id":"a-provider"}`
	rec = serve(router, newRequest(http.MethodPost, "/api/auth/login", "", body))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("foreign account: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestLogin_Rejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})
	router := env.router()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"wrong password", loginBody("owner@store.test", "nope"), http.StatusUnauthorized, CodeInvalidCredentials},
		{"unknown email", loginBody("ghost@store.test", accounts.DemoPassword), http.StatusUnauthorized, CodeInvalidCredentials},
		{"not json", "email=owner", http.StatusBadRequest, CodeBadRequest},
		{"unknown field", `{"email":"owner@store.test","password":"x","admin":true}`, http.StatusBadRequest, CodeBadRequest},
		{"missing password", `{"email":"owner@store.test"}`, http.StatusBadRequest, CodeValidation},
		{"bad email", loginBody("not-an-email", "x"), http.StatusBadRequest, CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(router, newRequest(http.MethodPost, "/api/auth/login", "", tt.body))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if body := decodeError(t, rec); body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Error("rejected login set a cookie")
			}
		})
	}
}

func TestLogin_RecordsAuditEvents(t *testing.T) {
	t.Parallel()
	logger := audit.NewLogger(audit.NewMemoryStore(100), nil)
	env := newTestEnv(t, envOptions{audit: logger})
	router := env.router()

	serve(router, newRequest(http.MethodPost, "/api/auth/login", "", loginBody("owner@store.test", "nope")))
	serve(router, newRequest(http.MethodPost, "/api/auth/login", "", loginBody("owner@store.test", accounts.DemoPassword)))

	if got := logger.Pending(); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}
}

// =====================================================
// Logout and Me
// =====================================================

func TestLogout(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})
	router := env.router()
	token := env.login(t, "a-store-owner")

	rec := serve(router, newRequest(http.MethodPost, "/api/auth/logout", token, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if env.sessions.Len() != 0 {
		t.Errorf("sessions = %d, want 0", env.sessions.Len())
	}

	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == env.authorizer.Credentials().CookieName() && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("session cookie was not cleared")
	}

	// The token no longer authenticates; /me is public and degrades to guest.
	me := decodeMe(t, serve(router, newRequest(http.MethodGet, "/api/auth/me", token, "")))
	if me.Authenticated {
		t.Error("me.Authenticated = true after logout")
	}

	rec = serve(router, newRequest(http.MethodPost, "/api/auth/logout", token, ""))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("second logout: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestMe(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})
	router := env.router()

	guest := decodeMe(t, serve(router, newRequest(http.MethodGet, "/api/auth/me", "", "")))
	if guest.Authenticated || guest.User != nil {
		t.Errorf("guest me = %+v", guest)
	}
	if !guest.Context.IsGuest() {
		t.Errorf("guest context = %+v", guest.Context)
	}

	token := env.login(t, "a-provider")
	me := decodeMe(t, serve(router, newRequest(http.MethodGet, "/api/auth/me", token, "")))
	if !me.Authenticated {
		t.Fatal("Authenticated = false")
	}
	if me.User == nil || me.User.Email != "owner@provider.test" || me.User.WorkspaceType != "provider" {
		t.Errorf("User = %+v", me.User)
	}
	if me.Context.ActiveWorkspaceID != "ws-provider-1" {
		t.Errorf("ActiveWorkspaceID = %q, want ws-provider-1", me.Context.ActiveWorkspaceID)
	}
	if len(me.Context.Permissions) == 0 {
		t.Error("Permissions is empty")
	}
}

// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/gatehouse/internal/accounts"
	"github.com/tomtom215/gatehouse/internal/audit"
	"github.com/tomtom215/gatehouse/internal/auth"
)

// CodeInvalidCredentials answers a failed login. Unknown email, wrong
// password and unknown account id all get the same response.
const CodeInvalidCredentials = "INVALID_CREDENTIALS"

// dummyHash is compared against when the email is unknown so both paths
// spend a bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("gatehouse-timing-equalizer"), bcrypt.DefaultCost)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`

	// AccountID picks one of the user's accounts. Empty picks the first.
	AccountID string `json:"account_id,omitempty" validate:"omitempty,max=128"`
}

// LoginResponse is returned on a successful login. The token is also set
// as the session cookie.
type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      *auth.ClientUser `json:"user"`
}

// Login checks email and password and opens a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request, c *Context) error {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return nil
	}
	ctx := r.Context()
	ip := clientIP(r)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	fail := func(userID, reason string) error {
		h.security.LogLoginFailure(ctx, email, ip, reason)
		h.audit.Log(audit.Event{
			Type:      audit.EventTypeLoginFailure,
			Outcome:   audit.OutcomeFailure,
			Actor:     audit.Actor{UserID: userID},
			Source:    audit.SourceFromRequest(r),
			Action:    "login",
			Method:    r.Method,
			Path:      r.URL.Path,
			Status:    http.StatusUnauthorized,
			RequestID: c.RequestID,
		})
		respondError(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid email or password")
		return nil
	}

	user, err := h.modules.Accounts.GetUserByEmail(ctx, email)
	switch {
	case accounts.IsNotFound(err):
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		return fail("", "unknown_email")
	case err != nil:
		return fmt.Errorf("look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return fail(user.ID, "bad_password")
	}

	account, err := h.pickAccount(r, user.ID, req.AccountID)
	if err != nil {
		return err
	}
	if account == nil {
		return fail(user.ID, "no_account")
	}

	token, session, err := h.modules.Authorizer.Login(ctx, account, auth.SessionMeta{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		return err
	}
	h.modules.Authorizer.Credentials().SetSessionCookie(w, token)

	data := &auth.AuthData{User: user, Account: account, Session: session}
	h.security.LogLoginSuccess(ctx, user.ID, account.ID, session.ID, ip)
	h.audit.Log(audit.Event{
		Type:    audit.EventTypeLogin,
		Outcome: audit.OutcomeSuccess,
		Actor: audit.Actor{
			UserID:      user.ID,
			AccountID:   account.ID,
			WorkspaceID: account.WorkspaceID,
			SessionID:   session.ID,
		},
		Source:    audit.SourceFromRequest(r),
		Action:    "login",
		Method:    r.Method,
		Path:      r.URL.Path,
		Status:    http.StatusOK,
		RequestID: c.RequestID,
	})

	respondJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      data.ClientUser(),
	})
	return nil
}

// pickAccount returns the requested account of the user, or the first one.
// A nil account with a nil error means there is no usable account.
func (h *Handler) pickAccount(r *http.Request, userID, accountID string) (*accounts.Account, error) {
	list, err := h.modules.Accounts.ListAccountsByUser(r.Context(), userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	if accountID == "" {
		return list[0], nil
	}
	for _, a := range list {
		if a.ID == accountID {
			return a, nil
		}
	}
	return nil, nil
}

// Logout deletes the caller's session and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request, c *Context) error {
	authorizer := h.modules.Authorizer
	if err := authorizer.Logout(r.Context(), authorizer.Credentials().Token(r)); err != nil {
		return err
	}
	authorizer.Credentials().ClearSessionCookie(w)

	sessionID := c.Auth.Session.ID
	h.security.LogLogout(r.Context(), c.AuthCtx.UserID, sessionID, clientIP(r))
	h.audit.Log(audit.Event{
		Type:    audit.EventTypeLogout,
		Outcome: audit.OutcomeSuccess,
		Actor: audit.Actor{
			UserID:      c.AuthCtx.UserID,
			AccountID:   c.AuthCtx.AccountID,
			WorkspaceID: c.AuthCtx.ActiveWorkspaceID,
			SessionID:   sessionID,
		},
		Source:    audit.SourceFromRequest(r),
		Action:    "logout",
		Method:    r.Method,
		Path:      r.URL.Path,
		Status:    http.StatusOK,
		RequestID: c.RequestID,
	})

	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
	return nil
}

// MeResponse describes the caller. User is null for guests.
type MeResponse struct {
	Authenticated bool             `json:"authenticated"`
	User          *auth.ClientUser `json:"user"`
	Context       auth.AuthContext `json:"context"`
}

// Me returns the caller's identity. Guests get the guest context.
func (h *Handler) Me(w http.ResponseWriter, _ *http.Request, c *Context) error {
	respondJSON(w, http.StatusOK, MeResponse{
		Authenticated: c.Authenticated(),
		User:          c.Auth.ClientUser(),
		Context:       c.AuthCtx,
	})
	return nil
}

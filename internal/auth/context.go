// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package auth

import (
	"slices"

	"github.com/tomtom215/gatehouse/internal/accounts"
)

// Guest identity values.
const (
	GuestUserID    = "guest"
	GuestAccountID = "0"
)

// AuthContext is the identity a handler runs as.
// AccountID is "0" and Permissions is empty exactly when the caller is a guest.
type AuthContext struct {
	UserID            string   `json:"user_id"`
	AccountID         string   `json:"account_id"`
	Permissions       []string `json:"permissions"`
	ActiveWorkspaceID string   `json:"active_workspace_id,omitempty"`
}

// GuestContext returns the unauthenticated identity.
func GuestContext() AuthContext {
	return AuthContext{
		UserID:      GuestUserID,
		AccountID:   GuestAccountID,
		Permissions: []string{},
	}
}

// IsGuest reports whether the context is the guest identity.
func (c AuthContext) IsGuest() bool {
	return c.AccountID == GuestAccountID
}

// HasPermission reports whether the context holds perm.
func (c AuthContext) HasPermission(perm string) bool {
	return slices.Contains(c.Permissions, perm)
}

// AuthData is the full server-side view of an authenticated caller.
type AuthData struct {
	User        *accounts.User    `json:"user"`
	Account     *accounts.Account `json:"account"`
	Session     *Session          `json:"session"`
	Permissions []string          `json:"permissions"`
}

// Context derives the handler identity. workspaceID is the workspace the
// request acts on; when empty the account's own workspace is used.
func (d *AuthData) Context(workspaceID string) AuthContext {
	if workspaceID == "" {
		workspaceID = d.Account.WorkspaceID
	}
	perms := d.Permissions
	if perms == nil {
		perms = []string{}
	}
	return AuthContext{
		UserID:            d.User.ID,
		AccountID:         d.Account.ID,
		Permissions:       perms,
		ActiveWorkspaceID: workspaceID,
	}
}

// ClientUser is the projection of AuthData that is safe to hand to a browser.
type ClientUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	AccountID     string `json:"account_id"`
	Role          string `json:"role"`
	WorkspaceType string `json:"workspace_type"`
}

// ClientUser returns the browser-safe projection, or nil for nil data.
func (d *AuthData) ClientUser() *ClientUser {
	if d == nil || d.User == nil || d.Account == nil {
		return nil
	}
	return &ClientUser{
		ID:            d.User.ID,
		Email:         d.User.Email,
		Name:          d.User.Name,
		AccountID:     d.Account.ID,
		Role:          d.Account.Role,
		WorkspaceType: d.Account.WorkspaceType,
	}
}

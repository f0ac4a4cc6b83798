// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package accounts provides read access to users and the tenant-scoped
// accounts they act as.
//
// A user may hold several accounts, one per workspace. The authorizer only
// ever reads from this package; the only write is the suspension flag used by
// staff administration.
package accounts

import (
	"context"
	"errors"
	"slices"
	"time"
)

// Workspace types. Casbin policies are keyed by these values.
const (
	WorkspaceProvider = "provider"
	WorkspaceStore    = "store"
	WorkspaceStaff    = "staff"
)

var (
	// ErrAccountNotFound is returned when no account has the given id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrStoreUnavailable wraps backend failures that are not lookups misses.
	ErrStoreUnavailable = errors.New("account store unavailable")
)

// User is a person who can sign in.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	EmailVerified bool      `json:"email_verified"`
	PhoneVerified bool      `json:"phone_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// Account is the tenant-scoped identity a user acts as.
type Account struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Role          string `json:"role"`
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceType string `json:"workspace_type"`
	Suspended     bool   `json:"suspended"`

	// Memberships lists additional workspaces this account may act in.
	Memberships []string `json:"memberships,omitempty"`

	// Grants are per-account permissions on top of the role's.
	Grants []string `json:"grants,omitempty"`
}

// EntitledTo reports whether the account may act in workspaceID through
// ownership or membership. Wildcard capabilities are checked by the caller.
func (a *Account) EntitledTo(workspaceID string) bool {
	if workspaceID == "" {
		return false
	}
	return a.WorkspaceID == workspaceID || slices.Contains(a.Memberships, workspaceID)
}

// Store is the account lookup contract.
type Store interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListAccountsByUser(ctx context.Context, userID string) ([]*Account, error)
	SetSuspended(ctx context.Context, accountID string, suspended bool) error
}

// IsNotFound reports whether err is a lookup miss rather than a failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrUserNotFound)
}

func cloneAccount(a *Account) *Account {
	c := *a
	c.Memberships = slices.Clone(a.Memberships)
	c.Grants = slices.Clone(a.Grants)
	return &c
}

func cloneUser(u *User) *User {
	c := *u
	return &c
}

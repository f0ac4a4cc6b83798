// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package routes holds the declarative route table and the validator that
// maps an inbound method and path to its RouteConfig.
//
// The table is built once at startup into a segment trie and is read-only
// afterwards. Lookups fail closed: a path that matches no configured
// pattern is reported as invalid and must be answered with 404.
package routes

import (
	"errors"
	"strings"
)

// Errors returned while building a table.
var (
	// ErrRouteConflict is returned when two entries share a pattern and method.
	ErrRouteConflict = errors.New("conflicting route")

	// ErrInvalidRoute is returned when an entry fails validation.
	ErrInvalidRoute = errors.New("invalid route")
)

// RouteConfig is one entry of the route table.
type RouteConfig struct {
	// Pattern is an absolute path pattern. Segments are literals, :name
	// parameters, or a trailing * wildcard.
	Pattern string `koanf:"pattern" validate:"required,routepattern"`

	// Methods restricts the entry to the listed HTTP methods. Empty means any.
	Methods []string `koanf:"methods" validate:"omitempty,dive,oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`

	// AuthRequired rejects anonymous callers. When false, callers without a
	// session proceed as guest.
	AuthRequired bool `koanf:"auth_required"`

	// Permission is a single required capability.
	Permission string `koanf:"permission" validate:"omitempty,permission"`

	// RequiredPermissions, when set, replaces Permission.
	RequiredPermissions []string `koanf:"required_permissions" validate:"omitempty,dive,permission"`

	RequireEmailVerified bool `koanf:"require_email_verified"`
	RequirePhoneVerified bool `koanf:"require_phone_verified"`

	// WorkspaceScoped marks routes that act on a single workspace.
	WorkspaceScoped bool `koanf:"workspace_scoped"`

	// WorkspaceParam names the path parameter carrying the workspace id.
	// When empty, the X-Workspace-Id header is used.
	WorkspaceParam string `koanf:"workspace_param"`

	// CollectLogs emits a completion log record for each request.
	CollectLogs bool `koanf:"collect_logs"`

	// CollectActionLogs writes an audit entry for authenticated requests.
	CollectActionLogs bool `koanf:"collect_action_logs"`
}

// Required returns the permission set callers must hold.
// RequiredPermissions wins over Permission; neither yields an empty set.
func (rc *RouteConfig) Required() []string {
	if rc.RequiredPermissions != nil {
		return rc.RequiredPermissions
	}
	if rc.Permission != "" {
		return []string{rc.Permission}
	}
	return nil
}

// AllowsMethod reports whether the entry accepts method.
func (rc *RouteConfig) AllowsMethod(method string) bool {
	if len(rc.Methods) == 0 {
		return true
	}
	for _, m := range rc.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// Match is the result of validating a request against the table.
type Match struct {
	// Valid is false when no configured route matches. Callers respond 404.
	Valid bool

	// Route is the matched entry. Nil when Valid is false.
	Route *RouteConfig

	// NormalizedPath is the locale-stripped path with numeric and short
	// opaque ids collapsed to :id. Suitable as a low-cardinality label.
	NormalizedPath string

	// Path is the locale-stripped path used for matching.
	Path string

	// Locale is the stripped locale prefix, if any.
	Locale string

	// Params holds the values bound to :name segments, and "*" for the wildcard tail.
	Params map[string]string
}

// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tomtom215/gatehouse/internal/accounts"
	"github.com/tomtom215/gatehouse/internal/audit"
	"github.com/tomtom215/gatehouse/internal/auth"
	"github.com/tomtom215/gatehouse/internal/config"
	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/routes"
	"github.com/tomtom215/gatehouse/internal/tasks"
)

// Modules are the shared services every handler may reach.
type Modules struct {
	Authorizer *auth.Authorizer
	Accounts   accounts.Store
	Sessions   auth.SessionStore
	Audit      *audit.Logger
	Tasks      *tasks.Runner
	Security   *logging.SecurityLogger
	Config     *config.Config
}

// Context is the per-request state handed to a HandlerFunc.
type Context struct {
	// Params are the values bound to the route's :name segments.
	Params map[string]string

	// Auth is nil for guests.
	Auth *auth.AuthData

	// AuthCtx is always set; the guest identity when Auth is nil.
	AuthCtx auth.AuthContext

	// Logger carries request_id, method, route and account_id.
	Logger zerolog.Logger

	RequestID string
	Modules   *Modules

	// Match is the route table entry that admitted the request.
	Match routes.Match
}

// Param returns a bound path parameter.
func (c *Context) Param(name string) string {
	return c.Params[name]
}

// Authenticated reports whether the caller has a session.
func (c *Context) Authenticated() bool {
	return c.Auth != nil
}

// HandlerFunc is an API handler running behind the authorization pipeline.
// A returned error is answered with 500; handlers write expected client
// errors themselves.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, c *Context) error

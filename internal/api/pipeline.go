// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/gatehouse/internal/audit"
	"github.com/tomtom215/gatehouse/internal/auth"
	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/middleware"
	"github.com/tomtom215/gatehouse/internal/routes"
	"github.com/tomtom215/gatehouse/internal/tasks"
)

// WorkspaceHeader names the target workspace on scoped routes without a
// workspace path parameter.
const WorkspaceHeader = "X-Workspace-Id"

// maxAuditBodyBytes bounds the request body captured for an action log.
// Larger bodies are logged without a payload.
const maxAuditBodyBytes = 64 << 10

// AuditSink receives action log events. Log must not block.
type AuditSink interface {
	Log(event audit.Event)
}

// TaskRunner runs fire-and-forget work off the request path.
type TaskRunner interface {
	Go(ctx context.Context, name string, fn tasks.Func)
}

// Pipeline wraps handlers with route validation, authorization, action
// logging and session rollover. One Pipeline serves every route.
type Pipeline struct {
	routes      *routes.Table
	modules     *Modules
	authorizer  *auth.Authorizer
	audit       AuditSink
	tasks       TaskRunner
	security    *logging.SecurityLogger
	ui          UIOptions
	development bool
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithAuditSink replaces the audit logger taken from Modules.
func WithAuditSink(sink AuditSink) PipelineOption {
	return func(p *Pipeline) { p.audit = sink }
}

// WithTaskRunner replaces the task runner taken from Modules.
func WithTaskRunner(runner TaskRunner) PipelineOption {
	return func(p *Pipeline) { p.tasks = runner }
}

// WithDevelopment includes error details in 500 responses.
func WithDevelopment(dev bool) PipelineOption {
	return func(p *Pipeline) { p.development = dev }
}

// WithUIOptions sets the page redirect targets.
func WithUIOptions(opts UIOptions) PipelineOption {
	return func(p *Pipeline) { p.ui = opts }
}

// NewPipeline creates a pipeline over table. modules.Authorizer is required.
func NewPipeline(table *routes.Table, modules *Modules, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		routes:     table,
		modules:    modules,
		authorizer: modules.Authorizer,
		security:   modules.Security,
		ui:         DefaultUIOptions(),
	}
	// Typed nil pointers must not become non-nil interfaces.
	if modules.Audit != nil {
		p.audit = modules.Audit
	}
	if modules.Tasks != nil {
		p.tasks = modules.Tasks
	}
	if modules.Config != nil {
		p.development = modules.Config.Server.IsDevelopment()
		p.ui = UIOptionsFromConfig(modules.Config.UI)
	}
	if p.security == nil {
		p.security = logging.NewSecurityLogger()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Routes returns the route table the pipeline validates against.
func (p *Pipeline) Routes() *routes.Table {
	return p.routes
}

type handlerOptions struct {
	permissions     []string
	inlineForbidden bool
}

// HandlerOption adjusts a single wrapped handler or page.
type HandlerOption func(*handlerOptions)

// WithPermissions replaces the route's permission set for this handler.
// Calling it with no permissions requires none.
func WithPermissions(perms ...string) HandlerOption {
	return func(o *handlerOptions) {
		if perms == nil {
			perms = []string{}
		}
		o.permissions = perms
	}
}

// WithInlineForbidden makes a page answer permission and workspace denials
// with a 403 HTML fragment instead of redirecting to the forbidden page.
// It has no effect on API handlers.
func WithInlineForbidden() HandlerOption {
	return func(o *handlerOptions) { o.inlineForbidden = true }
}

// WithAPIHandler wraps h in the authorization pipeline.
//
// Every response carries X-Request-Id. Requests that match no configured
// route get 404 before any credential is read. Denials are answered with
// {"code","message"} and the status for the code. Handler errors and
// panics become 500. Audit and session refresh run after the handler
// and never change its response.
func (p *Pipeline) WithAPIHandler(h HandlerFunc, opts ...HandlerOption) http.Handler {
	var o handlerOptions
	for _, opt := range opts {
		opt(&o)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		r, requestID, match := p.begin(w, r)
		logger := logging.LoggerFromContext(r.Context())

		if !match.Valid {
			logger.Debug().Str("path", r.URL.Path).Msg("No route matched")
			respondCode(w, auth.CodeNotFound)
			return
		}

		result, err := p.authorize(r, match, o.permissions)
		if err != nil {
			logger.Error().Err(err).Msg("Authorization failed")
			p.respondInternal(w, err)
			return
		}

		var granted auth.Granted
		switch v := result.(type) {
		case auth.Denied:
			p.logDenied(r, match, v)
			p.clearStaleCookie(w, r, v.Code)
			respondCode(w, v.Code)
			return
		case auth.Granted:
			granted = v
		default:
			p.respondInternal(w, fmt.Errorf("unexpected authorization result %T", result))
			return
		}

		logger = logger.With().Str("account_id", granted.Ctx.AccountID).Logger()
		r = r.WithContext(logging.ContextWithLogger(r.Context(), logger))

		collectAction := match.Route.CollectActionLogs && granted.Data != nil
		var body []byte
		if collectAction {
			body = captureBody(r)
		}

		c := &Context{
			Params:    match.Params,
			Auth:      granted.Data,
			AuthCtx:   granted.Ctx,
			Logger:    logger,
			RequestID: requestID,
			Modules:   p.modules,
			Match:     match,
		}
		rec := &middleware.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		p.serve(rec, r, h, c)
		duration := time.Since(start)

		if collectAction {
			p.safely(logger, "audit", func() {
				p.logAction(r, c, rec.Status, duration, body)
			})
		}
		if granted.NeedsRefresh && granted.Data != nil {
			p.safely(logger, "session refresh", func() {
				p.scheduleRefresh(r.Context(), granted.Data.Session.ID)
			})
		}
		if match.Route.CollectLogs {
			logger.Info().
				Int("status", rec.Status).
				Int64("duration_ms", duration.Milliseconds()).
				Msg("Request completed")
		}
	})
}

// begin binds the request id and a request-scoped logger, and matches the
// route. The X-Request-Id header is set before anything else is written.
func (p *Pipeline) begin(w http.ResponseWriter, r *http.Request) (*http.Request, string, routes.Match) {
	requestID := middleware.ResolveRequestID(r)
	w.Header().Set(middleware.RequestIDHeader, requestID)

	match := p.routes.ValidateRequest(r)
	logger := logging.Logger().With().
		Str("request_id", requestID).
		Str("method", r.Method).
		Str("route", match.NormalizedPath).
		Logger()

	ctx := logging.ContextWithRequestID(r.Context(), requestID)
	ctx = logging.ContextWithLogger(ctx, logger)
	return r.WithContext(ctx), requestID, match
}

func (p *Pipeline) authorize(r *http.Request, match routes.Match, perms []string) (auth.Result, error) {
	return p.authorizer.ValidateRouteRequest(r.Context(), r, auth.Request{
		Route:               match.Route,
		RequiredPermissions: perms,
		WorkspaceID:         workspaceID(r, match),
	})
}

// workspaceID returns the workspace a scoped route acts on.
func workspaceID(r *http.Request, match routes.Match) string {
	if !match.Route.WorkspaceScoped {
		return ""
	}
	if match.Route.WorkspaceParam != "" {
		return match.Params[match.Route.WorkspaceParam]
	}
	return r.Header.Get(WorkspaceHeader)
}

func (p *Pipeline) logDenied(r *http.Request, match routes.Match, d auth.Denied) {
	p.security.LogAuthorizationDenied(r.Context(), string(d.Code), d.Ctx.AccountID, match.Path,
		audit.SourceFromRequest(r).IPAddress)
}

// clearStaleCookie drops a session cookie that no longer resolves.
func (p *Pipeline) clearStaleCookie(w http.ResponseWriter, r *http.Request, code auth.Code) {
	if code != auth.CodeTokenExpired && code != auth.CodeSessionInvalid {
		return
	}
	creds := p.authorizer.Credentials()
	if _, err := r.Cookie(creds.CookieName()); err == nil {
		creds.ClearSessionCookie(w)
	}
}

// serve runs h and turns a returned error or a panic into 500, unless the
// handler already started its response.
func (p *Pipeline) serve(w *middleware.StatusRecorder, r *http.Request, h HandlerFunc, c *Context) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
			panic(rec)
		}
		err := fmt.Errorf("handler panic: %v", rec)
		c.Logger.Error().Err(err).Bytes("stack", debug.Stack()).Msg("Handler panicked")
		p.fail(w, err)
	}()

	if err := h(w, r, c); err != nil {
		c.Logger.Error().Err(err).Msg("Handler failed")
		p.fail(w, err)
	}
}

func (p *Pipeline) fail(w *middleware.StatusRecorder, err error) {
	if w.Written() {
		return
	}
	p.respondInternal(w, err)
}

func (p *Pipeline) respondInternal(w http.ResponseWriter, err error) {
	body := ErrorBody{
		Code:    string(auth.CodeInternalError),
		Message: auth.CodeInternalError.Message(),
	}
	if p.development && err != nil {
		body.Detail = err.Error()
	}
	respondJSON(w, http.StatusInternalServerError, body)
}

// safely runs fn and logs, rather than propagates, a panic.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (p *Pipeline) safely(logger zerolog.Logger, what string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Str("step", what).Msg("Post-response step panicked")
		}
	}()
	fn()
}

// captureBody reads up to maxAuditBodyBytes and puts the bytes back in
// front of the body so the handler still sees all of it.
func captureBody(r *http.Request) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxAuditBodyBytes+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	if err != nil || len(buf) > maxAuditBodyBytes {
		return nil
	}
	return buf
}

func (p *Pipeline) logAction(r *http.Request, c *Context, status int, duration time.Duration, body []byte) {
	if p.audit == nil {
		return
	}
	event := audit.Event{
		Type:    audit.EventTypeAction,
		Outcome: audit.OutcomeForStatus(status),
		Actor: audit.Actor{
			UserID:      c.AuthCtx.UserID,
			AccountID:   c.AuthCtx.AccountID,
			WorkspaceID: c.AuthCtx.ActiveWorkspaceID,
			SessionID:   c.Auth.Session.ID,
		},
		Source:     audit.SourceFromRequest(r),
		Action:     audit.ActionName(r.Method, c.Match.Path),
		Method:     r.Method,
		Path:       r.URL.Path,
		Route:      c.Match.NormalizedPath,
		Status:     status,
		DurationMs: duration.Milliseconds(),
		RequestID:  c.RequestID,
	}
	payload, err := audit.SanitizeJSON(body)
	if err != nil {
		c.Logger.Debug().Err(err).Msg("Request body is not JSON, logging action without payload")
	}
	event.Payload = payload
	p.audit.Log(event)
}

func (p *Pipeline) scheduleRefresh(ctx context.Context, sessionID string) {
	if p.tasks == nil {
		return
	}
	authorizer := p.authorizer
	p.tasks.Go(ctx, "session_refresh", func(ctx context.Context) error {
		return authorizer.Refresh(ctx, sessionID)
	})
}

// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/gatehouse/internal/accounts"
	"github.com/tomtom215/gatehouse/internal/audit"
	"github.com/tomtom215/gatehouse/internal/auth"
	"github.com/tomtom215/gatehouse/internal/authz"
	"github.com/tomtom215/gatehouse/internal/routes"
	"github.com/tomtom215/gatehouse/internal/tasks"
)

const testSecret = "gatehouse-test-secret-0123456789abcdef"

// recordingSink collects audit events in memory.
type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Log(e audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event(nil), s.events...)
}

type panickingSink struct{}

func (panickingSink) Log(audit.Event) { panic("audit store exploded") }

// recordingRunner records submitted tasks without running them.
type recordingRunner struct {
	mu    sync.Mutex
	names []string
	fns   []tasks.Func
}

func (r *recordingRunner) Go(_ context.Context, name string, fn tasks.Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
	r.fns = append(r.fns, fn)
}

func (r *recordingRunner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

type testEnv struct {
	accounts   *accounts.MemoryStore
	sessions   *auth.MemorySessionStore
	authorizer *auth.Authorizer
	modules    *Modules
	sink       *recordingSink
	runner     *recordingRunner
	pipeline   *Pipeline
	handler    *Handler
}

type envOptions struct {
	refreshFraction float64
	pipeline        []PipelineOption
	audit           *audit.Logger
}

// newTestEnv builds a pipeline over the demo accounts and default routes.
func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	store := accounts.NewMemoryStore()
	if err := accounts.SeedDemo(store, bcrypt.MinCost); err != nil {
		t.Fatalf("SeedDemo() error = %v", err)
	}

	enforcer, err := authz.NewEnforcer(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	t.Cleanup(enforcer.Close)

	signer, err := auth.NewTokenSigner(testSecret, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenSigner() error = %v", err)
	}

	if opts.refreshFraction == 0 {
		opts.refreshFraction = 0.5
	}
	if opts.refreshFraction < 0 {
		opts.refreshFraction = 0
	}

	sessions := auth.NewMemorySessionStore()
	authorizer := auth.NewAuthorizer(signer, sessions, store, enforcer, auth.NewCredentialReader(nil), auth.AuthorizerConfig{
		SessionTTL:      time.Hour,
		RefreshFraction: opts.refreshFraction,
	})

	table := routes.MustNewTable(routes.DefaultRoutes(), routes.Options{Locales: []string{"en", "fr", "de", "es"}})
	modules := &Modules{
		Authorizer: authorizer,
		Accounts:   store,
		Sessions:   sessions,
		Audit:      opts.audit,
	}

	sink := &recordingSink{}
	runner := &recordingRunner{}
	popts := append([]PipelineOption{WithAuditSink(sink), WithTaskRunner(runner)}, opts.pipeline...)

	return &testEnv{
		accounts:   store,
		sessions:   sessions,
		authorizer: authorizer,
		modules:    modules,
		sink:       sink,
		runner:     runner,
		pipeline:   NewPipeline(table, modules, popts...),
		handler:    NewHandler(modules),
	}
}

// router returns the full chi handler with rate limits off.
func (e *testEnv) router() http.Handler {
	mw := DefaultChiMiddlewareConfig()
	mw.RateLimitDisabled = true
	return NewRouter(e.pipeline, e.handler, NewChiMiddleware(mw), nil).SetupChi()
}

// login opens a session for accountID and returns its token.
func (e *testEnv) login(t *testing.T, accountID string) string {
	t.Helper()
	account, err := e.accounts.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetAccount(%q) error = %v", accountID, err)
	}
	token, _, err := e.authorizer.Login(context.Background(), account, auth.SessionMeta{IPAddress: "192.0.2.1"})
	if err != nil {
		t.Fatalf("Login(%q) error = %v", accountID, err)
	}
	return token
}

func newRequest(method, path, token, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func okHandler(w http.ResponseWriter, _ *http.Request, _ *Context) error {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/gatehouse/internal/accounts"
	"github.com/tomtom215/gatehouse/internal/authz"
	"github.com/tomtom215/gatehouse/internal/routes"
)

type authFixture struct {
	authorizer *Authorizer
	sessions   SessionStore
	accounts   *accounts.MemoryStore
	signer     *TokenSigner
}

func newAuthFixture(t *testing.T, sessions SessionStore, cfg AuthorizerConfig) *authFixture {
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

	if sessions == nil {
		sessions = NewMemorySessionStore()
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = time.Hour
		cfg.RefreshFraction = 0.25
	}
	signer := newTestSigner(t)

	return &authFixture{
		authorizer: NewAuthorizer(signer, sessions, store, enforcer, nil, cfg),
		sessions:   sessions,
		accounts:   store,
		signer:     signer,
	}
}

// login opens a session for a seeded account and returns its token.
func (f *authFixture) login(t *testing.T, accountID string) (string, *Session) {
	t.Helper()
	account, err := f.accounts.GetAccount(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetAccount(%s) error = %v", accountID, err)
	}
	token, session, err := f.authorizer.Login(context.Background(), account, SessionMeta{IPAddress: "127.0.0.1"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return token, session
}

func (f *authFixture) authorize(t *testing.T, token string, req Request) Result {
	t.Helper()
	res, err := f.authorizer.Authorize(context.Background(), token, req)
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	return res
}

func wantDenied(t *testing.T, res Result, code Code) Denied {
	t.Helper()
	d, ok := res.(Denied)
	if !ok {
		t.Fatalf("result = %#v, want Denied{%s}", res, code)
	}
	if d.Code != code {
		t.Fatalf("Denied.Code = %s, want %s", d.Code, code)
	}
	return d
}

func wantGranted(t *testing.T, res Result) Granted {
	t.Helper()
	g, ok := res.(Granted)
	if !ok {
		t.Fatalf("result = %#v, want Granted", res)
	}
	return g
}

var (
	publicRoute  = &routes.RouteConfig{Pattern: "/api/listings"}
	privateRoute = &routes.RouteConfig{Pattern: "/api/me", AuthRequired: true}
)

func TestAuthorize_PermissionSuperset(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil, AuthorizerConfig{})
	// store_editor holds listings.create, listings.read and listings.update.
	token, _ := f.login(t, "a-store-editor")

	tests := []struct {
		name     string
		route    *routes.RouteConfig
		override []string
		granted  bool
	}{
		{"no requirement", &routes.RouteConfig{AuthRequired: true}, nil, true},
		{"single held", &routes.RouteConfig{AuthRequired: true, Permission: "listings.read"}, nil, true},
		{"single missing", &routes.RouteConfig{AuthRequired: true, Permission: "payouts.create"}, nil, false},
		{"all held", &routes.RouteConfig{AuthRequired: true, RequiredPermissions: []string{"listings.read", "listings.update"}}, nil, true},
		{"one of two missing", &routes.RouteConfig{AuthRequired: true, RequiredPermissions: []string{"listings.read", "payouts.create"}}, nil, false},
		{"list wins over single", &routes.RouteConfig{AuthRequired: true, Permission: "payouts.create", RequiredPermissions: []string{"listings.read"}}, nil, true},
		{"override replaces route", &routes.RouteConfig{AuthRequired: true, Permission: "listings.read"}, []string{"listings.delete"}, false},
		{"empty override requires nothing", &routes.RouteConfig{AuthRequired: true, Permission: "payouts.create"}, []string{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.authorize(t, token, Request{Route: tt.route, RequiredPermissions: tt.override})
			if tt.granted {
				g := wantGranted(t, res)
				if g.Data == nil || g.Ctx.AccountID != "a-store-editor" {
					t.Errorf("Granted = %+v, want the store editor identity", g.Ctx)
				}
				return
			}
			d := wantDenied(t, res, CodePermissionDenied)
			if d.Ctx.IsGuest() || d.Data == nil {
				t.Errorf("gate failure should carry the resolved identity, got %+v", d.Ctx)
			}
		})
	}
}

// TestAuthorize_PermissionGrid crosses accounts holding exactly {}, {X} and
// {X,Y} with routes requiring {}, {X}, {X,Y} and {Z}. The accounts use a role
// with no policy so that their grants are their whole permission set.
func TestAuthorize_PermissionGrid(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil, AuthorizerConfig{})

	const (
		x = "reports.read"
		y = "reports.export"
		z = "payouts.create"
	)
	held := map[string][]string{
		"none": nil,
		"x":    {x},
		"xy":   {x, y},
	}
	tokens := make(map[string]string, len(held))
	for name, grants := range held {
		id := "a-grid-" + name
		f.accounts.PutUser(&accounts.User{ID: "u-grid-" + name, Email: name + "@grid.test", Name: "Grid " + name, EmailVerified: true})
		f.accounts.PutAccount(&accounts.Account{
			ID: id, UserID: "u-grid-" + name, Role: "grid_viewer",
			WorkspaceID: "ws-grid", WorkspaceType: accounts.WorkspaceStore, Grants: grants,
		})
		tokens[name], _ = f.login(t, id)
	}

	tests := []struct {
		held     string
		required []string
		granted  bool
	}{
		{"none", []string{}, true},
		{"none", []string{x}, false},
		{"none", []string{x, y}, false},
		{"none", []string{z}, false},
		{"x", []string{}, true},
		{"x", []string{x}, true},
		{"x", []string{x, y}, false},
		{"x", []string{z}, false},
		{"xy", []string{}, true},
		{"xy", []string{x}, true},
		{"xy", []string{x, y}, true},
		{"xy", []string{z}, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s requires %v", tt.held, tt.required), func(t *testing.T) {
			route := &routes.RouteConfig{AuthRequired: true, RequiredPermissions: tt.required}
			res := f.authorize(t, tokens[tt.held], Request{Route: route})
			if !tt.granted {
				wantDenied(t, res, CodePermissionDenied)
				return
			}
			g := wantGranted(t, res)
			if len(g.Ctx.Permissions) != len(held[tt.held]) {
				t.Errorf("Permissions = %v, want exactly %v", g.Ctx.Permissions, held[tt.held])
			}
		})
	}
}

func TestAuthorize_GateOrder(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil, AuthorizerConfig{})

	strict := &routes.RouteConfig{
		AuthRequired:         true,
		RequireEmailVerified: true,
		RequirePhoneVerified: true,
		Permission:           "accounts.suspend",
	}

	tests := []struct {
		account string
		want    Code
	}{
		// Suspended beats every later gate, including permission denied.
		{"a-suspended", CodeAccountSuspended},
		// Neither verified: email is reported first.
		{"a-unverified", CodeEmailNotVerified},
		// Email verified, phone not.
		{"a-store-editor", CodePhoneNotVerified},
		// Fully verified but lacks the permission.
		{"a-store-owner", CodePermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			token, _ := f.login(t, tt.account)
			d := wantDenied(t, f.authorize(t, token, Request{Route: strict}), tt.want)
			if d.Ctx.AccountID != tt.account {
				t.Errorf("Denied.Ctx.AccountID = %q, want %q", d.Ctx.AccountID, tt.account)
			}
		})
	}
}

func TestAuthorize_SuspendedWithHeldPermission(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil, AuthorizerConfig{})
	token, _ := f.login(t, "a-suspended")

	route := &routes.RouteConfig{AuthRequired: true, Permission: "listings.read"}
	wantDenied(t, f.authorize(t, token, Request{Route: route}), CodeAccountSuspended)
}

func TestAuthorize_Workspace(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil, AuthorizerConfig{})
	editor, _ := f.login(t, "a-store-editor")
	staff, _ := f.login(t, "a-staff")

	tests := []struct {
		name      string
		token     string
		workspace string
		granted   bool
	}{
		{"own workspace", editor, "ws-store-1", true},
		{"membership", editor, "ws-store-2", true},
		{"foreign workspace", editor, "ws-store-9", false},
		{"staff with workspaces.all", staff, "ws-store-9", true},
		{"no workspace", editor, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.authorize(t, tt.token, Request{Route: privateRoute, WorkspaceID: tt.workspace})
			if !tt.granted {
				wantDenied(t, res, CodeWorkspaceMismatch)
				return
			}
			g := wantGranted(t, res)
			want := tt.workspace
			if want == "" {
				want = g.Data.Account.WorkspaceID
			}
			if g.Ctx.ActiveWorkspaceID != want {
				t.Errorf("ActiveWorkspaceID = %q, want %q", g.Ctx.ActiveWorkspaceID, want)
			}
		})
	}
}

func TestAuthorize_Credentials(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil, AuthorizerConfig{})
	ctx := context.Background()

	expired := NewSession("u-store-owner", "a-store-owner", time.Hour)
	expired.ExpiresAt = time.Now().Add(-time.Second)
	if err := f.sessions.Create(ctx, expired); err != nil {
		t.Fatal(err)
	}
	expiredToken, _ := f.signer.Issue(expired)

	deleted, deletedSession := f.login(t, "a-store-owner")
	if err := f.sessions.Delete(ctx, deletedSession.ID); err != nil {
		t.Fatal(err)
	}

	ghost := NewSession("u-ghost", "a-ghost", time.Hour)
	if err := f.sessions.Create(ctx, ghost); err != nil {
		t.Fatal(err)
	}
	ghostToken, _ := f.signer.Issue(ghost)

	mismatched := NewSession("u-store-editor", "a-store-owner", time.Hour)
	if err := f.sessions.Create(ctx, mismatched); err != nil {
		t.Fatal(err)
	}
	mismatchedToken, _ := f.signer.Issue(mismatched)

	tests := []struct {
		name  string
		token string
		want  Code
	}{
		{"missing", "", CodeUnauthorized},
		{"garbage", "garbage", CodeSessionInvalid},
		{"session expired", expiredToken, CodeTokenExpired},
		{"session deleted", deleted, CodeSessionInvalid},
		{"account missing", ghostToken, CodeSessionInvalid},
		{"account of another user", mismatchedToken, CodeSessionInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := wantDenied(t, f.authorize(t, tt.token, Request{Route: privateRoute}), tt.want)
			if !d.Ctx.IsGuest() || d.Data != nil {
				t.Errorf("credential failures carry the guest context, got %+v", d.Ctx)
			}

			// The same credential on a public route degrades to guest.
			g := wantGranted(t, f.authorize(t, tt.token, Request{Route: publicRoute}))
			if g.Data != nil || !g.Ctx.IsGuest() || len(g.Ctx.Permissions) != 0 || g.NeedsRefresh {
				t.Errorf("public route = %+v, want guest", g)
			}
		})
	}
}

func TestAuthorize_TokenExpiredOutlivesSession(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil, AuthorizerConfig{})
	token, _ := f.login(t, "a-store-owner")

	f.signer.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	wantDenied(t, f.authorize(t, token, Request{Route: privateRoute}), CodeTokenExpired)
}

func TestAuthorize_PublicRouteKeepsIdentity(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil, AuthorizerConfig{})
	token, _ := f.login(t, "a-provider")

	g := wantGranted(t, f.authorize(t, token, Request{Route: publicRoute}))
	if g.Data == nil || g.Ctx.AccountID != "a-provider" {
		t.Errorf("public route with a valid session = %+v, want the provider identity", g.Ctx)
	}
}

func TestAuthorize_RefreshBoundary(t *testing.T) {
	t.Parallel()

	var now time.Time
	f := newAuthFixture(t, nil, AuthorizerConfig{
		SessionTTL:      time.Hour,
		RefreshFraction: 0.25,
		Now:             func() time.Time { return now },
	})
	token, session := f.login(t, "a-store-owner")
	threshold := 15 * time.Minute

	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"fresh", 0, false},
		{"just before threshold", threshold - time.Nanosecond, false},
		{"exactly at threshold", threshold, true},
		{"past threshold", threshold + time.Minute, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = session.LastActivityAt.Add(tt.elapsed)
			g := wantGranted(t, f.authorize(t, token, Request{Route: privateRoute}))
			if g.NeedsRefresh != tt.want {
				t.Errorf("NeedsRefresh = %v, want %v", g.NeedsRefresh, tt.want)
			}
		})
	}
}

type failingSessions struct {
	*MemorySessionStore
	err error
}

func (s *failingSessions) Get(context.Context, string) (*Session, error) {
	return nil, s.err
}

type blockingSessions struct {
	*MemorySessionStore
}

func (s *blockingSessions) Get(ctx context.Context, _ string) (*Session, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAuthorize_StoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	f := newAuthFixture(t, &failingSessions{MemorySessionStore: NewMemorySessionStore(), err: boom}, AuthorizerConfig{})
	token, _ := f.login(t, "a-store-owner")

	res, err := f.authorizer.Authorize(context.Background(), token, Request{Route: privateRoute})
	if !errors.Is(err, boom) {
		t.Errorf("Authorize() error = %v, want wrapped store error", err)
	}
	if res != nil {
		t.Errorf("Authorize() result = %#v, want nil on error", res)
	}
}

func TestAuthorize_Timeout(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t, &blockingSessions{NewMemorySessionStore()}, AuthorizerConfig{
		SessionTTL:      time.Hour,
		RefreshFraction: 0.25,
		Timeout:         20 * time.Millisecond,
	})
	token, _ := f.login(t, "a-store-owner")

	_, err := f.authorizer.Authorize(context.Background(), token, Request{Route: privateRoute})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Authorize() error = %v, want deadline exceeded", err)
	}
}

func TestAuthorizer_ValidateRouteRequest(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil, AuthorizerConfig{})
	token, _ := f.login(t, "a-store-owner")

	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.AddCookie(&http.Cookie{Name: "gatehouse_session", Value: token})

	res, err := f.authorizer.ValidateRouteRequest(context.Background(), r, Request{Route: privateRoute})
	if err != nil {
		t.Fatalf("ValidateRouteRequest() error = %v", err)
	}
	wantGranted(t, res)
}

func TestAuthorizer_RefreshAndLogout(t *testing.T) {
	t.Parallel()
	f := newAuthFixture(t, nil, AuthorizerConfig{})
	ctx := context.Background()
	token, session := f.login(t, "a-store-owner")

	if err := f.authorizer.Refresh(ctx, session.ID); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	got, err := f.sessions.Get(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastActivityAt.Before(session.LastActivityAt) {
		t.Errorf("Refresh() did not bump LastActivityAt")
	}

	if err := f.authorizer.Logout(ctx, token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	wantDenied(t, f.authorize(t, token, Request{Route: privateRoute}), CodeSessionInvalid)

	if err := f.authorizer.Logout(ctx, "garbage"); err != nil {
		t.Errorf("Logout(garbage) error = %v, want nil", err)
	}
	if err := f.authorizer.Refresh(ctx, session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Refresh() after logout error = %v, want ErrSessionNotFound", err)
	}
}

func TestOutcome(t *testing.T) {
	t.Parallel()
	tests := []struct {
		res  Result
		want string
	}{
		{Granted{Ctx: GuestContext()}, "guest"},
		{Granted{Data: &AuthData{}}, "granted"},
		{Denied{Code: CodeWorkspaceMismatch}, "WORKSPACE_MISMATCH"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.res); got != tt.want {
			t.Errorf("Outcome(%T) = %q, want %q", tt.res, got, tt.want)
		}
	}
}

func TestCode_Classification(t *testing.T) {
	t.Parallel()
	for _, c := range []Code{CodeUnauthorized, CodeTokenExpired, CodeSessionInvalid} {
		if !c.IsCredentialFailure() {
			t.Errorf("%s should be a credential failure", c)
		}
	}
	for _, c := range []Code{CodeEmailNotVerified, CodePhoneNotVerified} {
		if !c.IsVerificationFailure() || c.IsCredentialFailure() {
			t.Errorf("%s should be a verification failure only", c)
		}
	}
	if CodePermissionDenied.Message() == string(CodePermissionDenied) {
		t.Errorf("known codes should have a client message")
	}
}

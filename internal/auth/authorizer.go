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
	"slices"
	"time"

	"github.com/tomtom215/gatehouse/internal/accounts"
	"github.com/tomtom215/gatehouse/internal/metrics"
	"github.com/tomtom215/gatehouse/internal/routes"
)

// PermissionAllWorkspaces entitles an account to every workspace.
const PermissionAllWorkspaces = "workspaces.all"

// PermissionResolver returns the permissions a role holds in a workspace type.
type PermissionResolver interface {
	Permissions(role, workspaceType string) ([]string, error)
}

// AuthorizerConfig holds session timing for the authorizer.
type AuthorizerConfig struct {
	// SessionTTL is the idle expiry applied on refresh.
	SessionTTL time.Duration

	// RefreshFraction of SessionTTL since last activity triggers a refresh.
	RefreshFraction float64

	// Timeout bounds the store lookups of a single authorization. Zero
	// leaves only the caller's deadline.
	Timeout time.Duration

	// Now is the clock. Nil uses time.Now.
	Now func() time.Time
}

// RefreshThreshold returns the activity age that triggers a rollover.
func (c AuthorizerConfig) RefreshThreshold() time.Duration {
	return time.Duration(float64(c.SessionTTL) * c.RefreshFraction)
}

// Request describes what a single request needs.
type Request struct {
	// Route is the matched route entry. Required.
	Route *routes.RouteConfig

	// RequiredPermissions overrides the route's permissions when non-nil.
	RequiredPermissions []string

	// WorkspaceID is the workspace the request acts on, if any.
	WorkspaceID string
}

func (r Request) required() []string {
	if r.RequiredPermissions != nil {
		return r.RequiredPermissions
	}
	return r.Route.Required()
}

// Authorizer turns a session credential and a route entry into a verdict.
// It is safe for concurrent use.
type Authorizer struct {
	tokens      *TokenSigner
	sessions    SessionStore
	accounts    accounts.Store
	permissions PermissionResolver
	credentials *CredentialReader
	config      AuthorizerConfig
}

// NewAuthorizer creates an authorizer.
func NewAuthorizer(
	tokens *TokenSigner,
	sessions SessionStore,
	accountStore accounts.Store,
	permissions PermissionResolver,
	credentials *CredentialReader,
	config AuthorizerConfig,
) *Authorizer {
	if config.Now == nil {
		config.Now = time.Now
	}
	if credentials == nil {
		credentials = NewCredentialReader(nil)
	}
	return &Authorizer{
		tokens:      tokens,
		sessions:    sessions,
		accounts:    accountStore,
		permissions: permissions,
		credentials: credentials,
		config:      config,
	}
}

// Credentials returns the reader used to extract tokens.
func (a *Authorizer) Credentials() *CredentialReader {
	return a.credentials
}

// ValidateRouteRequest authorizes r against req using the token carried by r.
func (a *Authorizer) ValidateRouteRequest(ctx context.Context, r *http.Request, req Request) (Result, error) {
	return a.Authorize(ctx, a.credentials.Token(r), req)
}

// Authorize evaluates token against req.
//
// Authorization failures are returned as Denied with a nil error. A non-nil
// error means a dependency failed and the caller should answer 500.
//
// Order of checks:
//  1. credential (missing, expired, invalid, unknown session or account)
//  2. account suspended
//  3. email verification, then phone verification, when the route asks
//  4. permission superset
//  5. workspace entitlement
//
// On routes that do not require authentication, a missing or unusable
// credential yields the guest identity instead of a denial.
func (a *Authorizer) Authorize(ctx context.Context, token string, req Request) (Result, error) {
	start := time.Now()
	result, err := a.authorize(ctx, token, req)
	switch {
	case err != nil:
		metrics.RecordAuthorization(string(CodeInternalError), time.Since(start))
	default:
		metrics.RecordAuthorization(Outcome(result), time.Since(start))
	}
	return result, err
}

func (a *Authorizer) authorize(ctx context.Context, token string, req Request) (Result, error) {
	if req.Route == nil {
		return nil, errors.New("authorize: nil route")
	}

	if token == "" {
		return a.credentialFailure(req, CodeUnauthorized), nil
	}

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	data, code, err := a.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if code != "" {
		return a.credentialFailure(req, code), nil
	}

	ctxID := data.Context(req.WorkspaceID)
	deny := func(c Code) (Result, error) {
		return Denied{Code: c, Ctx: ctxID, Data: data}, nil
	}

	if data.Account.Suspended {
		return deny(CodeAccountSuspended)
	}
	if req.Route.RequireEmailVerified && !data.User.EmailVerified {
		return deny(CodeEmailNotVerified)
	}
	if req.Route.RequirePhoneVerified && !data.User.PhoneVerified {
		return deny(CodePhoneNotVerified)
	}
	for _, perm := range req.required() {
		if !slices.Contains(data.Permissions, perm) {
			return deny(CodePermissionDenied)
		}
	}
	if req.WorkspaceID != "" && !a.entitled(data, req.WorkspaceID) {
		return deny(CodeWorkspaceMismatch)
	}

	now := a.config.Now()
	return Granted{
		Ctx:          ctxID,
		Data:         data,
		NeedsRefresh: now.Sub(data.Session.LastActivityAt) >= a.config.RefreshThreshold(),
	}, nil
}

// credentialFailure degrades to guest on public routes.
func (a *Authorizer) credentialFailure(req Request, code Code) Result {
	if !req.Route.AuthRequired {
		return Granted{Ctx: GuestContext()}
	}
	return Denied{Code: code, Ctx: GuestContext()}
}

// resolve loads the session, account, user and permissions behind token.
// A non-empty Code reports a credential failure.
func (a *Authorizer) resolve(ctx context.Context, token string) (*AuthData, Code, error) {
	sessionID, err := a.tokens.Verify(token)
	switch {
	case errors.Is(err, ErrTokenExpired):
		return nil, CodeTokenExpired, nil
	case err != nil:
		return nil, CodeSessionInvalid, nil
	}

	session, err := a.sessions.Get(ctx, sessionID)
	switch {
	case errors.Is(err, ErrSessionExpired):
		return nil, CodeTokenExpired, nil
	case errors.Is(err, ErrSessionNotFound):
		return nil, CodeSessionInvalid, nil
	case err != nil:
		return nil, "", fmt.Errorf("load session: %w", err)
	}
	if session.IsExpiredAt(a.config.Now()) {
		return nil, CodeTokenExpired, nil
	}

	account, err := a.accounts.GetAccount(ctx, session.AccountID)
	switch {
	case accounts.IsNotFound(err):
		return nil, CodeSessionInvalid, nil
	case err != nil:
		return nil, "", fmt.Errorf("load account: %w", err)
	}
	if account.UserID != session.UserID {
		return nil, CodeSessionInvalid, nil
	}

	user, err := a.accounts.GetUser(ctx, session.UserID)
	switch {
	case accounts.IsNotFound(err):
		return nil, CodeSessionInvalid, nil
	case err != nil:
		return nil, "", fmt.Errorf("load user: %w", err)
	}

	perms, err := a.accountPermissions(account)
	if err != nil {
		return nil, "", err
	}

	return &AuthData{
		User:        user,
		Account:     account,
		Session:     session,
		Permissions: perms,
	}, "", nil
}

// accountPermissions merges role permissions with per-account grants.
func (a *Authorizer) accountPermissions(account *accounts.Account) ([]string, error) {
	rolePerms, err := a.permissions.Permissions(account.Role, account.WorkspaceType)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions for role %q: %w", account.Role, err)
	}

	perms := make([]string, 0, len(rolePerms)+len(account.Grants))
	perms = append(perms, rolePerms...)
	perms = append(perms, account.Grants...)
	slices.Sort(perms)
	return slices.Compact(perms), nil
}

func (a *Authorizer) entitled(data *AuthData, workspaceID string) bool {
	return data.Account.EntitledTo(workspaceID) || slices.Contains(data.Permissions, PermissionAllWorkspaces)
}

// Refresh extends the session. It is meant to run in the
// background after a Granted result with NeedsRefresh set.
func (a *Authorizer) Refresh(ctx context.Context, sessionID string) error {
	_, err := a.sessions.Refresh(ctx, sessionID, a.config.SessionTTL)
	metrics.RecordSessionRefresh(err)
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	return nil
}

// Login opens a session for an account whose credentials the caller has
// already checked. It returns the signed token and the new session.
func (a *Authorizer) Login(ctx context.Context, account *accounts.Account, meta SessionMeta) (string, *Session, error) {
	session := NewSession(account.UserID, account.ID, a.config.SessionTTL)
	session.IPAddress = meta.IPAddress
	session.UserAgent = meta.UserAgent

	if err := a.sessions.Create(ctx, session); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	token, err := a.tokens.Issue(session)
	if err != nil {
		_ = a.sessions.Delete(ctx, session.ID)
		return "", nil, err
	}
	metrics.SessionsCreated.Inc()
	return token, session, nil
}

// Logout deletes the session named by token. Unusable tokens are ignored.
func (a *Authorizer) Logout(ctx context.Context, token string) error {
	sessionID, err := a.tokens.Verify(token)
	if err != nil {
		return nil
	}
	if err := a.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SessionMeta carries request details recorded on a new session.
type SessionMeta struct {
	IPAddress string
	UserAgent string
}

// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tomtom215/gatehouse/internal/audit"
	"github.com/tomtom215/gatehouse/internal/auth"
	"github.com/tomtom215/gatehouse/internal/config"
	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/middleware"
	"github.com/tomtom215/gatehouse/internal/routes"
)

// UIOptions are the redirect targets used by WithUIAuth. Paths are
// locale-free; the request's locale prefix is added when redirecting.
type UIOptions struct {
	LoginPath       string
	SuspendedPath   string
	VerifyEmailPath string
	VerifyPhonePath string
	ForbiddenPath   string
	ReturnURLParam  string

	// InlineForbidden renders a 403 fragment in place instead of redirecting.
	InlineForbidden bool
}

// DefaultUIOptions returns the built-in page locations.
func DefaultUIOptions() UIOptions {
	return UIOptions{
		LoginPath:       "/login",
		SuspendedPath:   "/account/suspended",
		VerifyEmailPath: "/dashboard/verify-email",
		VerifyPhonePath: "/dashboard/verify-phone",
		ForbiddenPath:   "/forbidden",
		ReturnURLParam:  "returnUrl",
	}
}

// UIOptionsFromConfig builds UIOptions from the ui config section.
func UIOptionsFromConfig(cfg config.UIConfig) UIOptions {
	return UIOptions{
		LoginPath:       cfg.LoginPath,
		SuspendedPath:   cfg.SuspendedPath,
		VerifyEmailPath: cfg.VerifyEmailPath,
		VerifyPhonePath: cfg.VerifyPhonePath,
		ForbiddenPath:   cfg.ForbiddenPath,
		ReturnURLParam:  cfg.ReturnURLParam,
		InlineForbidden: cfg.InlineForbidden,
	}
}

// PageAction is what WithUIAuth does with a page request.
type PageAction int

const (
	// PageRender renders the page.
	PageRender PageAction = iota
	// PageRedirect answers 302 to Location.
	PageRedirect
	// PageForbidden renders the inline 403 fragment.
	PageForbidden
	// PageNotFound renders the 404 page.
	PageNotFound
)

// PageRequest describes the page being requested.
type PageRequest struct {
	// URI is the original path and query, used for returnUrl.
	URI string

	// Path is the locale-stripped path.
	Path string

	// Locale is the stripped prefix, kept on redirects.
	Locale string
}

// PageDecision is the outcome of DecidePage.
type PageDecision struct {
	Action   PageAction
	Location string

	// Data is the caller to render for; nil for guests.
	Data *auth.AuthData
	Ctx  auth.AuthContext
}

// DecidePage maps an authorization verdict to a page outcome.
//
// Credential failures go to login with the original URI as returnUrl.
// A suspended account goes to the suspended page, and a missing contact
// verification to its verification page; in both cases the page renders
// when it is already the current page, so the redirect cannot loop.
// Permission and workspace failures give the forbidden page or fragment.
func DecidePage(result auth.Result, current PageRequest, opts UIOptions) PageDecision {
	var denied auth.Denied
	switch v := result.(type) {
	case auth.Granted:
		return PageDecision{Action: PageRender, Data: v.Data, Ctx: v.Ctx}
	case auth.Denied:
		denied = v
	default:
		return PageDecision{Action: PageNotFound, Ctx: auth.GuestContext()}
	}

	redirect := func(target string) PageDecision {
		return PageDecision{Action: PageRedirect, Location: localized(current.Locale, target), Ctx: denied.Ctx}
	}
	renderHere := PageDecision{Action: PageRender, Data: denied.Data, Ctx: denied.Ctx}

	switch code := denied.Code; {
	case code.IsCredentialFailure():
		return redirect(loginLocation(opts, current.URI))
	case code == auth.CodeAccountSuspended:
		if samePath(current.Path, opts.SuspendedPath) {
			return renderHere
		}
		return redirect(opts.SuspendedPath)
	case code.IsVerificationFailure():
		target := opts.VerifyEmailPath
		if code == auth.CodePhoneNotVerified {
			target = opts.VerifyPhonePath
		}
		if samePath(current.Path, target) {
			return renderHere
		}
		return redirect(target)
	case code == auth.CodeNotFound:
		return PageDecision{Action: PageNotFound, Ctx: denied.Ctx}
	default:
		if opts.InlineForbidden {
			return PageDecision{Action: PageForbidden, Data: denied.Data, Ctx: denied.Ctx}
		}
		return redirect(opts.ForbiddenPath)
	}
}

func loginLocation(opts UIOptions, returnURI string) string {
	if returnURI == "" || opts.ReturnURLParam == "" {
		return opts.LoginPath
	}
	return opts.LoginPath + "?" + url.Values{opts.ReturnURLParam: {returnURI}}.Encode()
}

func localized(locale, path string) string {
	if locale == "" {
		return path
	}
	return "/" + locale + path
}

func samePath(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

// PageProps is what a page renders from.
type PageProps struct {
	// ClientUser is the browser-safe projection of the caller; nil for guests.
	ClientUser *auth.ClientUser

	// AuthData is the server-side record behind ClientUser. It is also set
	// when a verification or suspended page renders for a denied caller.
	// Never send it to the browser. nil for guests.
	AuthData *auth.AuthData

	Auth      auth.AuthContext
	Modules   *Modules
	RequestID string

	Match  routes.Match
	Locale string
}

// PageFunc renders a page.
type PageFunc func(w http.ResponseWriter, r *http.Request, props *PageProps) error

// WithUIAuth wraps a page in route validation and authorization, applying
// DecidePage to the verdict. WithPermissions overrides the route's
// permissions; WithInlineForbidden opts the page into the 403 fragment.
func (p *Pipeline) WithUIAuth(page PageFunc, opts ...HandlerOption) http.Handler {
	var o handlerOptions
	for _, opt := range opts {
		opt(&o)
	}
	ui := p.ui
	if o.inlineForbidden {
		ui.InlineForbidden = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, requestID, match := p.begin(w, r)
		logger := logging.LoggerFromContext(r.Context())

		if !match.Valid {
			renderStatusPage(w, http.StatusNotFound, "Page not found", requestID)
			return
		}

		result, err := p.authorize(r, match, o.permissions)
		if err != nil {
			logger.Error().Err(err).Msg("Authorization failed")
			renderStatusPage(w, http.StatusInternalServerError, "Something went wrong", requestID)
			return
		}
		if d, ok := result.(auth.Denied); ok {
			p.logDenied(r, match, d)
			p.clearStaleCookie(w, r, d.Code)
		}

		decision := DecidePage(result, PageRequest{
			URI:    r.URL.RequestURI(),
			Path:   match.Path,
			Locale: match.Locale,
		}, ui)

		switch decision.Action {
		case PageRedirect:
			http.Redirect(w, r, decision.Location, http.StatusFound)
		case PageForbidden:
			renderForbiddenFragment(w, requestID)
		case PageNotFound:
			renderStatusPage(w, http.StatusNotFound, "Page not found", requestID)
		default:
			props := &PageProps{
				ClientUser: decision.Data.ClientUser(),
				AuthData:   decision.Data,
				Auth:       decision.Ctx,
				Modules:    p.modules,
				RequestID:  requestID,
				Match:      match,
				Locale:     match.Locale,
			}
			rec := &middleware.StatusRecorder{ResponseWriter: w, Status: http.StatusOK}
			if err := renderSafely(rec, r, page, props); err != nil {
				logger.Error().Err(err).Msg("Page render failed")
				if !rec.Written() {
					renderStatusPage(w, http.StatusInternalServerError, "Something went wrong", requestID)
				}
			}
		}

		if g, ok := result.(auth.Granted); ok && g.NeedsRefresh && g.Data != nil {
			p.safely(logger, "session refresh", func() {
				p.scheduleRefresh(r.Context(), g.Data.Session.ID)
			})
		}
	})
}

func renderSafely(w http.ResponseWriter, r *http.Request, page PageFunc, props *PageProps) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page panic: %v", rec)
		}
	}()
	return page(w, r, props)
}

// clientIP is used by handlers that record the caller's address.
func clientIP(r *http.Request) string {
	return audit.SourceFromRequest(r).IPAddress
}

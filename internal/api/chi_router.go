// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/gatehouse/internal/middleware"
)

// Router wires handlers, the pipeline and the chi middleware together.
type Router struct {
	handler       *Handler
	pipeline      *Pipeline
	chiMiddleware *ChiMiddleware
	page          PageFunc
}

// NewRouter creates a router. A nil page renders RenderPage.
func NewRouter(pipeline *Pipeline, handler *Handler, chiMW *ChiMiddleware, page PageFunc) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	if page == nil {
		page = RenderPage
	}
	return &Router{
		handler:       handler,
		pipeline:      pipeline,
		chiMiddleware: chiMW,
		page:          page,
	}
}

// unimplemented serves table entries that have no chi handler, such as
// routes added from a YAML file. They still authorize before answering.
func unimplemented(w http.ResponseWriter, _ *http.Request, _ *Context) error {
	notFound(w)
	return nil
}

// SetupChi builds the HTTP handler.
//
// Chi dispatches to handlers; the pipeline independently validates every
// request against the route table, so a chi route missing from the table
// still answers 404.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	api := router.pipeline.WithAPIHandler

	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	// ========================
	// Operational Endpoints (outside the pipeline)
	// ========================
	r.Get("/healthz", h.HealthLive)
	r.Get("/readyz", h.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// API
	// ========================
	r.Route("/api", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())

		// Set before the sub-routes are mounted so they inherit it.
		fallback := api(unimplemented)
		r.NotFound(fallback.ServeHTTP)
		r.MethodNotAllowed(fallback.ServeHTTP)

		r.Route("/auth", func(r chi.Router) {
			r.With(router.chiMiddleware.RateLimitLogin()).Method(http.MethodPost, "/login", api(h.Login))
			r.Method(http.MethodPost, "/logout", api(h.Logout))
			r.Method(http.MethodGet, "/me", api(h.Me))
		})

		r.Method(http.MethodGet, "/listings", api(h.ListPublicListings))
		r.Method(http.MethodGet, "/listings/{listingId}", api(h.GetPublicListing))

		r.Route("/workspaces/provider", func(r chi.Router) {
			r.Method(http.MethodGet, "/questions", api(h.ListQuestions))
			r.Method(http.MethodPost, "/questions", api(h.CreateQuestion))
			r.Method(http.MethodPost, "/questions/publish/{questionId}", api(h.PublishQuestion))
			r.Method(http.MethodDelete, "/questions/publish/{questionId}", api(h.PublishQuestion))
			r.Method(http.MethodPatch, "/topics/update/{topicId}", api(h.UpdateTopic))
			r.Method(http.MethodPut, "/topics/update/{topicId}", api(h.UpdateTopic))
		})

		r.Route("/workspaces/{workspaceId}", func(r chi.Router) {
			r.Method(http.MethodGet, "/listings", api(h.ListWorkspaceListings))
			r.Method(http.MethodPost, "/listings", api(h.CreateListing))
			r.Method(http.MethodPatch, "/listings/{listingId}", api(h.UpdateListing))
			r.Method(http.MethodDelete, "/listings/{listingId}", api(h.DeleteListing))
			r.Method(http.MethodPost, "/payouts", api(h.CreatePayout))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Method(http.MethodGet, "/audit", api(h.AuditEvents))
			r.Method(http.MethodPost, "/accounts/{accountId}/suspend", api(h.SuspendAccount))
		})
	})

	// ========================
	// Pages
	// ========================
	fragments := router.pipeline.WithUIAuth(router.page, WithInlineForbidden())
	r.Handle("/fragments/*", fragments)
	r.Handle("/{locale:[a-z][a-z]}/fragments/*", fragments)

	pages := router.pipeline.WithUIAuth(router.page)
	r.Handle("/", pages)
	r.Handle("/*", pages)

	return r
}

// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

/*
Package middleware provides infrastructure middleware shared by every route.

Key Components:

  - RequestID: binds an X-Request-Id to the request context and response.
    Inbound ids are echoed unchanged; otherwise one of the form
    req_<base36 unix millis>_<8 random base36 chars> is generated.
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by chi route pattern.
  - StatusRecorder: a ResponseWriter wrapper that remembers the status code.

The authorization pipeline itself lives in package api and reuses
ResolveRequestID, so handlers wrapped directly (without this middleware)
still produce correlated responses.

Middleware Stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(chiMiddleware.CORS())
	r.Use(chiMiddleware.RateLimit())
*/
package middleware

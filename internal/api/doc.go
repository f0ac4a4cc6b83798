// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

/*
Package api provides the HTTP layer: the authorization pipeline that wraps
every API handler and page, the endpoint handlers, and the chi router.

Key Components:

  - Pipeline.WithAPIHandler: request id, route validation, authorization,
    handler, action audit, session rollover and completion log, in that
    order. Denials and failures are answered with {"code","message"}.
  - Pipeline.WithUIAuth: the same validation and authorization for pages,
    with DecidePage turning a denial into a login, suspended, verification
    or forbidden response.
  - Handler: login/logout/me, the admin audit query and account suspension,
    demo workspace resources, and health probes.
  - Router: chi routes, CORS, rate limits and security headers.

Status Codes:

	UNAUTHORIZED, TOKEN_EXPIRED, SESSION_INVALID     401
	ACCOUNT_SUSPENDED, *_NOT_VERIFIED,
	PERMISSION_DENIED, WORKSPACE_MISMATCH            403
	NOT_FOUND                                        404
	INTERNAL_ERROR                                   500

Fail Closed:

Chi only dispatches. The pipeline checks every request against the route
table before reading credentials, so a handler mounted in chi but missing
from the table is unreachable and answers 404.

Background Work:

Audit events go to the audit logger's buffer and session refreshes to the
task runner. Neither is awaited and neither can change a response; a
panicking or failing sink is logged and ignored.

Usage Example:

	pipeline := api.NewPipeline(table, modules)
	handler := api.NewHandler(modules)
	router := api.NewRouter(pipeline, handler, api.NewChiMiddleware(mwConfig), nil)
	srv := &http.Server{Handler: router.SetupChi()}
*/
package api

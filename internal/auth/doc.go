// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

/*
Package auth resolves the caller of a request and decides whether the
matched route may run for them.

# Overview

The Authorizer turns a session credential into a verdict:

	token -> TokenSigner.Parse -> SessionStore.Get -> accounts.Store -> gates -> Result

Verdicts are values, never errors. A Result is either Granted, carrying the
AuthContext and AuthData the handler runs with, or Denied, carrying a Code
that callers map to a status or a redirect. Only infrastructure failures
(store unreachable, deadline exceeded) are returned as Go errors.

# Gate Order

Checks short-circuit in a fixed order so the most severe condition always
wins:

 1. credential present and valid (UNAUTHORIZED, TOKEN_EXPIRED, SESSION_INVALID)
 2. account suspended (ACCOUNT_SUSPENDED)
 3. email verified, when the route asks (EMAIL_NOT_VERIFIED)
 4. phone verified, when the route asks (PHONE_NOT_VERIFIED)
 5. permission superset (PERMISSION_DENIED)
 6. workspace entitlement (WORKSPACE_MISMATCH)

# Guests

Routes with AuthRequired=false admit callers without a credential as the
guest identity (UserID "guest", AccountID "0", no permissions). A stale or
tampered credential on such a route also degrades to guest rather than
failing the page.

# Sessions

Sessions live server-side in a SessionStore (memory, BadgerDB or Redis).
The credential is an HS256 token carrying only the session id and an
absolute expiry; the server-side record carries the sliding idle expiry.
Granted results report NeedsRefresh once the session has been idle for the
configured fraction of its TTL, and the pipeline extends it in the
background.
*/
package auth

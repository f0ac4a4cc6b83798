// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

/*
Package services provides suture.Service wrappers for Gatehouse components.

Each wrapper translates a component lifecycle into suture's context-aware
Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts the ListenAndServe pattern to Serve

Runners (RunnerService):
  - Wraps any component with RunWithContext(ctx) error
  - Used for the audit batch writer and the background task runner,
    both of which drain their queues before returning

Session Cleanup (SessionCleanupService):
  - Periodically removes expired sessions from the configured store

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# Service Identification

All services implement fmt.Stringer; suture uses the name in its events:

	INFO audit-writer: starting
	ERROR session-cleanup: restarting after failure
*/
package services

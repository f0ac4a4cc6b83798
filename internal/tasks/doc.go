// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package tasks runs fire-and-forget background work, such as sliding a
// session's expiry after a request, on a bounded worker pool.
//
// Usage:
//
//	runner := tasks.NewRunner(tasks.Config{Workers: 4, QueueSize: 1024})
//	tree.AddCoreService(services.NewTaskRunnerService(runner))
//
//	runner.Go(r.Context(), "session_refresh", func(ctx context.Context) error {
//	    return authorizer.Refresh(ctx, sessionID)
//	})
//
// Each task gets its own timeout. A task never sees the submitting request's
// cancellation, only its values.
package tasks

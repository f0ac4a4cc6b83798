// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

/*
Package supervisor provides process supervision for Gatehouse using suture v4.

The tree keeps the HTTP server isolated from the workers that run beside it:

	RootSupervisor ("gatehouse")
	├── BackgroundSupervisor ("background-layer")
	│   ├── RunnerService ("audit-writer")
	│   ├── RunnerService ("task-runner")
	│   └── SessionCleanupService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashing background worker is restarted with backoff and never takes the
API layer down with it. Authorization decisions do not depend on any
background service: audit events are buffered and dropped when the writer
is unavailable, and deferred session refreshes are skipped.

Supervisor events (start, stop, failure, backoff) are logged through
sutureslog, which takes an *slog.Logger. main wires it to zerolog with
logging.NewSlogHandler.

# Usage

	tree, err := supervisor.NewSupervisorTree(slog.New(logging.NewSlogHandler()),
	    supervisor.TreeConfigFromConfig(cfg))
	if err != nil {
	    return err
	}
	tree.AddBackgroundService(services.NewAuditWriterService(auditLogger))
	tree.AddBackgroundService(services.NewTaskRunnerService(runner))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := tree.ServeBackground(ctx)

# Shutdown

Cancelling the context stops every service. Each gets ShutdownTimeout to
return; the audit writer and task runner use part of it to drain. Services
still running afterwards are listed by UnstoppedServiceReport.
*/
package supervisor

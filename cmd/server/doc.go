// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

/*
Package main is the entry point for the Gatehouse server.

Gatehouse authorizes every request of a multi-tenant marketplace against a
declarative route table. A request is matched to a route, its session token
is verified, the account behind it is checked (suspension, verified email
and phone, role permissions, workspace entitlement) and only then does the
handler run. Unknown routes answer 404.

# Application Architecture

	RootSupervisor ("gatehouse")
	├── BackgroundSupervisor ("background-layer")
	│   ├── audit-writer     (batched action log, drains on shutdown)
	│   ├── task-runner      (deferred session refreshes)
	│   └── session-cleanup  (expired session pruning)
	└── APISupervisor ("api-layer")
	    └── http-server      (chi router + authorization pipeline)

Component initialization order:

 1. Configuration: Koanf v2 (defaults, YAML file, environment)
 2. Logging: zerolog with JSON or console output
 3. Session store: memory, BadgerDB or Redis
 4. Account store: memory (optionally seeded) or PostgreSQL, behind a circuit breaker
 5. Role permissions: Casbin model and policy
 6. Authorizer: HS256 session tokens plus server-side sessions
 7. Audit log: memory or DuckDB
 8. Route table: built-in routes plus an optional YAML file
 9. Supervisor tree and HTTP server

# Configuration

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	HTTP_PORT=8080
	ENVIRONMENT=production          # development exposes error details
	SESSION_SECRET=<32+ chars>      # required in production
	SESSION_STORE=redis             # memory, badger, redis
	REDIS_ADDR=redis:6379
	DATABASE_DRIVER=postgres        # memory, postgres
	DATABASE_URL=postgres://gatehouse@db/gatehouse
	AUDIT_STORE=duckdb              # memory, duckdb
	AUDIT_PATH=/data/audit.duckdb
	ROUTES_PATH=/etc/gatehouse/routes.yaml
	LOG_LEVEL=info
	LOG_FORMAT=json

Local development with demo accounts (password "gatehouse-demo"):

	ENVIRONMENT=development SEED_DEMO_DATA=true ./gatehouse

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server stops
accepting connections and lets in-flight requests finish, the audit writer
flushes its buffer and the task runner drains its queue, all within
SHUTDOWN_TIMEOUT.
*/
package main

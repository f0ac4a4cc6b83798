// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

/*
Package metrics provides Prometheus metrics for the request pipeline.

All collectors are registered with the default registry through promauto and
exposed at /metrics by promhttp.

# Available Metrics

API Metrics:
  - api_requests_total: requests by method, route pattern and status (counter)
  - api_request_duration_seconds: latency by method and route pattern (histogram)
  - api_active_requests: in-flight requests (gauge)

Authorization Metrics:
  - authorization_outcomes_total: decisions by code (counter)
    Labels: code ("granted", "guest", UNAUTHORIZED, PERMISSION_DENIED, ...)
  - authorization_duration_seconds: session resolution plus gate checks (histogram)

Session Metrics:
  - session_refreshes_total: background TTL refreshes by result (counter)
  - sessions_created_total, sessions_cleaned_up_total (counters)

Audit Metrics:
  - audit_events_written_total (counter)
  - audit_events_dropped_total: by reason, buffer_full or write_failed (counter)

Background Task Metrics:
  - background_tasks_submitted_total, background_tasks_dropped_total (counters)
  - background_tasks_failed_total: by task and reason (counter)
  - background_task_queue_depth (gauge)

Circuit Breaker Metrics:
  - circuit_breaker_state: 0=closed, 1=half-open, 2=open (gauge)
  - circuit_breaker_requests_total: by result (counter)
  - circuit_breaker_state_transitions_total (counter)

Route labels always use the configured pattern, never the raw path, so
cardinality stays bounded by the route table.
*/
package metrics

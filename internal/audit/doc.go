// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package audit records action logs for state-changing requests.
//
// # Architecture
//
// The audit system uses a producer-consumer pattern:
//
//	Logger.Log() -> Event Buffer (chan) -> RunWithContext -> Store.SaveBatch
//	                     |                        |
//	                 Non-blocking           Supervised goroutine
//
// Log never blocks the request path. When the buffer is full the event is
// dropped and counted under audit_events_dropped_total with reason
// "buffer_full". A failing or panicking store drops the whole batch with
// reason "write_failed". Neither case is visible to the HTTP client.
//
// # Payloads
//
// Request bodies are passed through SanitizeJSON before they are attached
// to an event. Keys matching the denylist (password, token, secret, card and
// so on, case-insensitive substring match) are replaced with "[REDACTED]".
//
// # Action names
//
// ActionName derives labels such as "publish_question" or "create_listing"
// from the request method and path.
//
// # Storage
//
// MemoryStore keeps a bounded ring of recent events. DuckDBStore persists
// events in an audit_events table and supports the same filters. Both can
// be exported as JSON or CEF for SIEM ingestion.
package audit

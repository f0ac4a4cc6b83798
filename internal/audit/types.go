// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package audit

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// ErrEventNotFound is returned by Get for unknown ids.
var ErrEventNotFound = errors.New("audit event not found")

// EventType categorizes audit events.
type EventType string

const (
	// EventTypeAction is a state-changing request on a route that collects
	// action logs.
	EventTypeAction EventType = "action"

	// Session events
	EventTypeLogin        EventType = "auth.login"
	EventTypeLoginFailure EventType = "auth.login_failure"
	EventTypeLogout       EventType = "auth.logout"

	// Administrative events
	EventTypeAdminAction EventType = "admin.action"
)

// Outcome indicates whether an action succeeded or failed.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// OutcomeForStatus classifies an HTTP status.
func OutcomeForStatus(status int) Outcome {
	if status >= 200 && status < 400 {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// Event is one append-only audit record.
type Event struct {
	// ID is a unique identifier for this event.
	ID string `json:"id"`

	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	Type    EventType `json:"type"`
	Outcome Outcome   `json:"outcome"`

	// Actor who performed the action.
	Actor Actor `json:"actor"`

	// Source of the request.
	Source Source `json:"source"`

	// Action is the derived "<verb>_<resource>" label, e.g. publish_question.
	Action string `json:"action"`

	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`

	// Route is the normalized path, with ids collapsed to :id.
	Route string `json:"route,omitempty"`

	Status     int   `json:"status,omitempty"`
	DurationMs int64 `json:"duration_ms,omitempty"`

	// Payload is the redacted request body, if any.
	Payload json.RawMessage `json:"payload,omitempty"`

	// RequestID from the originating HTTP request.
	RequestID string `json:"request_id,omitempty"`
}

// Actor represents who performed an action.
type Actor struct {
	UserID      string `json:"user_id"`
	AccountID   string `json:"account_id"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

// Source represents where a request originated.
type Source struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Store defines the interface for audit event persistence.
// SaveBatch is append-only: either every event in the batch is stored or
// an error is returned.
type Store interface {
	// SaveBatch persists events.
	SaveBatch(ctx context.Context, events []Event) error

	// Get retrieves an event by ID.
	Get(ctx context.Context, id string) (*Event, error)

	// Query retrieves events matching the filter, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter QueryFilter) (int64, error)

	// Delete removes events older than the retention cutoff.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

// QueryFilter defines filtering options for audit queries.
type QueryFilter struct {
	Types       []EventType `json:"types,omitempty"`
	Outcomes    []Outcome   `json:"outcomes,omitempty"`
	AccountID   string      `json:"account_id,omitempty"`
	UserID      string      `json:"user_id,omitempty"`
	WorkspaceID string      `json:"workspace_id,omitempty"`
	Action      string      `json:"action,omitempty"`
	RequestID   string      `json:"request_id,omitempty"`

	// StartTime is the beginning of the time range.
	StartTime *time.Time `json:"start_time,omitempty"`

	// EndTime is the end of the time range.
	EndTime *time.Time `json:"end_time,omitempty"`

	// Limit is the maximum number of results.
	Limit int `json:"limit,omitempty"`

	// Offset for pagination.
	Offset int `json:"offset,omitempty"`
}

// DefaultQueryFilter returns a sensible default filter.
func DefaultQueryFilter() QueryFilter {
	return QueryFilter{Limit: 100}
}

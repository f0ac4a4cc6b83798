// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver
	"github.com/goccy/go-json"

	"github.com/tomtom215/gatehouse/internal/logging"
)

// DuckDBStore implements Store using DuckDB for persistent storage.
type DuckDBStore struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ Store = (*DuckDBStore)(nil)

// OpenDuckDB opens (or creates) a DuckDB database file. An empty path opens
// an in-memory database.
func OpenDuckDB(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb %q: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb %q: %w", path, err)
	}
	return db, nil
}

// NewDuckDBStore creates a new DuckDB-backed audit store.
// The caller is responsible for ensuring the audit_events table exists.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// buildSliceCondition creates a SQL IN condition for a slice of string values.
func buildSliceCondition[T ~string](column string, values []T, args *[]any) string {
	if len(values) == 0 {
		return ""
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		*args = append(*args, string(v))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

// CreateTable creates the audit_events table if it doesn't exist.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS audit_events (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMPTZ NOT NULL,
			type TEXT NOT NULL,
			outcome TEXT NOT NULL,

			-- Actor information
			user_id TEXT,
			account_id TEXT,
			workspace_id TEXT,
			session_id TEXT,

			-- Source information
			source_ip TEXT,
			source_user_agent TEXT,

			-- Request details
			action TEXT NOT NULL,
			method TEXT,
			path TEXT,
			route TEXT,
			status INTEGER,
			duration_ms BIGINT,
			payload JSON,
			request_id TEXT,

			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_audit_type ON audit_events(type);
		CREATE INDEX IF NOT EXISTS idx_audit_account_id ON audit_events(account_id);
		CREATE INDEX IF NOT EXISTS idx_audit_workspace_id ON audit_events(workspace_id);
		CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_events(action);
		CREATE INDEX IF NOT EXISTS idx_audit_request_id ON audit_events(request_id);
	`

	for _, stmt := range strings.Split(query, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("Audit events table created/verified")
	return nil
}

const insertEventQuery = `
	INSERT INTO audit_events (
		id, timestamp, type, outcome,
		user_id, account_id, workspace_id, session_id,
		source_ip, source_user_agent,
		action, method, path, route, status, duration_ms, payload, request_id,
		created_at
	) VALUES (
		?, ?, ?, ?,
		?, ?, ?, ?,
		?, ?,
		?, ?, ?, ?, ?, ?, ?, ?,
		?
	)
`

// SaveBatch persists events in a single transaction.
func (s *DuckDBStore) SaveBatch(ctx context.Context, events []Event) (err error) {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertEventQuery)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC()
	for i := range events {
		if _, err = stmt.ExecContext(ctx, eventParams(&events[i], createdAt)...); err != nil {
			return fmt.Errorf("failed to save audit event %s: %w", events[i].ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit audit batch: %w", err)
	}
	return nil
}

func eventParams(event *Event, createdAt time.Time) []any {
	var payload *string
	if len(event.Payload) > 0 {
		p := string(event.Payload)
		payload = &p
	}
	return []any{
		event.ID,
		event.Timestamp,
		string(event.Type),
		string(event.Outcome),
		event.Actor.UserID,
		event.Actor.AccountID,
		event.Actor.WorkspaceID,
		event.Actor.SessionID,
		event.Source.IPAddress,
		event.Source.UserAgent,
		event.Action,
		event.Method,
		event.Path,
		event.Route,
		event.Status,
		event.DurationMs,
		payload,
		event.RequestID,
		createdAt,
	}
}

// JSON columns are cast to VARCHAR for scanning.
const selectEventColumns = `
	SELECT
		id, timestamp, type, outcome,
		user_id, account_id, workspace_id, session_id,
		source_ip, source_user_agent,
		action, method, path, route, status, duration_ms,
		CAST(payload AS VARCHAR) AS payload,
		request_id
	FROM audit_events
`

// Get retrieves an event by ID.
func (s *DuckDBStore) Get(ctx context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, selectEventColumns+" WHERE id = ?", id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}
		return nil, fmt.Errorf("failed to get audit event: %w", err)
	}
	return event, nil
}

// Query retrieves events matching the filter, newest first.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildQuery(filter, false)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			logging.Warn().Err(err).Msg("Failed to scan audit event row")
			continue
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

// Count returns the number of events matching the filter.
func (s *DuckDBStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args := buildQuery(filter, true)
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return count, nil
}

// Delete removes events older than the given time.
func (s *DuckDBStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `DELETE FROM audit_events WHERE timestamp < ?`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit events: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	if count > 0 {
		logging.Info().Int64("deleted", count).Time("older_than", olderThan).Msg("Deleted old audit events")
	}
	return count, nil
}

// buildQuery constructs the SQL query based on the filter.
func buildQuery(filter QueryFilter, countOnly bool) (string, []any) {
	conditions, args := buildFilterConditions(filter)

	query := selectEventColumns
	if countOnly {
		query = "SELECT COUNT(*) FROM audit_events"
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if countOnly {
		return query, args
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	return query, args
}

// buildFilterConditions builds WHERE clause conditions from a QueryFilter.
func buildFilterConditions(filter QueryFilter) ([]string, []any) {
	var args []any
	var conditions []string

	if cond := buildSliceCondition("type", filter.Types, &args); cond != "" {
		conditions = append(conditions, cond)
	}
	if cond := buildSliceCondition("outcome", filter.Outcomes, &args); cond != "" {
		conditions = append(conditions, cond)
	}

	conditions, args = appendStringCondition(conditions, args, "account_id", filter.AccountID)
	conditions, args = appendStringCondition(conditions, args, "user_id", filter.UserID)
	conditions, args = appendStringCondition(conditions, args, "workspace_id", filter.WorkspaceID)
	conditions, args = appendStringCondition(conditions, args, "action", filter.Action)
	conditions, args = appendStringCondition(conditions, args, "request_id", filter.RequestID)

	if filter.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *filter.StartTime)
	}
	if filter.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, *filter.EndTime)
	}
	return conditions, args
}

// appendStringCondition adds a string equality condition if value is non-empty.
func appendStringCondition(conditions []string, args []any, column, value string) ([]string, []any) {
	if value != "" {
		conditions = append(conditions, column+" = ?")
		args = append(args, value)
	}
	return conditions, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		event                                  Event
		eventType, outcome                     string
		userID, accountID, workspaceID, sessID sql.NullString
		ip, userAgent                          sql.NullString
		method, path, route, payload, reqID    sql.NullString
		status, durationMs                     sql.NullInt64
	)
	err := row.Scan(
		&event.ID, &event.Timestamp, &eventType, &outcome,
		&userID, &accountID, &workspaceID, &sessID,
		&ip, &userAgent,
		&event.Action, &method, &path, &route, &status, &durationMs,
		&payload, &reqID,
	)
	if err != nil {
		return nil, err
	}

	event.Type = EventType(eventType)
	event.Outcome = Outcome(outcome)
	event.Actor = Actor{
		UserID:      userID.String,
		AccountID:   accountID.String,
		WorkspaceID: workspaceID.String,
		SessionID:   sessID.String,
	}
	event.Source = Source{IPAddress: ip.String, UserAgent: userAgent.String}
	event.Method = method.String
	event.Path = path.String
	event.Route = route.String
	event.Status = int(status.Int64)
	event.DurationMs = durationMs.Int64
	event.RequestID = reqID.String
	if payload.Valid && payload.String != "" {
		event.Payload = json.RawMessage(payload.String)
	}
	return &event, nil
}

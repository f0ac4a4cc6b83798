// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goccy/go-json"
)

func seedEvents(base time.Time) []Event {
	return []Event{
		{ID: "e1", Timestamp: base, Type: EventTypeAction, Outcome: OutcomeSuccess,
			Actor: Actor{UserID: "u1", AccountID: "a1", WorkspaceID: "w1"}, Action: "create_listing", RequestID: "r1"},
		{ID: "e2", Timestamp: base.Add(time.Minute), Type: EventTypeAction, Outcome: OutcomeFailure,
			Actor: Actor{UserID: "u2", AccountID: "a2", WorkspaceID: "w2"}, Action: "publish_question", RequestID: "r2"},
		{ID: "e3", Timestamp: base.Add(2 * time.Minute), Type: EventTypeLogin, Outcome: OutcomeSuccess,
			Actor: Actor{UserID: "u1", AccountID: "a1"}, Action: "login"},
	}
}

func TestMemoryStore_QueryFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := NewMemoryStore(100)
	if err := store.SaveBatch(ctx, seedEvents(base)); err != nil {
		t.Fatal(err)
	}

	start := base.Add(30 * time.Second)
	tests := []struct {
		name   string
		filter QueryFilter
		want   []string
	}{
		{"all newest first", QueryFilter{}, []string{"e3", "e2", "e1"}},
		{"by account", QueryFilter{AccountID: "a1"}, []string{"e3", "e1"}},
		{"by type", QueryFilter{Types: []EventType{EventTypeAction}}, []string{"e2", "e1"}},
		{"by outcome", QueryFilter{Outcomes: []Outcome{OutcomeFailure}}, []string{"e2"}},
		{"by workspace", QueryFilter{WorkspaceID: "w1"}, []string{"e1"}},
		{"by action", QueryFilter{Action: "login"}, []string{"e3"}},
		{"by request", QueryFilter{RequestID: "r2"}, []string{"e2"}},
		{"since", QueryFilter{StartTime: &start}, []string{"e3", "e2"}},
		{"limit", QueryFilter{Limit: 1}, []string{"e3"}},
		{"offset", QueryFilter{Offset: 1, Limit: 1}, []string{"e2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			var ids []string
			for _, e := range events {
				ids = append(ids, e.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Query() = %v, want %v", ids, tt.want)
			}

			count, err := store.Count(ctx, QueryFilter{
				Types: tt.filter.Types, Outcomes: tt.filter.Outcomes, AccountID: tt.filter.AccountID,
				WorkspaceID: tt.filter.WorkspaceID, Action: tt.filter.Action, RequestID: tt.filter.RequestID,
				StartTime: tt.filter.StartTime,
			})
			if err != nil {
				t.Fatal(err)
			}
			if tt.filter.Limit == 0 && count != int64(len(tt.want)) {
				t.Errorf("Count() = %d, want %d", count, len(tt.want))
			}
		})
	}
}

func TestMemoryStore_GetAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	store := NewMemoryStore(100)
	if err := store.SaveBatch(ctx, seedEvents(base)); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "e2")
	if err != nil || got.Action != "publish_question" {
		t.Fatalf("Get(e2) = %+v, %v", got, err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrEventNotFound", err)
	}

	deleted, err := store.Delete(ctx, base.Add(90*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 || store.Len() != 1 {
		t.Errorf("Delete() = %d, Len() = %d; want 2, 1", deleted, store.Len())
	}
}

func TestMemoryStore_Eviction(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore(10)
	batch := make([]Event, 25)
	for i := range batch {
		batch[i] = Event{ID: string(rune('a' + i)), Type: EventTypeAction}
	}
	if err := store.SaveBatch(context.Background(), batch); err != nil {
		t.Fatal(err)
	}
	if store.Len() > 10 {
		t.Errorf("Len() = %d, want <= 10", store.Len())
	}
	if _, err := store.Get(context.Background(), "a"); err == nil {
		t.Error("oldest event should have been evicted")
	}
	if _, err := store.Get(context.Background(), "y"); err != nil {
		t.Error("newest event should be kept")
	}
}

func TestExporters(t *testing.T) {
	t.Parallel()
	events := []Event{{
		ID:        "e1",
		Timestamp: time.Unix(1700000000, 0),
		Type:      EventTypeAdminAction,
		Outcome:   OutcomeSuccess,
		Actor:     Actor{UserID: "u1", AccountID: "a1"},
		Source:    Source{IPAddress: "203.0.113.7"},
		Action:    "suspend_account",
		Method:    "POST",
		Path:      "/api/admin/accounts/a=1/suspend",
		RequestID: "req|1",
	}}

	data, err := JSONExporter{}.Export(events)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []Event
	if err := json.Unmarshal(data, &decoded); err != nil || len(decoded) != 1 || decoded[0].ID != "e1" {
		t.Errorf("JSON export did not decode: %v", err)
	}

	cef := NewCEFExporter()
	out, err := cef.Export(events)
	if err != nil {
		t.Fatal(err)
	}
	line := string(out)
	if !strings.HasPrefix(line, "CEF:0|Gatehouse|RequestPipeline|1.0|admin.action|suspend_account|7|") {
		t.Errorf("unexpected CEF header: %s", line)
	}
	for _, want := range []string{"rt=1700000000000", "suid=u1", "src=203.0.113.7", `request=/api/admin/accounts/a\=1/suspend`, `externalId=req\|1`} {
		if !strings.Contains(line, want) {
			t.Errorf("CEF line missing %q: %s", want, line)
		}
	}
}

func TestDuckDBStore_SaveBatchRollsBackOnFailure(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO audit_events")
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	store := NewDuckDBStore(db)
	err = store.SaveBatch(context.Background(), seedEvents(time.Now())[:2])
	if err == nil || !strings.Contains(err.Error(), "e2") {
		t.Errorf("SaveBatch() error = %v, want failure naming e2", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDuckDBStore_SaveBatchCommits(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO audit_events")
	for range 3 {
		prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	if err := NewDuckDBStore(db).SaveBatch(context.Background(), seedEvents(time.Now())); err != nil {
		t.Fatalf("SaveBatch() error = %v", err)
	}
	if err := NewDuckDBStore(db).SaveBatch(context.Background(), nil); err != nil {
		t.Errorf("empty SaveBatch() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestBuildQuery(t *testing.T) {
	t.Parallel()
	start := time.Unix(0, 0)
	query, args := buildQuery(QueryFilter{
		Types:     []EventType{EventTypeAction, EventTypeLogin},
		AccountID: "a1",
		StartTime: &start,
		Limit:     10,
		Offset:    20,
	}, false)

	for _, want := range []string{"type IN (?,?)", "account_id = ?", "timestamp >= ?", "ORDER BY timestamp DESC", "LIMIT 10", "OFFSET 20"} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q:\n%s", want, query)
		}
	}
	if len(args) != 4 {
		t.Errorf("args = %v, want 4 values", args)
	}

	count, _ := buildQuery(QueryFilter{Limit: 10}, true)
	if count != "SELECT COUNT(*) FROM audit_events" {
		t.Errorf("count query = %q", count)
	}
}

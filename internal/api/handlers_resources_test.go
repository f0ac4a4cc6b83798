// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
)

func decodeItem(t *testing.T, rec *httptest.ResponseRecorder) Item {
	t.Helper()
	var item Item
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("failed to decode item %q: %v", rec.Body.String(), err)
	}
	return item
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) listResponse {
	t.Helper()
	var list listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list %q: %v", rec.Body.String(), err)
	}
	return list
}

func TestListings_Lifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})
	router := env.router()
	owner := env.login(t, "a-store-owner")
	editor := env.login(t, "a-store-editor")

	rec := serve(router, newRequest(http.MethodPost, "/api/workspaces/ws-store-1/listings", owner,
		`{"title":"Desk lamp","price_cents":2500}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	draft := decodeItem(t, rec)
	if draft.WorkspaceID != "ws-store-1" || draft.CreatedBy != "a-store-owner" || draft.Published {
		t.Errorf("created = %+v", draft)
	}

	// Drafts are visible in the workspace only.
	if list := decodeList(t, serve(router, newRequest(http.MethodGet, "/api/workspaces/ws-store-1/listings", editor, ""))); list.Total != 1 {
		t.Errorf("workspace listings = %d, want 1", list.Total)
	}
	if list := decodeList(t, serve(router, newRequest(http.MethodGet, "/api/listings", "", ""))); list.Total != 0 {
		t.Errorf("public listings = %d, want 0", list.Total)
	}
	rec = serve(router, newRequest(http.MethodGet, "/api/listings/"+draft.ID, "", ""))
	if rec.Code != http.StatusNotFound {
		t.Errorf("public draft: status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	// The editor may publish.
	rec = serve(router, newRequest(http.MethodPatch, "/api/workspaces/ws-store-1/listings/"+draft.ID, editor, `{"published":true}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := decodeItem(t, rec); !got.Published || got.Title != "Desk lamp" {
		t.Errorf("updated = %+v", got)
	}
	rec = serve(router, newRequest(http.MethodGet, "/api/listings/"+draft.ID, "", ""))
	if rec.Code != http.StatusOK {
		t.Errorf("public listing: status = %d, want %d", rec.Code, http.StatusOK)
	}

	// Another workspace cannot see it even with access to its own.
	rec = serve(router, newRequest(http.MethodPatch, "/api/workspaces/ws-store-2/listings/"+draft.ID, editor, `{"title":"x"}`))
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-workspace update: status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	// Only the owner may delete.
	rec = serve(router, newRequest(http.MethodDelete, "/api/workspaces/ws-store-1/listings/"+draft.ID, editor, ""))
	if rec.Code != http.StatusForbidden {
		t.Errorf("editor delete: status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	rec = serve(router, newRequest(http.MethodDelete, "/api/workspaces/ws-store-1/listings/"+draft.ID, owner, ""))
	if rec.Code != http.StatusNoContent {
		t.Errorf("owner delete: status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	rec = serve(router, newRequest(http.MethodDelete, "/api/workspaces/ws-store-1/listings/"+draft.ID, owner, ""))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestCreateListing_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})
	router := env.router()
	owner := env.login(t, "a-store-owner")

	for _, body := range []string{`{"price_cents":10}`, `{"title":"x","price_cents":-1}`, `[]`} {
		rec := serve(router, newRequest(http.MethodPost, "/api/workspaces/ws-store-1/listings", owner, body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", body, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestCreatePayout(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})
	router := env.router()
	owner := env.login(t, "a-store-owner")

	rec := serve(router, newRequest(http.MethodPost, "/api/workspaces/ws-store-1/payouts", owner, `{"amount_cents":5000,"reference":"march"}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	if got := decodeItem(t, rec); got.Kind != kindPayout || got.AmountCents != 5000 {
		t.Errorf("payout = %+v", got)
	}

	rec = serve(router, newRequest(http.MethodPost, "/api/workspaces/ws-store-1/payouts", owner, `{"amount_cents":0}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("zero amount: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestProviderQuestions(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, envOptions{})
	router := env.router()
	provider := env.login(t, "a-provider")

	rec := serve(router, newRequest(http.MethodPost, "/api/workspaces/provider/questions", provider, `{"title":"What is Go?","body":"..."}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, want %d (body %s)", rec.Code, http.StatusCreated, rec.Body.String())
	}
	q := decodeItem(t, rec)
	if q.WorkspaceID != "ws-provider-1" {
		t.Errorf("WorkspaceID = %q, want ws-provider-1", q.WorkspaceID)
	}

	rec = serve(router, newRequest(http.MethodPost, "/api/workspaces/provider/questions/publish/"+q.ID, provider, ""))
	if got := decodeItem(t, rec); !got.Published {
		t.Error("question not published")
	}
	rec = serve(router, newRequest(http.MethodDelete, "/api/workspaces/provider/questions/publish/"+q.ID, provider, ""))
	if got := decodeItem(t, rec); got.Published {
		t.Error("question still published")
	}

	rec = serve(router, newRequest(http.MethodPut, "/api/workspaces/provider/topics/update/t-1", provider, `{"title":"Concurrency"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("topic: status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := decodeItem(t, rec); got.ID != "t-1" || got.Title != "Concurrency" {
		t.Errorf("topic = %+v", got)
	}

	list := decodeList(t, serve(router, newRequest(http.MethodGet, "/api/workspaces/provider/questions", provider, "")))
	if list.Total != 1 {
		t.Errorf("questions = %d, want 1", list.Total)
	}

	// Store accounts hold no question permissions.
	rec = serve(router, newRequest(http.MethodGet, "/api/workspaces/provider/questions", env.login(t, "a-store-owner"), ""))
	if rec.Code != http.StatusForbidden {
		t.Errorf("store owner: status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	events := env.sink.Events()
	wantActions := []string{"create_question", "publish_question", "publish_question", "update_topic"}
	if len(events) != len(wantActions) {
		t.Fatalf("len(events) = %d, want %d", len(events), len(wantActions))
	}
	for i, want := range wantActions {
		if events[i].Action != want {
			t.Errorf("events[%d].Action = %q, want %q", i, events[i].Action, want)
		}
	}
}

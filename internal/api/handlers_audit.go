// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/gatehouse/internal/audit"
	"github.com/tomtom215/gatehouse/internal/validation"
)

// CodeAuditDisabled is returned when no audit store is configured.
const CodeAuditDisabled = "AUDIT_DISABLED"

// AuditQueryRequest holds the validated query parameters of GET /api/admin/audit.
type AuditQueryRequest struct {
	Limit     int    `validate:"min=1,max=1000"`
	Offset    int    `validate:"min=0,max=1000000"`
	Format    string `validate:"omitempty,oneof=json cef"`
	StartTime string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	EndTime   string `validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// AuditEventsResponse is the JSON listing of audit events.
type AuditEventsResponse struct {
	Events []audit.Event `json:"events"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// AuditEvents queries the audit log. With format=json or format=cef the
// result is returned as a downloadable export instead.
//
// Query parameters:
//   - type, outcome: comma-separated lists
//   - account_id, user_id, workspace_id, action, request_id: exact match
//   - start_time, end_time: RFC3339
//   - limit (1-1000, default 100), offset
//   - format: json or cef
func (h *Handler) AuditEvents(w http.ResponseWriter, r *http.Request, c *Context) error {
	logger := h.modules.Audit
	if logger == nil {
		respondError(w, http.StatusServiceUnavailable, CodeAuditDisabled, "Audit logging is not configured")
		return nil
	}

	q := r.URL.Query()
	req := AuditQueryRequest{
		Limit:     intParam(q.Get("limit"), 100),
		Offset:    intParam(q.Get("offset"), 0),
		Format:    q.Get("format"),
		StartTime: q.Get("start_time"),
		EndTime:   q.Get("end_time"),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
		return nil
	}

	filter := parseAuditFilter(q.Get, req)

	events, err := logger.Query(r.Context(), filter)
	if err != nil {
		return fmt.Errorf("query audit events: %w", err)
	}

	if req.Format != "" {
		return exportAuditEvents(w, req.Format, events)
	}

	total, err := logger.Count(r.Context(), filter)
	if err != nil {
		return fmt.Errorf("count audit events: %w", err)
	}
	c.Logger.Debug().Int("returned", len(events)).Int64("total", total).Msg("Audit events queried")

	respondJSON(w, http.StatusOK, AuditEventsResponse{
		Events: events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
	return nil
}

// parseAuditFilter builds a filter from already validated parameters.
func parseAuditFilter(get func(string) string, req AuditQueryRequest) audit.QueryFilter {
	filter := audit.QueryFilter{
		AccountID:   get("account_id"),
		UserID:      get("user_id"),
		WorkspaceID: get("workspace_id"),
		Action:      get("action"),
		RequestID:   get("request_id"),
		Limit:       req.Limit,
		Offset:      req.Offset,
	}
	for _, t := range splitList(get("type")) {
		filter.Types = append(filter.Types, audit.EventType(t))
	}
	for _, o := range splitList(get("outcome")) {
		filter.Outcomes = append(filter.Outcomes, audit.Outcome(o))
	}
	if t, err := time.Parse(time.RFC3339, req.StartTime); err == nil {
		filter.StartTime = &t
	}
	if t, err := time.Parse(time.RFC3339, req.EndTime); err == nil {
		filter.EndTime = &t
	}
	return filter
}

func exportAuditEvents(w http.ResponseWriter, format string, events []audit.Event) error {
	var exporter audit.Exporter = audit.JSONExporter{}
	ext := "json"
	if format == "cef" {
		exporter = audit.NewCEFExporter()
		ext = "cef"
	}

	data, err := exporter.Export(events)
	if err != nil {
		return fmt.Errorf("export audit events: %w", err)
	}

	filename := fmt.Sprintf("audit-events-%s.%s", time.Now().UTC().Format("20060102-150405"), ext)
	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
	return nil
}

func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		// Fails validation instead of silently using the default.
		return -1
	}
	return n
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package audit

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// MemoryStore implements Store using in-memory storage.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	events []Event
	mu     sync.RWMutex
	maxLen int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory audit store.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		events: make([]Event, 0, min(maxLen, 1024)),
		maxLen: maxLen,
	}
}

// SaveBatch appends events, evicting the oldest when full.
func (s *MemoryStore) SaveBatch(_ context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range events {
		if len(s.events) >= s.maxLen {
			// Remove oldest 10%
			removeCount := max(s.maxLen/10, 1)
			s.events = s.events[removeCount:]
		}
		s.events = append(s.events, events[i])
	}
	return nil
}

// Get retrieves an event by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.events {
		if s.events[i].ID == id {
			event := s.events[i]
			return &event, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
}

// Query retrieves events matching the filter, newest first.
func (s *MemoryStore) Query(_ context.Context, filter QueryFilter) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []Event{}
	skipped := 0
	for i := len(s.events) - 1; i >= 0; i-- { // Iterate in reverse for recent-first
		event := &s.events[i]
		if !matchesFilter(event, &filter) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}

		results = append(results, *event)
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results, nil
}

// matchesFilter returns true if the event matches all filter criteria.
func matchesFilter(event *Event, filter *QueryFilter) bool {
	if len(filter.Types) > 0 && !slices.Contains(filter.Types, event.Type) {
		return false
	}
	if len(filter.Outcomes) > 0 && !slices.Contains(filter.Outcomes, event.Outcome) {
		return false
	}
	if filter.AccountID != "" && event.Actor.AccountID != filter.AccountID {
		return false
	}
	if filter.UserID != "" && event.Actor.UserID != filter.UserID {
		return false
	}
	if filter.WorkspaceID != "" && event.Actor.WorkspaceID != filter.WorkspaceID {
		return false
	}
	if filter.Action != "" && event.Action != filter.Action {
		return false
	}
	if filter.RequestID != "" && event.RequestID != filter.RequestID {
		return false
	}
	if filter.StartTime != nil && event.Timestamp.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && event.Timestamp.After(*filter.EndTime) {
		return false
	}
	return true
}

// Count returns the number of events matching the filter.
func (s *MemoryStore) Count(_ context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for i := range s.events {
		if matchesFilter(&s.events[i], &filter) {
			count++
		}
	}
	return count, nil
}

// Delete removes events older than the given time.
func (s *MemoryStore) Delete(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for idx := range s.events {
		if s.events[idx].Timestamp.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, s.events[idx])
	}
	s.events = kept
	return deleted, nil
}

// Len returns the number of events in the store.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Exporter renders events for download.
type Exporter interface {
	ContentType() string
	Export(events []Event) ([]byte, error)
}

// JSONExporter exports events in JSON format.
type JSONExporter struct{}

// ContentType implements Exporter.
func (JSONExporter) ContentType() string { return "application/json" }

// Export exports events to JSON format.
func (JSONExporter) Export(events []Event) ([]byte, error) {
	return json.MarshalIndent(events, "", "  ")
}

// CEFExporter exports events in Common Event Format (for SIEM integration).
type CEFExporter struct {
	DeviceVendor  string
	DeviceProduct string
	DeviceVersion string
}

// NewCEFExporter creates a new CEF exporter with defaults.
func NewCEFExporter() *CEFExporter {
	return &CEFExporter{
		DeviceVendor:  "Gatehouse",
		DeviceProduct: "RequestPipeline",
		DeviceVersion: "1.0",
	}
}

// ContentType implements Exporter.
func (e *CEFExporter) ContentType() string { return "text/plain; charset=utf-8" }

// Export exports events to CEF format.
// CEF Format: CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func (e *CEFExporter) Export(events []Event) ([]byte, error) {
	lines := make([]string, 0, len(events))
	for idx := range events {
		event := &events[idx]
		line := fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s",
			e.escape(e.DeviceVendor),
			e.escape(e.DeviceProduct),
			e.escape(e.DeviceVersion),
			e.escape(string(event.Type)),
			e.escape(event.Action),
			e.cefSeverity(event),
			e.buildExtension(event),
		)
		lines = append(lines, line)
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// cefSeverity maps the event to CEF severity (0-10).
func (e *CEFExporter) cefSeverity(event *Event) int {
	switch {
	case event.Type == EventTypeAdminAction:
		return 7
	case event.Outcome == OutcomeFailure:
		return 5
	default:
		return 3
	}
}

// buildExtension builds the CEF extension string.
func (e *CEFExporter) buildExtension(event *Event) string {
	parts := []string{fmt.Sprintf("rt=%d", event.Timestamp.UnixMilli())}

	if event.Actor.UserID != "" {
		parts = append(parts, "suid="+e.escape(event.Actor.UserID))
		parts = append(parts, "cs1Label=account cs1="+e.escape(event.Actor.AccountID))
	}
	if event.Source.IPAddress != "" {
		parts = append(parts, "src="+e.escape(event.Source.IPAddress))
	}
	if event.Path != "" {
		parts = append(parts, "request="+e.escape(event.Path))
		parts = append(parts, "requestMethod="+e.escape(event.Method))
	}

	parts = append(parts, "act="+e.escape(event.Action))
	parts = append(parts, "outcome="+e.escape(string(event.Outcome)))

	if event.RequestID != "" {
		parts = append(parts, "externalId="+e.escape(event.RequestID))
	}
	return strings.Join(parts, " ")
}

// escape escapes special characters for CEF format.
func (e *CEFExporter) escape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "=", "\\=")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}

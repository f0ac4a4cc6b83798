// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package audit

import (
	"reflect"
	"testing"

	"github.com/goccy/go-json"
)

func TestSanitize_NestedPayload(t *testing.T) {
	t.Parallel()
	in := map[string]any{
		"password": "x",
		"nested": map[string]any{
			"token": "y",
			"safe":  "z",
		},
	}
	want := map[string]any{
		"password": Redacted,
		"nested": map[string]any{
			"token": Redacted,
			"safe":  "z",
		},
	}

	got := Sanitize(in)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sanitize() = %#v, want %#v", got, want)
	}
	if in["password"] != "x" {
		t.Error("Sanitize() modified its input")
	}
}

func TestSanitize_KeyMatching(t *testing.T) {
	t.Parallel()
	tests := []struct {
		key       string
		sensitive bool
	}{
		{"Password", true},
		{"newPassword", true},
		{"ACCESS_TOKEN", true},
		{"client_secret", true},
		{"Authorization", true},
		{"cardNumber", true},
		{"CVV", true},
		{"iban", true},
		{"pin", true},
		{"x-api_key", true},
		{"apiKey", true},
		{"private_key", true},
		{"email", false},
		{"title", false},
		{"amount", false},
	}
	for _, tt := range tests {
		if got := IsSensitiveKey(tt.key); got != tt.sensitive {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, got, tt.sensitive)
		}
	}
}

func TestSanitize_Arrays(t *testing.T) {
	t.Parallel()
	in := map[string]any{
		"items": []any{
			map[string]any{"secret": "s", "id": float64(1)},
			"plain",
		},
	}
	got := Sanitize(in).(map[string]any)
	items := got["items"].([]any)
	first := items[0].(map[string]any)
	if first["secret"] != Redacted || first["id"] != float64(1) {
		t.Errorf("array element not sanitized: %#v", first)
	}
	if items[1] != "plain" {
		t.Errorf("scalar element changed: %#v", items[1])
	}
}

func TestSanitize_MaxDepth(t *testing.T) {
	t.Parallel()
	var doc any = "leaf"
	for i := 0; i < MaxSanitizeDepth+5; i++ {
		doc = map[string]any{"child": doc}
	}

	got := Sanitize(doc)
	depth := 0
	for {
		m, ok := got.(map[string]any)
		if !ok {
			break
		}
		got = m["child"]
		depth++
	}
	if got != MaxDepthMarker {
		t.Errorf("deepest value = %#v, want %q", got, MaxDepthMarker)
	}
	if depth != MaxSanitizeDepth+1 {
		t.Errorf("walked %d levels, want %d", depth, MaxSanitizeDepth+1)
	}
}

func TestSanitizeJSON(t *testing.T) {
	t.Parallel()
	out, err := SanitizeJSON([]byte(`{"email":"a@b.c","password":"hunter2"}`))
	if err != nil {
		t.Fatalf("SanitizeJSON() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatal(err)
	}
	if got["password"] != Redacted || got["email"] != "a@b.c" {
		t.Errorf("SanitizeJSON() = %s", out)
	}

	if out, err := SanitizeJSON(nil); err != nil || out != nil {
		t.Errorf("SanitizeJSON(nil) = %s, %v", out, err)
	}
	if _, err := SanitizeJSON([]byte("{not json")); err == nil {
		t.Error("SanitizeJSON() should reject malformed input")
	}
}

// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package audit

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// actionVerbs are path segments that name the action explicitly and win
// over the method mapping.
var actionVerbs = map[string]struct{}{
	"publish":    {},
	"unpublish":  {},
	"approve":    {},
	"reject":     {},
	"archive":    {},
	"restore":    {},
	"update":     {},
	"create":     {},
	"delete":     {},
	"duplicate":  {},
	"cancel":     {},
	"activate":   {},
	"deactivate": {},
	"verify":     {},
	"suspend":    {},
}

var methodActions = map[string]string{
	http.MethodPost:   "create",
	http.MethodPatch:  "update",
	http.MethodPut:    "update",
	http.MethodDelete: "delete",
	http.MethodGet:    "read",
}

// ActionName derives the "<action>_<resource>" label for an audit event.
//
// The last verb segment in the path names the action; without one the
// method decides. The resource is the nearest non-id segment before the
// verb (or before the end of the path) with one trailing "s" removed, so
// "categories" becomes "categorie". This is a naming heuristic, not a
// grammar.
func ActionName(method, path string) string {
	segments := splitPath(path)

	action := ""
	end := len(segments)
	for i := len(segments) - 1; i >= 0; i-- {
		if _, ok := actionVerbs[segments[i]]; ok {
			action = segments[i]
			end = i
			break
		}
	}
	if action == "" {
		action = methodActions[strings.ToUpper(method)]
		if action == "" {
			action = strings.ToLower(method)
		}
	}

	resource := ""
	for i := end - 1; i >= 0; i-- {
		if isIDSegment(segments[i]) {
			continue
		}
		resource = strings.TrimSuffix(segments[i], "s")
		break
	}
	if resource == "" {
		return action
	}
	return action + "_" + resource
}

func splitPath(path string) []string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	raw := strings.Split(strings.Trim(path, "/"), "/")
	segments := raw[:0]
	for _, s := range raw {
		if s != "" {
			segments = append(segments, strings.ToLower(s))
		}
	}
	return segments
}

// isIDSegment reports whether a path segment looks like an identifier
// rather than a resource name.
func isIDSegment(s string) bool {
	if strings.HasPrefix(s, ":") {
		return true
	}
	if _, err := uuid.Parse(s); err == nil {
		return true
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

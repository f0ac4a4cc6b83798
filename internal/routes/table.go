// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package routes

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tomtom215/gatehouse/internal/validation"
)

// node is one path segment of the route trie.
type node struct {
	literal  map[string]*node
	param    *node
	wildcard []*entry // patterns ending in * below this node
	entries  []*entry // patterns ending exactly at this node
}

type entry struct {
	route    *RouteConfig
	segments []string
}

func newNode() *node {
	return &node{literal: make(map[string]*node)}
}

// Options configures table construction.
type Options struct {
	// Locales lists the two-letter prefixes stripped before matching.
	// When empty, any two lowercase letters are treated as a locale.
	Locales []string
}

// Table is an immutable route table backed by a segment trie.
//
// At each depth a literal child is tried before a :param child, and a
// :param child before a * wildcard, so the most specific pattern wins.
// Table is safe for concurrent use.
type Table struct {
	root    *node
	locales map[string]struct{}
	routes  []*RouteConfig
}

// NewTable validates routes and builds the trie.
func NewTable(routes []RouteConfig, opts Options) (*Table, error) {
	t := &Table{
		root:    newNode(),
		locales: make(map[string]struct{}, len(opts.Locales)),
	}
	for _, l := range opts.Locales {
		t.locales[strings.ToLower(l)] = struct{}{}
	}

	for i := range routes {
		rc := routes[i]
		if verr := validation.ValidateStruct(&rc); verr != nil {
			return nil, fmt.Errorf("%w %q: %s", ErrInvalidRoute, rc.Pattern, verr.Error())
		}
		if rc.WorkspaceParam != "" && !strings.Contains(rc.Pattern, "/:"+rc.WorkspaceParam) {
			return nil, fmt.Errorf("%w %q: workspace param %q not in pattern", ErrInvalidRoute, rc.Pattern, rc.WorkspaceParam)
		}
		if err := t.insert(&rc); err != nil {
			return nil, err
		}
		t.routes = append(t.routes, &rc)
	}
	return t, nil
}

// MustNewTable is NewTable for static tables known to be valid.
func MustNewTable(routes []RouteConfig, opts Options) *Table {
	t, err := NewTable(routes, opts)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) insert(rc *RouteConfig) error {
	segments := splitPath(rc.Pattern)
	e := &entry{route: rc, segments: segments}

	n := t.root
	for i, seg := range segments {
		switch {
		case seg == "*" && i == len(segments)-1:
			if err := checkConflict(n.wildcard, rc); err != nil {
				return err
			}
			n.wildcard = append(n.wildcard, e)
			return nil
		case strings.HasPrefix(seg, ":"):
			if n.param == nil {
				n.param = newNode()
			}
			n = n.param
		default:
			child, ok := n.literal[seg]
			if !ok {
				child = newNode()
				n.literal[seg] = child
			}
			n = child
		}
	}

	if err := checkConflict(n.entries, rc); err != nil {
		return err
	}
	n.entries = append(n.entries, e)
	return nil
}

// checkConflict rejects entries at the same trie position with overlapping methods.
func checkConflict(existing []*entry, rc *RouteConfig) error {
	for _, e := range existing {
		if methodsOverlap(e.route.Methods, rc.Methods) {
			return fmt.Errorf("%w: %q and %q", ErrRouteConflict, e.route.Pattern, rc.Pattern)
		}
	}
	return nil
}

func methodsOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}

// Validate maps method and path to a configured route.
// The path may carry a query string; it is ignored.
func (t *Table) Validate(method, path string) Match {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	segs := splitPath(path)

	if len(segs) > 0 && t.isLocale(segs[0]) {
		if m, ok := t.match(method, segs[1:]); ok {
			m.Locale = segs[0]
			return m
		}
	}
	if m, ok := t.match(method, segs); ok {
		return m
	}

	return Match{Valid: false, Path: joinPath(segs), NormalizedPath: normalize(segs)}
}

// ValidateRequest is Validate for an inbound request.
func (t *Table) ValidateRequest(r *http.Request) Match {
	return t.Validate(r.Method, r.URL.Path)
}

func (t *Table) match(method string, segs []string) (Match, bool) {
	e := t.root.lookup(segs, 0, method)
	if e == nil {
		return Match{}, false
	}
	return Match{
		Valid:          true,
		Route:          e.route,
		Path:           joinPath(segs),
		NormalizedPath: normalize(segs),
		Params:         e.bind(segs),
	}, true
}

func (n *node) lookup(segs []string, i int, method string) *entry {
	if i == len(segs) {
		return pick(n.entries, method)
	}

	if child, ok := n.literal[segs[i]]; ok {
		if e := child.lookup(segs, i+1, method); e != nil {
			return e
		}
	}
	if n.param != nil {
		if e := n.param.lookup(segs, i+1, method); e != nil {
			return e
		}
	}
	return pick(n.wildcard, method)
}

func pick(entries []*entry, method string) *entry {
	for _, e := range entries {
		if e.route.AllowsMethod(method) {
			return e
		}
	}
	return nil
}

// bind extracts parameter values for a matched path.
func (e *entry) bind(segs []string) map[string]string {
	params := make(map[string]string)
	for i, ps := range e.segments {
		switch {
		case ps == "*":
			params["*"] = strings.Join(segs[i:], "/")
		case strings.HasPrefix(ps, ":"):
			params[ps[1:]] = segs[i]
		}
	}
	return params
}

func (t *Table) isLocale(seg string) bool {
	if len(seg) != 2 {
		return false
	}
	if len(t.locales) > 0 {
		_, ok := t.locales[seg]
		return ok
	}
	return seg[0] >= 'a' && seg[0] <= 'z' && seg[1] >= 'a' && seg[1] <= 'z'
}

// Routes returns the configured entries in declaration order.
func (t *Table) Routes() []RouteConfig {
	out := make([]RouteConfig, len(t.routes))
	for i, rc := range t.routes {
		out[i] = *rc
	}
	return out
}

// Len returns the number of configured entries.
func (t *Table) Len() int {
	return len(t.routes)
}

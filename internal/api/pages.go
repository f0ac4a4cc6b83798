// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/tomtom215/gatehouse/internal/logging"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="{{if .Locale}}{{.Locale}}{{else}}en{{end}}">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body data-request-id="{{.RequestID}}">
<main>
<h1>{{.Title}}</h1>
{{if .User}}<p class="user">Signed in as {{.User.Name}} ({{.User.Role}}, {{.User.WorkspaceType}})</p>
{{else if .Guest}}<p class="user">Not signed in</p>
{{end}}{{if .Message}}<p>{{.Message}}</p>
{{end}}</main>
</body>
</html>
`))

var forbiddenFragment = template.Must(template.New("forbidden").Parse(
	`<div class="forbidden" role="alert" data-request-id="{{.RequestID}}"><p>{{.Message}}</p></div>
`))

type pageView struct {
	Title     string
	Message   string
	Locale    string
	RequestID string
	User      any
	Guest     bool
}

func writePage(w http.ResponseWriter, status int, view pageView) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		logging.Error().Err(err).Msg("Failed to render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderForbiddenFragment answers 403 with an HTML fragment for in-place
// rendering by the page that requested it.
func renderForbiddenFragment(w http.ResponseWriter, requestID string) {
	var buf bytes.Buffer
	if err := forbiddenFragment.Execute(&buf, pageView{
		Message:   "You do not have access to this section",
		RequestID: requestID,
	}); err != nil {
		logging.Error().Err(err).Msg("Failed to render forbidden fragment")
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write(buf.Bytes())
}

// renderStatusPage renders a bare error or forbidden page.
func renderStatusPage(w http.ResponseWriter, status int, message, requestID string) {
	writePage(w, status, pageView{
		Title:     http.StatusText(status),
		Message:   message,
		RequestID: requestID,
	})
}

// RenderPage is the default PageFunc. It shows the matched route and the
// signed-in user.
func RenderPage(w http.ResponseWriter, _ *http.Request, props *PageProps) error {
	view := pageView{
		Title:     props.Match.Path,
		Locale:    props.Locale,
		RequestID: props.RequestID,
		Guest:     props.ClientUser == nil,
	}
	if props.ClientUser != nil {
		view.User = props.ClientUser
	}
	writePage(w, http.StatusOK, view)
	return nil
}

// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gatehouse/internal/audit"
	"github.com/tomtom215/gatehouse/internal/logging"
	"github.com/tomtom215/gatehouse/internal/validation"
)

// maxRequestBodyBytes bounds JSON request bodies.
const maxRequestBodyBytes = 1 << 20

// Handler holds the endpoint implementations. Each method is a HandlerFunc
// and runs behind the pipeline.
type Handler struct {
	modules   *Modules
	audit     AuditSink
	security  *logging.SecurityLogger
	catalog   *catalog
	startTime time.Time
}

// NewHandler creates the endpoint handlers.
func NewHandler(modules *Modules) *Handler {
	h := &Handler{
		modules:   modules,
		audit:     discardSink{},
		security:  modules.Security,
		catalog:   newCatalog(),
		startTime: time.Now(),
	}
	if modules.Audit != nil {
		h.audit = modules.Audit
	}
	if h.security == nil {
		h.security = logging.NewSecurityLogger()
	}
	return h
}

type discardSink struct{}

func (discardSink) Log(audit.Event) {}

// decodeJSON decodes a bounded JSON body into dst and validates it. It
// writes the 400 response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, CodeBadRequest, "Request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, CodeBadRequest, "Invalid JSON body")
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
		return false
	}
	return true
}

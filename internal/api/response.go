// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gatehouse/internal/auth"
	"github.com/tomtom215/gatehouse/internal/logging"
)

// Error codes used by handlers for client mistakes. Authorization failures
// use auth.Code values instead.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeBadRequest  = "BAD_REQUEST"
	CodeRateLimited = "RATE_LIMITED"
)

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Detail carries the underlying error in development only.
	Detail string `json:"detail,omitempty"`
}

// StatusForCode maps an authorization code to its HTTP status.
func StatusForCode(code auth.Code) int {
	switch {
	case code.IsCredentialFailure():
		return http.StatusUnauthorized
	case code == auth.CodeNotFound:
		return http.StatusNotFound
	case code == auth.CodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusForbidden
	}
}

// respondJSON writes data as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError writes an ErrorBody.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorBody{Code: code, Message: message})
}

// respondCode writes the standard body for an authorization code.
func respondCode(w http.ResponseWriter, code auth.Code) {
	respondError(w, StatusForCode(code), string(code), code.Message())
}

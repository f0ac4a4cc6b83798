// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/gatehouse/internal/accounts"
	"github.com/tomtom215/gatehouse/internal/audit"
)

// SuspendRequest is the optional body of POST /api/admin/accounts/:accountId/suspend.
// An empty body suspends.
type SuspendRequest struct {
	Suspended *bool  `json:"suspended,omitempty"`
	Reason    string `json:"reason,omitempty" validate:"max=500"`
}

// SuspendResponse reports the new state.
type SuspendResponse struct {
	AccountID       string `json:"account_id"`
	Suspended       bool   `json:"suspended"`
	SessionsRevoked int    `json:"sessions_revoked"`
}

// SuspendAccount suspends or reinstates an account. Suspending also
// revokes every session of the account's user.
func (h *Handler) SuspendAccount(w http.ResponseWriter, r *http.Request, c *Context) error {
	req := SuspendRequest{}
	if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
		if !decodeJSON(w, r, &req) {
			return nil
		}
	}
	suspend := req.Suspended == nil || *req.Suspended

	targetID := c.Param("accountId")
	if targetID == c.AuthCtx.AccountID && suspend {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "Cannot suspend your own account")
		return nil
	}

	ctx := r.Context()
	target, err := h.modules.Accounts.GetAccount(ctx, targetID)
	switch {
	case accounts.IsNotFound(err):
		notFound(w)
		return nil
	case err != nil:
		return fmt.Errorf("load account %s: %w", targetID, err)
	}

	if err := h.modules.Accounts.SetSuspended(ctx, targetID, suspend); err != nil {
		return fmt.Errorf("set suspended on %s: %w", targetID, err)
	}

	revoked := 0
	if suspend && h.modules.Sessions != nil {
		revoked, err = h.modules.Sessions.DeleteByUserID(ctx, target.UserID)
		if err != nil {
			// The account is already suspended; its sessions are refused
			// by the authorizer even while they exist.
			c.Logger.Warn().Err(err).Str("target_account_id", targetID).Msg("Failed to revoke sessions")
		}
	}

	action := "suspend_account"
	if !suspend {
		action = "unsuspend_account"
	}
	payload, _ := json.Marshal(map[string]any{
		"target_account_id": targetID,
		"reason":            req.Reason,
		"sessions_revoked":  revoked,
	})
	h.audit.Log(audit.Event{
		Type:    audit.EventTypeAdminAction,
		Outcome: audit.OutcomeSuccess,
		Actor: audit.Actor{
			UserID:      c.AuthCtx.UserID,
			AccountID:   c.AuthCtx.AccountID,
			WorkspaceID: c.AuthCtx.ActiveWorkspaceID,
			SessionID:   c.Auth.Session.ID,
		},
		Source:    audit.SourceFromRequest(r),
		Action:    action,
		Method:    r.Method,
		Path:      r.URL.Path,
		Route:     c.Match.NormalizedPath,
		Status:    http.StatusOK,
		Payload:   payload,
		RequestID: c.RequestID,
	})
	c.Logger.Info().Str("target_account_id", targetID).Bool("suspended", suspend).
		Int("sessions_revoked", revoked).Msg("Account suspension changed")

	respondJSON(w, http.StatusOK, SuspendResponse{
		AccountID:       targetID,
		Suspended:       suspend,
		SessionsRevoked: revoked,
	})
	return nil
}

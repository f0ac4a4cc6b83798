// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"net/http"

	"github.com/tomtom215/gatehouse/internal/auth"
)

// Workspace resource endpoints. Authorization has already run when these
// are called: the route table names the permission, and the workspace in
// the path or X-Workspace-Id header has been checked against the account.

type listResponse struct {
	Items []Item `json:"items"`
	Total int    `json:"total"`
}

// CreateListingRequest is the body of POST /api/workspaces/:workspaceId/listings.
type CreateListingRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	PriceCents  int64  `json:"price_cents" validate:"gte=0"`
	Description string `json:"description,omitempty" validate:"max=5000"`
	Published   bool   `json:"published"`
}

// UpdateListingRequest is the body of PATCH .../listings/:listingId.
// Absent fields are left unchanged.
type UpdateListingRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	PriceCents  *int64  `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	Published   *bool   `json:"published,omitempty"`
}

// CreatePayoutRequest is the body of POST /api/workspaces/:workspaceId/payouts.
type CreatePayoutRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,gt=0"`
	Reference   string `json:"reference,omitempty" validate:"max=100"`
}

// QuestionRequest is the body of POST /api/workspaces/provider/questions.
type QuestionRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Body  string `json:"body" validate:"max=5000"`
}

// TopicRequest is the body of PATCH /api/workspaces/provider/topics/update/:topicId.
type TopicRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

func notFound(w http.ResponseWriter) {
	respondCode(w, auth.CodeNotFound)
}

// ListPublicListings returns published listings of every workspace. Guests
// may call it.
func (h *Handler) ListPublicListings(w http.ResponseWriter, _ *http.Request, _ *Context) error {
	items := h.catalog.list(kindListing, "", true)
	respondJSON(w, http.StatusOK, listResponse{Items: items, Total: len(items)})
	return nil
}

// GetPublicListing returns one published listing.
func (h *Handler) GetPublicListing(w http.ResponseWriter, _ *http.Request, c *Context) error {
	item, ok := h.catalog.get(kindListing, "", c.Param("listingId"))
	if !ok || !item.Published {
		notFound(w)
		return nil
	}
	respondJSON(w, http.StatusOK, item)
	return nil
}

// ListWorkspaceListings returns every listing of the workspace, drafts included.
func (h *Handler) ListWorkspaceListings(w http.ResponseWriter, _ *http.Request, c *Context) error {
	items := h.catalog.list(kindListing, c.AuthCtx.ActiveWorkspaceID, false)
	respondJSON(w, http.StatusOK, listResponse{Items: items, Total: len(items)})
	return nil
}

// CreateListing adds a listing to the workspace.
func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request, c *Context) error {
	var req CreateListingRequest
	if !decodeJSON(w, r, &req) {
		return nil
	}
	item := h.catalog.add(Item{
		Kind:        kindListing,
		WorkspaceID: c.AuthCtx.ActiveWorkspaceID,
		Title:       req.Title,
		Body:        req.Description,
		AmountCents: req.PriceCents,
		Published:   req.Published,
		CreatedBy:   c.AuthCtx.AccountID,
	})
	c.Logger.Debug().Str("listing_id", item.ID).Msg("Listing created")
	respondJSON(w, http.StatusCreated, item)
	return nil
}

// UpdateListing patches a listing of the workspace.
func (h *Handler) UpdateListing(w http.ResponseWriter, r *http.Request, c *Context) error {
	var req UpdateListingRequest
	if !decodeJSON(w, r, &req) {
		return nil
	}
	item, ok := h.catalog.update(kindListing, c.AuthCtx.ActiveWorkspaceID, c.Param("listingId"), func(it *Item) {
		if req.Title != nil {
			it.Title = *req.Title
		}
		if req.PriceCents != nil {
			it.AmountCents = *req.PriceCents
		}
		if req.Description != nil {
			it.Body = *req.Description
		}
		if req.Published != nil {
			it.Published = *req.Published
		}
	})
	if !ok {
		notFound(w)
		return nil
	}
	respondJSON(w, http.StatusOK, item)
	return nil
}

// DeleteListing removes a listing of the workspace.
func (h *Handler) DeleteListing(w http.ResponseWriter, _ *http.Request, c *Context) error {
	if !h.catalog.remove(kindListing, c.AuthCtx.ActiveWorkspaceID, c.Param("listingId")) {
		notFound(w)
		return nil
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// CreatePayout records a payout request for the workspace.
func (h *Handler) CreatePayout(w http.ResponseWriter, r *http.Request, c *Context) error {
	var req CreatePayoutRequest
	if !decodeJSON(w, r, &req) {
		return nil
	}
	item := h.catalog.add(Item{
		Kind:        kindPayout,
		WorkspaceID: c.AuthCtx.ActiveWorkspaceID,
		Title:       req.Reference,
		AmountCents: req.AmountCents,
		CreatedBy:   c.AuthCtx.AccountID,
	})
	respondJSON(w, http.StatusAccepted, item)
	return nil
}

// ListQuestions returns the provider workspace's questions.
func (h *Handler) ListQuestions(w http.ResponseWriter, _ *http.Request, c *Context) error {
	items := h.catalog.list(kindQuestion, c.AuthCtx.ActiveWorkspaceID, false)
	respondJSON(w, http.StatusOK, listResponse{Items: items, Total: len(items)})
	return nil
}

// CreateQuestion adds a draft question.
func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request, c *Context) error {
	var req QuestionRequest
	if !decodeJSON(w, r, &req) {
		return nil
	}
	item := h.catalog.add(Item{
		Kind:        kindQuestion,
		WorkspaceID: c.AuthCtx.ActiveWorkspaceID,
		Title:       req.Title,
		Body:        req.Body,
		CreatedBy:   c.AuthCtx.AccountID,
	})
	respondJSON(w, http.StatusCreated, item)
	return nil
}

// PublishQuestion publishes a question on POST and withdraws it on DELETE.
func (h *Handler) PublishQuestion(w http.ResponseWriter, r *http.Request, c *Context) error {
	publish := r.Method != http.MethodDelete
	item, ok := h.catalog.update(kindQuestion, c.AuthCtx.ActiveWorkspaceID, c.Param("questionId"), func(it *Item) {
		it.Published = publish
	})
	if !ok {
		notFound(w)
		return nil
	}
	respondJSON(w, http.StatusOK, item)
	return nil
}

// UpdateTopic sets a topic's title, creating the topic if needed.
func (h *Handler) UpdateTopic(w http.ResponseWriter, r *http.Request, c *Context) error {
	var req TopicRequest
	if !decodeJSON(w, r, &req) {
		return nil
	}
	item, ok := h.catalog.upsert(kindTopic, c.AuthCtx.ActiveWorkspaceID, c.Param("topicId"), c.AuthCtx.AccountID,
		func(it *Item) { it.Title = req.Title })
	if !ok {
		notFound(w)
		return nil
	}
	respondJSON(w, http.StatusOK, item)
	return nil
}

// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package api

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Item kinds held by the demo catalogue.
const (
	kindListing  = "listing"
	kindQuestion = "question"
	kindTopic    = "topic"
	kindPayout   = "payout"
)

// Item is a workspace-owned record served by the demo resource endpoints.
type Item struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	WorkspaceID string    `json:"workspace_id"`
	Title       string    `json:"title,omitempty"`
	Body        string    `json:"body,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Published   bool      `json:"published"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// catalog is an in-memory item store. It is safe for concurrent use.
type catalog struct {
	mu    sync.RWMutex
	items map[string]*Item
}

func newCatalog() *catalog {
	return &catalog{items: make(map[string]*Item)}
}

func (c *catalog) add(item Item) Item {
	now := time.Now().UTC()
	item.ID = uuid.NewString()
	item.CreatedAt = now
	item.UpdatedAt = now

	c.mu.Lock()
	defer c.mu.Unlock()
	stored := item
	c.items[item.ID] = &stored
	return item
}

// get returns the item of kind with id. An empty workspaceID matches any
// workspace.
func (c *catalog) get(kind, workspaceID, id string) (Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	if !ok || item.Kind != kind || (workspaceID != "" && item.WorkspaceID != workspaceID) {
		return Item{}, false
	}
	return *item, true
}

// list returns matching items, oldest first.
func (c *catalog) list(kind, workspaceID string, publishedOnly bool) []Item {
	c.mu.RLock()
	out := make([]Item, 0)
	for _, item := range c.items {
		if item.Kind != kind {
			continue
		}
		if workspaceID != "" && item.WorkspaceID != workspaceID {
			continue
		}
		if publishedOnly && !item.Published {
			continue
		}
		out = append(out, *item)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (c *catalog) update(kind, workspaceID, id string, fn func(*Item)) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if !ok || item.Kind != kind || (workspaceID != "" && item.WorkspaceID != workspaceID) {
		return Item{}, false
	}
	fn(item)
	item.UpdatedAt = time.Now().UTC()
	return *item, true
}

func (c *catalog) remove(kind, workspaceID, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if !ok || item.Kind != kind || (workspaceID != "" && item.WorkspaceID != workspaceID) {
		return false
	}
	delete(c.items, id)
	return true
}

// upsert applies fn to the item with id, creating it first when missing.
func (c *catalog) upsert(kind, workspaceID, id, createdBy string, fn func(*Item)) (Item, bool) {
	now := time.Now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[id]
	if ok && (item.Kind != kind || item.WorkspaceID != workspaceID) {
		return Item{}, false
	}
	if !ok {
		item = &Item{ID: id, Kind: kind, WorkspaceID: workspaceID, CreatedBy: createdBy, CreatedAt: now}
		c.items[id] = item
	}
	fn(item)
	item.UpdatedAt = now
	return *item, true
}

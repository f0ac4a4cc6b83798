// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package authz

import (
	"sync"
	"time"
)

// permissionCache caches resolved permission sets per role and workspace type.
type permissionCache struct {
	ttl      time.Duration
	mu       sync.RWMutex
	items    map[string]*cacheItem
	stopChan chan struct{}
	stopOnce sync.Once
}

type cacheItem struct {
	perms     []string
	expiresAt time.Time
}

func newPermissionCache(ttl time.Duration) *permissionCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &permissionCache{
		ttl:      ttl,
		items:    make(map[string]*cacheItem),
		stopChan: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *permissionCache) key(role, workspaceType string) string {
	return role + "|" + workspaceType
}

// get returns a copy of the cached set so callers cannot mutate it.
func (c *permissionCache) get(role, workspaceType string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[c.key(role, workspaceType)]
	if !ok || time.Now().After(item.expiresAt) {
		return nil, false
	}
	return append([]string(nil), item.perms...), true
}

func (c *permissionCache) set(role, workspaceType string, perms []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[c.key(role, workspaceType)] = &cacheItem{
		perms:     append([]string(nil), perms...),
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *permissionCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*cacheItem)
}

func (c *permissionCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// cleanup periodically removes expired items.
func (c *permissionCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// stop stops the cleanup goroutine. Safe to call multiple times.
func (c *permissionCache) stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

// Package authz resolves account roles to permission sets using Casbin.
//
// Policies are RBAC with domains: the domain is the workspace type the
// account acts in (provider, store, staff), so the same role name can grant
// different capabilities per workspace type. A "*" domain in a p rule
// applies to every workspace type.
package authz

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/casbin/casbin/v2/util"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// EnforcerConfig holds configuration for the Casbin enforcer.
type EnforcerConfig struct {
	// ModelPath is the path to the Casbin model file.
	// If empty, uses embedded model.
	ModelPath string

	// PolicyPath is the path to the Casbin policy file.
	// If empty, uses embedded policy.
	PolicyPath string

	// CacheEnabled enables permission-set caching.
	CacheEnabled bool

	// CacheTTL is how long to cache resolved permission sets.
	CacheTTL time.Duration
}

// DefaultEnforcerConfig returns default configuration.
func DefaultEnforcerConfig() *EnforcerConfig {
	return &EnforcerConfig{
		CacheEnabled: true,
		CacheTTL:     5 * time.Minute,
	}
}

// Enforcer wraps the Casbin enforcer with permission-set resolution and caching.
type Enforcer struct {
	config   *EnforcerConfig
	enforcer *casbin.SyncedEnforcer
	cache    *permissionCache
}

// NewEnforcer creates a new authorization enforcer.
func NewEnforcer(_ context.Context, config *EnforcerConfig) (*Enforcer, error) {
	if config == nil {
		config = DefaultEnforcerConfig()
	}

	var m model.Model
	var err error
	if config.ModelPath != "" && fileExists(config.ModelPath) {
		m, err = model.NewModelFromFile(config.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if config.PolicyPath != "" && fileExists(config.PolicyPath) {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(config.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	// "*" in a policy domain matches every workspace type.
	enforcer.AddNamedDomainMatchingFunc("g", "KeyMatch", util.KeyMatch)

	e := &Enforcer{
		config:   config,
		enforcer: enforcer,
	}
	if config.CacheEnabled {
		e.cache = newPermissionCache(config.CacheTTL)
	}
	return e, nil
}

// loadEmbeddedPolicy parses and loads the embedded policy CSV.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) != 4 {
			return fmt.Errorf("malformed policy line %q", line)
		}

		var err error
		switch parts[0] {
		case "p":
			_, err = enforcer.AddPolicy(parts[1], parts[2], parts[3])
		case "g":
			_, err = enforcer.AddGroupingPolicy(parts[1], parts[2], parts[3])
		default:
			err = fmt.Errorf("unknown policy type %q", parts[0])
		}
		if err != nil {
			return fmt.Errorf("failed to add policy %v: %w", parts, err)
		}
	}
	return nil
}

// Permissions returns the sorted permission set granted to role in the
// given workspace type, including permissions of inherited roles.
func (e *Enforcer) Permissions(role, workspaceType string) ([]string, error) {
	if e.cache != nil {
		if perms, ok := e.cache.get(role, workspaceType); ok {
			RecordPermissionCacheHit()
			return perms, nil
		}
		RecordPermissionCacheMiss()
	}

	rules, err := e.enforcer.GetImplicitPermissionsForUser(role, workspaceType)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve permissions for %s/%s: %w", role, workspaceType, err)
	}

	seen := make(map[string]struct{}, len(rules))
	perms := make([]string, 0, len(rules))
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		if _, dup := seen[rule[2]]; dup {
			continue
		}
		seen[rule[2]] = struct{}{}
		perms = append(perms, rule[2])
	}
	sort.Strings(perms)

	if e.cache != nil {
		e.cache.set(role, workspaceType, perms)
	}
	return perms, nil
}

// Enforce checks whether role holds permission in the workspace type.
func (e *Enforcer) Enforce(role, workspaceType, permission string) (bool, error) {
	allowed, err := e.enforcer.Enforce(role, workspaceType, permission)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return allowed, nil
}

// AddPermission grants permission to role in the workspace type.
func (e *Enforcer) AddPermission(role, workspaceType, permission string) (bool, error) {
	added, err := e.enforcer.AddPolicy(role, workspaceType, permission)
	if err != nil {
		return false, fmt.Errorf("failed to add policy: %w", err)
	}
	e.invalidate()
	return added, nil
}

// RemovePermission revokes permission from role in the workspace type.
func (e *Enforcer) RemovePermission(role, workspaceType, permission string) (bool, error) {
	removed, err := e.enforcer.RemovePolicy(role, workspaceType, permission)
	if err != nil {
		return false, fmt.Errorf("failed to remove policy: %w", err)
	}
	e.invalidate()
	return removed, nil
}

// AddRoleInheritance makes role inherit parent within the workspace type.
func (e *Enforcer) AddRoleInheritance(role, parent, workspaceType string) (bool, error) {
	added, err := e.enforcer.AddGroupingPolicy(role, parent, workspaceType)
	if err != nil {
		return false, fmt.Errorf("failed to add role inheritance: %w", err)
	}
	e.invalidate()
	return added, nil
}

// ErrNoAdapter is returned when LoadPolicy is called without a policy file.
var ErrNoAdapter = errors.New("no policy adapter configured; using embedded policy")

// LoadPolicy reloads the policy from the policy file.
func (e *Enforcer) LoadPolicy() error {
	if e.config.PolicyPath == "" {
		return ErrNoAdapter
	}
	if err := e.enforcer.LoadPolicy(); err != nil {
		return err
	}
	e.invalidate()
	return nil
}

// Close stops the cache cleanup goroutine.
func (e *Enforcer) Close() {
	if e.cache != nil {
		e.cache.stop()
	}
}

func (e *Enforcer) invalidate() {
	if e.cache != nil {
		e.cache.clear()
	}
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

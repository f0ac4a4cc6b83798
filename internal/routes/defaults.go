// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package routes

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultRoutes returns the built-in marketplace route table.
func DefaultRoutes() []RouteConfig {
	return []RouteConfig{
		// Public pages
		{Pattern: "/", Methods: []string{"GET"}},
		{Pattern: "/login", Methods: []string{"GET"}},
		{Pattern: "/forbidden", Methods: []string{"GET"}},
		{Pattern: "/account/suspended", Methods: []string{"GET"}},
		{Pattern: "/listings/:listingId", Methods: []string{"GET"}},

		// Session endpoints
		{Pattern: "/api/auth/login", Methods: []string{"POST"}, CollectLogs: true},
		{Pattern: "/api/auth/logout", Methods: []string{"POST"}, AuthRequired: true, CollectLogs: true},
		{Pattern: "/api/auth/me", Methods: []string{"GET"}},

		// Public catalogue
		{Pattern: "/api/listings", Methods: []string{"GET"}},
		{Pattern: "/api/listings/:listingId", Methods: []string{"GET"}},

		// Provider dashboard API
		{
			Pattern: "/api/workspaces/provider/questions", Methods: []string{"GET"},
			AuthRequired: true, Permission: "questions.read", WorkspaceScoped: true, CollectLogs: true,
		},
		{
			Pattern: "/api/workspaces/provider/questions", Methods: []string{"POST"},
			AuthRequired: true, Permission: "questions.create", WorkspaceScoped: true,
			CollectLogs: true, CollectActionLogs: true,
		},
		{
			Pattern: "/api/workspaces/provider/questions/publish/:questionId", Methods: []string{"POST", "DELETE"},
			AuthRequired: true, Permission: "questions.publish", WorkspaceScoped: true,
			CollectLogs: true, CollectActionLogs: true,
		},
		{
			Pattern: "/api/workspaces/provider/topics/update/:topicId", Methods: []string{"PATCH", "PUT"},
			AuthRequired: true, Permission: "topics.update", WorkspaceScoped: true,
			CollectLogs: true, CollectActionLogs: true,
		},

		// Store listings, scoped by workspace id in the path
		{
			Pattern: "/api/workspaces/:workspaceId/listings", Methods: []string{"GET"},
			AuthRequired: true, Permission: "listings.read",
			WorkspaceScoped: true, WorkspaceParam: "workspaceId",
		},
		{
			Pattern: "/api/workspaces/:workspaceId/listings", Methods: []string{"POST"},
			AuthRequired: true, Permission: "listings.create", RequireEmailVerified: true,
			WorkspaceScoped: true, WorkspaceParam: "workspaceId", CollectLogs: true, CollectActionLogs: true,
		},
		{
			Pattern: "/api/workspaces/:workspaceId/listings/:listingId", Methods: []string{"PATCH"},
			AuthRequired: true, Permission: "listings.update",
			WorkspaceScoped: true, WorkspaceParam: "workspaceId", CollectLogs: true, CollectActionLogs: true,
		},
		{
			Pattern: "/api/workspaces/:workspaceId/listings/:listingId", Methods: []string{"DELETE"},
			AuthRequired: true, Permission: "listings.delete",
			WorkspaceScoped: true, WorkspaceParam: "workspaceId", CollectLogs: true, CollectActionLogs: true,
		},
		{
			Pattern: "/api/workspaces/:workspaceId/payouts", Methods: []string{"POST"},
			AuthRequired: true, RequiredPermissions: []string{"payouts.create", "listings.read"},
			RequireEmailVerified: true, RequirePhoneVerified: true,
			WorkspaceScoped: true, WorkspaceParam: "workspaceId", CollectLogs: true, CollectActionLogs: true,
		},

		// Staff administration
		{
			Pattern: "/api/admin/audit", Methods: []string{"GET"},
			AuthRequired: true, Permission: "audit.read", CollectLogs: true,
		},
		{
			Pattern: "/api/admin/accounts/:accountId/suspend", Methods: []string{"POST"},
			AuthRequired: true, Permission: "accounts.suspend", CollectLogs: true, CollectActionLogs: true,
		},

		// Authenticated pages
		{Pattern: "/dashboard", Methods: []string{"GET"}, AuthRequired: true, RequireEmailVerified: true},
		{Pattern: "/dashboard/*", Methods: []string{"GET"}, AuthRequired: true, RequireEmailVerified: true},
		{
			Pattern: "/dashboard/payouts", Methods: []string{"GET"},
			AuthRequired: true, RequireEmailVerified: true, RequirePhoneVerified: true, Permission: "payouts.create",
		},
		{Pattern: "/staff/*", Methods: []string{"GET"}, AuthRequired: true, Permission: "staff.access"},

		// Page fragments, rendered in place by the page that loads them
		{Pattern: "/fragments/staff/*", Methods: []string{"GET"}, AuthRequired: true, Permission: "staff.access"},
		{
			Pattern: "/fragments/workspaces/:workspaceId/payouts", Methods: []string{"GET"},
			AuthRequired: true, Permission: "payouts.create", WorkspaceScoped: true, WorkspaceParam: "workspaceId",
		},
	}
}

// LoadFile reads additional routes from the "routes" key of a YAML file.
//
//	routes:
//	  - pattern: /api/reports/:reportId
//	    methods: [GET]
//	    auth_required: true
//	    permission: reports.read
func LoadFile(path string) ([]RouteConfig, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load route file %s: %w", path, err)
	}

	var extra []RouteConfig
	if err := k.Unmarshal("routes", &extra); err != nil {
		return nil, fmt.Errorf("failed to parse route file %s: %w", path, err)
	}
	return extra, nil
}

// Load builds the table from the built-in routes plus the optional file.
func Load(path string, opts Options) (*Table, error) {
	all := DefaultRoutes()
	if path != "" {
		extra, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, extra...)
	}
	return NewTable(all, opts)
}

// Gatehouse - Request Authorization and Session Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatehouse

package accounts

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DemoPassword is the password of every seeded demo user.
const DemoPassword = "gatehouse-demo"

// SeedDemo fills the store with one user per interesting authorization case.
// cost is the bcrypt cost; tests pass bcrypt.MinCost.
func SeedDemo(s *MemoryStore, cost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}
	now := time.Now().UTC()

	users := []*User{
		{ID: "u-store-owner", Email: "owner@store.test", Name: "Store Owner", EmailVerified: true, PhoneVerified: true},
		{ID: "u-store-editor", Email: "editor@store.test", Name: "Store Editor", EmailVerified: true},
		{ID: "u-provider", Email: "owner@provider.test", Name: "Provider Owner", EmailVerified: true, PhoneVerified: true},
		{ID: "u-staff", Email: "admin@staff.test", Name: "Staff Admin", EmailVerified: true, PhoneVerified: true},
		{ID: "u-unverified", Email: "new@store.test", Name: "New Seller"},
		{ID: "u-suspended", Email: "banned@store.test", Name: "Suspended Seller", EmailVerified: true},
	}
	for _, u := range users {
		u.PasswordHash = string(hash)
		u.CreatedAt = now
		s.PutUser(u)
	}

	accounts := []*Account{
		{ID: "a-store-owner", UserID: "u-store-owner", Role: "store_owner", WorkspaceID: "ws-store-1", WorkspaceType: WorkspaceStore},
		{ID: "a-store-editor", UserID: "u-store-editor", Role: "store_editor", WorkspaceID: "ws-store-1", WorkspaceType: WorkspaceStore, Memberships: []string{"ws-store-2"}},
		{ID: "a-provider", UserID: "u-provider", Role: "provider_owner", WorkspaceID: "ws-provider-1", WorkspaceType: WorkspaceProvider},
		{ID: "a-staff", UserID: "u-staff", Role: "staff_admin", WorkspaceID: "ws-staff", WorkspaceType: WorkspaceStaff},
		{ID: "a-unverified", UserID: "u-unverified", Role: "store_owner", WorkspaceID: "ws-store-3", WorkspaceType: WorkspaceStore},
		{ID: "a-suspended", UserID: "u-suspended", Role: "store_owner", WorkspaceID: "ws-store-4", WorkspaceType: WorkspaceStore, Suspended: true},
	}
	for _, a := range accounts {
		s.PutAccount(a)
	}
	return nil
}

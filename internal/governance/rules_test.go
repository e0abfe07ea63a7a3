// Copyright 2026 The ADRGov Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package governance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/decisionrecords/adrgov/internal/tenant"
)

func member(role tenant.Role) *tenant.Membership {
	return &tenant.Membership{
		ID:       "m-1",
		TenantID: "t-1",
		UserID:   "u-1",
		Role:     role,
	}
}

func bootstrapTenant() *tenant.Tenant {
	return &tenant.Tenant{
		ID:                    "t-1",
		Name:                  "acme",
		Status:                tenant.StatusActive,
		MaturityState:         tenant.MaturityBootstrap,
		MaturityAgeDays:       30,
		MaturityUserThreshold: 5,
		Settings:              tenant.DefaultSettings(),
		CreatedAt:             time.Now(),
	}
}

// TestPurpose: Validates the maturity gate on high-impact settings.
// Scope: Unit Test
// Expected: Changes are denied for a bootstrap tenant with a single
// admin, and allowed once the tenant is mature or has admin redundancy.
// Test Case ID: GOV-01
func TestGovernance_CanModifySetting(t *testing.T) {
	tests := []struct {
		name        string
		maturity    tenant.MaturityState
		actorRole   tenant.Role
		counts      tenant.RoleCounts
		setting     string
		newValue    bool
		wantAllowed bool
	}{
		{
			name:        "bootstrap single admin denied",
			maturity:    tenant.MaturityBootstrap,
			actorRole:   tenant.RoleAdmin,
			counts:      tenant.RoleCounts{Admins: 1, Members: 3},
			setting:     tenant.SettingAllowRegistration,
			newValue:    false,
			wantAllowed: false,
		},
		{
			name:        "bootstrap two admins allowed",
			maturity:    tenant.MaturityBootstrap,
			actorRole:   tenant.RoleAdmin,
			counts:      tenant.RoleCounts{Admins: 2, Members: 2},
			setting:     tenant.SettingAllowRegistration,
			newValue:    false,
			wantAllowed: true,
		},
		{
			name:        "bootstrap admin plus steward allowed",
			maturity:    tenant.MaturityBootstrap,
			actorRole:   tenant.RoleAdmin,
			counts:      tenant.RoleCounts{Admins: 1, Stewards: 1, Members: 2},
			setting:     tenant.SettingRequireApproval,
			newValue:    true,
			wantAllowed: true,
		},
		{
			name:        "mature single admin allowed",
			maturity:    tenant.MaturityMature,
			actorRole:   tenant.RoleAdmin,
			counts:      tenant.RoleCounts{Admins: 1, Members: 1},
			setting:     tenant.SettingAllowRegistration,
			newValue:    false,
			wantAllowed: true,
		},
		{
			name:        "non-registry setting bypasses the gate",
			maturity:    tenant.MaturityBootstrap,
			actorRole:   tenant.RoleAdmin,
			counts:      tenant.RoleCounts{Admins: 1, Members: 1},
			setting:     tenant.SettingPublicDecisions,
			newValue:    true,
			wantAllowed: true,
		},
		{
			name:        "steward denied regardless of maturity",
			maturity:    tenant.MaturityMature,
			actorRole:   tenant.RoleSteward,
			counts:      tenant.RoleCounts{Admins: 2, Stewards: 1, Members: 3},
			setting:     tenant.SettingAllowRegistration,
			newValue:    false,
			wantAllowed: false,
		},
		{
			name:        "provisional admin is not a full admin here",
			maturity:    tenant.MaturityBootstrap,
			actorRole:   tenant.RoleProvisionalAdmin,
			counts:      tenant.RoleCounts{Admins: 0, Members: 1},
			setting:     tenant.SettingAllowRegistration,
			newValue:    false,
			wantAllowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ten := bootstrapTenant()
			ten.MaturityState = tt.maturity

			d := CanModifySetting(ten, member(tt.actorRole), tt.counts, tt.setting, tt.newValue)
			assert.Equal(t, tt.wantAllowed, d.Allowed)
			if !tt.wantAllowed {
				assert.NotEmpty(t, d.Reason)
			}
		})
	}
}

// TestPurpose: Validates that a denial caused by missing admin
// redundancy carries the role counts so callers can explain the denial.
// Scope: Unit Test
// Expected: Decision.Counts is populated with the snapshot used for the
// check.
// Test Case ID: GOV-02
func TestGovernance_CanModifySetting_DenialCarriesCounts(t *testing.T) {
	counts := tenant.RoleCounts{Admins: 1, Stewards: 0, Members: 4}

	d := CanModifySetting(bootstrapTenant(), member(tenant.RoleAdmin), counts, tenant.SettingAllowRegistration, false)

	assert.False(t, d.Allowed)
	if assert.NotNil(t, d.Counts) {
		assert.Equal(t, 1, d.Counts.Admins)
		assert.Equal(t, 0, d.Counts.Stewards)
		assert.Equal(t, 4, d.Counts.Members)
	}
}

// TestPurpose: Validates the promotion ceiling per actor role.
// Scope: Unit Test
// Expected: Stewards can mint stewards but never admins; admin
// capability (provisional included) is required to mint admins.
// Test Case ID: GOV-03
func TestGovernance_CanPromoteToRole(t *testing.T) {
	tests := []struct {
		name      string
		actorRole tenant.Role
		target    tenant.Role
		wantOK    bool
	}{
		{"admin promotes to steward", tenant.RoleAdmin, tenant.RoleSteward, true},
		{"admin promotes to admin", tenant.RoleAdmin, tenant.RoleAdmin, true},
		{"provisional admin promotes to steward", tenant.RoleProvisionalAdmin, tenant.RoleSteward, true},
		{"provisional admin promotes to admin", tenant.RoleProvisionalAdmin, tenant.RoleAdmin, true},
		{"steward promotes to steward", tenant.RoleSteward, tenant.RoleSteward, true},
		{"steward cannot promote to admin", tenant.RoleSteward, tenant.RoleAdmin, false},
		{"user cannot promote to steward", tenant.RoleUser, tenant.RoleSteward, false},
		{"user cannot promote to admin", tenant.RoleUser, tenant.RoleAdmin, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := CanPromoteToRole(member(tt.actorRole), tt.target)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.NotEmpty(t, reason)
			}
		})
	}

	t.Run("nil actor denied", func(t *testing.T) {
		ok, _ := CanPromoteToRole(nil, tenant.RoleSteward)
		assert.False(t, ok)
	})

	t.Run("promoting to user is not a promotion", func(t *testing.T) {
		ok, _ := CanPromoteToRole(member(tenant.RoleAdmin), tenant.RoleUser)
		assert.False(t, ok)
	})
}

// TestPurpose: Validates the demotion rules, including the last-admin
// protection.
// Scope: Unit Test
// Expected: Stewards cannot demote anyone; the sole full admin cannot
// be demoted, including by themselves.
// Test Case ID: GOV-04
func TestGovernance_CanDemoteUser(t *testing.T) {
	t.Run("steward cannot demote", func(t *testing.T) {
		ok, reason := CanDemoteUser(member(tenant.RoleSteward), member(tenant.RoleUser), tenant.RoleCounts{Admins: 2})
		assert.False(t, ok)
		assert.Equal(t, "a steward cannot demote other members", reason)
	})

	t.Run("sole admin self-demotion denied", func(t *testing.T) {
		admin := member(tenant.RoleAdmin)
		ok, reason := CanDemoteUser(admin, admin, tenant.RoleCounts{Admins: 1, Members: 5})
		assert.False(t, ok)
		assert.Contains(t, reason, "last administrator")
	})

	t.Run("sole provisional admin self-demotion denied", func(t *testing.T) {
		prov := member(tenant.RoleProvisionalAdmin)
		ok, reason := CanDemoteUser(prov, prov, tenant.RoleCounts{ProvisionalAdmins: 1, Members: 3})
		assert.False(t, ok)
		assert.Contains(t, reason, "last administrator")
	})

	t.Run("provisional admin demoted when a full admin remains", func(t *testing.T) {
		ok, _ := CanDemoteUser(member(tenant.RoleAdmin), member(tenant.RoleProvisionalAdmin),
			tenant.RoleCounts{Admins: 1, ProvisionalAdmins: 1, Members: 2})
		assert.True(t, ok)
	})

	t.Run("admin demotes user", func(t *testing.T) {
		ok, _ := CanDemoteUser(member(tenant.RoleAdmin), member(tenant.RoleUser), tenant.RoleCounts{Admins: 1, Members: 2})
		assert.True(t, ok)
	})

	t.Run("admin demotes admin when another remains", func(t *testing.T) {
		ok, _ := CanDemoteUser(member(tenant.RoleAdmin), member(tenant.RoleAdmin), tenant.RoleCounts{Admins: 2, Members: 2})
		assert.True(t, ok)
	})

	t.Run("basic user cannot demote", func(t *testing.T) {
		ok, _ := CanDemoteUser(member(tenant.RoleUser), member(tenant.RoleUser), tenant.RoleCounts{Admins: 2})
		assert.False(t, ok)
	})
}

// TestPurpose: Validates maturity derivation from redundancy, member
// count and tenant age.
// Scope: Unit Test
// Expected: Any one satisfied criterion yields mature; otherwise the
// tenant stays in bootstrap.
// Test Case ID: GOV-05
func TestGovernance_ComputeMaturity(t *testing.T) {
	now := time.Now()

	mk := func(ageDays int) *tenant.Tenant {
		ten := bootstrapTenant()
		ten.CreatedAt = now.Add(-time.Duration(ageDays) * 24 * time.Hour)
		return ten
	}

	tests := []struct {
		name   string
		t      *tenant.Tenant
		counts tenant.RoleCounts
		want   tenant.MaturityState
	}{
		{"fresh single admin stays bootstrap", mk(0), tenant.RoleCounts{Admins: 1, Members: 1}, tenant.MaturityBootstrap},
		{"two admins mature", mk(0), tenant.RoleCounts{Admins: 2, Members: 2}, tenant.MaturityMature},
		{"admin plus steward mature", mk(0), tenant.RoleCounts{Admins: 1, Stewards: 1, Members: 2}, tenant.MaturityMature},
		{"member threshold mature", mk(0), tenant.RoleCounts{Admins: 1, Members: 5}, tenant.MaturityMature},
		{"age threshold mature", mk(30), tenant.RoleCounts{Admins: 1, Members: 1}, tenant.MaturityMature},
		{"just under age threshold", mk(29), tenant.RoleCounts{Admins: 1, Members: 1}, tenant.MaturityBootstrap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeMaturity(tt.t, tt.counts, now))
		})
	}
}

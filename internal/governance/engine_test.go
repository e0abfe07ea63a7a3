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

package governance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decisionrecords/adrgov/internal/audit"
	"github.com/decisionrecords/adrgov/internal/governance"
	"github.com/decisionrecords/adrgov/internal/store/memory"
	"github.com/decisionrecords/adrgov/internal/tenant"
)

type engineFixture struct {
	tenants *memory.TenantStore
	members *memory.MembershipStore
	audits  *memory.AuditStore
	engine  *governance.Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	tenants := memory.NewTenantStore()
	members := memory.NewMembershipStore()
	audits := memory.NewAuditStore()
	recorder := audit.NewRecorder(audits, audit.NewSlogLogger())
	return &engineFixture{
		tenants: tenants,
		members: members,
		audits:  audits,
		engine:  governance.NewEngine(tenants, members, recorder, governance.NopTxRunner{}),
	}
}

func (f *engineFixture) seedTenant(t *testing.T, createdAgo time.Duration, state tenant.MaturityState) *tenant.Tenant {
	t.Helper()
	ten := &tenant.Tenant{
		ID:                    "t-1",
		Name:                  "acme",
		Status:                tenant.StatusActive,
		MaturityState:         state,
		MaturityAgeDays:       30,
		MaturityUserThreshold: 5,
		Settings:              tenant.DefaultSettings(),
		CreatedAt:             time.Now().Add(-createdAgo),
	}
	require.NoError(t, f.tenants.Create(context.Background(), ten))
	return ten
}

func (f *engineFixture) seedMember(t *testing.T, userID string, role tenant.Role) {
	t.Helper()
	require.NoError(t, f.members.Create(context.Background(), &tenant.Membership{
		ID:        "m-" + userID,
		TenantID:  "t-1",
		UserID:    userID,
		Role:      role,
		GrantedAt: time.Now(),
	}))
}

// brokenTxRunner fails every transaction without running the callback.
type brokenTxRunner struct{}

func (brokenTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return errors.New("transaction unavailable")
}

func auditActions(entries []*audit.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

// TestPurpose: Validates the end-to-end settings flow through the
// engine, including persistence and audit on an allowed change.
// Scope: Unit Test
// Expected: The setting is written, a setting_changed entry records old
// and new values, and denials leave the stored settings untouched.
// Test Case ID: ENG-01
func TestEngine_ApplySettingChange(t *testing.T) {
	ctx := context.Background()

	t.Run("mature tenant change persists and audits", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedTenant(t, time.Hour, tenant.MaturityMature)
		f.seedMember(t, "u-admin", tenant.RoleAdmin)

		d, err := f.engine.ApplySettingChange(ctx, "t-1", "u-admin", tenant.SettingAllowRegistration, false)
		require.NoError(t, err)
		assert.True(t, d.Allowed)

		ten, err := f.tenants.GetByID(ctx, "t-1")
		require.NoError(t, err)
		assert.False(t, ten.Settings[tenant.SettingAllowRegistration])

		entries := f.audits.All()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.TypeSettingChanged, entries[0].Action)
		assert.Equal(t, "u-admin", entries[0].ActorID)
		assert.Equal(t, tenant.SettingAllowRegistration, entries[0].TargetID)
		assert.Equal(t, true, entries[0].Details["old_value"])
		assert.Equal(t, false, entries[0].Details["new_value"])
	})

	t.Run("bootstrap single admin denial leaves settings untouched", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedTenant(t, time.Hour, tenant.MaturityBootstrap)
		f.seedMember(t, "u-admin", tenant.RoleAdmin)

		d, err := f.engine.ApplySettingChange(ctx, "t-1", "u-admin", tenant.SettingAllowRegistration, false)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		require.NotNil(t, d.Counts)
		assert.Equal(t, 1, d.Counts.Admins)

		ten, err := f.tenants.GetByID(ctx, "t-1")
		require.NoError(t, err)
		assert.True(t, ten.Settings[tenant.SettingAllowRegistration])
		assert.Empty(t, f.audits.All())
	})

	t.Run("provisional admin restricted transition denied even when mature", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedTenant(t, time.Hour, tenant.MaturityMature)
		f.seedMember(t, "u-prov", tenant.RoleProvisionalAdmin)

		d, err := f.engine.ApplySettingChange(ctx, "t-1", "u-prov", tenant.SettingRequireApproval, true)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "provisional administrators")
	})

	t.Run("provisional admin may change non-restricted settings", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedTenant(t, time.Hour, tenant.MaturityBootstrap)
		f.seedMember(t, "u-prov", tenant.RoleProvisionalAdmin)

		d, err := f.engine.ApplySettingChange(ctx, "t-1", "u-prov", tenant.SettingPublicDecisions, true)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("basic user denied on non-registry setting", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedTenant(t, time.Hour, tenant.MaturityMature)
		f.seedMember(t, "u-user", tenant.RoleUser)

		d, err := f.engine.ApplySettingChange(ctx, "t-1", "u-user", tenant.SettingPublicDecisions, true)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
	})
}

// TestPurpose: Validates that mutating flows run entirely inside the
// transaction runner.
// Scope: Unit Test
// Expected: When the runner fails, setting changes and promotions
// return the error and leave no partial writes behind.
// Test Case ID: ENG-05
func TestEngine_MutationsRunInTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("setting change", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedTenant(t, time.Hour, tenant.MaturityMature)
		f.seedMember(t, "u-admin", tenant.RoleAdmin)
		recorder := audit.NewRecorder(f.audits, audit.NewSlogLogger())
		engine := governance.NewEngine(f.tenants, f.members, recorder, brokenTxRunner{})

		_, err := engine.ApplySettingChange(ctx, "t-1", "u-admin", tenant.SettingAllowRegistration, false)
		require.Error(t, err)

		ten, err := f.tenants.GetByID(ctx, "t-1")
		require.NoError(t, err)
		assert.True(t, ten.Settings[tenant.SettingAllowRegistration])
		assert.Empty(t, f.audits.All())
	})

	t.Run("promotion", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedTenant(t, time.Hour, tenant.MaturityMature)
		f.seedMember(t, "u-admin", tenant.RoleAdmin)
		f.seedMember(t, "u-2", tenant.RoleUser)
		recorder := audit.NewRecorder(f.audits, audit.NewSlogLogger())
		engine := governance.NewEngine(f.tenants, f.members, recorder, brokenTxRunner{})

		_, err := engine.PromoteMember(ctx, "t-1", "u-admin", "u-2", tenant.RoleSteward)
		require.Error(t, err)

		m, err := f.members.Get(ctx, "t-1", "u-2")
		require.NoError(t, err)
		assert.Equal(t, tenant.RoleUser, m.Role)
		assert.Empty(t, f.audits.All())
	})
}

// TestPurpose: Validates the automatic upgrade of provisional admins
// once the tenant crosses a maturity criterion.
// Scope: Unit Test
// Expected: A tenant past its age threshold upgrades its provisional
// admin to full admin with exactly one promote_user entry; a second run
// with no intervening change upgrades nobody.
// Test Case ID: ENG-02
func TestEngine_CheckAndUpgradeProvisionalAdmins(t *testing.T) {
	ctx := context.Background()

	t.Run("age threshold crossed upgrades once", func(t *testing.T) {
		f := newEngineFixture(t)
		ten := f.seedTenant(t, 48*time.Hour, tenant.MaturityBootstrap)
		ten.MaturityAgeDays = 1
		require.NoError(t, f.tenants.Update(ctx, ten))
		f.seedMember(t, "u-prov", tenant.RoleProvisionalAdmin)

		upgraded, err := f.engine.CheckAndUpgradeProvisionalAdmins(ctx, "t-1", "system")
		require.NoError(t, err)
		assert.Equal(t, []string{"u-prov"}, upgraded)

		got, err := f.tenants.GetByID(ctx, "t-1")
		require.NoError(t, err)
		assert.Equal(t, tenant.MaturityMature, got.MaturityState)

		m, err := f.members.Get(ctx, "t-1", "u-prov")
		require.NoError(t, err)
		assert.Equal(t, tenant.RoleAdmin, m.Role)

		entries := f.audits.All()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.TypePromoteUser, entries[0].Action)
		assert.Equal(t, "u-prov", entries[0].TargetID)
		assert.Equal(t, "system", entries[0].ActorID)
		assert.Equal(t, string(tenant.RoleProvisionalAdmin), entries[0].Details["old_role"])
		assert.Equal(t, string(tenant.RoleAdmin), entries[0].Details["new_role"])

		// Re-running without any membership change is a no-op.
		upgraded, err = f.engine.CheckAndUpgradeProvisionalAdmins(ctx, "t-1", "system")
		require.NoError(t, err)
		assert.Empty(t, upgraded)
		assert.Len(t, f.audits.All(), 1)
	})

	t.Run("bootstrap tenant below every threshold stays put", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedTenant(t, time.Hour, tenant.MaturityBootstrap)
		f.seedMember(t, "u-prov", tenant.RoleProvisionalAdmin)

		upgraded, err := f.engine.CheckAndUpgradeProvisionalAdmins(ctx, "t-1", "system")
		require.NoError(t, err)
		assert.Empty(t, upgraded)

		m, err := f.members.Get(ctx, "t-1", "u-prov")
		require.NoError(t, err)
		assert.Equal(t, tenant.RoleProvisionalAdmin, m.Role)
	})

	t.Run("member threshold crossed upgrades", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedTenant(t, time.Hour, tenant.MaturityBootstrap)
		f.seedMember(t, "u-prov", tenant.RoleProvisionalAdmin)
		for _, id := range []string{"u-2", "u-3", "u-4", "u-5"} {
			f.seedMember(t, id, tenant.RoleUser)
		}

		upgraded, err := f.engine.CheckAndUpgradeProvisionalAdmins(ctx, "t-1", "u-5")
		require.NoError(t, err)
		assert.Equal(t, []string{"u-prov"}, upgraded)
	})
}

// TestPurpose: Validates promotion through the engine, including the
// redundancy side effect of promoting a steward.
// Scope: Unit Test
// Expected: Promoting a user to steward under a full admin makes the
// tenant mature and upgrades any provisional admin in the same call.
// Test Case ID: ENG-03
func TestEngine_PromoteMember(t *testing.T) {
	ctx := context.Background()

	t.Run("steward promotion triggers redundancy upgrade", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedTenant(t, time.Hour, tenant.MaturityBootstrap)
		f.seedMember(t, "u-admin", tenant.RoleAdmin)
		f.seedMember(t, "u-prov", tenant.RoleProvisionalAdmin)
		f.seedMember(t, "u-2", tenant.RoleUser)

		d, err := f.engine.PromoteMember(ctx, "t-1", "u-admin", "u-2", tenant.RoleSteward)
		require.NoError(t, err)
		assert.True(t, d.Allowed)

		// Admin + steward is redundancy, so the provisional admin rides
		// along.
		m, err := f.members.Get(ctx, "t-1", "u-prov")
		require.NoError(t, err)
		assert.Equal(t, tenant.RoleAdmin, m.Role)

		actions := auditActions(f.audits.All())
		assert.Equal(t, []string{audit.TypePromoteUser, audit.TypePromoteUser}, actions)
	})

	t.Run("steward denied promoting to admin", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedTenant(t, time.Hour, tenant.MaturityBootstrap)
		f.seedMember(t, "u-steward", tenant.RoleSteward)
		f.seedMember(t, "u-2", tenant.RoleUser)

		d, err := f.engine.PromoteMember(ctx, "t-1", "u-steward", "u-2", tenant.RoleAdmin)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, "only a full administrator can promote to administrator", d.Reason)

		m, err := f.members.Get(ctx, "t-1", "u-2")
		require.NoError(t, err)
		assert.Equal(t, tenant.RoleUser, m.Role)
		assert.Empty(t, f.audits.All())
	})
}

// TestPurpose: Validates demotion through the engine.
// Scope: Unit Test
// Expected: The sole admin's self-demotion is denied; a demoted member
// lands on the basic user role with a demote_user entry.
// Test Case ID: ENG-04
func TestEngine_DemoteMember(t *testing.T) {
	ctx := context.Background()

	t.Run("sole admin cannot self-demote", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedTenant(t, time.Hour, tenant.MaturityMature)
		f.seedMember(t, "u-admin", tenant.RoleAdmin)

		d, err := f.engine.DemoteMember(ctx, "t-1", "u-admin", "u-admin")
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "last administrator")
	})

	t.Run("sole provisional founder cannot self-demote", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedTenant(t, time.Hour, tenant.MaturityBootstrap)
		f.seedMember(t, "u-prov", tenant.RoleProvisionalAdmin)
		f.seedMember(t, "u-2", tenant.RoleUser)

		d, err := f.engine.DemoteMember(ctx, "t-1", "u-prov", "u-prov")
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "last administrator")

		m, err := f.members.Get(ctx, "t-1", "u-prov")
		require.NoError(t, err)
		assert.Equal(t, tenant.RoleProvisionalAdmin, m.Role)
	})

	t.Run("demoted steward becomes user", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seedTenant(t, time.Hour, tenant.MaturityMature)
		f.seedMember(t, "u-admin", tenant.RoleAdmin)
		f.seedMember(t, "u-steward", tenant.RoleSteward)

		d, err := f.engine.DemoteMember(ctx, "t-1", "u-admin", "u-steward")
		require.NoError(t, err)
		assert.True(t, d.Allowed)

		m, err := f.members.Get(ctx, "t-1", "u-steward")
		require.NoError(t, err)
		assert.Equal(t, tenant.RoleUser, m.Role)

		entries := f.audits.All()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.TypeDemoteUser, entries[0].Action)
		assert.Equal(t, string(tenant.RoleSteward), entries[0].Details["old_role"])
	})
}

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
	"time"

	"github.com/decisionrecords/adrgov/internal/tenant"
)

// Decision is the result of a governance gate. Denials are values, not
// errors: the reason is meant to be rendered to the end user, and the
// counts let the caller explain what redundancy is missing.
type Decision struct {
	Allowed bool               `json:"allowed"`
	Reason  string             `json:"reason,omitempty"`
	Counts  *tenant.RoleCounts `json:"counts,omitempty"`
}

// Allow is the zero-reason positive decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny builds a negative decision with a reason.
func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// CanModifySetting decides whether the actor may change the given
// tenant setting. Checks run in order: full-admin requirement,
// high-impact registry bypass, maturity, then admin redundancy. A
// bootstrap tenant with a single admin is a single point of failure, so
// restrictive settings stay locked until redundancy exists.
func CanModifySetting(t *tenant.Tenant, actor *tenant.Membership, counts tenant.RoleCounts, setting string, newValue bool) Decision {
	// Provisional admin is insufficient here.
	if actor == nil || actor.Role != tenant.RoleAdmin {
		return Deny("permission denied")
	}

	// Settings outside the registry bypass the maturity gate.
	if !IsHighImpact(setting) {
		return Allow()
	}

	if t.MaturityState == tenant.MaturityMature {
		return Allow()
	}

	if counts.HasAdminRedundancy() {
		return Allow()
	}

	c := counts
	return Decision{
		Allowed: false,
		Reason:  "cannot modify restrictive settings yet: the tenant needs a second administrator or a steward first",
		Counts:  &c,
	}
}

// CanPromoteToRole decides whether the actor may promote another member
// to the target role. The ceiling is by actor role: stewards may mint
// stewards, admin capability (provisional included) is required to mint
// admins.
func CanPromoteToRole(actor *tenant.Membership, target tenant.Role) (bool, string) {
	if actor == nil {
		return false, "permission denied"
	}

	switch target {
	case tenant.RoleSteward:
		if actor.Role == tenant.RoleSteward || actor.Role.IsAdmin() {
			return true, ""
		}
		return false, "only stewards and administrators can promote to steward"
	case tenant.RoleAdmin:
		if actor.Role.IsAdmin() {
			return true, ""
		}
		return false, "only a full administrator can promote to administrator"
	}

	return false, "unknown target role"
}

// CanDemoteUser decides whether the actor may demote the target
// membership. Admin capability is required, and the tenant must never
// be left without an administrator.
func CanDemoteUser(actor, target *tenant.Membership, counts tenant.RoleCounts) (bool, string) {
	if actor == nil || target == nil {
		return false, "permission denied"
	}

	if !actor.Role.IsAdmin() {
		if actor.Role == tenant.RoleSteward {
			return false, "a steward cannot demote other members"
		}
		return false, "permission denied"
	}

	// Demoting the last admin-capable member would leave the tenant
	// adminless. Provisional admins count: a fresh tenant's sole
	// provisional founder is the common case.
	if target.Role.IsAdmin() && counts.AdminCapable() <= 1 {
		return false, "demoting the last administrator would leave no administrator in the tenant"
	}

	return true, ""
}

// ComputeMaturity derives the tenant's maturity state from its current
// membership and age. The state is a pure function of these inputs at
// evaluation time.
func ComputeMaturity(t *tenant.Tenant, counts tenant.RoleCounts, now time.Time) tenant.MaturityState {
	if counts.HasAdminRedundancy() {
		return tenant.MaturityMature
	}
	if t.MaturityUserThreshold > 0 && counts.Members >= t.MaturityUserThreshold {
		return tenant.MaturityMature
	}
	if t.MaturityAgeDays > 0 && t.AgeDays(now) >= t.MaturityAgeDays {
		return tenant.MaturityMature
	}
	return tenant.MaturityBootstrap
}

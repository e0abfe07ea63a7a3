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
	"github.com/decisionrecords/adrgov/internal/tenant"
)

// HighImpactSettings is the fixed registry of tenant settings whose
// modification is gated by maturity and admin redundancy. A change to
// any of these can lock members out or alter access policy
// irreversibly.
//
// A setting name absent from this registry bypasses the maturity gate
// entirely. That is deliberate and load-bearing: adding a new sensitive
// setting without registering it here silently exempts it. Callers that
// want a closed-world check can use IsHighImpact before writing.
var HighImpactSettings = map[string]bool{
	tenant.SettingAllowRegistration: true,
	tenant.SettingRequireApproval:   true,
}

// IsHighImpact reports whether the setting is in the gated registry.
func IsHighImpact(setting string) bool {
	return HighImpactSettings[setting]
}

// RestrictedForProvisionalAdmin reports whether the given setting
// transition is one a provisional admin may not make alone, with a
// human-readable reason. Full admins are never restricted by this
// check.
//
// The restricted transitions are a hard-coded policy, not data-driven:
// a provisional admin is the sole, not-yet-verified administrator of a
// brand-new tenant and must not be able to unilaterally lock other
// users out of self-service signup or gate all new joins behind
// approval.
func RestrictedForProvisionalAdmin(setting string, newValue bool, m *tenant.Membership) (bool, string) {
	if m == nil || m.Role != tenant.RoleProvisionalAdmin {
		return false, ""
	}

	switch {
	case setting == tenant.SettingAllowRegistration && !newValue:
		return true, "provisional administrators cannot disable member registration"
	case setting == tenant.SettingRequireApproval && newValue:
		return true, "provisional administrators cannot enable join approval"
	}

	return false, ""
}

// ProvisionalAdminRestrictions returns the ordered list of restriction
// descriptions that apply to the membership. It exists purely for UI
// disclosure; enforcement happens in RestrictedForProvisionalAdmin.
func ProvisionalAdminRestrictions(m *tenant.Membership) []string {
	if m == nil || m.Role != tenant.RoleProvisionalAdmin {
		return nil
	}
	return []string{
		"Cannot disable member registration until the tenant matures",
		"Cannot enable join approval until the tenant matures",
	}
}

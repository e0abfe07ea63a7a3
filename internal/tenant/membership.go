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

package tenant

import "time"

// Role is the member's role within a tenant. The set is closed: the
// promotion and demotion tables in the governance engine are written
// against exactly these four values.
type Role string

const (
	// RoleUser is a basic member with no governance capabilities.
	RoleUser Role = "user"

	// RoleSteward may promote other members to steward and counts toward
	// admin redundancy.
	RoleSteward Role = "steward"

	// RoleProvisionalAdmin is granted automatically to a tenant's first
	// administrator before the tenant reaches maturity. It carries admin
	// capability minus a fixed set of restricted setting changes.
	RoleProvisionalAdmin Role = "provisional_admin"

	// RoleAdmin is a full administrator.
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSteward, RoleProvisionalAdmin, RoleAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role carries admin capability,
// provisional or full.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleProvisionalAdmin
}

// Membership binds one user to one tenant with exactly one role.
// A user has at most one membership per tenant (unique constraint in
// the schema).
type Membership struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	GrantedAt time.Time `json:"granted_at"`
	GrantedBy string    `json:"granted_by,omitempty"`
}

// RoleCounts is a snapshot of a tenant's membership broken down by the
// roles governance cares about.
type RoleCounts struct {
	Admins            int `json:"admin_count"`
	Stewards          int `json:"steward_count"`
	ProvisionalAdmins int `json:"provisional_admin_count"`
	Members           int `json:"member_count"`
}

// AdminCapable returns the number of members with admin capability,
// provisional or full.
func (c RoleCounts) AdminCapable() int {
	return c.Admins + c.ProvisionalAdmins
}

// HasAdminRedundancy reports whether the tenant is protected against a
// single admin being a single point of failure: two full admins, or one
// admin plus at least one steward.
func (c RoleCounts) HasAdminRedundancy() bool {
	return c.Admins >= 2 || (c.Admins >= 1 && c.Stewards >= 1)
}

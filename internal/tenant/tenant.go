package tenant

import (
	"time"
)

// Tenant represents an isolated workspace owning its own decisions,
// members and settings
type Tenant struct {
	ID                    string        `json:"id"`
	Name                  string        `json:"name"`
	Status                string        `json:"status"`
	MaturityState         MaturityState `json:"maturity_state"`
	MaturityAgeDays       int           `json:"maturity_age_days"`
	MaturityUserThreshold int           `json:"maturity_user_threshold"`
	Settings              Settings      `json:"settings"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}

// Status constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// MaturityState describes how far a tenant has progressed out of its
// bootstrap phase. It is recomputed from admin redundancy, member count
// and age; it is never set directly by callers.
type MaturityState string

const (
	// MaturityBootstrap marks a newly formed tenant that still has a
	// single point of administrative failure.
	MaturityBootstrap MaturityState = "bootstrap"

	// MaturityMature marks a tenant with enough redundancy, scale or age
	// to be trusted with irreversible changes.
	MaturityMature MaturityState = "mature"
)

// Valid reports whether the state is one of the known maturity states.
func (s MaturityState) Valid() bool {
	return s == MaturityBootstrap || s == MaturityMature
}

// AgeDays returns the tenant age in whole days at the given instant.
func (t *Tenant) AgeDays(now time.Time) int {
	return int(now.Sub(t.CreatedAt).Hours() / 24)
}

// Settings holds the tenant's governance-relevant boolean flags, stored
// as a JSONB column.
type Settings map[string]bool

// Well-known setting names.
const (
	SettingAllowRegistration = "allow_registration"
	SettingRequireApproval   = "require_approval"
	SettingPublicDecisions   = "public_decisions"
)

// DefaultSettings returns the settings a freshly provisioned tenant
// starts with.
func DefaultSettings() Settings {
	return Settings{
		SettingAllowRegistration: true,
		SettingRequireApproval:   false,
		SettingPublicDecisions:   false,
	}
}

// Clone returns a copy of the settings map.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

package tenant

import (
	"context"
	"errors"
)

var (
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrMembershipExists   = errors.New("membership already exists")
)

// Repository defines the interface for tenant storage
type Repository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	GetByName(ctx context.Context, name string) (*Tenant, error)

	// GetForUpdate loads the tenant row with a row-level lock. Callers
	// use it inside a transaction to serialize maturity recomputation.
	GetForUpdate(ctx context.Context, id string) (*Tenant, error)

	Update(ctx context.Context, tenant *Tenant) error
	UpdateMaturity(ctx context.Context, id string, state MaturityState) error
	UpdateSettings(ctx context.Context, id string, settings Settings) error
	List(ctx context.Context, limit, offset int) ([]*Tenant, error)
	ListByMaturity(ctx context.Context, state MaturityState) ([]*Tenant, error)
}

// MembershipRepository defines the interface for membership storage
type MembershipRepository interface {
	Create(ctx context.Context, m *Membership) error
	Get(ctx context.Context, tenantID, userID string) (*Membership, error)
	UpdateRole(ctx context.Context, tenantID, userID string, role Role) error
	ListByTenant(ctx context.Context, tenantID string) ([]*Membership, error)
	ListByRole(ctx context.Context, tenantID string, role Role) ([]*Membership, error)
	CountByRole(ctx context.Context, tenantID string) (RoleCounts, error)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/decisionrecords/adrgov/internal/tenant"
)

// MembershipRepository implements tenant.MembershipRepository
type MembershipRepository struct {
	db *DB
}

// NewMembershipRepository creates a new membership repository
func NewMembershipRepository(db *DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Create inserts a new membership row
func (r *MembershipRepository) Create(ctx context.Context, m *tenant.Membership) error {
	var grantedBy sql.NullString
	if m.GrantedBy != "" {
		grantedBy = sql.NullString{String: m.GrantedBy, Valid: true}
	}

	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO tenant_memberships (id, tenant_id, user_id, role, granted_at, granted_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.TenantID, m.UserID, string(m.Role), m.GrantedAt, grantedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return tenant.ErrMembershipExists
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

// Get retrieves a user's membership in a tenant
func (r *MembershipRepository) Get(ctx context.Context, tenantID, userID string) (*tenant.Membership, error) {
	row := r.db.q(ctx).QueryRow(ctx, `
		SELECT id, tenant_id, user_id, role, granted_at, granted_by
		FROM tenant_memberships
		WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID)
	return scanMembership(row)
}

// UpdateRole changes the membership's role
func (r *MembershipRepository) UpdateRole(ctx context.Context, tenantID, userID string, role tenant.Role) error {
	result, err := r.db.q(ctx).Exec(ctx, `
		UPDATE tenant_memberships SET role = $3 WHERE tenant_id = $1 AND user_id = $2
	`, tenantID, userID, string(role))
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrMembershipNotFound
	}
	return nil
}

// ListByTenant retrieves all memberships in a tenant
func (r *MembershipRepository) ListByTenant(ctx context.Context, tenantID string) ([]*tenant.Membership, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT id, tenant_id, user_id, role, granted_at, granted_by
		FROM tenant_memberships
		WHERE tenant_id = $1
		ORDER BY granted_at
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()
	return scanMemberships(rows)
}

// ListByRole retrieves all memberships in a tenant with the given role
func (r *MembershipRepository) ListByRole(ctx context.Context, tenantID string, role tenant.Role) ([]*tenant.Membership, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT id, tenant_id, user_id, role, granted_at, granted_by
		FROM tenant_memberships
		WHERE tenant_id = $1 AND role = $2
		ORDER BY granted_at
	`, tenantID, string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships by role: %w", err)
	}
	defer rows.Close()
	return scanMemberships(rows)
}

// CountByRole returns the tenant's membership counts by role
func (r *MembershipRepository) CountByRole(ctx context.Context, tenantID string) (tenant.RoleCounts, error) {
	var counts tenant.RoleCounts
	err := r.db.q(ctx).QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE role = 'admin'),
			COUNT(*) FILTER (WHERE role = 'steward'),
			COUNT(*) FILTER (WHERE role = 'provisional_admin'),
			COUNT(*)
		FROM tenant_memberships
		WHERE tenant_id = $1
	`, tenantID).Scan(&counts.Admins, &counts.Stewards, &counts.ProvisionalAdmins, &counts.Members)
	if err != nil {
		return tenant.RoleCounts{}, fmt.Errorf("failed to count memberships: %w", err)
	}
	return counts, nil
}

func scanMembership(row pgx.Row) (*tenant.Membership, error) {
	var m tenant.Membership
	var role string
	var grantedBy sql.NullString
	err := row.Scan(&m.ID, &m.TenantID, &m.UserID, &role, &m.GrantedAt, &grantedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to scan membership: %w", err)
	}
	m.Role = tenant.Role(role)
	if grantedBy.Valid {
		m.GrantedBy = grantedBy.String
	}
	return &m, nil
}

func scanMemberships(rows pgx.Rows) ([]*tenant.Membership, error) {
	var memberships []*tenant.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

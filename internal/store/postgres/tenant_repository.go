package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/decisionrecords/adrgov/internal/tenant"
)

// TenantRepository implements tenant.Repository
type TenantRepository struct {
	db *DB
}

// NewTenantRepository creates a new tenant repository
func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

const tenantColumns = `id, name, status, maturity_state, maturity_age_days, maturity_user_threshold, settings, created_at, updated_at`

// Create inserts a new tenant row
func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = r.db.q(ctx).Exec(ctx, `
		INSERT INTO tenants (id, name, status, maturity_state, maturity_age_days, maturity_user_threshold, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.Name, t.Status, string(t.MaturityState), t.MaturityAgeDays, t.MaturityUserThreshold, settings, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant by ID
func (r *TenantRepository) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	row := r.db.q(ctx).QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

// GetByName retrieves a tenant by name
func (r *TenantRepository) GetByName(ctx context.Context, name string) (*tenant.Tenant, error) {
	row := r.db.q(ctx).QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE name = $1`, name)
	return scanTenant(row)
}

// GetForUpdate retrieves a tenant by ID with a row-level lock. Must be
// called inside RunInTx; outside a transaction the lock releases
// immediately and serializes nothing.
func (r *TenantRepository) GetForUpdate(ctx context.Context, id string) (*tenant.Tenant, error) {
	row := r.db.q(ctx).QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1 FOR UPDATE`, id)
	return scanTenant(row)
}

// Update updates tenant information
func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	settings, err := json.Marshal(t.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	result, err := r.db.q(ctx).Exec(ctx, `
		UPDATE tenants
		SET name = $2, status = $3, maturity_state = $4, maturity_age_days = $5,
		    maturity_user_threshold = $6, settings = $7, updated_at = $8
		WHERE id = $1
	`, t.ID, t.Name, t.Status, string(t.MaturityState), t.MaturityAgeDays, t.MaturityUserThreshold, settings, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

// UpdateMaturity sets the tenant's maturity state
func (r *TenantRepository) UpdateMaturity(ctx context.Context, id string, state tenant.MaturityState) error {
	result, err := r.db.q(ctx).Exec(ctx, `
		UPDATE tenants SET maturity_state = $2, updated_at = $3 WHERE id = $1
	`, id, string(state), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update maturity state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

// UpdateSettings replaces the tenant's settings map
func (r *TenantRepository) UpdateSettings(ctx context.Context, id string, settings tenant.Settings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	result, err := r.db.q(ctx).Exec(ctx, `
		UPDATE tenants SET settings = $2, updated_at = $3 WHERE id = $1
	`, id, payload, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	if result.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

// List retrieves tenants with pagination
func (r *TenantRepository) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT `+tenantColumns+` FROM tenants ORDER BY created_at LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()
	return scanTenants(rows)
}

// ListByMaturity retrieves all tenants in the given maturity state
func (r *TenantRepository) ListByMaturity(ctx context.Context, state tenant.MaturityState) ([]*tenant.Tenant, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT `+tenantColumns+` FROM tenants WHERE maturity_state = $1 ORDER BY created_at
	`, string(state))
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants by maturity: %w", err)
	}
	defer rows.Close()
	return scanTenants(rows)
}

func scanTenant(row pgx.Row) (*tenant.Tenant, error) {
	var t tenant.Tenant
	var state string
	var settings []byte
	err := row.Scan(&t.ID, &t.Name, &t.Status, &state, &t.MaturityAgeDays, &t.MaturityUserThreshold, &settings, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to scan tenant: %w", err)
	}
	t.MaturityState = tenant.MaturityState(state)
	if err := json.Unmarshal(settings, &t.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return &t, nil
}

func scanTenants(rows pgx.Rows) ([]*tenant.Tenant, error) {
	var tenants []*tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

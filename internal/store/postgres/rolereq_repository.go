package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/decisionrecords/adrgov/internal/rolereq"
	"github.com/decisionrecords/adrgov/internal/tenant"
)

// RoleRequestRepository implements rolereq.Repository
type RoleRequestRepository struct {
	db *DB
}

// NewRoleRequestRepository creates a new role request repository
func NewRoleRequestRepository(db *DB) *RoleRequestRepository {
	return &RoleRequestRepository{db: db}
}

// Create inserts a new role request
func (r *RoleRequestRepository) Create(ctx context.Context, req *rolereq.Request) error {
	var note sql.NullString
	if req.Note != "" {
		note = sql.NullString{String: req.Note, Valid: true}
	}

	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO role_requests (id, tenant_id, user_id, requested_role, note, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, req.ID, req.TenantID, req.UserID, string(req.RequestedRole), note, string(req.Status), req.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Partial unique index on pending requests backs the
			// at-most-one-pending invariant.
			return rolereq.ErrDuplicatePending
		}
		return fmt.Errorf("failed to create role request: %w", err)
	}
	return nil
}

// GetByID retrieves a role request by ID
func (r *RoleRequestRepository) GetByID(ctx context.Context, id string) (*rolereq.Request, error) {
	row := r.db.q(ctx).QueryRow(ctx, `
		SELECT id, tenant_id, user_id, requested_role, note, status, reviewed_by, reviewed_at, created_at
		FROM role_requests WHERE id = $1
	`, id)
	return scanRequest(row)
}

// FindPending returns the pending request for the (tenant, user, role) triple
func (r *RoleRequestRepository) FindPending(ctx context.Context, tenantID, userID string, role tenant.Role) (*rolereq.Request, error) {
	row := r.db.q(ctx).QueryRow(ctx, `
		SELECT id, tenant_id, user_id, requested_role, note, status, reviewed_by, reviewed_at, created_at
		FROM role_requests
		WHERE tenant_id = $1 AND user_id = $2 AND requested_role = $3 AND status = 'pending'
	`, tenantID, userID, string(role))
	return scanRequest(row)
}

// MarkReviewed transitions a pending request to a terminal status. The
// WHERE clause guards the transition: a request already reviewed
// matches zero rows.
func (r *RoleRequestRepository) MarkReviewed(ctx context.Context, id string, status rolereq.Status, reviewerID string, reviewedAt time.Time) error {
	result, err := r.db.q(ctx).Exec(ctx, `
		UPDATE role_requests
		SET status = $2, reviewed_by = $3, reviewed_at = $4
		WHERE id = $1 AND status = 'pending'
	`, id, string(status), reviewerID, reviewedAt)
	if err != nil {
		return fmt.Errorf("failed to review role request: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Either missing or already terminal; disambiguate.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return rolereq.ErrAlreadyReviewed
	}
	return nil
}

// ListByTenant retrieves a tenant's role requests, optionally filtered by status
func (r *RoleRequestRepository) ListByTenant(ctx context.Context, tenantID string, status *rolereq.Status) ([]*rolereq.Request, error) {
	query := `
		SELECT id, tenant_id, user_id, requested_role, note, status, reviewed_by, reviewed_at, created_at
		FROM role_requests WHERE tenant_id = $1`
	args := []any{tenantID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, string(*status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list role requests: %w", err)
	}
	defer rows.Close()

	var requests []*rolereq.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// DeleteTerminalBefore removes approved and rejected requests older than the cutoff
func (r *RoleRequestRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.q(ctx).Exec(ctx, `
		DELETE FROM role_requests
		WHERE status IN ('approved', 'rejected') AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminal role requests: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanRequest(row pgx.Row) (*rolereq.Request, error) {
	var req rolereq.Request
	var requestedRole, status string
	var note, reviewedBy sql.NullString
	var reviewedAt sql.NullTime
	err := row.Scan(&req.ID, &req.TenantID, &req.UserID, &requestedRole, &note, &status, &reviewedBy, &reviewedAt, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rolereq.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to scan role request: %w", err)
	}
	req.RequestedRole = tenant.Role(requestedRole)
	req.Status = rolereq.Status(status)
	if note.Valid {
		req.Note = note.String
	}
	if reviewedBy.Valid {
		req.ReviewedBy = reviewedBy.String
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		req.ReviewedAt = &t
	}
	return &req, nil
}

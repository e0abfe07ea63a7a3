package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/decisionrecords/adrgov/internal/audit"
)

// AuditRepository implements audit.Store. The audit_log table is
// append-only; there is deliberately no update or delete here.
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends an audit entry
func (r *AuditRepository) Insert(ctx context.Context, entry *audit.Entry) error {
	var details []byte
	if entry.Details != nil {
		var err error
		details, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}

	var targetID sql.NullString
	if entry.TargetID != "" {
		targetID = sql.NullString{String: entry.TargetID, Valid: true}
	}

	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO audit_log (id, tenant_id, actor_id, action, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.TenantID, entry.ActorID, entry.Action, targetID, details, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListByTenant retrieves a tenant's audit entries, newest first
func (r *AuditRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*audit.Entry, error) {
	rows, err := r.db.q(ctx).Query(ctx, `
		SELECT id, tenant_id, actor_id, action, target_id, details, created_at
		FROM audit_log
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var entry audit.Entry
		var targetID sql.NullString
		var details []byte
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.ActorID, &entry.Action, &targetID, &details, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if targetID.Valid {
			entry.TargetID = targetID.String
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

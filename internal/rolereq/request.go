package rolereq

import (
	"context"
	"errors"
	"time"

	"github.com/decisionrecords/adrgov/internal/tenant"
)

var (
	ErrRequestNotFound    = errors.New("role request not found")
	ErrAlreadyReviewed    = errors.New("role request already reviewed")
	ErrDuplicatePending   = errors.New("a pending request for this role already exists")
	ErrInvalidRequestRole = errors.New("requested role must be steward or admin")
)

// Status of a role request. A request leaves pending exactly once and
// is immutable afterward.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Request is a user's request to be promoted within a tenant.
type Request struct {
	ID            string      `json:"id"`
	TenantID      string      `json:"tenant_id"`
	UserID        string      `json:"user_id"`
	RequestedRole tenant.Role `json:"requested_role"`
	Note          string      `json:"note,omitempty"`
	Status        Status      `json:"status"`
	ReviewedBy    string      `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time  `json:"reviewed_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Repository defines the interface for role request storage
type Repository interface {
	Create(ctx context.Context, req *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)

	// FindPending returns the pending request for the (tenant, user,
	// role) triple, or ErrRequestNotFound.
	FindPending(ctx context.Context, tenantID, userID string, role tenant.Role) (*Request, error)

	// MarkReviewed transitions a pending request to a terminal status.
	// It returns ErrAlreadyReviewed when the request is no longer
	// pending, so the transition happens at most once.
	MarkReviewed(ctx context.Context, id string, status Status, reviewerID string, reviewedAt time.Time) error

	ListByTenant(ctx context.Context, tenantID string, status *Status) ([]*Request, error)

	// DeleteTerminalBefore removes approved and rejected requests older
	// than the cutoff. Used by the retention cleanup tool only.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

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

package rolereq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/decisionrecords/adrgov/internal/audit"
	"github.com/decisionrecords/adrgov/internal/governance"
	"github.com/decisionrecords/adrgov/internal/tenant"
)

// Service provides role request business logic
type Service struct {
	repo     Repository
	members  tenant.MembershipRepository
	engine   *governance.Engine
	recorder audit.Recorder
	tx       governance.TxRunner
}

// NewService creates a new role request service
func NewService(repo Repository, members tenant.MembershipRepository, engine *governance.Engine, recorder audit.Recorder, tx governance.TxRunner) *Service {
	return &Service{
		repo:     repo,
		members:  members,
		engine:   engine,
		recorder: recorder,
		tx:       tx,
	}
}

// Submit files a promotion request. The requester must already be a
// member, the role must be steward or admin, and at most one pending
// request per (user, tenant, role) may exist.
func (s *Service) Submit(ctx context.Context, tenantID, userID string, requested tenant.Role, note string) (*Request, error) {
	if requested != tenant.RoleSteward && requested != tenant.RoleAdmin {
		return nil, ErrInvalidRequestRole
	}

	m, err := s.members.Get(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if m.Role == requested {
		return nil, fmt.Errorf("user already holds role %s", requested)
	}

	if _, err := s.repo.FindPending(ctx, tenantID, userID, requested); err == nil {
		return nil, ErrDuplicatePending
	} else if !errors.Is(err, ErrRequestNotFound) {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate request id: %w", err)
	}

	req := &Request{
		ID:            id.String(),
		TenantID:      tenantID,
		UserID:        userID,
		RequestedRole: requested,
		Note:          note,
		Status:        StatusPending,
		CreatedAt:     time.Now(),
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, req); err != nil {
			return fmt.Errorf("failed to create role request: %w", err)
		}

		return s.recorder.Record(ctx, audit.Event{
			Type:     audit.TypeRoleRequestSubmitted,
			TenantID: tenantID,
			ActorID:  userID,
			TargetID: req.ID,
			Details:  map[string]any{"requested_role": string(requested)},
		})
	})
	if err != nil {
		return nil, err
	}

	return req, nil
}

// Review approves or rejects a pending request. The reviewer's
// authority is the promotion ceiling: whoever could not grant the role
// directly cannot arbitrate a request for it either. A request
// transitions out of pending exactly once.
func (s *Service) Review(ctx context.Context, requestID, reviewerUserID string, approve bool) (governance.Decision, *Request, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return governance.Decision{}, nil, err
	}
	if req.Status.Terminal() {
		return governance.Decision{}, nil, ErrAlreadyReviewed
	}

	reviewer, err := s.members.Get(ctx, req.TenantID, reviewerUserID)
	if err != nil {
		return governance.Decision{}, nil, err
	}

	if ok, reason := governance.CanPromoteToRole(reviewer, req.RequestedRole); !ok {
		return governance.Deny(reason), nil, nil
	}

	now := time.Now()
	status := StatusRejected
	eventType := audit.TypeRoleRequestRejected
	if approve {
		status = StatusApproved
		eventType = audit.TypeRoleRequestApproved
	}

	// The terminal transition, the granted role, the audit entry and
	// any resulting provisional upgrade commit together: a request must
	// never end up approved with the role not applied.
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.MarkReviewed(ctx, req.ID, status, reviewerUserID, now); err != nil {
			return err
		}

		if approve {
			if err := s.members.UpdateRole(ctx, req.TenantID, req.UserID, req.RequestedRole); err != nil {
				return fmt.Errorf("failed to apply approved role: %w", err)
			}
		}

		if err := s.recorder.Record(ctx, audit.Event{
			Type:     eventType,
			TenantID: req.TenantID,
			ActorID:  reviewerUserID,
			TargetID: req.UserID,
			Details: map[string]any{
				"request_id":     req.ID,
				"requested_role": string(req.RequestedRole),
			},
		}); err != nil {
			return err
		}

		// An approval is a membership change; the tenant may have just
		// gained the redundancy that matures it.
		if approve {
			if _, err := s.engine.CheckAndUpgradeProvisionalAdmins(ctx, req.TenantID, reviewerUserID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return governance.Decision{}, nil, err
	}

	req.Status = status
	req.ReviewedBy = reviewerUserID
	req.ReviewedAt = &now

	return governance.Allow(), req, nil
}

// Get retrieves a role request by ID
func (s *Service) Get(ctx context.Context, id string) (*Request, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves a tenant's role requests, optionally filtered by status
func (s *Service) List(ctx context.Context, tenantID string, status *Status) ([]*Request, error) {
	return s.repo.ListByTenant(ctx, tenantID, status)
}

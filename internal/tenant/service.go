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

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/decisionrecords/adrgov/internal/audit"
)

// Defaults holds the maturity thresholds applied to new tenants. They
// come from configuration and are threaded explicitly rather than read
// from process-wide state.
type Defaults struct {
	MaturityAgeDays       int
	MaturityUserThreshold int
}

// Service provides tenant lifecycle business logic
type Service struct {
	repo       Repository
	memberRepo MembershipRepository
	recorder   audit.Recorder
	defaults   Defaults
}

// NewService creates a new tenant service
func NewService(repo Repository, memberRepo MembershipRepository, recorder audit.Recorder, defaults Defaults) *Service {
	return &Service{
		repo:       repo,
		memberRepo: memberRepo,
		recorder:   recorder,
		defaults:   defaults,
	}
}

// CreateTenant provisions a new tenant in bootstrap state. The creator
// becomes its first administrator with the provisional role; the full
// role is granted later by the governance upgrade check.
func (s *Service) CreateTenant(ctx context.Context, name, creatorID string) (*Tenant, error) {
	if name == "" {
		return nil, fmt.Errorf("tenant name is required")
	}
	if creatorID == "" {
		return nil, fmt.Errorf("creator id is required")
	}

	if existing, err := s.repo.GetByName(ctx, name); err == nil && existing != nil {
		return nil, fmt.Errorf("tenant with name %s already exists", name)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate tenant id: %w", err)
	}

	now := time.Now()
	t := &Tenant{
		ID:                    id.String(),
		Name:                  name,
		Status:                StatusActive,
		MaturityState:         MaturityBootstrap,
		MaturityAgeDays:       s.defaults.MaturityAgeDays,
		MaturityUserThreshold: s.defaults.MaturityUserThreshold,
		Settings:              DefaultSettings(),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	memberID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate membership id: %w", err)
	}
	m := &Membership{
		ID:        memberID.String(),
		TenantID:  t.ID,
		UserID:    creatorID,
		Role:      RoleProvisionalAdmin,
		GrantedAt: now,
	}
	if err := s.memberRepo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create founder membership: %w", err)
	}

	if err := s.recorder.Record(ctx, audit.Event{
		Type:     audit.TypeTenantCreated,
		TenantID: t.ID,
		ActorID:  creatorID,
		TargetID: t.ID,
		Details:  map[string]any{"name": name},
	}); err != nil {
		return nil, err
	}

	return t, nil
}

// GetTenant retrieves a tenant by ID
func (s *Service) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	return s.repo.GetByID(ctx, id)
}

// GetTenantByName retrieves a tenant by name
func (s *Service) GetTenantByName(ctx context.Context, name string) (*Tenant, error) {
	return s.repo.GetByName(ctx, name)
}

// ListTenants lists tenants with pagination
func (s *Service) ListTenants(ctx context.Context, limit, offset int) ([]*Tenant, error) {
	return s.repo.List(ctx, limit, offset)
}

// AddMember joins a user to a tenant with the basic user role. Whether
// the join required approval has already been decided by the caller
// against the tenant's require_approval setting.
func (s *Service) AddMember(ctx context.Context, tenantID, userID, addedBy string) (*Membership, error) {
	t, err := s.repo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if _, err := s.memberRepo.Get(ctx, tenantID, userID); err == nil {
		return nil, ErrMembershipExists
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate membership id: %w", err)
	}
	m := &Membership{
		ID:        id.String(),
		TenantID:  t.ID,
		UserID:    userID,
		Role:      RoleUser,
		GrantedAt: time.Now(),
		GrantedBy: addedBy,
	}

	if err := s.memberRepo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}

	if err := s.recorder.Record(ctx, audit.Event{
		Type:     audit.TypeMemberJoined,
		TenantID: tenantID,
		ActorID:  addedBy,
		TargetID: userID,
	}); err != nil {
		return nil, err
	}

	return m, nil
}

// GetMembership retrieves a user's membership in a tenant
func (s *Service) GetMembership(ctx context.Context, tenantID, userID string) (*Membership, error) {
	return s.memberRepo.Get(ctx, tenantID, userID)
}

// ListMembers retrieves all memberships in a tenant
func (s *Service) ListMembers(ctx context.Context, tenantID string) ([]*Membership, error) {
	return s.memberRepo.ListByTenant(ctx, tenantID)
}

// Counts returns the tenant's membership counts by role
func (s *Service) Counts(ctx context.Context, tenantID string) (RoleCounts, error) {
	return s.memberRepo.CountByRole(ctx, tenantID)
}

// Package memory provides in-memory implementations of the storage
// interfaces. Used by tests and local development; not safe for
// multi-process use.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/decisionrecords/adrgov/internal/audit"
	"github.com/decisionrecords/adrgov/internal/rolereq"
	"github.com/decisionrecords/adrgov/internal/tenant"
)

// TenantStore implements tenant.Repository
type TenantStore struct {
	mu      sync.RWMutex
	tenants map[string]*tenant.Tenant
}

// NewTenantStore creates an empty tenant store
func NewTenantStore() *TenantStore {
	return &TenantStore{tenants: make(map[string]*tenant.Tenant)}
}

func (s *TenantStore) Create(ctx context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	cp.Settings = t.Settings.Clone()
	s.tenants[t.ID] = &cp
	return nil
}

func (s *TenantStore) GetByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	cp := *t
	cp.Settings = t.Settings.Clone()
	return &cp, nil
}

func (s *TenantStore) GetByName(ctx context.Context, name string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.Name == name {
			cp := *t
			cp.Settings = t.Settings.Clone()
			return &cp, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

// GetForUpdate behaves like GetByID; the in-memory store has no row
// locks.
func (s *TenantStore) GetForUpdate(ctx context.Context, id string) (*tenant.Tenant, error) {
	return s.GetByID(ctx, id)
}

func (s *TenantStore) Update(ctx context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; !ok {
		return tenant.ErrTenantNotFound
	}
	cp := *t
	cp.Settings = t.Settings.Clone()
	cp.UpdatedAt = time.Now()
	s.tenants[t.ID] = &cp
	return nil
}

func (s *TenantStore) UpdateMaturity(ctx context.Context, id string, state tenant.MaturityState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	t.MaturityState = state
	t.UpdatedAt = time.Now()
	return nil
}

func (s *TenantStore) UpdateSettings(ctx context.Context, id string, settings tenant.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	t.Settings = settings.Clone()
	t.UpdatedAt = time.Now()
	return nil
}

func (s *TenantStore) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]*tenant.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *TenantStore) ListByMaturity(ctx context.Context, state tenant.MaturityState) ([]*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*tenant.Tenant
	for _, t := range s.tenants {
		if t.MaturityState == state {
			out = append(out, t)
		}
	}
	return out, nil
}

// MembershipStore implements tenant.MembershipRepository
type MembershipStore struct {
	mu          sync.RWMutex
	memberships map[string]map[string]*tenant.Membership // tenantID -> userID -> membership
}

// NewMembershipStore creates an empty membership store
func NewMembershipStore() *MembershipStore {
	return &MembershipStore{memberships: make(map[string]map[string]*tenant.Membership)}
}

func (s *MembershipStore) Create(ctx context.Context, m *tenant.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser, ok := s.memberships[m.TenantID]
	if !ok {
		byUser = make(map[string]*tenant.Membership)
		s.memberships[m.TenantID] = byUser
	}
	if _, exists := byUser[m.UserID]; exists {
		return tenant.ErrMembershipExists
	}
	cp := *m
	byUser[m.UserID] = &cp
	return nil
}

func (s *MembershipStore) Get(ctx context.Context, tenantID, userID string) (*tenant.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[tenantID][userID]
	if !ok {
		return nil, tenant.ErrMembershipNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MembershipStore) UpdateRole(ctx context.Context, tenantID, userID string, role tenant.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[tenantID][userID]
	if !ok {
		return tenant.ErrMembershipNotFound
	}
	m.Role = role
	return nil
}

func (s *MembershipStore) ListByTenant(ctx context.Context, tenantID string) ([]*tenant.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*tenant.Membership
	for _, m := range s.memberships[tenantID] {
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.Before(out[j].GrantedAt) })
	return out, nil
}

func (s *MembershipStore) ListByRole(ctx context.Context, tenantID string, role tenant.Role) ([]*tenant.Membership, error) {
	all, err := s.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var out []*tenant.Membership
	for _, m := range all {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MembershipStore) CountByRole(ctx context.Context, tenantID string) (tenant.RoleCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var counts tenant.RoleCounts
	for _, m := range s.memberships[tenantID] {
		counts.Members++
		switch m.Role {
		case tenant.RoleAdmin:
			counts.Admins++
		case tenant.RoleSteward:
			counts.Stewards++
		case tenant.RoleProvisionalAdmin:
			counts.ProvisionalAdmins++
		}
	}
	return counts, nil
}

// RoleRequestStore implements rolereq.Repository
type RoleRequestStore struct {
	mu       sync.RWMutex
	requests map[string]*rolereq.Request
}

// NewRoleRequestStore creates an empty role request store
func NewRoleRequestStore() *RoleRequestStore {
	return &RoleRequestStore{requests: make(map[string]*rolereq.Request)}
}

func (s *RoleRequestStore) Create(ctx context.Context, req *rolereq.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.requests {
		if existing.TenantID == req.TenantID && existing.UserID == req.UserID &&
			existing.RequestedRole == req.RequestedRole && existing.Status == rolereq.StatusPending {
			return rolereq.ErrDuplicatePending
		}
	}
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *RoleRequestStore) GetByID(ctx context.Context, id string) (*rolereq.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, rolereq.ErrRequestNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *RoleRequestStore) FindPending(ctx context.Context, tenantID, userID string, role tenant.Role) (*rolereq.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.TenantID == tenantID && req.UserID == userID &&
			req.RequestedRole == role && req.Status == rolereq.StatusPending {
			cp := *req
			return &cp, nil
		}
	}
	return nil, rolereq.ErrRequestNotFound
}

func (s *RoleRequestStore) MarkReviewed(ctx context.Context, id string, status rolereq.Status, reviewerID string, reviewedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return rolereq.ErrRequestNotFound
	}
	if req.Status != rolereq.StatusPending {
		return rolereq.ErrAlreadyReviewed
	}
	req.Status = status
	req.ReviewedBy = reviewerID
	t := reviewedAt
	req.ReviewedAt = &t
	return nil
}

func (s *RoleRequestStore) ListByTenant(ctx context.Context, tenantID string, status *rolereq.Status) ([]*rolereq.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*rolereq.Request
	for _, req := range s.requests {
		if req.TenantID != tenantID {
			continue
		}
		if status != nil && req.Status != *status {
			continue
		}
		cp := *req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *RoleRequestStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, req := range s.requests {
		if req.Status.Terminal() && req.CreatedAt.Before(cutoff) {
			delete(s.requests, id)
			deleted++
		}
	}
	return deleted, nil
}

// AuditStore implements audit.Store
type AuditStore struct {
	mu      sync.RWMutex
	entries []*audit.Entry
}

// NewAuditStore creates an empty audit store
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (s *AuditStore) Insert(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *AuditStore) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*audit.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].TenantID == tenantID {
			cp := *s.entries[i]
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// All returns every entry, oldest first. Test helper.
func (s *AuditStore) All() []*audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*audit.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

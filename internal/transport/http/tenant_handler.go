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

package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/decisionrecords/adrgov/internal/governance"
	"github.com/decisionrecords/adrgov/internal/observability/logger"
	"github.com/decisionrecords/adrgov/internal/tenant"
)

// CreateTenantRequest represents tenant creation data
type CreateTenantRequest struct {
	Name string `json:"name" validate:"required,min=2,max=128"`
}

// CreateTenant handles tenant creation. The caller becomes the
// tenant's first administrator with the provisional role.
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.tenantService.CreateTenant(r.Context(), req.Name, GetUserID(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, t)
}

// ListTenants lists tenants with pagination
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	tenants, err := h.tenantService.ListTenants(r.Context(), limit, offset)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if tenants == nil {
		tenants = []*tenant.Tenant{}
	}
	respondJSON(w, http.StatusOK, tenants)
}

// GetTenant returns a tenant by ID
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenantService.GetTenant(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// UpdateSettingRequest represents a single setting change
type UpdateSettingRequest struct {
	Setting string `json:"setting" validate:"required"`
	Value   bool   `json:"value"`
}

// UpdateSetting changes one tenant setting through the governance
// gates. Policy denials come back as 403 with the reason and, for the
// redundancy gate, the current membership counts.
func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req UpdateSettingRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !governance.IsHighImpact(req.Setting) {
		slog.DebugContext(r.Context(), "setting outside high-impact registry",
			logger.TenantID(tenantID), logger.Setting(req.Setting))
	}

	decision, err := h.engine.ApplySettingChange(r.Context(), tenantID, GetUserID(r.Context()), req.Setting, req.Value)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !decision.Allowed {
		respondDenied(w, decision)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"setting": req.Setting,
		"value":   req.Value,
	})
}

// GetRestrictions discloses the setting changes the calling member may
// not make. Empty for everyone but provisional admins.
func (h *Handler) GetRestrictions(w http.ResponseWriter, r *http.Request) {
	m, err := h.tenantService.GetMembership(r.Context(), chi.URLParam(r, "tenantID"), GetUserID(r.Context()))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	restrictions := governance.ProvisionalAdminRestrictions(m)
	if restrictions == nil {
		restrictions = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"restrictions": restrictions})
}

// JoinRequest represents a member join
type JoinRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// JoinTenant adds a user to the tenant with the basic role, honoring
// the tenant's registration settings, then re-runs the upgrade check.
func (h *Handler) JoinTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req JoinRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.tenantService.GetTenant(r.Context(), tenantID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	actorID := GetUserID(r.Context())
	selfJoin := req.UserID == actorID
	if selfJoin && !t.Settings[tenant.SettingAllowRegistration] {
		respondError(w, http.StatusForbidden, "registration is disabled for this tenant")
		return
	}
	if !selfJoin {
		// Adding someone else requires admin capability.
		actor, err := h.tenantService.GetMembership(r.Context(), tenantID, actorID)
		if err != nil || !actor.Role.IsAdmin() {
			respondError(w, http.StatusForbidden, "permission denied")
			return
		}
	}

	m, err := h.tenantService.AddMember(r.Context(), tenantID, req.UserID, actorID)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if _, err := h.engine.CheckAndUpgradeProvisionalAdmins(r.Context(), tenantID, actorID); err != nil {
		slog.ErrorContext(r.Context(), "upgrade check failed after join",
			logger.TenantID(tenantID), logger.Error(err))
	}

	respondJSON(w, http.StatusCreated, m)
}

// ListMembers lists a tenant's memberships
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.tenantService.ListMembers(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

// PromoteRequest represents a role promotion
type PromoteRequest struct {
	Role string `json:"role" validate:"required,oneof=steward admin"`
}

// PromoteMember promotes a member, subject to the promotion ceiling.
func (h *Handler) PromoteMember(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	userID := chi.URLParam(r, "userID")

	var req PromoteRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision, err := h.engine.PromoteMember(r.Context(), tenantID, GetUserID(r.Context()), userID, tenant.Role(req.Role))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !decision.Allowed {
		respondDenied(w, decision)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"user_id": userID, "role": req.Role})
}

// DemoteMember demotes a member to the basic role.
func (h *Handler) DemoteMember(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	userID := chi.URLParam(r, "userID")

	decision, err := h.engine.DemoteMember(r.Context(), tenantID, GetUserID(r.Context()), userID)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if !decision.Allowed {
		respondDenied(w, decision)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"user_id": userID, "role": string(tenant.RoleUser)})
}

// ListAuditEntries lists a tenant's governance audit trail, newest
// first.
func (h *Handler) ListAuditEntries(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	m, err := h.tenantService.GetMembership(r.Context(), tenantID, GetUserID(r.Context()))
	if err != nil || !m.Role.IsAdmin() {
		respondError(w, http.StatusForbidden, "permission denied")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	entries, err := h.auditStore.ListByTenant(r.Context(), tenantID, limit, offset)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
	}
	return def
}

// respondStoreError maps domain errors to HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound), errors.Is(err, tenant.ErrMembershipNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tenant.ErrMembershipExists):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

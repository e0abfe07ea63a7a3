package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/decisionrecords/adrgov/internal/rolereq"
	"github.com/decisionrecords/adrgov/internal/tenant"
)

// SubmitRoleRequestRequest represents a promotion request
type SubmitRoleRequestRequest struct {
	Role string `json:"role" validate:"required,oneof=steward admin"`
	Note string `json:"note" validate:"max=512"`
}

// SubmitRoleRequest files a promotion request for the calling user.
func (h *Handler) SubmitRoleRequest(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req SubmitRoleRequestRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	request, err := h.requestService.Submit(r.Context(), tenantID, GetUserID(r.Context()), tenant.Role(req.Role), req.Note)
	if err != nil {
		switch {
		case errors.Is(err, rolereq.ErrDuplicatePending):
			respondError(w, http.StatusConflict, err.Error())
		case errors.Is(err, rolereq.ErrInvalidRequestRole):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			respondStoreError(w, err)
		}
		return
	}

	respondJSON(w, http.StatusCreated, request)
}

// ListRoleRequests lists a tenant's role requests. The status query
// parameter filters to pending, approved or rejected.
func (h *Handler) ListRoleRequests(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var status *rolereq.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st := rolereq.Status(s)
		if !st.Valid() {
			respondError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		status = &st
	}

	requests, err := h.requestService.List(r.Context(), tenantID, status)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

// ReviewRoleRequestRequest represents a review verdict
type ReviewRoleRequestRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
}

// ReviewRoleRequest approves or rejects a pending role request.
func (h *Handler) ReviewRoleRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	var req ReviewRoleRequestRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision, request, err := h.requestService.Review(r.Context(), requestID, GetUserID(r.Context()), req.Action == "approve")
	if err != nil {
		switch {
		case errors.Is(err, rolereq.ErrRequestNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, rolereq.ErrAlreadyReviewed):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondStoreError(w, err)
		}
		return
	}
	if !decision.Allowed {
		respondDenied(w, decision)
		return
	}

	respondJSON(w, http.StatusOK, request)
}

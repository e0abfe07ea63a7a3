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
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/decisionrecords/adrgov/internal/audit"
	"github.com/decisionrecords/adrgov/internal/auth"
	"github.com/decisionrecords/adrgov/internal/governance"
	"github.com/decisionrecords/adrgov/internal/rolereq"
	"github.com/decisionrecords/adrgov/internal/tenant"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	tenantService  *tenant.Service
	engine         *governance.Engine
	requestService *rolereq.Service
	auditStore     audit.Store
	tokens         *auth.JWTManager
	validate       *validator.Validate
}

// NewHandler creates a new HTTP handler
func NewHandler(
	tenantService *tenant.Service,
	engine *governance.Engine,
	requestService *rolereq.Service,
	auditStore audit.Store,
	tokens *auth.JWTManager,
) *Handler {
	return &Handler{
		tenantService:  tenantService,
		engine:         engine,
		requestService: requestService,
		auditStore:     auditStore,
		tokens:         tokens,
		validate:       validator.New(),
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Route("/tenants", func(r chi.Router) {
			r.Get("/", h.ListTenants)
			r.Post("/", h.CreateTenant)
			r.Route("/{tenantID}", func(r chi.Router) {
				r.Get("/", h.GetTenant)
				r.Patch("/settings", h.UpdateSetting)
				r.Get("/restrictions", h.GetRestrictions)
				r.Get("/audit", h.ListAuditEntries)

				r.Route("/members", func(r chi.Router) {
					r.Get("/", h.ListMembers)
					r.Post("/", h.JoinTenant)
					r.Put("/{userID}/role", h.PromoteMember)
					r.Delete("/{userID}/role", h.DemoteMember)
				})

				r.Route("/role-requests", func(r chi.Router) {
					r.Get("/", h.ListRoleRequests)
					r.Post("/", h.SubmitRoleRequest)
					r.Post("/{requestID}/review", h.ReviewRoleRequest)
				})
			})
		})
	})

	return r
}

// HealthCheck responds with service liveness
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation on it.
func (h *Handler) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDenied renders a governance denial: the reason plus, when
// present, the membership counts the caller can use to explain what
// redundancy is missing.
func respondDenied(w http.ResponseWriter, d governance.Decision) {
	payload := map[string]any{"error": d.Reason}
	if d.Counts != nil {
		payload["admin_count"] = d.Counts.Admins
		payload["steward_count"] = d.Counts.Stewards
		payload["provisional_admin_count"] = d.Counts.ProvisionalAdmins
		payload["member_count"] = d.Counts.Members
	}
	respondJSON(w, http.StatusForbidden, payload)
}

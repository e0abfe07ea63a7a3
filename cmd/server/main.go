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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/decisionrecords/adrgov/internal/audit"
	"github.com/decisionrecords/adrgov/internal/auth"
	"github.com/decisionrecords/adrgov/internal/config"
	"github.com/decisionrecords/adrgov/internal/governance"
	"github.com/decisionrecords/adrgov/internal/observability/logger"
	"github.com/decisionrecords/adrgov/internal/observability/metrics"
	"github.com/decisionrecords/adrgov/internal/observability/tracing"
	"github.com/decisionrecords/adrgov/internal/rolereq"
	"github.com/decisionrecords/adrgov/internal/store/postgres"
	"github.com/decisionrecords/adrgov/internal/tenant"
	transportHTTP "github.com/decisionrecords/adrgov/internal/transport/http"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting adrgov governance service")

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	tenantRepo := postgres.NewTenantRepository(db)
	membershipRepo := postgres.NewMembershipRepository(db)
	requestRepo := postgres.NewRoleRequestRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	// Initialize governance engine
	recorder := audit.NewRecorder(auditRepo, audit.NewSlogLogger())
	engine := governance.NewEngine(tenantRepo, membershipRepo, recorder, db)
	if counter, err := meter.CreateCounter("governance_decisions_total", "Governance gate evaluations by operation and outcome"); err == nil {
		engine.WithDecisionCounter(counter)
	}

	// Initialize services
	tenantService := tenant.NewService(tenantRepo, membershipRepo, recorder, tenant.Defaults{
		MaturityAgeDays:       cfg.Governance.DefaultMaturityAgeDays,
		MaturityUserThreshold: cfg.Governance.DefaultMaturityUserThreshold,
	})
	requestService := rolereq.NewService(requestRepo, membershipRepo, engine, recorder, db)
	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenLifetime)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(tenantService, engine, requestService, auditRepo, tokens)
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Background sweep: bootstrap tenants mature by age even with no
	// membership activity, so the age threshold needs a periodic nudge.
	go func() {
		ticker := time.NewTicker(cfg.Governance.UpgradeSweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			tenants, err := tenantRepo.ListByMaturity(ctx, tenant.MaturityBootstrap)
			if err != nil {
				slog.ErrorContext(ctx, "upgrade sweep: failed to list bootstrap tenants", logger.Error(err))
				continue
			}
			for _, t := range tenants {
				upgraded, err := engine.CheckAndUpgradeProvisionalAdmins(ctx, t.ID, "system")
				if err != nil {
					slog.ErrorContext(ctx, "upgrade sweep failed",
						logger.TenantID(t.ID), logger.Error(err))
					continue
				}
				if len(upgraded) > 0 {
					slog.InfoContext(ctx, "upgrade sweep promoted provisional admins",
						logger.TenantID(t.ID), slog.Int("count", len(upgraded)))
				}
			}
		}
	}()

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

// Retention tool: deletes role requests that reached a terminal status
// longer ago than the configured retention window. The audit log is
// never touched.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/decisionrecords/adrgov/internal/config"
	"github.com/decisionrecords/adrgov/internal/store/postgres"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
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
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	cutoff := time.Now().Add(-cfg.Governance.RequestRetention)
	requestRepo := postgres.NewRoleRequestRepository(db)

	deleted, err := requestRepo.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}

	fmt.Printf("Deleted %d terminal role requests older than %s\n", deleted, cutoff.Format(time.RFC3339))
}

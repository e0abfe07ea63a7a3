package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is a persisted audit-log row. Entries are append-only: no
// operation in this codebase updates or deletes one.
type Entry struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	TargetID  string         `json:"target_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store defines the interface for persisted audit entries
type Store interface {
	Insert(ctx context.Context, entry *Entry) error
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]*Entry, error)
}

// Recorder writes each event to the persistent store and mirrors it to
// the structured log.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// StoreRecorder is the default Recorder implementation.
type StoreRecorder struct {
	store  Store
	logger Logger
}

// NewRecorder creates a recorder backed by the given store and logger.
func NewRecorder(store Store, logger Logger) *StoreRecorder {
	return &StoreRecorder{store: store, logger: logger}
}

// Record persists the event and emits it to the structured log. The log
// line is best effort; the store insert is not.
func (r *StoreRecorder) Record(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate entry id: %w", err)
	}

	entry := &Entry{
		ID:        id.String(),
		TenantID:  event.TenantID,
		ActorID:   event.ActorID,
		Action:    event.Type,
		TargetID:  event.TargetID,
		Details:   event.Details,
		CreatedAt: event.Timestamp,
	}

	if err := r.store.Insert(ctx, entry); err != nil {
		return fmt.Errorf("failed to persist audit entry: %w", err)
	}

	r.logger.Log(ctx, event)
	return nil
}

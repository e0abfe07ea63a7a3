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

package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types
const (
	TypeTenantCreated        = "tenant_created"
	TypeMemberJoined         = "member_joined"
	TypePromoteUser          = "promote_user"
	TypeDemoteUser           = "demote_user"
	TypeSettingChanged       = "setting_changed"
	TypeSpaceCreated         = "space_created"
	TypeRoleRequestSubmitted = "role_request_submitted"
	TypeRoleRequestApproved  = "role_request_approved"
	TypeRoleRequestRejected  = "role_request_rejected"
	TypeAdminAction          = "admin_action"
)

// Event represents an auditable governance action
type Event struct {
	Type      string
	TenantID  string
	ActorID   string
	TargetID  string
	Details   map[string]any
	Timestamp time.Time
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	// Ensure timestamp is set
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("tenant_id", event.TenantID),
		slog.String("actor_id", event.ActorID),
		slog.String("target_id", event.TargetID),
		slog.Time("timestamp", event.Timestamp),
	}

	// Flatten details
	if len(event.Details) > 0 {
		group := []any{}
		for k, v := range event.Details {
			// Redact secrets
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("details", group...))
	}

	// Log at INFO level with "audit" component
	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	secrets := []string{"password", "secret", "token", "key", "credential", "authorization", "hash"}
	lower := strings.ToLower(key)
	for _, s := range secrets {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

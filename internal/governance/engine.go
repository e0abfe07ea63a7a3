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

package governance

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/decisionrecords/adrgov/internal/audit"
	"github.com/decisionrecords/adrgov/internal/tenant"
)

// TxRunner runs a function inside a single storage transaction. All
// repository calls made with the callback's context join that
// transaction, so a batch of role mutations plus their audit entries
// commits atomically or not at all.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTxRunner executes the callback without a transaction. Used with
// in-memory repositories in tests.
type NopTxRunner struct{}

func (NopTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Engine evaluates governance rules and applies their side effects:
// role mutations, maturity transitions and audit entries.
type Engine struct {
	tenants   tenant.Repository
	members   tenant.MembershipRepository
	recorder  audit.Recorder
	tx        TxRunner
	decisions metric.Int64Counter
}

// NewEngine creates a governance engine.
func NewEngine(tenants tenant.Repository, members tenant.MembershipRepository, recorder audit.Recorder, tx TxRunner) *Engine {
	return &Engine{
		tenants:  tenants,
		members:  members,
		recorder: recorder,
		tx:       tx,
	}
}

// WithDecisionCounter attaches a counter incremented once per gate
// evaluation, labelled by operation and outcome.
func (e *Engine) WithDecisionCounter(c metric.Int64Counter) *Engine {
	e.decisions = c
	return e
}

func (e *Engine) countDecision(ctx context.Context, operation string, allowed bool) {
	if e.decisions == nil {
		return
	}
	e.decisions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.Bool("allowed", allowed),
		),
	)
}

// ApplySettingChange runs the full settings-update flow for one flag:
// provisional-admin restriction, high-impact gate, persistence and
// audit. A denial comes back as a Decision with Allowed=false and a nil
// error; errors are reserved for storage failures.
//
// The ordering here is looser than CanModifySetting's: that gate
// demands the full admin role up front, while this flow lets a
// provisional admin change non-registry settings (only the registry
// goes through the gate). The two deliberately disagree for
// non-registry settings.
func (e *Engine) ApplySettingChange(ctx context.Context, tenantID, actorUserID, setting string, newValue bool) (Decision, error) {
	t, err := e.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return Decision{}, err
	}
	actor, err := e.members.Get(ctx, tenantID, actorUserID)
	if err != nil {
		return Decision{}, err
	}
	counts, err := e.members.CountByRole(ctx, tenantID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count memberships: %w", err)
	}

	if restricted, reason := RestrictedForProvisionalAdmin(setting, newValue, actor); restricted {
		e.countDecision(ctx, "setting_change", false)
		return Deny(reason), nil
	}

	if IsHighImpact(setting) {
		if d := CanModifySetting(t, actor, counts, setting, newValue); !d.Allowed {
			e.countDecision(ctx, "setting_change", false)
			return d, nil
		}
	} else if !actor.Role.IsAdmin() {
		// Non-registry settings still need admin capability; they just
		// skip the maturity gate.
		e.countDecision(ctx, "setting_change", false)
		return Deny("permission denied"), nil
	}

	oldValue := t.Settings[setting]
	settings := t.Settings.Clone()
	settings[setting] = newValue

	// The write and its audit entry commit together.
	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := e.tenants.UpdateSettings(ctx, tenantID, settings); err != nil {
			return fmt.Errorf("failed to update settings: %w", err)
		}
		return e.LogSettingChange(ctx, tenantID, actorUserID, setting, oldValue, newValue)
	})
	if err != nil {
		return Decision{}, err
	}

	e.countDecision(ctx, "setting_change", true)
	return Allow(), nil
}

// CheckAndUpgradeProvisionalAdmins recomputes the tenant's maturity
// state and, once the tenant is mature, promotes every provisional
// admin to full admin. It returns the user IDs upgraded on this call.
//
// Callers invoke it after any membership change; running it again with
// no intervening change is a no-op. The whole batch runs in one
// transaction with the tenant row locked, so two concurrent invocations
// cannot both upgrade and double-log.
func (e *Engine) CheckAndUpgradeProvisionalAdmins(ctx context.Context, tenantID, triggeringUserID string) ([]string, error) {
	var upgraded []string

	err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := e.tenants.GetForUpdate(ctx, tenantID)
		if err != nil {
			return err
		}
		counts, err := e.members.CountByRole(ctx, tenantID)
		if err != nil {
			return fmt.Errorf("failed to count memberships: %w", err)
		}

		state := ComputeMaturity(t, counts, time.Now())
		if state != t.MaturityState {
			if err := e.tenants.UpdateMaturity(ctx, tenantID, state); err != nil {
				return fmt.Errorf("failed to update maturity state: %w", err)
			}
		}
		if state != tenant.MaturityMature {
			return nil
		}

		provisionals, err := e.members.ListByRole(ctx, tenantID, tenant.RoleProvisionalAdmin)
		if err != nil {
			return fmt.Errorf("failed to list provisional admins: %w", err)
		}

		for _, m := range provisionals {
			if err := e.members.UpdateRole(ctx, tenantID, m.UserID, tenant.RoleAdmin); err != nil {
				return fmt.Errorf("failed to upgrade %s: %w", m.UserID, err)
			}
			if err := e.recorder.Record(ctx, audit.Event{
				Type:     audit.TypePromoteUser,
				TenantID: tenantID,
				ActorID:  triggeringUserID,
				TargetID: m.UserID,
				Details: map[string]any{
					"old_role": string(tenant.RoleProvisionalAdmin),
					"new_role": string(tenant.RoleAdmin),
				},
			}); err != nil {
				return err
			}
			upgraded = append(upgraded, m.UserID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return upgraded, nil
}

// PromoteMember promotes the target user to the given role after the
// ceiling check, audits the change, and re-runs the upgrade check.
func (e *Engine) PromoteMember(ctx context.Context, tenantID, actorUserID, targetUserID string, newRole tenant.Role) (Decision, error) {
	actor, err := e.members.Get(ctx, tenantID, actorUserID)
	if err != nil {
		return Decision{}, err
	}

	if ok, reason := CanPromoteToRole(actor, newRole); !ok {
		e.countDecision(ctx, "promote", false)
		return Deny(reason), nil
	}

	target, err := e.members.Get(ctx, tenantID, targetUserID)
	if err != nil {
		return Decision{}, err
	}

	// Role change, audit entry and any resulting provisional upgrade
	// commit together.
	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := e.members.UpdateRole(ctx, tenantID, targetUserID, newRole); err != nil {
			return fmt.Errorf("failed to promote %s: %w", targetUserID, err)
		}

		if err := e.recorder.Record(ctx, audit.Event{
			Type:     audit.TypePromoteUser,
			TenantID: tenantID,
			ActorID:  actorUserID,
			TargetID: targetUserID,
			Details: map[string]any{
				"old_role": string(target.Role),
				"new_role": string(newRole),
			},
		}); err != nil {
			return err
		}

		// Membership changed; the tenant may have just gained redundancy.
		_, err := e.CheckAndUpgradeProvisionalAdmins(ctx, tenantID, actorUserID)
		return err
	})
	if err != nil {
		return Decision{}, err
	}

	e.countDecision(ctx, "promote", true)
	return Allow(), nil
}

// DemoteMember demotes the target user to the basic user role after the
// demotion check, and audits the change.
func (e *Engine) DemoteMember(ctx context.Context, tenantID, actorUserID, targetUserID string) (Decision, error) {
	actor, err := e.members.Get(ctx, tenantID, actorUserID)
	if err != nil {
		return Decision{}, err
	}
	target, err := e.members.Get(ctx, tenantID, targetUserID)
	if err != nil {
		return Decision{}, err
	}
	counts, err := e.members.CountByRole(ctx, tenantID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count memberships: %w", err)
	}

	if ok, reason := CanDemoteUser(actor, target, counts); !ok {
		e.countDecision(ctx, "demote", false)
		return Deny(reason), nil
	}

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := e.members.UpdateRole(ctx, tenantID, targetUserID, tenant.RoleUser); err != nil {
			return fmt.Errorf("failed to demote %s: %w", targetUserID, err)
		}

		return e.recorder.Record(ctx, audit.Event{
			Type:     audit.TypeDemoteUser,
			TenantID: tenantID,
			ActorID:  actorUserID,
			TargetID: targetUserID,
			Details: map[string]any{
				"old_role": string(target.Role),
				"new_role": string(tenant.RoleUser),
			},
		})
	})
	if err != nil {
		return Decision{}, err
	}

	e.countDecision(ctx, "demote", true)
	return Allow(), nil
}

// LogAdminAction records an arbitrary governance-relevant admin action.
// It performs no permission checks; callers must have authorized the
// action already.
func (e *Engine) LogAdminAction(ctx context.Context, tenantID, actorID, action, targetID string, details map[string]any) error {
	return e.recorder.Record(ctx, audit.Event{
		Type:     action,
		TenantID: tenantID,
		ActorID:  actorID,
		TargetID: targetID,
		Details:  details,
	})
}

// LogSettingChange records a setting change. No permission checks.
func (e *Engine) LogSettingChange(ctx context.Context, tenantID, actorID, setting string, oldValue, newValue bool) error {
	return e.recorder.Record(ctx, audit.Event{
		Type:     audit.TypeSettingChanged,
		TenantID: tenantID,
		ActorID:  actorID,
		TargetID: setting,
		Details: map[string]any{
			"setting":   setting,
			"old_value": oldValue,
			"new_value": newValue,
		},
	})
}

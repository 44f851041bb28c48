// Package engine wires the scoring, snapshot and trigger components into the
// single entry point the CLI and host integrations use.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openpulse/vitals/internal/model"
	"github.com/openpulse/vitals/internal/scoring"
	"github.com/openpulse/vitals/internal/service"
	"github.com/openpulse/vitals/internal/snapshot"
	"github.com/openpulse/vitals/internal/trigger"
)

// HealthEngine is the facade over the health scoring core. All components
// share one storage handle; the snapshot manager and trigger evaluator use
// the engine's own scoring as their proxy scorer.
type HealthEngine struct {
	storage   service.Storage
	scorer    *scoring.Scorer
	snapshots *snapshot.Manager
	triggers  *trigger.Evaluator
}

// New creates a fully wired health engine on top of the given storage.
func New(storage service.Storage) *HealthEngine {
	ranges := scoring.NewStoreProvider(storage)
	e := &HealthEngine{
		storage: storage,
		scorer:  scoring.NewScorer(scoring.NewFallback(ranges, scoring.NewSystemDefaults())),
	}
	e.snapshots = snapshot.NewManager(storage, e.scoreAccount)
	e.triggers = trigger.NewEvaluator(storage, e.scoreAccount)
	return e
}

// scoreAccount is the proxy scorer handed to the snapshot and trigger
// components. It computes a report from current readings without persisting.
func (e *HealthEngine) scoreAccount(ctx context.Context, tenantID, accountID string) (*model.HealthReport, error) {
	indicators, err := e.storage.GetIndicatorsByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load indicators: %w", err)
	}

	tenant, err := e.tenantOrNil(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return e.scorer.ComputeHealth(ctx, tenantID, indicators, tenant)
}

// tenantOrNil loads the tenant configuration, tolerating a missing row so
// accounts belonging to unconfigured tenants still score with defaults.
func (e *HealthEngine) tenantOrNil(ctx context.Context, tenantID string) (*model.Tenant, error) {
	tenant, err := e.storage.GetTenant(ctx, tenantID)
	if err != nil {
		slog.Debug("No tenant configuration, scoring with defaults",
			"tenant_id", tenantID)
		return nil, nil
	}
	return tenant, nil
}

// ClassifyIndicator normalizes and classifies a single reading against the
// tenant's reference ranges.
func (e *HealthEngine) ClassifyIndicator(ctx context.Context, tenantID string, reading model.IndicatorReading) (*model.ClassifiedIndicator, error) {
	return e.scorer.ClassifyIndicator(ctx, tenantID, reading)
}

// ComputeAccountHealth scores an account from its current readings, persists
// the result on the account and records a post-calculation snapshot. An
// insufficient-data report is returned as-is and nothing is persisted.
func (e *HealthEngine) ComputeAccountHealth(ctx context.Context, accountID string) (*model.HealthReport, error) {
	account, err := e.storage.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	report, err := e.scoreAccount(ctx, account.TenantID, accountID)
	if err != nil {
		return nil, err
	}

	if report.InsufficientData {
		slog.Info("Insufficient data to score account",
			"account_id", accountID)
		return report, nil
	}

	if err := e.storage.UpdateAccountHealth(ctx, accountID, report.Overall, account.ChurnRisk); err != nil {
		return nil, fmt.Errorf("failed to persist health score: %w", err)
	}

	// A skipped snapshot here is normal; rate limiting owns that decision.
	if _, err := e.snapshots.Create(ctx, accountID, model.TriggerPostHealthCalc, false); err != nil {
		return nil, fmt.Errorf("failed to snapshot after health calculation: %w", err)
	}

	slog.Info("Computed account health",
		"account_id", accountID,
		"overall", fmt.Sprintf("%.1f", report.Overall))

	return report, nil
}

// CreateSnapshot captures the account's current state, subject to the
// per-trigger rate limits unless forced.
func (e *HealthEngine) CreateSnapshot(ctx context.Context, accountID string, reason model.SnapshotTrigger, force bool) (*snapshot.CreateResult, error) {
	return e.snapshots.Create(ctx, accountID, reason, force)
}

// EvaluateTrigger runs one playbook's condition set for a tenant, against
// specific accounts or the whole tenant when accountIDs is empty.
func (e *HealthEngine) EvaluateTrigger(ctx context.Context, playbook model.PlaybookType, tenantID string, accountIDs []string) (*trigger.Result, error) {
	return e.triggers.Evaluate(ctx, playbook, tenantID, accountIDs)
}

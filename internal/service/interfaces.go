// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/openpulse/vitals/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Account operations
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountsByTenant(ctx context.Context, tenantID string) ([]model.Account, error)
	UpdateAccountHealth(ctx context.Context, id string, score float64, churnRisk *float64) error

	// Indicator operations (read path only; this core never writes indicators)
	GetIndicatorsByAccount(ctx context.Context, accountID string) ([]model.IndicatorReading, error)

	// Reference range operations
	GetReferenceRange(ctx context.Context, tenantID, indicator string) (*model.ReferenceRange, error)
	GetReferenceRanges(ctx context.Context, tenantID string) ([]model.ReferenceRange, error)
	SaveReferenceRange(ctx context.Context, r *model.ReferenceRange) error

	// Snapshot operations. SaveSnapshot assigns the next per-account
	// sequence number and persists the row in one transaction.
	GetLatestSnapshot(ctx context.Context, accountID string) (*model.AccountSnapshot, error)
	GetRecentSnapshots(ctx context.Context, accountID string, limit int) ([]model.AccountSnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *model.AccountSnapshot) error
	GetSnapshotCount(ctx context.Context, accountID string) (int64, error)

	// Trigger configuration operations
	GetTriggerConfig(ctx context.Context, tenantID string, playbook model.PlaybookType) (*model.TriggerConfig, error)
	SaveTriggerConfig(ctx context.Context, cfg *model.TriggerConfig) error
	MarkTriggerEvaluated(ctx context.Context, tenantID string, playbook model.PlaybookType, at time.Time, fired bool) error

	// Tenant configuration
	GetTenant(ctx context.Context, id string) (*model.Tenant, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// ProxyScorer computes a point-in-time health report for an account when no
// pre-computed score exists. Supplied by the host.
type ProxyScorer func(ctx context.Context, tenantID, accountID string) (*model.HealthReport, error)

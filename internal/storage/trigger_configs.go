package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/model"
)

// GetTriggerConfig retrieves a tenant's configuration for one playbook type.
func (s *SQLiteStorage) GetTriggerConfig(ctx context.Context, tenantID string, playbook model.PlaybookType) (*model.TriggerConfig, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	return s.getTriggerConfigTx(ctx, s.db, tenantID, playbook)
}

func (s *SQLiteStorage) getTriggerConfigTx(ctx context.Context, q queryable, tenantID string, playbook model.PlaybookType) (*model.TriggerConfig, error) {
	var cfg model.TriggerConfig
	var thresholdsJSON sql.NullString
	var lastEvaluated, lastTriggered sql.NullTime

	err := q.QueryRowContext(ctx, `
		SELECT tenant_id, playbook_type, enabled, thresholds,
			last_evaluated_at, last_triggered_at, trigger_count
		FROM trigger_configs
		WHERE tenant_id = ? AND playbook_type = ?
	`, tenantID, string(playbook)).Scan(
		&cfg.TenantID,
		&cfg.Playbook,
		&cfg.Enabled,
		&thresholdsJSON,
		&lastEvaluated,
		&lastTriggered,
		&cfg.TriggerCount,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: trigger config for %s/%s", common.ErrNotFound, tenantID, playbook)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trigger config: %w", err)
	}

	if thresholdsJSON.Valid && thresholdsJSON.String != "" {
		if err := json.Unmarshal([]byte(thresholdsJSON.String), &cfg.Thresholds); err != nil {
			return nil, fmt.Errorf("failed to unmarshal thresholds: %w", err)
		}
	}
	if lastEvaluated.Valid {
		cfg.LastEvaluatedAt = &lastEvaluated.Time
	}
	if lastTriggered.Valid {
		cfg.LastTriggeredAt = &lastTriggered.Time
	}

	return &cfg, nil
}

// SaveTriggerConfig creates or replaces a trigger configuration.
func (s *SQLiteStorage) SaveTriggerConfig(ctx context.Context, cfg *model.TriggerConfig) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTriggerConfig(cfg); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveTriggerConfigTx(ctx, tx, cfg); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveTriggerConfigTx(ctx context.Context, q queryable, cfg *model.TriggerConfig) error {
	var thresholdsJSON []byte
	if cfg.Thresholds != nil {
		var err error
		thresholdsJSON, err = json.Marshal(cfg.Thresholds)
		if err != nil {
			return fmt.Errorf("failed to marshal thresholds: %w", err)
		}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO trigger_configs (
			tenant_id, playbook_type, enabled, thresholds,
			last_evaluated_at, last_triggered_at, trigger_count
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, playbook_type) DO UPDATE SET
			enabled = excluded.enabled,
			thresholds = excluded.thresholds
	`,
		cfg.TenantID,
		string(cfg.Playbook),
		cfg.Enabled,
		nullableJSON(thresholdsJSON),
		cfg.LastEvaluatedAt,
		cfg.LastTriggeredAt,
		cfg.TriggerCount,
	)
	if err != nil {
		return fmt.Errorf("failed to save trigger config: %w", translateError(err))
	}

	return nil
}

// MarkTriggerEvaluated stamps the last-evaluated timestamp and, when the
// evaluation fired, the last-triggered timestamp plus the cumulative count.
func (s *SQLiteStorage) MarkTriggerEvaluated(ctx context.Context, tenantID string, playbook model.PlaybookType, at time.Time, fired bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.markTriggerEvaluatedTx(ctx, tx, tenantID, playbook, at, fired); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) markTriggerEvaluatedTx(ctx context.Context, q queryable, tenantID string, playbook model.PlaybookType, at time.Time, fired bool) error {
	var result sql.Result
	var err error

	if fired {
		result, err = q.ExecContext(ctx, `
			UPDATE trigger_configs
			SET last_evaluated_at = ?, last_triggered_at = ?, trigger_count = trigger_count + 1
			WHERE tenant_id = ? AND playbook_type = ?
		`, at, at, tenantID, string(playbook))
	} else {
		result, err = q.ExecContext(ctx, `
			UPDATE trigger_configs
			SET last_evaluated_at = ?
			WHERE tenant_id = ? AND playbook_type = ?
		`, at, tenantID, string(playbook))
	}
	if err != nil {
		return fmt.Errorf("failed to mark trigger evaluated: %w", translateError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: trigger config for %s/%s", common.ErrNotFound, tenantID, playbook)
	}

	return nil
}

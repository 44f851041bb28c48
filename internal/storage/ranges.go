package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/model"
)

const rangeColumns = `tenant_id, indicator, unit, polarity,
	critical_min, critical_max, atrisk_min, atrisk_max,
	healthy_min, healthy_max, version, updated_at`

// GetReferenceRange retrieves the reference range for one indicator.
// An empty tenantID addresses the system default row.
func (s *SQLiteStorage) GetReferenceRange(ctx context.Context, tenantID, indicator string) (*model.ReferenceRange, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(indicator, "indicator"); err != nil {
		return nil, err
	}
	return s.getReferenceRangeTx(ctx, s.db, tenantID, indicator)
}

func (s *SQLiteStorage) getReferenceRangeTx(ctx context.Context, q queryable, tenantID, indicator string) (*model.ReferenceRange, error) {
	var r model.ReferenceRange

	err := q.QueryRowContext(ctx, `
		SELECT `+rangeColumns+`
		FROM reference_ranges
		WHERE tenant_id = ? AND indicator = ?
	`, tenantID, indicator).Scan(
		&r.TenantID,
		&r.Indicator,
		&r.Unit,
		&r.Polarity,
		&r.Critical.Min,
		&r.Critical.Max,
		&r.AtRisk.Min,
		&r.AtRisk.Max,
		&r.Healthy.Min,
		&r.Healthy.Max,
		&r.Version,
		&r.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: reference range for %q", common.ErrNotFound, indicator)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reference range: %w", err)
	}

	return &r, nil
}

// GetReferenceRanges retrieves the effective range set for a tenant: the
// system defaults overlaid with the tenant's overrides.
func (s *SQLiteStorage) GetReferenceRanges(ctx context.Context, tenantID string) ([]model.ReferenceRange, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getReferenceRangesTx(ctx, s.db, tenantID)
}

func (s *SQLiteStorage) getReferenceRangesTx(ctx context.Context, q queryable, tenantID string) ([]model.ReferenceRange, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+rangeColumns+`
		FROM reference_ranges
		WHERE tenant_id = '' OR tenant_id = ?
		ORDER BY indicator, tenant_id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference ranges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// Tenant rows sort after the '' system row for the same indicator, so
	// the override naturally replaces the default in the keyed collection.
	byIndicator := make(map[string]model.ReferenceRange)
	var order []string
	for rows.Next() {
		var r model.ReferenceRange
		if err := rows.Scan(
			&r.TenantID,
			&r.Indicator,
			&r.Unit,
			&r.Polarity,
			&r.Critical.Min,
			&r.Critical.Max,
			&r.AtRisk.Min,
			&r.AtRisk.Max,
			&r.Healthy.Min,
			&r.Healthy.Max,
			&r.Version,
			&r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reference range: %w", err)
		}
		if _, seen := byIndicator[r.Indicator]; !seen {
			order = append(order, r.Indicator)
		}
		byIndicator[r.Indicator] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ranges := make([]model.ReferenceRange, 0, len(order))
	for _, name := range order {
		ranges = append(ranges, byIndicator[name])
	}
	return ranges, nil
}

// SaveReferenceRange creates or replaces a reference range, bumping its
// version. Writes are committed atomically so in-flight reads never observe
// a partially updated range.
func (s *SQLiteStorage) SaveReferenceRange(ctx context.Context, r *model.ReferenceRange) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReferenceRange(r); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveReferenceRangeTx(ctx, tx, r); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveReferenceRangeTx(ctx context.Context, q queryable, r *model.ReferenceRange) error {
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now().UTC()
	}
	if r.Version == 0 {
		r.Version = 1
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO reference_ranges (
			tenant_id, indicator, unit, polarity,
			critical_min, critical_max, atrisk_min, atrisk_max,
			healthy_min, healthy_max, version, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, indicator) DO UPDATE SET
			unit = excluded.unit,
			polarity = excluded.polarity,
			critical_min = excluded.critical_min,
			critical_max = excluded.critical_max,
			atrisk_min = excluded.atrisk_min,
			atrisk_max = excluded.atrisk_max,
			healthy_min = excluded.healthy_min,
			healthy_max = excluded.healthy_max,
			version = reference_ranges.version + 1,
			updated_at = excluded.updated_at
	`,
		r.TenantID, r.Indicator, string(r.Unit), string(r.Polarity),
		r.Critical.Min, r.Critical.Max,
		r.AtRisk.Min, r.AtRisk.Max,
		r.Healthy.Min, r.Healthy.Max,
		r.Version, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save reference range: %w", translateError(err))
	}

	return nil
}

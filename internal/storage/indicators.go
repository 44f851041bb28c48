package storage

import (
	"context"
	"fmt"

	"github.com/openpulse/vitals/internal/model"
)

// GetIndicatorsByAccount retrieves all indicator readings for an account.
// This core never writes indicator data; ingestion owns that path.
func (s *SQLiteStorage) GetIndicatorsByAccount(ctx context.Context, accountID string) ([]model.IndicatorReading, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}
	return s.getIndicatorsByAccountTx(ctx, s.db, accountID)
}

func (s *SQLiteStorage) getIndicatorsByAccountTx(ctx context.Context, q queryable, accountID string) ([]model.IndicatorReading, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, account_id, tenant_id, name, category, raw_value, impact,
			COALESCE(product, ''), created_at
		FROM indicators
		WHERE account_id = ?
		ORDER BY created_at, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query indicators: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var indicators []model.IndicatorReading
	for rows.Next() {
		var ind model.IndicatorReading
		if err := rows.Scan(
			&ind.ID,
			&ind.AccountID,
			&ind.TenantID,
			&ind.Name,
			&ind.Category,
			&ind.RawValue,
			&ind.Impact,
			&ind.Product,
			&ind.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan indicator: %w", err)
		}
		indicators = append(indicators, ind)
	}

	return indicators, rows.Err()
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/model"
)

// GetTenant retrieves a tenant's configuration documents.
func (s *SQLiteStorage) GetTenant(ctx context.Context, id string) (*model.Tenant, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTenantTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getTenantTx(ctx context.Context, q queryable, id string) (*model.Tenant, error) {
	var tenant model.Tenant
	var categoryJSON, impactJSON sql.NullString

	err := q.QueryRowContext(ctx, `
		SELECT id, name, category_weights, impact_weights, created_at
		FROM tenants
		WHERE id = ?
	`, id).Scan(
		&tenant.ID,
		&tenant.Name,
		&categoryJSON,
		&impactJSON,
		&tenant.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: tenant %q", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	if categoryJSON.Valid && categoryJSON.String != "" {
		if err := json.Unmarshal([]byte(categoryJSON.String), &tenant.CategoryWeights); err != nil {
			return nil, fmt.Errorf("failed to unmarshal category weights: %w", err)
		}
	}
	if impactJSON.Valid && impactJSON.String != "" {
		if err := json.Unmarshal([]byte(impactJSON.String), &tenant.ImpactWeights); err != nil {
			return nil, fmt.Errorf("failed to unmarshal impact weights: %w", err)
		}
	}

	return &tenant, nil
}

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

// GetAccount retrieves an account by ID.
func (s *SQLiteStorage) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getAccountTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getAccountTx(ctx context.Context, q queryable, id string) (*model.Account, error) {
	var account model.Account

	err := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, status, arr, health_score, churn_risk,
			active_users, total_seats, dau_mau_ratio,
			products_active, playbooks_active, open_engagements,
			created_at, updated_at
		FROM accounts
		WHERE id = ?
	`, id).Scan(
		&account.ID,
		&account.TenantID,
		&account.Name,
		&account.Status,
		&account.ARR,
		&account.HealthScore,
		&account.ChurnRisk,
		&account.ActiveUsers,
		&account.TotalSeats,
		&account.DAUMAURatio,
		&account.ProductsActive,
		&account.PlaybooksActive,
		&account.OpenEngagements,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %q", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// GetAccountsByTenant retrieves all accounts belonging to a tenant.
func (s *SQLiteStorage) GetAccountsByTenant(ctx context.Context, tenantID string) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	return s.getAccountsByTenantTx(ctx, s.db, tenantID)
}

func (s *SQLiteStorage) getAccountsByTenantTx(ctx context.Context, q queryable, tenantID string) ([]model.Account, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, tenant_id, name, status, arr, health_score, churn_risk,
			active_users, total_seats, dau_mau_ratio,
			products_active, playbooks_active, open_engagements,
			created_at, updated_at
		FROM accounts
		WHERE tenant_id = ?
		ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.Account
	for rows.Next() {
		var account model.Account
		if err := rows.Scan(
			&account.ID,
			&account.TenantID,
			&account.Name,
			&account.Status,
			&account.ARR,
			&account.HealthScore,
			&account.ChurnRisk,
			&account.ActiveUsers,
			&account.TotalSeats,
			&account.DAUMAURatio,
			&account.ProductsActive,
			&account.PlaybooksActive,
			&account.OpenEngagements,
			&account.CreatedAt,
			&account.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// UpdateAccountHealth records the latest computed overall score and churn
// risk on the account row.
func (s *SQLiteStorage) UpdateAccountHealth(ctx context.Context, id string, score float64, churnRisk *float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.updateAccountHealthTx(ctx, tx, id, score, churnRisk); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) updateAccountHealthTx(ctx context.Context, q queryable, id string, score float64, churnRisk *float64) error {
	result, err := q.ExecContext(ctx, `
		UPDATE accounts
		SET health_score = ?, churn_risk = COALESCE(?, churn_risk), updated_at = ?
		WHERE id = ?
	`, score, churnRisk, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update account health: %w", translateError(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: account %q", common.ErrNotFound, id)
	}

	return nil
}

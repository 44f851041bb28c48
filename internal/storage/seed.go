package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openpulse/vitals/internal/model"
)

// Tenants, accounts and indicators are owned by the host platform's ingestion
// pipeline, so the service.Storage interface exposes them read-only. The
// writers below exist on the concrete type for host-side seeding and tests.

// SaveTenant creates or replaces a tenant row.
func (s *SQLiteStorage) SaveTenant(ctx context.Context, tenant *model.Tenant) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if tenant == nil {
		return fmt.Errorf("%w: tenant", ErrNilParameter)
	}
	if err := validateString(tenant.ID, "tenant.ID"); err != nil {
		return err
	}

	var categoryJSON, impactJSON []byte
	var err error
	if tenant.CategoryWeights != nil {
		categoryJSON, err = json.Marshal(tenant.CategoryWeights)
		if err != nil {
			return fmt.Errorf("failed to marshal category weights: %w", err)
		}
	}
	if tenant.ImpactWeights != nil {
		impactJSON, err = json.Marshal(tenant.ImpactWeights)
		if err != nil {
			return fmt.Errorf("failed to marshal impact weights: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, name, category_weights, impact_weights)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category_weights = excluded.category_weights,
			impact_weights = excluded.impact_weights
	`, tenant.ID, tenant.Name, nullableJSON(categoryJSON), nullableJSON(impactJSON))
	if err != nil {
		return fmt.Errorf("failed to save tenant: %w", translateError(err))
	}
	return nil
}

// SaveAccount creates or replaces an account row.
func (s *SQLiteStorage) SaveAccount(ctx context.Context, account *model.Account) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if err := validateString(account.ID, "account.ID"); err != nil {
		return err
	}
	if err := validateString(account.TenantID, "account.TenantID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (
			id, tenant_id, name, status, arr, health_score, churn_risk,
			active_users, total_seats, dau_mau_ratio,
			products_active, playbooks_active, open_engagements
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			arr = excluded.arr,
			health_score = excluded.health_score,
			churn_risk = excluded.churn_risk,
			active_users = excluded.active_users,
			total_seats = excluded.total_seats,
			dau_mau_ratio = excluded.dau_mau_ratio,
			products_active = excluded.products_active,
			playbooks_active = excluded.playbooks_active,
			open_engagements = excluded.open_engagements,
			updated_at = CURRENT_TIMESTAMP
	`,
		account.ID,
		account.TenantID,
		account.Name,
		string(account.Status),
		account.ARR,
		account.HealthScore,
		account.ChurnRisk,
		account.ActiveUsers,
		account.TotalSeats,
		account.DAUMAURatio,
		account.ProductsActive,
		account.PlaybooksActive,
		account.OpenEngagements,
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", translateError(err))
	}
	return nil
}

// SaveIndicators inserts a batch of indicator readings in one transaction.
// Readings without an ID get one assigned.
func (s *SQLiteStorage) SaveIndicators(ctx context.Context, readings []model.IndicatorReading) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range readings {
		r := &readings[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
		if err := validateString(r.AccountID, "reading.AccountID"); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO indicators (
				id, account_id, tenant_id, name, category, raw_value, impact, product, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			r.ID,
			r.AccountID,
			r.TenantID,
			r.Name,
			string(r.Category),
			r.RawValue,
			string(r.Impact),
			r.Product,
			r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save indicator %q: %w", r.Name, translateError(err))
		}
	}

	return tx.Commit()
}

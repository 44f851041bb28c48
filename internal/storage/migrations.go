package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/openpulse/vitals/internal/scoring"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS tenants (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					category_weights TEXT,
					impact_weights TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS accounts (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					name TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'active',
					arr REAL NOT NULL DEFAULT 0,
					health_score REAL,
					churn_risk REAL,
					active_users INTEGER NOT NULL DEFAULT 0,
					total_seats INTEGER NOT NULL DEFAULT 0,
					dau_mau_ratio REAL NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_accounts_tenant ON accounts(tenant_id)`,

				`CREATE TABLE IF NOT EXISTS indicators (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL,
					tenant_id TEXT NOT NULL,
					name TEXT NOT NULL,
					category TEXT NOT NULL,
					raw_value TEXT NOT NULL,
					impact TEXT NOT NULL DEFAULT 'medium',
					product TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (account_id) REFERENCES accounts(id)
				)`,
				`CREATE INDEX idx_indicators_account ON indicators(account_id)`,

				`CREATE TABLE IF NOT EXISTS reference_ranges (
					tenant_id TEXT NOT NULL DEFAULT '',
					indicator TEXT NOT NULL,
					unit TEXT NOT NULL DEFAULT '',
					polarity TEXT NOT NULL,
					critical_min REAL NOT NULL,
					critical_max REAL NOT NULL,
					atrisk_min REAL NOT NULL,
					atrisk_max REAL NOT NULL,
					healthy_min REAL NOT NULL,
					healthy_max REAL NOT NULL,
					version INTEGER NOT NULL DEFAULT 1,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (tenant_id, indicator)
				)`,

				`CREATE TABLE IF NOT EXISTS snapshots (
					id TEXT NOT NULL,
					account_id TEXT NOT NULL,
					seq INTEGER NOT NULL,
					trigger_type TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					overall_score REAL,
					category_scores TEXT,
					score_delta REAL,
					trend TEXT NOT NULL DEFAULT 'stable',
					revenue REAL NOT NULL DEFAULT 0,
					revenue_delta REAL,
					revenue_pct_delta REAL,
					significant_change INTEGER NOT NULL DEFAULT 0,
					UNIQUE(account_id, seq),
					FOREIGN KEY (account_id) REFERENCES accounts(id)
				)`,
				`CREATE INDEX idx_snapshots_account_created ON snapshots(account_id, created_at)`,

				`CREATE TABLE IF NOT EXISTS trigger_configs (
					tenant_id TEXT NOT NULL,
					playbook_type TEXT NOT NULL,
					enabled INTEGER NOT NULL DEFAULT 1,
					thresholds TEXT,
					last_evaluated_at DATETIME,
					last_triggered_at DATETIME,
					trigger_count INTEGER NOT NULL DEFAULT 0,
					PRIMARY KEY (tenant_id, playbook_type)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Seed system default reference ranges",
		Up: func(tx *sql.Tx) error {
			for _, r := range scoring.DefaultRanges() {
				_, err := tx.Exec(`
					INSERT INTO reference_ranges (
						tenant_id, indicator, unit, polarity,
						critical_min, critical_max, atrisk_min, atrisk_max,
						healthy_min, healthy_max, version
					) VALUES ('', ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
					ON CONFLICT(tenant_id, indicator) DO NOTHING
				`,
					r.Indicator, string(r.Unit), string(r.Polarity),
					r.Critical.Min, r.Critical.Max,
					r.AtRisk.Min, r.AtRisk.Max,
					r.Healthy.Min, r.Healthy.Max,
				)
				if err != nil {
					return fmt.Errorf("failed to seed range for %q: %w", r.Indicator, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add product, playbook and engagement summaries",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE accounts ADD COLUMN products_active INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE accounts ADD COLUMN playbooks_active INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE accounts ADD COLUMN open_engagements INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE snapshots ADD COLUMN products_active INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE snapshots ADD COLUMN playbooks_active INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE snapshots ADD COLUMN open_engagements INTEGER NOT NULL DEFAULT 0`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

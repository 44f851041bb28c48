// Package testutil provides test database helpers with proper isolation and
// fixture seeding for account health tests.
package testutil

import (
	"context"
	"testing"

	"github.com/openpulse/vitals/internal/model"
	"github.com/openpulse/vitals/internal/storage"
)

// TestDB wraps an in-memory migrated database with seeding helpers.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory database, runs migrations and registers
// cleanup. Every call gets a fully isolated database.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// SeedTenant stores a tenant, failing the test on error.
func (db *TestDB) SeedTenant(ctx context.Context, tenant *model.Tenant) {
	db.t.Helper()
	if err := db.Storage.SaveTenant(ctx, tenant); err != nil {
		db.t.Fatalf("failed to seed tenant %q: %v", tenant.ID, err)
	}
}

// SeedAccount stores an account, failing the test on error. A missing tenant
// is seeded implicitly so fixtures stay short.
func (db *TestDB) SeedAccount(ctx context.Context, account *model.Account) {
	db.t.Helper()
	if _, err := db.Storage.GetTenant(ctx, account.TenantID); err != nil {
		db.SeedTenant(ctx, &model.Tenant{ID: account.TenantID, Name: account.TenantID})
	}
	if err := db.Storage.SaveAccount(ctx, account); err != nil {
		db.t.Fatalf("failed to seed account %q: %v", account.ID, err)
	}
}

// SeedIndicators stores indicator readings, failing the test on error.
func (db *TestDB) SeedIndicators(ctx context.Context, readings []model.IndicatorReading) {
	db.t.Helper()
	if err := db.Storage.SaveIndicators(ctx, readings); err != nil {
		db.t.Fatalf("failed to seed indicators: %v", err)
	}
}

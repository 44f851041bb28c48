// Package storage provides the data persistence layer for the vitals application.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/model"
	"github.com/openpulse/vitals/internal/service"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// queryable abstracts *sql.DB and *sql.Tx for shared read helpers.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections, and a single
	// connection serializes the read-then-write snapshot sequence.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// translateError maps driver-level errors to the common sentinels so callers
// can branch on errors.Is without importing the driver.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", common.ErrDuplicateEntry, err)
		case sqliteErr.Code == sqlite3.ErrBusy,
			sqliteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", common.ErrBusy, err)
		}
	}

	return err
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getAccountTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetAccountsByTenant(ctx context.Context, tenantID string) ([]model.Account, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getAccountsByTenantTx(ctx, t.tx, tenantID)
}

func (t *sqliteTransaction) UpdateAccountHealth(ctx context.Context, id string, score float64, churnRisk *float64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.updateAccountHealthTx(ctx, t.tx, id, score, churnRisk)
}

func (t *sqliteTransaction) GetIndicatorsByAccount(ctx context.Context, accountID string) ([]model.IndicatorReading, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getIndicatorsByAccountTx(ctx, t.tx, accountID)
}

func (t *sqliteTransaction) GetReferenceRange(ctx context.Context, tenantID, indicator string) (*model.ReferenceRange, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getReferenceRangeTx(ctx, t.tx, tenantID, indicator)
}

func (t *sqliteTransaction) GetReferenceRanges(ctx context.Context, tenantID string) ([]model.ReferenceRange, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getReferenceRangesTx(ctx, t.tx, tenantID)
}

func (t *sqliteTransaction) SaveReferenceRange(ctx context.Context, r *model.ReferenceRange) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReferenceRange(r); err != nil {
		return err
	}
	return t.storage.saveReferenceRangeTx(ctx, t.tx, r)
}

func (t *sqliteTransaction) GetLatestSnapshot(ctx context.Context, accountID string) (*model.AccountSnapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getLatestSnapshotTx(ctx, t.tx, accountID)
}

func (t *sqliteTransaction) GetRecentSnapshots(ctx context.Context, accountID string, limit int) ([]model.AccountSnapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getRecentSnapshotsTx(ctx, t.tx, accountID, limit)
}

func (t *sqliteTransaction) SaveSnapshot(ctx context.Context, snapshot *model.AccountSnapshot) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSnapshot(snapshot); err != nil {
		return err
	}
	return t.storage.saveSnapshotTx(ctx, t.tx, snapshot)
}

func (t *sqliteTransaction) GetSnapshotCount(ctx context.Context, accountID string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return t.storage.getSnapshotCountTx(ctx, t.tx, accountID)
}

func (t *sqliteTransaction) GetTriggerConfig(ctx context.Context, tenantID string, playbook model.PlaybookType) (*model.TriggerConfig, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTriggerConfigTx(ctx, t.tx, tenantID, playbook)
}

func (t *sqliteTransaction) SaveTriggerConfig(ctx context.Context, cfg *model.TriggerConfig) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTriggerConfig(cfg); err != nil {
		return err
	}
	return t.storage.saveTriggerConfigTx(ctx, t.tx, cfg)
}

func (t *sqliteTransaction) MarkTriggerEvaluated(ctx context.Context, tenantID string, playbook model.PlaybookType, at time.Time, fired bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.markTriggerEvaluatedTx(ctx, t.tx, tenantID, playbook, at, fired)
}

func (t *sqliteTransaction) GetTenant(ctx context.Context, id string) (*model.Tenant, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTenantTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}

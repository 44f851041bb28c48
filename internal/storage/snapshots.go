package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openpulse/vitals/internal/model"
)

const snapshotColumns = `id, account_id, seq, trigger_type, created_at,
	overall_score, category_scores, score_delta, trend,
	revenue, revenue_delta, revenue_pct_delta, significant_change,
	products_active, playbooks_active, open_engagements`

// GetLatestSnapshot retrieves the most recent snapshot for an account, or
// nil when the account has no snapshots yet.
func (s *SQLiteStorage) GetLatestSnapshot(ctx context.Context, accountID string) (*model.AccountSnapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}
	return s.getLatestSnapshotTx(ctx, s.db, accountID)
}

func (s *SQLiteStorage) getLatestSnapshotTx(ctx context.Context, q queryable, accountID string) (*model.AccountSnapshot, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE account_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, accountID)

	snapshot, err := scanSnapshotRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return snapshot, nil
}

// GetRecentSnapshots retrieves up to limit snapshots for an account, most
// recent first.
func (s *SQLiteStorage) GetRecentSnapshots(ctx context.Context, accountID string, limit int) ([]model.AccountSnapshot, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	return s.getRecentSnapshotsTx(ctx, s.db, accountID, limit)
}

func (s *SQLiteStorage) getRecentSnapshotsTx(ctx context.Context, q queryable, accountID string, limit int) ([]model.AccountSnapshot, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+snapshotColumns+`
		FROM snapshots
		WHERE account_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshots []model.AccountSnapshot
	for rows.Next() {
		snapshot, err := scanSnapshotRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, *snapshot)
	}

	return snapshots, rows.Err()
}

// GetSnapshotCount returns the number of snapshots stored for an account.
func (s *SQLiteStorage) GetSnapshotCount(ctx context.Context, accountID string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return 0, err
	}
	return s.getSnapshotCountTx(ctx, s.db, accountID)
}

func (s *SQLiteStorage) getSnapshotCountTx(ctx context.Context, q queryable, accountID string) (int64, error) {
	var count int64
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM snapshots WHERE account_id = ?
	`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// SaveSnapshot assigns the next per-account sequence number and persists the
// snapshot as a single atomic write. The UNIQUE(account_id, seq) constraint
// is the backstop against concurrent writers; rows are append-only and never
// mutated afterwards.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, snapshot *model.AccountSnapshot) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSnapshot(snapshot); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveSnapshotTx(ctx, tx, snapshot); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveSnapshotTx(ctx context.Context, q queryable, snapshot *model.AccountSnapshot) error {
	if snapshot.Sequence != 0 {
		return fmt.Errorf("%w: sequence is assigned by storage", ErrImmutableSnapshot)
	}
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	var lastSeq int64
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM snapshots WHERE account_id = ?
	`, snapshot.AccountID).Scan(&lastSeq)
	if err != nil {
		return fmt.Errorf("failed to read last sequence: %w", err)
	}
	snapshot.Sequence = lastSeq + 1

	var categoryJSON []byte
	if snapshot.CategoryScores != nil {
		categoryJSON, err = json.Marshal(snapshot.CategoryScores)
		if err != nil {
			return fmt.Errorf("failed to marshal category scores: %w", err)
		}
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO snapshots (
			id, account_id, seq, trigger_type, created_at,
			overall_score, category_scores, score_delta, trend,
			revenue, revenue_delta, revenue_pct_delta, significant_change,
			products_active, playbooks_active, open_engagements
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snapshot.ID,
		snapshot.AccountID,
		snapshot.Sequence,
		string(snapshot.Trigger),
		snapshot.CreatedAt,
		snapshot.OverallScore,
		nullableJSON(categoryJSON),
		snapshot.ScoreDelta,
		string(snapshot.Trend),
		snapshot.Revenue,
		snapshot.RevenueDelta,
		snapshot.RevenuePctDelta,
		snapshot.SignificantChange,
		snapshot.ProductsActive,
		snapshot.PlaybooksActive,
		snapshot.OpenEngagements,
	)
	if err != nil {
		snapshot.Sequence = 0
		return fmt.Errorf("failed to save snapshot: %w", translateError(err))
	}

	return nil
}

func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshotRow(row rowScanner) (*model.AccountSnapshot, error) {
	var snapshot model.AccountSnapshot
	var categoryJSON sql.NullString

	err := row.Scan(
		&snapshot.ID,
		&snapshot.AccountID,
		&snapshot.Sequence,
		&snapshot.Trigger,
		&snapshot.CreatedAt,
		&snapshot.OverallScore,
		&categoryJSON,
		&snapshot.ScoreDelta,
		&snapshot.Trend,
		&snapshot.Revenue,
		&snapshot.RevenueDelta,
		&snapshot.RevenuePctDelta,
		&snapshot.SignificantChange,
		&snapshot.ProductsActive,
		&snapshot.PlaybooksActive,
		&snapshot.OpenEngagements,
	)
	if err != nil {
		return nil, err
	}

	if categoryJSON.Valid && categoryJSON.String != "" {
		if err := json.Unmarshal([]byte(categoryJSON.String), &snapshot.CategoryScores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal category scores: %w", err)
		}
	}

	return &snapshot, nil
}

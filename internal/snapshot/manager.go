// Package snapshot implements rate-limited creation of immutable account
// state snapshots with delta, trend and significant-change detection.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/model"
	"github.com/openpulse/vitals/internal/scoring"
	"github.com/openpulse/vitals/internal/service"
)

// Minimum intervals between snapshots per trigger reason. Manual and forced
// snapshots bypass the policy entirely.
var minIntervals = map[model.SnapshotTrigger]time.Duration{
	model.TriggerEvent:          time.Hour,
	model.TriggerRAGAuto:        30 * time.Minute,
	model.TriggerScheduled:      24 * time.Hour,
	model.TriggerPostUpload:     time.Hour,
	model.TriggerPostHealthCalc: 30 * time.Minute,
}

// CreateResult is the outcome of a snapshot attempt. Skipped is a
// distinguished non-error outcome: nothing was wrong, another snapshot was
// simply not needed yet.
type CreateResult struct {
	Snapshot   *model.AccountSnapshot
	SkipReason string
	Skipped    bool
}

// Manager decides whether snapshots should be created and assembles them.
type Manager struct {
	storage service.Storage
	scorer  service.ProxyScorer
	now     func() time.Time
	locks   map[string]*sync.Mutex
	mu      sync.Mutex
}

// NewManager creates a snapshot manager. The proxy scorer is consulted when
// an account has no pre-computed health score.
func NewManager(storage service.Storage, scorer service.ProxyScorer) *Manager {
	return &Manager{
		storage: storage,
		scorer:  scorer,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
}

// accountLock returns the mutex serializing snapshot attempts for one
// account. The read-latest, decide, write sequence must not interleave for
// the same account or duplicate sequence numbers become possible.
func (m *Manager) accountLock(accountID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[accountID] = lock
	}
	return lock
}

// Create evaluates the rate-limiting policy and, when it passes, assembles
// and persists a new snapshot for the account.
func (m *Manager) Create(ctx context.Context, accountID string, trigger model.SnapshotTrigger, force bool) (*CreateResult, error) {
	if !model.ValidSnapshotTrigger(trigger) {
		return nil, fmt.Errorf("unknown snapshot trigger %q", trigger)
	}

	lock := m.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	latest, err := m.storage.GetLatestSnapshot(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest snapshot: %w", err)
	}

	// Rate limit before any computation to avoid wasted work.
	if skip, reason := m.shouldSkip(latest, trigger, force); skip {
		common.LogDebug("Skipping snapshot", common.Fields{
			"account_id": accountID,
			"trigger":    trigger,
			"reason":     reason,
		})
		return &CreateResult{Skipped: true, SkipReason: reason}, nil
	}

	account, err := m.storage.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	snapshot, err := m.assemble(ctx, account, latest, trigger)
	if err != nil {
		return nil, err
	}

	// Single atomic write; storage assigns the sequence number and rolls
	// back on any failure so a half-written snapshot is never visible.
	err = common.WithRetry(ctx, func() error {
		return m.storage.SaveSnapshot(ctx, snapshot)
	}, common.RetryOptions{MaxAttempts: 3})
	if err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	slog.Info("Created snapshot",
		"account_id", accountID,
		"sequence", snapshot.Sequence,
		"trigger", trigger,
		"significant_change", snapshot.SignificantChange)

	return &CreateResult{Snapshot: snapshot}, nil
}

// shouldSkip applies the minimum-interval policy for the trigger reason.
func (m *Manager) shouldSkip(latest *model.AccountSnapshot, trigger model.SnapshotTrigger, force bool) (bool, string) {
	if force || trigger == model.TriggerManual {
		return false, ""
	}
	if latest == nil {
		return false, ""
	}

	interval, ok := minIntervals[trigger]
	if !ok {
		return false, ""
	}

	elapsed := m.now().Sub(latest.CreatedAt)
	if elapsed < interval {
		return true, fmt.Sprintf("last snapshot %s ago, minimum interval for %s is %s",
			elapsed.Round(time.Second), trigger, interval)
	}
	return false, ""
}

// assemble builds the full snapshot record from current account state and
// the prior snapshot.
func (m *Manager) assemble(ctx context.Context, account *model.Account, prior *model.AccountSnapshot, trigger model.SnapshotTrigger) (*model.AccountSnapshot, error) {
	snapshot := &model.AccountSnapshot{
		AccountID:       account.ID,
		Trigger:         trigger,
		CreatedAt:       m.now().UTC(),
		Trend:           model.TrendStable,
		Revenue:         account.ARR,
		ProductsActive:  account.ProductsActive,
		PlaybooksActive: account.PlaybooksActive,
		OpenEngagements: account.OpenEngagements,
	}

	overall, categories, err := m.currentScores(ctx, account)
	if err != nil {
		return nil, err
	}
	snapshot.OverallScore = overall
	snapshot.CategoryScores = categories

	// Delta fields stay nil for an account's first snapshot.
	if prior != nil {
		if overall != nil && prior.OverallScore != nil {
			delta := *overall - *prior.OverallScore
			snapshot.ScoreDelta = &delta
		}

		revenueDelta := account.ARR - prior.Revenue
		snapshot.RevenueDelta = &revenueDelta
		if prior.Revenue != 0 {
			pct := revenueDelta / prior.Revenue * 100
			snapshot.RevenuePctDelta = &pct
		}
	}

	snapshot.SignificantChange = model.IsSignificantChange(snapshot.ScoreDelta, snapshot.RevenuePctDelta)

	trend, err := m.trendFor(ctx, account.ID, overall)
	if err != nil {
		return nil, err
	}
	snapshot.Trend = trend

	return snapshot, nil
}

// currentScores returns the account's overall and per-category scores. The
// stored pre-computed score wins for the overall, but per-category scores are
// never persisted on the account, so the proxy scorer supplies those whenever
// one is wired.
func (m *Manager) currentScores(ctx context.Context, account *model.Account) (*float64, map[model.IndicatorCategory]float64, error) {
	var overall *float64
	if account.HealthScore != nil {
		score := *account.HealthScore
		overall = &score
	}

	if m.scorer == nil {
		return overall, nil, nil
	}

	report, err := m.scorer(ctx, account.TenantID, account.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("proxy scoring failed: %w", err)
	}
	if report == nil || report.InsufficientData {
		return overall, nil, nil
	}

	categories := make(map[model.IndicatorCategory]float64, len(report.Categories))
	for cat, cs := range report.Categories {
		if cs.Defined {
			categories[cat] = cs.Score
		}
	}
	if overall == nil {
		score := report.Overall
		overall = &score
	}
	return overall, categories, nil
}

// trendFor computes the trend label from the pending score plus the most
// recent prior snapshots.
func (m *Manager) trendFor(ctx context.Context, accountID string, pending *float64) (model.TrendLabel, error) {
	recent, err := m.storage.GetRecentSnapshots(ctx, accountID, scoring.TrendWindow-1)
	if err != nil {
		return "", fmt.Errorf("failed to load recent snapshots: %w", err)
	}

	var scores []float64
	if pending != nil {
		scores = append(scores, *pending)
	}
	for _, snap := range recent {
		if snap.OverallScore != nil {
			scores = append(scores, *snap.OverallScore)
		}
	}

	return scoring.Trend(scores), nil
}

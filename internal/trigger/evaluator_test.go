package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/model"
	"github.com/openpulse/vitals/internal/scoring"
	"github.com/openpulse/vitals/internal/service"
	"github.com/openpulse/vitals/internal/testutil"
)

func floatPtr(v float64) *float64 { return &v }

// storeScorer builds a proxy scorer over the test database, mirroring how the
// engine wires one.
func storeScorer(db *testutil.TestDB) service.ProxyScorer {
	scorer := scoring.NewScorer(scoring.NewFallback(
		scoring.NewStoreProvider(db.Storage),
		scoring.NewSystemDefaults(),
	))
	return func(ctx context.Context, tenantID, accountID string) (*model.HealthReport, error) {
		indicators, err := db.Storage.GetIndicatorsByAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return scorer.ComputeHealth(ctx, tenantID, indicators, nil)
	}
}

func seedConfig(t *testing.T, db *testutil.TestDB, playbook model.PlaybookType, enabled bool, thresholds map[string]float64) {
	t.Helper()
	err := db.Storage.SaveTriggerConfig(context.Background(), &model.TriggerConfig{
		TenantID:   "tenant-1",
		Playbook:   playbook,
		Enabled:    enabled,
		Thresholds: thresholds,
	})
	require.NoError(t, err)
}

func TestEvaluateUnknownPlaybook(t *testing.T) {
	db := testutil.SetupTestDB(t)
	evaluator := NewEvaluator(db.Storage, nil)

	_, err := evaluator.Evaluate(context.Background(), "escalate_everything", "tenant-1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnknownPlaybookType)
}

func TestEvaluateRetentionRisk(t *testing.T) {
	tests := []struct {
		name           string
		account        model.Account
		wantConditions []string
	}{
		{
			name: "score below threshold triggers",
			account: model.Account{
				ID: "acct-1", TenantID: "tenant-1", Name: "Acme",
				Status:      model.AccountActive,
				HealthScore: floatPtr(68),
			},
			wantConditions: []string{"health score below threshold"},
		},
		{
			name: "score above threshold does not trigger",
			account: model.Account{
				ID: "acct-2", TenantID: "tenant-1", Name: "Globex",
				Status:      model.AccountActive,
				HealthScore: floatPtr(72),
			},
			wantConditions: nil,
		},
		{
			name: "at risk status triggers",
			account: model.Account{
				ID: "acct-3", TenantID: "tenant-1", Name: "Initech",
				Status:      model.AccountAtRisk,
				HealthScore: floatPtr(80),
			},
			wantConditions: []string{"account status at risk"},
		},
		{
			name: "churn risk above threshold triggers",
			account: model.Account{
				ID: "acct-4", TenantID: "tenant-1", Name: "Umbrella",
				Status:      model.AccountActive,
				HealthScore: floatPtr(80),
				ChurnRisk:   floatPtr(0.85),
			},
			wantConditions: []string{"churn risk above threshold"},
		},
		{
			name: "all matched conditions are reported",
			account: model.Account{
				ID: "acct-5", TenantID: "tenant-1", Name: "Hooli",
				Status:      model.AccountAtRisk,
				HealthScore: floatPtr(40),
				ChurnRisk:   floatPtr(0.9),
			},
			wantConditions: []string{
				"health score below threshold",
				"account status at risk",
				"churn risk above threshold",
			},
		},
		{
			name: "unscored account without a scorer never matches on score",
			account: model.Account{
				ID: "acct-6", TenantID: "tenant-1", Name: "Wonka",
				Status: model.AccountActive,
			},
			wantConditions: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			ctx := context.Background()
			db.SeedAccount(ctx, &tt.account)
			seedConfig(t, db, model.PlaybookRetentionRisk, true, map[string]float64{
				"health_score_threshold": 70,
				"churn_risk_threshold":   0.7,
			})

			evaluator := NewEvaluator(db.Storage, nil)
			result, err := evaluator.Evaluate(ctx, model.PlaybookRetentionRisk, "tenant-1", []string{tt.account.ID})
			require.NoError(t, err)
			require.Len(t, result.Accounts, 1)

			var got []string
			for _, m := range result.Accounts[0].Matches {
				got = append(got, m.Condition)
			}
			assert.Equal(t, tt.wantConditions, got)
			assert.Equal(t, len(tt.wantConditions) > 0, result.Triggered)
		})
	}
}

func TestEvaluateRetentionRiskUnscoredUsesProxyScorer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	// No stored health score; the evaluator must score from current
	// readings instead of silently skipping the score condition.
	db.SeedAccount(ctx, &model.Account{
		ID: "acct-1", TenantID: "tenant-1", Name: "Acme",
		Status: model.AccountActive,
	})
	db.SeedIndicators(ctx, []model.IndicatorReading{
		{AccountID: "acct-1", TenantID: "tenant-1", Name: "nps",
			Category: model.CategoryRelationship, Impact: model.ImpactMedium, RawValue: "20"},
	})
	seedConfig(t, db, model.PlaybookRetentionRisk, true, map[string]float64{
		"health_score_threshold": 70,
	})

	evaluator := NewEvaluator(db.Storage, storeScorer(db))
	result, err := evaluator.Evaluate(ctx, model.PlaybookRetentionRisk, "tenant-1", []string{"acct-1"})
	require.NoError(t, err)
	require.Len(t, result.Accounts, 1)
	assert.True(t, result.Triggered)

	require.Len(t, result.Accounts[0].Matches, 1)
	// NPS 20 sits in the at-risk band and scores 57.3, under the floor.
	assert.Equal(t, "health score below threshold", result.Accounts[0].Matches[0].Condition)
	assert.Contains(t, result.Accounts[0].Matches[0].Detail, "57.3")
}

func TestEvaluateAdoption(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	db.SeedAccount(ctx, &model.Account{
		ID: "acct-1", TenantID: "tenant-1", Name: "Acme",
		Status:      model.AccountActive,
		ActiveUsers: 3,
		DAUMAURatio: 0.1,
	})
	db.SeedIndicators(ctx, []model.IndicatorReading{
		{AccountID: "acct-1", TenantID: "tenant-1", Name: "adoption_rate",
			Category: model.CategoryAdoption, Impact: model.ImpactHigh, RawValue: "30%"},
	})
	seedConfig(t, db, model.PlaybookAdoption, true, map[string]float64{
		"adoption_score_threshold": 50,
		"active_user_floor":        5,
		"dau_mau_threshold":        0.2,
	})

	evaluator := NewEvaluator(db.Storage, storeScorer(db))
	result, err := evaluator.Evaluate(ctx, model.PlaybookAdoption, "tenant-1", []string{"acct-1"})
	require.NoError(t, err)
	require.Len(t, result.Accounts, 1)
	assert.True(t, result.Triggered)

	var got []string
	for _, m := range result.Accounts[0].Matches {
		got = append(got, m.Condition)
	}
	assert.Equal(t, []string{
		"adoption score below threshold",
		"active users below floor",
		"daily to monthly active ratio below threshold",
	}, got)
}

func TestEvaluateAdoptionFeatureBreadth(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	db.SeedAccount(ctx, &model.Account{
		ID: "acct-1", TenantID: "tenant-1", Name: "Acme",
		Status:      model.AccountActive,
		ActiveUsers: 100,
		DAUMAURatio: 0.5,
	})
	db.SeedIndicators(ctx, []model.IndicatorReading{
		{AccountID: "acct-1", TenantID: "tenant-1", Name: "adoption_rate",
			Category: model.CategoryAdoption, Impact: model.ImpactHigh, RawValue: "90%"},
	})
	seedConfig(t, db, model.PlaybookAdoption, true, map[string]float64{
		"feature_breadth_enabled": 1,
		"feature_breadth_min":     3,
	})

	evaluator := NewEvaluator(db.Storage, storeScorer(db))
	result, err := evaluator.Evaluate(ctx, model.PlaybookAdoption, "tenant-1", []string{"acct-1"})
	require.NoError(t, err)
	require.Len(t, result.Accounts, 1)
	require.Len(t, result.Accounts[0].Matches, 1)
	assert.Equal(t, "feature usage breadth below minimum", result.Accounts[0].Matches[0].Condition)
}

func TestEvaluateSupportEscalation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	db.SeedAccount(ctx, &model.Account{
		ID: "acct-1", TenantID: "tenant-1", Name: "Acme",
		Status: model.AccountActive,
	})
	db.SeedIndicators(ctx, []model.IndicatorReading{
		{AccountID: "acct-1", TenantID: "tenant-1", Name: "support_satisfaction",
			Category: model.CategorySupport, Impact: model.ImpactCritical, RawValue: "2"},
		{AccountID: "acct-1", TenantID: "tenant-1", Name: "response_time",
			Category: model.CategorySupport, Impact: model.ImpactCritical, RawValue: "48 hours"},
	})
	seedConfig(t, db, model.PlaybookSupportEscalation, true, map[string]float64{
		"support_score_threshold":  50,
		"critical_indicator_count": 2,
	})

	evaluator := NewEvaluator(db.Storage, storeScorer(db))
	result, err := evaluator.Evaluate(ctx, model.PlaybookSupportEscalation, "tenant-1", []string{"acct-1"})
	require.NoError(t, err)
	require.Len(t, result.Accounts, 1)

	var got []string
	for _, m := range result.Accounts[0].Matches {
		got = append(got, m.Condition)
	}
	assert.Equal(t, []string{
		"support score below threshold",
		"critical support indicators at or above count",
	}, got)
}

func TestEvaluateDisabledConfig(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	db.SeedAccount(ctx, &model.Account{
		ID: "acct-1", TenantID: "tenant-1", Name: "Acme",
		Status:      model.AccountAtRisk,
		HealthScore: floatPtr(10),
	})
	seedConfig(t, db, model.PlaybookRetentionRisk, false, nil)

	evaluator := NewEvaluator(db.Storage, nil)
	result, err := evaluator.Evaluate(ctx, model.PlaybookRetentionRisk, "tenant-1", nil)
	require.NoError(t, err)
	assert.Empty(t, result.Accounts)
	assert.False(t, result.Triggered)

	// Disabled evaluations still stamp last-evaluated but never the
	// triggered timestamp.
	cfg, err := db.Storage.GetTriggerConfig(ctx, "tenant-1", model.PlaybookRetentionRisk)
	require.NoError(t, err)
	assert.NotNil(t, cfg.LastEvaluatedAt)
	assert.Nil(t, cfg.LastTriggeredAt)
	assert.Zero(t, cfg.TriggerCount)
}

func TestEvaluateSideEffects(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	db.SeedAccount(ctx, &model.Account{
		ID: "acct-low", TenantID: "tenant-1", Name: "Low",
		Status:      model.AccountActive,
		HealthScore: floatPtr(20),
	})
	db.SeedAccount(ctx, &model.Account{
		ID: "acct-high", TenantID: "tenant-1", Name: "High",
		Status:      model.AccountActive,
		HealthScore: floatPtr(95),
	})
	seedConfig(t, db, model.PlaybookRetentionRisk, true, map[string]float64{
		"health_score_threshold": 60,
	})

	evaluator := NewEvaluator(db.Storage, nil)
	evaluator.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	// First run fires for the low account.
	result, err := evaluator.Evaluate(ctx, model.PlaybookRetentionRisk, "tenant-1", nil)
	require.NoError(t, err)
	assert.True(t, result.Triggered)
	assert.Len(t, result.Accounts, 2)
	assert.Len(t, result.TriggeredAccounts(), 1)
	assert.Equal(t, "acct-low", result.TriggeredAccounts()[0].AccountID)

	cfg, err := db.Storage.GetTriggerConfig(ctx, "tenant-1", model.PlaybookRetentionRisk)
	require.NoError(t, err)
	require.NotNil(t, cfg.LastTriggeredAt)
	assert.Equal(t, int64(1), cfg.TriggerCount)
	firstTriggered := *cfg.LastTriggeredAt

	// Second run against only the healthy account does not fire; the
	// triggered timestamp and count stay put while evaluated advances.
	evaluator.now = func() time.Time { return time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC) }
	result, err = evaluator.Evaluate(ctx, model.PlaybookRetentionRisk, "tenant-1", []string{"acct-high"})
	require.NoError(t, err)
	assert.False(t, result.Triggered)

	cfg, err = db.Storage.GetTriggerConfig(ctx, "tenant-1", model.PlaybookRetentionRisk)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.TriggerCount)
	assert.True(t, firstTriggered.Equal(*cfg.LastTriggeredAt))
	assert.True(t, cfg.LastEvaluatedAt.After(firstTriggered))
}

func TestEvaluateSeedsMissingConfig(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	db.SeedAccount(ctx, &model.Account{
		ID: "acct-1", TenantID: "tenant-1", Name: "Acme",
		Status:      model.AccountActive,
		HealthScore: floatPtr(90),
	})

	evaluator := NewEvaluator(db.Storage, nil)
	_, err := evaluator.Evaluate(ctx, model.PlaybookRetentionRisk, "tenant-1", nil)
	require.NoError(t, err)

	cfg, err := db.Storage.GetTriggerConfig(ctx, "tenant-1", model.PlaybookRetentionRisk)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
}

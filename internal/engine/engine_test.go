package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpulse/vitals/internal/model"
	"github.com/openpulse/vitals/internal/testutil"
)

// seedScoredAccount loads a tenant weighting relationship and adoption
// equally, with readings whose scores are known exactly: nps 72 and csat 4.6
// both land at 86.8 in the healthy tier, adoption_rate 55% lands at 53 in the
// at-risk tier, giving an overall of 69.9.
func seedScoredAccount(t *testing.T, db *testutil.TestDB) {
	t.Helper()
	ctx := context.Background()

	db.SeedTenant(ctx, &model.Tenant{
		ID:   "tenant-1",
		Name: "Tenant One",
		CategoryWeights: map[model.IndicatorCategory]float64{
			model.CategoryRelationship: 0.5,
			model.CategoryAdoption:     0.5,
		},
	})
	db.SeedAccount(ctx, &model.Account{
		ID:       "acct-1",
		TenantID: "tenant-1",
		Name:     "Acme",
		Status:   model.AccountActive,
		ARR:      100000,
	})
	db.SeedIndicators(ctx, []model.IndicatorReading{
		{AccountID: "acct-1", TenantID: "tenant-1", Name: "nps",
			Category: model.CategoryRelationship, Impact: model.ImpactCritical, RawValue: "72"},
		{AccountID: "acct-1", TenantID: "tenant-1", Name: "csat",
			Category: model.CategoryRelationship, Impact: model.ImpactMedium, RawValue: "4.6"},
		{AccountID: "acct-1", TenantID: "tenant-1", Name: "adoption_rate",
			Category: model.CategoryAdoption, Impact: model.ImpactHigh, RawValue: "55%"},
	})
}

func TestComputeAccountHealth(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	seedScoredAccount(t, db)

	eng := New(db.Storage)
	report, err := eng.ComputeAccountHealth(ctx, "acct-1")
	require.NoError(t, err)
	require.False(t, report.InsufficientData)
	assert.InDelta(t, 69.9, report.Overall, 0.001)

	relationship := report.Categories[model.CategoryRelationship]
	require.True(t, relationship.Defined)
	assert.InDelta(t, 86.8, relationship.Score, 0.001)
	adoption := report.Categories[model.CategoryAdoption]
	require.True(t, adoption.Defined)
	assert.InDelta(t, 53, adoption.Score, 0.001)

	// The score is persisted on the account.
	account, err := db.Storage.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	require.NotNil(t, account.HealthScore)
	assert.InDelta(t, 69.9, *account.HealthScore, 0.001)

	// And a post-calculation snapshot is recorded.
	snap, err := db.Storage.GetLatestSnapshot(ctx, "acct-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, model.TriggerPostHealthCalc, snap.Trigger)
	require.NotNil(t, snap.OverallScore)
	assert.InDelta(t, 69.9, *snap.OverallScore, 0.001)
	// Per-category scores ride along even though the account already has a
	// stored overall score.
	assert.InDelta(t, 86.8, snap.CategoryScores[model.CategoryRelationship], 0.001)
	assert.InDelta(t, 53, snap.CategoryScores[model.CategoryAdoption], 0.001)
}

func TestComputeAccountHealthIsDeterministic(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	seedScoredAccount(t, db)

	eng := New(db.Storage)
	first, err := eng.ComputeAccountHealth(ctx, "acct-1")
	require.NoError(t, err)
	second, err := eng.ComputeAccountHealth(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, first.Overall, second.Overall)
}

func TestComputeAccountHealthInsufficientData(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	db.SeedAccount(ctx, &model.Account{
		ID: "acct-1", TenantID: "tenant-1", Name: "Acme",
		Status: model.AccountActive,
	})
	// Only an unparsable reading, so nothing contributes.
	db.SeedIndicators(ctx, []model.IndicatorReading{
		{AccountID: "acct-1", TenantID: "tenant-1", Name: "nps",
			Category: model.CategoryRelationship, Impact: model.ImpactCritical, RawValue: "N/A"},
	})

	eng := New(db.Storage)
	report, err := eng.ComputeAccountHealth(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, report.InsufficientData)

	// Nothing is persisted for an unscorable account.
	account, err := db.Storage.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Nil(t, account.HealthScore)

	snap, err := db.Storage.GetLatestSnapshot(ctx, "acct-1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestClassifyIndicator(t *testing.T) {
	db := testutil.SetupTestDB(t)
	eng := New(db.Storage)

	classified, err := eng.ClassifyIndicator(context.Background(), "tenant-1", model.IndicatorReading{
		Name:     "nps",
		Category: model.CategoryRelationship,
		Impact:   model.ImpactCritical,
		RawValue: "72",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TierHealthy, classified.Tier)
	assert.InDelta(t, 86.8, classified.Score, 0.001)
}

func TestClassifyIndicatorTenantOverride(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	// A stricter tenant range pushes the same raw value down a tier.
	require.NoError(t, db.Storage.SaveReferenceRange(ctx, &model.ReferenceRange{
		TenantID:  "tenant-1",
		Indicator: "nps",
		Polarity:  model.HigherIsBetter,
		Critical:  model.Band{Min: -100, Max: 40},
		AtRisk:    model.Band{Min: 40, Max: 80},
		Healthy:   model.Band{Min: 80, Max: 100},
	}))

	eng := New(db.Storage)
	classified, err := eng.ClassifyIndicator(ctx, "tenant-1", model.IndicatorReading{
		Name:     "nps",
		Category: model.CategoryRelationship,
		RawValue: "72",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TierAtRisk, classified.Tier)

	// Other tenants keep the system default classification.
	classified, err = eng.ClassifyIndicator(ctx, "tenant-2", model.IndicatorReading{
		Name:     "nps",
		Category: model.CategoryRelationship,
		RawValue: "72",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TierHealthy, classified.Tier)
}

func TestCreateSnapshotThroughEngine(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	seedScoredAccount(t, db)

	eng := New(db.Storage)

	// The account has no stored score, so the snapshot path scores it on
	// the fly through the engine's own scorer.
	result, err := eng.CreateSnapshot(ctx, "acct-1", model.TriggerManual, false)
	require.NoError(t, err)
	require.False(t, result.Skipped)
	require.NotNil(t, result.Snapshot.OverallScore)
	assert.InDelta(t, 69.9, *result.Snapshot.OverallScore, 0.001)
	assert.InDelta(t, 86.8, result.Snapshot.CategoryScores[model.CategoryRelationship], 0.001)
	assert.InDelta(t, 53, result.Snapshot.CategoryScores[model.CategoryAdoption], 0.001)
}

func TestEvaluateTriggerThroughEngine(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	seedScoredAccount(t, db)

	require.NoError(t, db.Storage.SaveTriggerConfig(ctx, &model.TriggerConfig{
		TenantID: "tenant-1",
		Playbook: model.PlaybookRetentionRisk,
		Enabled:  true,
		Thresholds: map[string]float64{
			"health_score_threshold": 75,
		},
	}))

	eng := New(db.Storage)
	_, err := eng.ComputeAccountHealth(ctx, "acct-1")
	require.NoError(t, err)

	result, err := eng.EvaluateTrigger(ctx, model.PlaybookRetentionRisk, "tenant-1", nil)
	require.NoError(t, err)
	assert.True(t, result.Triggered)
	require.Len(t, result.TriggeredAccounts(), 1)
	assert.Equal(t, "acct-1", result.TriggeredAccounts()[0].AccountID)
	assert.Equal(t, "health score below threshold", result.TriggeredAccounts()[0].Matches[0].Condition)
}

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/model"
)

func TestTriggerConfigRoundTrip(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveTriggerConfig(ctx, &model.TriggerConfig{
		TenantID: "tenant-1",
		Playbook: model.PlaybookRetentionRisk,
		Enabled:  true,
		Thresholds: map[string]float64{
			"health_score_threshold": 65,
			"churn_risk_threshold":   0.8,
		},
	}))

	cfg, err := storage.GetTriggerConfig(ctx, "tenant-1", model.PlaybookRetentionRisk)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 65.0, cfg.Thresholds["health_score_threshold"])
	assert.Equal(t, 0.8, cfg.Thresholds["churn_risk_threshold"])
	assert.Nil(t, cfg.LastEvaluatedAt)
	assert.Nil(t, cfg.LastTriggeredAt)
	assert.Zero(t, cfg.TriggerCount)
}

func TestGetTriggerConfigNotFound(t *testing.T) {
	storage := createTestStorage(t)

	_, err := storage.GetTriggerConfig(context.Background(), "tenant-1", model.PlaybookAdoption)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveTriggerConfigRejectsInvalid(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	err := storage.SaveTriggerConfig(ctx, &model.TriggerConfig{
		TenantID: "tenant-1",
		Playbook: "launch_the_confetti",
	})
	assert.ErrorIs(t, err, ErrInvalidPlaybookType)
}

func TestSaveTriggerConfigPreservesEvaluationState(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveTriggerConfig(ctx, &model.TriggerConfig{
		TenantID: "tenant-1",
		Playbook: model.PlaybookAdoption,
		Enabled:  true,
	}))

	at := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, storage.MarkTriggerEvaluated(ctx, "tenant-1", model.PlaybookAdoption, at, true))

	// A threshold update must not reset the evaluation history.
	require.NoError(t, storage.SaveTriggerConfig(ctx, &model.TriggerConfig{
		TenantID:   "tenant-1",
		Playbook:   model.PlaybookAdoption,
		Enabled:    true,
		Thresholds: map[string]float64{"active_user_floor": 10},
	}))

	cfg, err := storage.GetTriggerConfig(ctx, "tenant-1", model.PlaybookAdoption)
	require.NoError(t, err)
	assert.Equal(t, 10.0, cfg.Thresholds["active_user_floor"])
	require.NotNil(t, cfg.LastTriggeredAt)
	assert.True(t, at.Equal(*cfg.LastTriggeredAt))
	assert.Equal(t, int64(1), cfg.TriggerCount)
}

func TestMarkTriggerEvaluated(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.SaveTriggerConfig(ctx, &model.TriggerConfig{
		TenantID: "tenant-1",
		Playbook: model.PlaybookSupportEscalation,
		Enabled:  true,
	}))

	quiet := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, storage.MarkTriggerEvaluated(ctx, "tenant-1", model.PlaybookSupportEscalation, quiet, false))

	cfg, err := storage.GetTriggerConfig(ctx, "tenant-1", model.PlaybookSupportEscalation)
	require.NoError(t, err)
	require.NotNil(t, cfg.LastEvaluatedAt)
	assert.True(t, quiet.Equal(*cfg.LastEvaluatedAt))
	assert.Nil(t, cfg.LastTriggeredAt)
	assert.Zero(t, cfg.TriggerCount)

	fired := quiet.Add(time.Hour)
	require.NoError(t, storage.MarkTriggerEvaluated(ctx, "tenant-1", model.PlaybookSupportEscalation, fired, true))

	cfg, err = storage.GetTriggerConfig(ctx, "tenant-1", model.PlaybookSupportEscalation)
	require.NoError(t, err)
	require.NotNil(t, cfg.LastTriggeredAt)
	assert.True(t, fired.Equal(*cfg.LastTriggeredAt))
	assert.Equal(t, int64(1), cfg.TriggerCount)
}

func TestMarkTriggerEvaluatedMissingConfig(t *testing.T) {
	storage := createTestStorage(t)

	err := storage.MarkTriggerEvaluated(context.Background(), "tenant-1", model.PlaybookAdoption, time.Now().UTC(), false)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

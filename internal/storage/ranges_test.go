package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/model"
)

func testRange(tenantID string) *model.ReferenceRange {
	return &model.ReferenceRange{
		TenantID:  tenantID,
		Indicator: "nps",
		Unit:      model.UnitNone,
		Polarity:  model.HigherIsBetter,
		Critical:  model.Band{Min: -100, Max: 10},
		AtRisk:    model.Band{Min: 10, Max: 40},
		Healthy:   model.Band{Min: 40, Max: 100},
	}
}

func TestSaveReferenceRangeVersioning(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	r := testRange("tenant-1")
	require.NoError(t, storage.SaveReferenceRange(ctx, r))

	got, err := storage.GetReferenceRange(ctx, "tenant-1", "nps")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)

	// Replacing the range bumps the version.
	r.Healthy = model.Band{Min: 50, Max: 100}
	r.AtRisk = model.Band{Min: 10, Max: 50}
	require.NoError(t, storage.SaveReferenceRange(ctx, r))

	got, err = storage.GetReferenceRange(ctx, "tenant-1", "nps")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, 50.0, got.Healthy.Min)
}

func TestSaveReferenceRangeRejectsInvalid(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	// Overlapping bands fail domain validation before touching the database.
	r := testRange("tenant-1")
	r.AtRisk = model.Band{Min: 5, Max: 40}
	err := storage.SaveReferenceRange(ctx, r)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestGetReferenceRangeNotFound(t *testing.T) {
	storage := createTestStorage(t)

	_, err := storage.GetReferenceRange(context.Background(), "tenant-1", "nonexistent")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetReferenceRangesOverlaysTenantRows(t *testing.T) {
	storage := createTestStorage(t)
	ctx := context.Background()

	// Tenant override for one indicator on top of the seeded defaults.
	override := testRange("tenant-1")
	require.NoError(t, storage.SaveReferenceRange(ctx, override))

	ranges, err := storage.GetReferenceRanges(ctx, "tenant-1")
	require.NoError(t, err)

	byIndicator := make(map[string]model.ReferenceRange)
	for _, r := range ranges {
		_, dup := byIndicator[r.Indicator]
		require.False(t, dup, "indicator %q appears twice", r.Indicator)
		byIndicator[r.Indicator] = r
	}

	// The override wins for nps; other indicators keep the system row.
	nps := byIndicator["nps"]
	assert.Equal(t, "tenant-1", nps.TenantID)
	assert.Equal(t, 40.0, nps.Healthy.Min)

	csat, ok := byIndicator["csat"]
	require.True(t, ok)
	assert.Equal(t, "", csat.TenantID)
}

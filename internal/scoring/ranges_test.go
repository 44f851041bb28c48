package scoring

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/model"
)

type fakeRangeStore struct {
	ranges map[string]*model.ReferenceRange // keyed tenantID + "/" + indicator
}

func (f *fakeRangeStore) GetReferenceRange(_ context.Context, tenantID, indicator string) (*model.ReferenceRange, error) {
	r, ok := f.ranges[tenantID+"/"+indicator]
	if !ok {
		return nil, fmt.Errorf("%w: reference range", common.ErrNotFound)
	}
	return r, nil
}

func TestSystemDefaults(t *testing.T) {
	p := NewSystemDefaults()
	ctx := context.Background()

	t.Run("known indicator", func(t *testing.T) {
		r, err := p.Range(ctx, "any-tenant", "nps")
		require.NoError(t, err)
		assert.Equal(t, "nps", r.Indicator)
		assert.Equal(t, model.HigherIsBetter, r.Polarity)
	})

	t.Run("unknown indicator", func(t *testing.T) {
		_, err := p.Range(ctx, "any-tenant", "mystery_metric")
		assert.True(t, errors.Is(err, common.ErrUnknownIndicator))
	})
}

func TestStoreProviderTenantOverride(t *testing.T) {
	ctx := context.Background()
	override := &model.ReferenceRange{
		TenantID:  "t1",
		Indicator: "nps",
		Polarity:  model.HigherIsBetter,
		Critical:  model.Band{Min: -100, Max: 20},
		AtRisk:    model.Band{Min: 20, Max: 50},
		Healthy:   model.Band{Min: 50, Max: 100},
	}
	system := &model.ReferenceRange{
		Indicator: "nps",
		Polarity:  model.HigherIsBetter,
		Critical:  model.Band{Min: -100, Max: 0},
		AtRisk:    model.Band{Min: 0, Max: 30},
		Healthy:   model.Band{Min: 30, Max: 100},
	}
	p := NewStoreProvider(&fakeRangeStore{ranges: map[string]*model.ReferenceRange{
		"t1/nps": override,
		"/nps":   system,
	}})

	t.Run("tenant override wins", func(t *testing.T) {
		r, err := p.Range(ctx, "t1", "nps")
		require.NoError(t, err)
		assert.Equal(t, "t1", r.TenantID)
	})

	t.Run("falls back to system row", func(t *testing.T) {
		r, err := p.Range(ctx, "t2", "nps")
		require.NoError(t, err)
		assert.Empty(t, r.TenantID)
	})

	t.Run("unknown everywhere", func(t *testing.T) {
		_, err := p.Range(ctx, "t1", "mystery_metric")
		assert.True(t, errors.Is(err, common.ErrUnknownIndicator))
	})
}

func TestFallbackComposition(t *testing.T) {
	ctx := context.Background()
	store := NewStoreProvider(&fakeRangeStore{ranges: map[string]*model.ReferenceRange{}})
	p := NewFallback(store, NewSystemDefaults())

	r, err := p.Range(ctx, "t1", "csat")
	require.NoError(t, err)
	assert.Equal(t, "csat", r.Indicator)
}

func TestGracefulRangeDegradesToGenericBands(t *testing.T) {
	ctx := context.Background()

	r, err := GracefulRange(ctx, NewSystemDefaults(), "t1", "mystery_metric")
	require.NoError(t, err)
	assert.Equal(t, model.Band{Min: 0, Max: 50}, r.Critical)
	assert.Equal(t, model.Band{Min: 50, Max: 80}, r.AtRisk)
	assert.Equal(t, model.Band{Min: 80, Max: 100}, r.Healthy)
	require.NoError(t, r.Validate())
}

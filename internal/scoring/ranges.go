package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/model"
)

// RangeProvider resolves the reference range for an indicator, optionally
// honoring per-tenant overrides.
type RangeProvider interface {
	Range(ctx context.Context, tenantID, indicator string) (*model.ReferenceRange, error)
}

// RangeStore is the subset of the storage layer the store-backed provider needs.
type RangeStore interface {
	GetReferenceRange(ctx context.Context, tenantID, indicator string) (*model.ReferenceRange, error)
}

// SystemDefaults serves the built-in reference range table.
type SystemDefaults struct{}

// NewSystemDefaults creates a provider backed by the built-in range table.
func NewSystemDefaults() *SystemDefaults {
	return &SystemDefaults{}
}

// Range returns the built-in range for the indicator, ignoring tenantID.
func (p *SystemDefaults) Range(_ context.Context, _, indicator string) (*model.ReferenceRange, error) {
	r, ok := defaultRanges[indicator]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownIndicator, indicator)
	}
	out := r
	return &out, nil
}

// StoreProvider serves tenant-specific reference ranges from durable storage.
type StoreProvider struct {
	store RangeStore
}

// NewStoreProvider creates a provider backed by the given store.
func NewStoreProvider(store RangeStore) *StoreProvider {
	return &StoreProvider{store: store}
}

// Range looks up a tenant override, falling back to the store's system
// default row (tenant ID "").
func (p *StoreProvider) Range(ctx context.Context, tenantID, indicator string) (*model.ReferenceRange, error) {
	if tenantID != "" {
		r, err := p.store.GetReferenceRange(ctx, tenantID, indicator)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}

	r, err := p.store.GetReferenceRange(ctx, "", indicator)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", common.ErrUnknownIndicator, indicator)
		}
		return nil, err
	}
	return r, nil
}

// Fallback composes two providers, consulting the secondary only when the
// primary does not know the indicator. Genuine storage failures from the
// primary still propagate.
type Fallback struct {
	primary   RangeProvider
	secondary RangeProvider
}

// NewFallback composes primary and secondary range providers.
func NewFallback(primary, secondary RangeProvider) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

// Range resolves the indicator through the provider chain.
func (f *Fallback) Range(ctx context.Context, tenantID, indicator string) (*model.ReferenceRange, error) {
	r, err := f.primary.Range(ctx, tenantID, indicator)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, common.ErrUnknownIndicator) {
		return nil, err
	}
	return f.secondary.Range(ctx, tenantID, indicator)
}

// GracefulRange resolves a range, degrading to the generic 0/50/80 band when
// the indicator has no configured range anywhere. Missing configuration must
// not break scoring for the whole account.
func GracefulRange(ctx context.Context, p RangeProvider, tenantID, indicator string) (*model.ReferenceRange, error) {
	r, err := p.Range(ctx, tenantID, indicator)
	if err == nil {
		return r, nil
	}
	if errors.Is(err, common.ErrUnknownIndicator) {
		slog.Debug("No reference range for indicator, using generic bands",
			"indicator", indicator,
			"tenant_id", tenantID)
		return genericRange(indicator), nil
	}
	return nil, err
}

// genericRange is the degraded three-tier band for unknown indicators.
func genericRange(indicator string) *model.ReferenceRange {
	return &model.ReferenceRange{
		Indicator: indicator,
		Unit:      model.UnitNone,
		Polarity:  model.HigherIsBetter,
		Critical:  model.Band{Min: 0, Max: 50},
		AtRisk:    model.Band{Min: 50, Max: 80},
		Healthy:   model.Band{Min: 80, Max: 100},
	}
}

// defaultRanges is the built-in reference range table. Tenant overrides in
// storage take precedence through the Fallback composition.
var defaultRanges = map[string]model.ReferenceRange{
	"nps": {
		Indicator: "nps",
		Unit:      model.UnitNone,
		Polarity:  model.HigherIsBetter,
		Critical:  model.Band{Min: -100, Max: 0},
		AtRisk:    model.Band{Min: 0, Max: 30},
		Healthy:   model.Band{Min: 30, Max: 100},
	},
	"csat": {
		Indicator: "csat",
		Unit:      model.UnitNone,
		Polarity:  model.HigherIsBetter,
		Critical:  model.Band{Min: 0, Max: 3},
		AtRisk:    model.Band{Min: 3, Max: 4},
		Healthy:   model.Band{Min: 4, Max: 5},
	},
	"adoption_rate": {
		Indicator: "adoption_rate",
		Unit:      model.UnitPercent,
		Polarity:  model.HigherIsBetter,
		Critical:  model.Band{Min: 0, Max: 40},
		AtRisk:    model.Band{Min: 40, Max: 70},
		Healthy:   model.Band{Min: 70, Max: 100},
	},
	"feature_usage": {
		Indicator: "feature_usage",
		Unit:      model.UnitPercent,
		Polarity:  model.HigherIsBetter,
		Critical:  model.Band{Min: 0, Max: 25},
		AtRisk:    model.Band{Min: 25, Max: 60},
		Healthy:   model.Band{Min: 60, Max: 100},
	},
	"active_users": {
		Indicator: "active_users",
		Unit:      model.UnitCount,
		Polarity:  model.HigherIsBetter,
		Critical:  model.Band{Min: 0, Max: 10},
		AtRisk:    model.Band{Min: 10, Max: 50},
		Healthy:   model.Band{Min: 50, Max: 100000},
	},
	"login_frequency": {
		Indicator: "login_frequency",
		Unit:      model.UnitCount,
		Polarity:  model.HigherIsBetter,
		Critical:  model.Band{Min: 0, Max: 5},
		AtRisk:    model.Band{Min: 5, Max: 15},
		Healthy:   model.Band{Min: 15, Max: 1000},
	},
	"response_time": {
		Indicator: "response_time",
		Unit:      model.UnitHours,
		Polarity:  model.LowerIsBetter,
		Healthy:   model.Band{Min: 0, Max: 4},
		AtRisk:    model.Band{Min: 4, Max: 24},
		Critical:  model.Band{Min: 24, Max: 720},
	},
	"ticket_volume": {
		Indicator: "ticket_volume",
		Unit:      model.UnitCount,
		Polarity:  model.LowerIsBetter,
		Healthy:   model.Band{Min: 0, Max: 10},
		AtRisk:    model.Band{Min: 10, Max: 25},
		Critical:  model.Band{Min: 25, Max: 10000},
	},
	"time_to_value": {
		Indicator: "time_to_value",
		Unit:      model.UnitDays,
		Polarity:  model.LowerIsBetter,
		Healthy:   model.Band{Min: 0, Max: 30},
		AtRisk:    model.Band{Min: 30, Max: 90},
		Critical:  model.Band{Min: 90, Max: 3650},
	},
	"renewal_probability": {
		Indicator: "renewal_probability",
		Unit:      model.UnitPercent,
		Polarity:  model.HigherIsBetter,
		Critical:  model.Band{Min: 0, Max: 50},
		AtRisk:    model.Band{Min: 50, Max: 75},
		Healthy:   model.Band{Min: 75, Max: 100},
	},
	"revenue_growth": {
		Indicator: "revenue_growth",
		Unit:      model.UnitPercent,
		Polarity:  model.HigherIsBetter,
		Critical:  model.Band{Min: -100, Max: 0},
		AtRisk:    model.Band{Min: 0, Max: 10},
		Healthy:   model.Band{Min: 10, Max: 1000},
	},
	"support_satisfaction": {
		Indicator: "support_satisfaction",
		Unit:      model.UnitNone,
		Polarity:  model.HigherIsBetter,
		Critical:  model.Band{Min: 0, Max: 3},
		AtRisk:    model.Band{Min: 3, Max: 4},
		Healthy:   model.Band{Min: 4, Max: 5},
	},
}

// DefaultRanges returns a copy of the built-in reference range table, used
// by migrations to seed the system default rows.
func DefaultRanges() []model.ReferenceRange {
	out := make([]model.ReferenceRange, 0, len(defaultRanges))
	for _, r := range defaultRanges {
		out = append(out, r)
	}
	return out
}

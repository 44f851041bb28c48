package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/model"
)

// Default impact-level weights. "high" has no distinct weight in the source
// configuration and is mapped to the medium tier; see effectiveImpactWeights.
var defaultImpactWeights = map[model.ImpactLevel]float64{
	model.ImpactCritical: 3,
	model.ImpactHigh:     2,
	model.ImpactMedium:   2,
	model.ImpactLow:      1,
}

// DefaultCategoryWeights returns the equal-weight split used when a tenant
// has not configured category weights.
func DefaultCategoryWeights() map[model.IndicatorCategory]float64 {
	cats := model.Categories()
	weights := make(map[model.IndicatorCategory]float64, len(cats))
	for _, c := range cats {
		weights[c] = 1.0 / float64(len(cats))
	}
	return weights
}

// Scorer combines classified indicators into category and overall scores.
type Scorer struct {
	ranges RangeProvider
}

// NewScorer creates a scorer resolving reference ranges through the given
// provider.
func NewScorer(ranges RangeProvider) *Scorer {
	return &Scorer{ranges: ranges}
}

// ClassifyIndicator normalizes and classifies a single reading. A parse
// failure returns ErrUnparsableValue and is terminal for the reading; it is
// never retried and never scored as zero.
func (s *Scorer) ClassifyIndicator(ctx context.Context, tenantID string, ind model.IndicatorReading) (*model.ClassifiedIndicator, error) {
	nv, err := Normalize(ind.RawValue)
	if err != nil {
		return nil, err
	}

	r, err := GracefulRange(ctx, s.ranges, tenantID, ind.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve reference range for %q: %w", ind.Name, err)
	}

	tier, score := Classify(nv, r)
	return &model.ClassifiedIndicator{
		Indicator: ind,
		Value:     ConvertForRange(nv, r.Unit),
		Unit:      r.Unit,
		Tier:      tier,
		Score:     score,
	}, nil
}

// ScoreCategories classifies every reading and rolls the results up into
// per-category weighted scores. Unparsable readings contribute to neither
// numerator nor denominator; they are counted in the category's Unparsed
// field so exclusions stay visible.
func (s *Scorer) ScoreCategories(ctx context.Context, tenantID string, indicators []model.IndicatorReading, tenant *model.Tenant) (map[model.IndicatorCategory]model.CategoryScore, error) {
	impact := effectiveImpactWeights(tenant)

	type sums struct {
		weighted float64
		weight   float64
		count    int
		unparsed int
	}
	byCategory := make(map[model.IndicatorCategory]*sums)

	for _, ind := range indicators {
		acc := byCategory[ind.Category]
		if acc == nil {
			acc = &sums{}
			byCategory[ind.Category] = acc
		}

		classified, err := s.ClassifyIndicator(ctx, tenantID, ind)
		if err != nil {
			if errors.Is(err, common.ErrUnparsableValue) {
				acc.unparsed++
				slog.Debug("Excluding unparsable indicator from aggregation",
					"indicator", ind.Name,
					"account_id", ind.AccountID,
					"raw_value", ind.RawValue)
				continue
			}
			return nil, err
		}

		w := impact[ind.Impact]
		if w == 0 {
			w = defaultImpactWeights[model.ImpactLow]
		}
		acc.weighted += classified.Score * w
		acc.weight += w
		acc.count++
	}

	scores := make(map[model.IndicatorCategory]model.CategoryScore, len(byCategory))
	for cat, acc := range byCategory {
		cs := model.CategoryScore{
			Category:     cat,
			Contributing: acc.count,
			Unparsed:     acc.unparsed,
		}
		if acc.weight > 0 {
			cs.Score = acc.weighted / acc.weight
			cs.Defined = true
		}
		scores[cat] = cs
	}

	return scores, nil
}

// ComputeHealth produces the full health report for a set of readings.
// Categories with zero contributing indicators are excluded from the overall
// weighted mean and the remaining weights are renormalized, so sparse data
// never penalizes unpopulated categories. InsufficientData is set when no
// category has any contributing indicator.
func (s *Scorer) ComputeHealth(ctx context.Context, tenantID string, indicators []model.IndicatorReading, tenant *model.Tenant) (*model.HealthReport, error) {
	categories, err := s.ScoreCategories(ctx, tenantID, indicators, tenant)
	if err != nil {
		return nil, err
	}

	weights := DefaultCategoryWeights()
	if tenant != nil && len(tenant.CategoryWeights) > 0 {
		weights = NormalizeWeights(tenant.CategoryWeights)
	}

	var weightedSum, weightTotal float64
	for cat, cs := range categories {
		if !cs.Defined {
			continue
		}
		w, ok := weights[cat]
		if !ok {
			continue
		}
		weightedSum += cs.Score * w
		weightTotal += w
	}

	report := &model.HealthReport{Categories: categories}
	if weightTotal == 0 {
		report.InsufficientData = true
		return report, nil
	}

	report.Overall = weightedSum / weightTotal
	return report, nil
}

// NormalizeWeights rescales category weights to sum to exactly 1.0. Tenant
// configurations that drift from 1.0 are corrected here before use.
func NormalizeWeights(weights map[model.IndicatorCategory]float64) map[model.IndicatorCategory]float64 {
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total == 0 {
		return DefaultCategoryWeights()
	}

	normalized := make(map[model.IndicatorCategory]float64, len(weights))
	for cat, w := range weights {
		if w > 0 {
			normalized[cat] = w / total
		}
	}
	return normalized
}

// effectiveImpactWeights applies tenant overrides on top of the defaults.
// A tenant without a distinct "high" weight inherits the medium tier; this
// is a known configuration gap and is surfaced rather than guessed silently.
func effectiveImpactWeights(tenant *model.Tenant) map[model.ImpactLevel]float64 {
	weights := make(map[model.ImpactLevel]float64, len(defaultImpactWeights))
	for level, w := range defaultImpactWeights {
		weights[level] = w
	}

	if tenant == nil || len(tenant.ImpactWeights) == 0 {
		return weights
	}

	for level, w := range tenant.ImpactWeights {
		if w > 0 {
			weights[level] = w
		}
	}

	if _, ok := tenant.ImpactWeights[model.ImpactHigh]; !ok {
		slog.Debug("Tenant has no weight for high impact, using medium tier",
			"tenant_id", tenant.ID,
			"weight", weights[model.ImpactHigh])
	}

	return weights
}

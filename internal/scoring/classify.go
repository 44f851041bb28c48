package scoring

import (
	"github.com/openpulse/vitals/internal/model"
)

// Tier sub-ranges. Tier-local scores are a linear interpolation within the
// matched band scaled to these fixed sub-ranges, so scores stay continuous
// across band boundaries rather than step-functions.
const (
	CriticalFloor = 0.0
	CriticalCeil  = 39.0
	AtRiskFloor   = 40.0
	AtRiskCeil    = 66.0
	HealthyFloor  = 67.0
	HealthyCeil   = 100.0
)

// Classify maps a normalized value to a health tier and a 0-100 tier-local
// score using the indicator's reference range. Values outside every band
// clamp to the nearest band; boundary values resolve to the better tier.
func Classify(nv NormalizedValue, r *model.ReferenceRange) (model.HealthTier, float64) {
	value := ConvertForRange(nv, r.Unit)

	tier, band := locateBand(value, r)
	value = clampToBand(value, band)

	frac := bandFraction(value, band, r.Polarity)

	switch tier {
	case model.TierHealthy:
		return tier, HealthyFloor + frac*(HealthyCeil-HealthyFloor)
	case model.TierAtRisk:
		return tier, AtRiskFloor + frac*(AtRiskCeil-AtRiskFloor)
	default:
		return model.TierCritical, CriticalFloor + frac*(CriticalCeil-CriticalFloor)
	}
}

// locateBand finds the band containing the value, checking better tiers
// first so shared boundaries resolve upward. When the value falls outside
// every band it clamps to the nearest one.
func locateBand(value float64, r *model.ReferenceRange) (model.HealthTier, model.Band) {
	if r.Healthy.Contains(value) {
		return model.TierHealthy, r.Healthy
	}
	if r.AtRisk.Contains(value) {
		return model.TierAtRisk, r.AtRisk
	}
	if r.Critical.Contains(value) {
		return model.TierCritical, r.Critical
	}

	// Outside all bands: pick the band with the smallest distance to value.
	nearestTier := model.TierCritical
	nearestBand := r.Critical
	nearest := bandDistance(value, r.Critical)

	if d := bandDistance(value, r.AtRisk); d < nearest {
		nearest = d
		nearestTier = model.TierAtRisk
		nearestBand = r.AtRisk
	}
	if d := bandDistance(value, r.Healthy); d < nearest {
		nearestTier = model.TierHealthy
		nearestBand = r.Healthy
	}

	return nearestTier, nearestBand
}

func bandDistance(value float64, b model.Band) float64 {
	if value < b.Min {
		return b.Min - value
	}
	if value > b.Max {
		return value - b.Max
	}
	return 0
}

func clampToBand(value float64, b model.Band) float64 {
	if value < b.Min {
		return b.Min
	}
	if value > b.Max {
		return b.Max
	}
	return value
}

// bandFraction returns the position of value within the band in [0,1], where
// 1 is the best end of the band. For lower-is-better ranges the direction
// is reversed: a smaller value sits closer to 1.
func bandFraction(value float64, b model.Band, polarity model.Polarity) float64 {
	width := b.Width()
	if width == 0 {
		return 1
	}
	if polarity == model.LowerIsBetter {
		return (b.Max - value) / width
	}
	return (value - b.Min) / width
}

package model

// HealthTier is the coarse classification of a single indicator.
type HealthTier string

// Health tier constants.
const (
	TierCritical HealthTier = "critical"
	TierAtRisk   HealthTier = "at_risk"
	TierHealthy  HealthTier = "healthy"
)

// ClassifiedIndicator is a reading after normalization and classification.
// Derived, never persisted.
type ClassifiedIndicator struct {
	Indicator IndicatorReading
	Unit      Unit
	Tier      HealthTier
	Value     float64
	Score     float64
}

// CategoryScore is the weighted roll-up of one category's indicators.
// Defined is false when zero indicators parsed successfully; in that case
// Score must be ignored, never read as zero.
type CategoryScore struct {
	Category     IndicatorCategory
	Score        float64
	Contributing int
	Unparsed     int
	Defined      bool
}

// HealthReport is the full scored state of one account.
type HealthReport struct {
	Categories       map[IndicatorCategory]CategoryScore
	Overall          float64
	InsufficientData bool
}

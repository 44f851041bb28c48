// Package model defines the core domain models used throughout the application.
package model

import "time"

// IndicatorCategory groups indicators into the fixed set of health categories.
type IndicatorCategory string

// Indicator category constants.
const (
	CategoryRelationship IndicatorCategory = "relationship"
	CategoryAdoption     IndicatorCategory = "adoption"
	CategorySupport      IndicatorCategory = "support"
	CategoryProductValue IndicatorCategory = "product_value"
	CategoryOutcomes     IndicatorCategory = "outcomes"
)

// Categories lists every valid indicator category.
func Categories() []IndicatorCategory {
	return []IndicatorCategory{
		CategoryRelationship,
		CategoryAdoption,
		CategorySupport,
		CategoryProductValue,
		CategoryOutcomes,
	}
}

// ImpactLevel indicates how strongly an indicator weighs on its category score.
type ImpactLevel string

// Impact level constants.
const (
	ImpactCritical ImpactLevel = "critical"
	ImpactHigh     ImpactLevel = "high"
	ImpactMedium   ImpactLevel = "medium"
	ImpactLow      ImpactLevel = "low"
)

// IndicatorReading is one measurement of one named indicator for one account.
// Readings are created on ingestion and are read-only to this core.
type IndicatorReading struct {
	CreatedAt time.Time
	ID        string
	AccountID string
	TenantID  string
	Name      string
	RawValue  string
	Product   string
	Category  IndicatorCategory
	Impact    ImpactLevel
}

package model

import "time"

// AccountStatus is the lifecycle status of a customer account.
type AccountStatus string

// Account status constants.
const (
	AccountActive  AccountStatus = "active"
	AccountAtRisk  AccountStatus = "at_risk"
	AccountChurned AccountStatus = "churned"
)

// Account represents a customer account as provided by the durable store.
// HealthScore and ChurnRisk are nil until first computed.
type Account struct {
	CreatedAt       time.Time
	UpdatedAt       time.Time
	HealthScore     *float64
	ChurnRisk       *float64
	ID              string
	TenantID        string
	Name            string
	Status          AccountStatus
	ARR             float64
	DAUMAURatio     float64
	ActiveUsers     int
	TotalSeats      int
	ProductsActive  int
	PlaybooksActive int
	OpenEngagements int
}

// Tenant holds per-tenant configuration documents: category weights for the
// overall score and optional impact-weight overrides for the aggregator.
type Tenant struct {
	CreatedAt       time.Time
	CategoryWeights map[IndicatorCategory]float64
	ImpactWeights   map[ImpactLevel]float64
	ID              string
	Name            string
}

package model

import (
	"fmt"
	"time"
)

// Polarity indicates whether larger values of an indicator are better or worse.
type Polarity string

// Polarity constants.
const (
	HigherIsBetter Polarity = "higher_is_better"
	LowerIsBetter  Polarity = "lower_is_better"
)

// Unit identifies the unit family a value was expressed in.
type Unit string

// Unit constants.
const (
	UnitNone     Unit = ""
	UnitPercent  Unit = "percent"
	UnitCurrency Unit = "currency"
	UnitDays     Unit = "days"
	UnitHours    Unit = "hours"
	UnitCount    Unit = "count"
)

// Band is one contiguous numeric range mapped to a health tier.
type Band struct {
	Min float64
	Max float64
}

// Contains reports whether v falls within the band (inclusive bounds).
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Width returns the numeric span of the band.
func (b Band) Width() float64 {
	return b.Max - b.Min
}

// ReferenceRange maps an indicator name to its unit, polarity and the three
// tier bands. A TenantID of "" marks a system default row.
type ReferenceRange struct {
	UpdatedAt time.Time
	TenantID  string
	Indicator string
	Unit      Unit
	Polarity  Polarity
	Critical  Band
	AtRisk    Band
	Healthy   Band
	Version   int
}

// Validate ensures the bands are non-overlapping and ordered consistently
// with the range's polarity.
func (r *ReferenceRange) Validate() error {
	if r.Indicator == "" {
		return fmt.Errorf("indicator name is required")
	}

	switch r.Polarity {
	case HigherIsBetter, LowerIsBetter:
	default:
		return fmt.Errorf("invalid polarity: %q", r.Polarity)
	}

	for _, b := range []Band{r.Critical, r.AtRisk, r.Healthy} {
		if b.Min > b.Max {
			return fmt.Errorf("band min %v exceeds max %v", b.Min, b.Max)
		}
	}

	// For higher-is-better the bands must ascend critical < at-risk < healthy;
	// for lower-is-better they descend.
	if r.Polarity == HigherIsBetter {
		if r.Critical.Max > r.AtRisk.Min || r.AtRisk.Max > r.Healthy.Min {
			return fmt.Errorf("bands overlap or are out of order for higher-is-better polarity")
		}
	} else {
		if r.Healthy.Max > r.AtRisk.Min || r.AtRisk.Max > r.Critical.Min {
			return fmt.Errorf("bands overlap or are out of order for lower-is-better polarity")
		}
	}

	return nil
}

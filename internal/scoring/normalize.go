// Package scoring implements the pure computation core: value normalization,
// reference-range classification, weighted aggregation and trend detection.
// Nothing in this package performs I/O beyond reference range lookups.
package scoring

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/model"
)

// numberPattern extracts the first numeric token from a cleaned raw value.
var numberPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// currencySymbols are stripped before numeric extraction.
var currencySymbols = []string{"$", "€", "£"}

// NormalizedValue is a raw indicator value after unit-aware parsing.
type NormalizedValue struct {
	Unit  model.Unit
	Value float64
}

// Normalize parses a free-form indicator value into a typed numeric value
// plus its unit. It strips thousands separators and currency symbols and
// recognizes percentage and duration suffixes. Returns ErrUnparsableValue
// when no numeric token can be extracted; callers must exclude such
// indicators from aggregation, never treat them as zero.
func Normalize(raw string) (NormalizedValue, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return NormalizedValue{}, fmt.Errorf("%w: empty value", common.ErrUnparsableValue)
	}

	unit := model.UnitNone
	for _, sym := range currencySymbols {
		if strings.Contains(s, sym) {
			unit = model.UnitCurrency
			s = strings.ReplaceAll(s, sym, "")
		}
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "%"):
		unit = model.UnitPercent
	case hasSuffixAny(lower, "days", "day", "d"):
		unit = model.UnitDays
	case hasSuffixAny(lower, "hours", "hour", "hrs", "hr", "h"):
		unit = model.UnitHours
	}

	token := numberPattern.FindString(s)
	if token == "" {
		return NormalizedValue{}, fmt.Errorf("%w: %q", common.ErrUnparsableValue, raw)
	}

	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return NormalizedValue{}, fmt.Errorf("%w: %q", common.ErrUnparsableValue, raw)
	}

	return NormalizedValue{Value: value, Unit: unit}, nil
}

// ConvertForRange returns the value expressed in the reference range's unit.
// The range's unit is authoritative: the only coercion performed is day to
// hour when the parsed value carries days and the range is hour-denominated.
func ConvertForRange(nv NormalizedValue, rangeUnit model.Unit) float64 {
	if nv.Unit == model.UnitDays && rangeUnit == model.UnitHours {
		return nv.Value * 24
	}
	return nv.Value
}

func hasSuffixAny(s string, suffixes ...string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

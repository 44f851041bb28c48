package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpulse/vitals/internal/common"
	"github.com/openpulse/vitals/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantValue float64
		wantUnit  model.Unit
	}{
		{name: "plain integer", raw: "72", wantValue: 72, wantUnit: model.UnitNone},
		{name: "plain decimal", raw: "4.6", wantValue: 4.6, wantUnit: model.UnitNone},
		{name: "negative value", raw: "-12", wantValue: -12, wantUnit: model.UnitNone},
		{name: "percentage", raw: "85%", wantValue: 85, wantUnit: model.UnitPercent},
		{name: "percentage with space", raw: "55 %", wantValue: 55, wantUnit: model.UnitPercent},
		{name: "currency with thousands", raw: "$1,250.50", wantValue: 1250.50, wantUnit: model.UnitCurrency},
		{name: "euro currency", raw: "€980", wantValue: 980, wantUnit: model.UnitCurrency},
		{name: "days suffix", raw: "3 days", wantValue: 3, wantUnit: model.UnitDays},
		{name: "single day", raw: "1 day", wantValue: 1, wantUnit: model.UnitDays},
		{name: "hours suffix", raw: "12 hours", wantValue: 12, wantUnit: model.UnitHours},
		{name: "hr abbreviation", raw: "36hr", wantValue: 36, wantUnit: model.UnitHours},
		{name: "compact day suffix", raw: "2d", wantValue: 2, wantUnit: model.UnitDays},
		{name: "compact hour suffix", raw: "36h", wantValue: 36, wantUnit: model.UnitHours},
		{name: "surrounding whitespace", raw: "  42  ", wantValue: 42, wantUnit: model.UnitNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nv, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantValue, nv.Value, 1e-9)
			assert.Equal(t, tt.wantUnit, nv.Unit)
		})
	}
}

func TestNormalizeUnparsable(t *testing.T) {
	for _, raw := range []string{"", "   ", "N/A", "unknown", "--"} {
		t.Run("raw="+raw, func(t *testing.T) {
			_, err := Normalize(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrUnparsableValue))
		})
	}
}

func TestConvertForRange(t *testing.T) {
	t.Run("days convert to hours when range is hour denominated", func(t *testing.T) {
		nv := NormalizedValue{Value: 2, Unit: model.UnitDays}
		assert.InDelta(t, 48.0, ConvertForRange(nv, model.UnitHours), 1e-9)
	})

	t.Run("compact day suffix converts against hours range", func(t *testing.T) {
		nv, err := Normalize("2d")
		require.NoError(t, err)
		assert.Equal(t, model.UnitDays, nv.Unit)
		assert.InDelta(t, 48.0, ConvertForRange(nv, model.UnitHours), 1e-9)
	})

	t.Run("no coercion for matching units", func(t *testing.T) {
		nv := NormalizedValue{Value: 2, Unit: model.UnitDays}
		assert.InDelta(t, 2.0, ConvertForRange(nv, model.UnitDays), 1e-9)
	})

	t.Run("no silent cross unit coercion", func(t *testing.T) {
		nv := NormalizedValue{Value: 50, Unit: model.UnitPercent}
		assert.InDelta(t, 50.0, ConvertForRange(nv, model.UnitHours), 1e-9)
	})
}

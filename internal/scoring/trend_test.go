package scoring

import (
	"testing"

	"github.com/openpulse/vitals/internal/model"
)

func TestTrend(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   model.TrendLabel
	}{
		{name: "no history", scores: nil, want: model.TrendStable},
		{name: "single point", scores: []float64{42}, want: model.TrendStable},
		{name: "improving", scores: []float64{80, 72}, want: model.TrendImproving},
		{name: "declining", scores: []float64{60, 70}, want: model.TrendDeclining},
		{name: "small movement is stable", scores: []float64{73, 71}, want: model.TrendStable},
		{name: "exactly threshold is stable", scores: []float64{73, 70}, want: model.TrendStable},
		{name: "three point window", scores: []float64{80, 75, 70}, want: model.TrendImproving},
		{name: "window ignores older points", scores: []float64{70, 70, 70, 20}, want: model.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Trend(tt.scores); got != tt.want {
				t.Errorf("Trend(%v) = %v, want %v", tt.scores, got, tt.want)
			}
		})
	}
}

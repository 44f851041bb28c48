package scoring

import "github.com/openpulse/vitals/internal/model"

// TrendWindow is the number of recent overall scores considered.
const TrendWindow = 3

// trendThreshold is the fixed score movement beyond which the trend is no
// longer considered stable.
const trendThreshold = 3.0

// Trend classifies the short-term direction of an account's overall score.
// Scores are ordered most-recent first. Fewer than two data points means
// insufficient history, which reads as stable rather than an error.
func Trend(scores []float64) model.TrendLabel {
	if len(scores) < 2 {
		return model.TrendStable
	}
	if len(scores) > TrendWindow {
		scores = scores[:TrendWindow]
	}

	diff := scores[0] - scores[len(scores)-1]
	switch {
	case diff > trendThreshold:
		return model.TrendImproving
	case diff < -trendThreshold:
		return model.TrendDeclining
	default:
		return model.TrendStable
	}
}

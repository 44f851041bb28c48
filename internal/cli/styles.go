// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/openpulse/vitals/internal/model"
)

var (
	// PrimaryColor is the main theme color.
	PrimaryColor = lipgloss.Color("#5FAFFF")
	// HealthyColor renders healthy tiers and success messages.
	HealthyColor = lipgloss.Color("#4ECDC4") // Teal
	// AtRiskColor renders at-risk tiers and warnings.
	AtRiskColor = lipgloss.Color("#FFE66D") // Yellow
	// CriticalColor renders critical tiers and errors.
	CriticalColor = lipgloss.Color("#FF6B6B") // Red
	// InfoColor indicates informational messages.
	InfoColor = lipgloss.Color("#95E1D3") // Light teal
	// SubtleColor indicates less prominent UI elements.
	SubtleColor = lipgloss.Color("#666666") // Gray

	// TitleStyle is used for section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			MarginBottom(1)

	// SubtitleStyle is used for secondary headings.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			MarginBottom(1)

	// HealthyStyle formats healthy scores and success messages.
	HealthyStyle = lipgloss.NewStyle().
			Foreground(HealthyColor)

	// AtRiskStyle formats at-risk scores and warnings.
	AtRiskStyle = lipgloss.NewStyle().
			Foreground(AtRiskColor)

	// CriticalStyle formats critical scores and errors.
	CriticalStyle = lipgloss.NewStyle().
			Foreground(CriticalColor)

	// InfoStyle formats informational messages.
	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	// SubtleStyle formats less prominent text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// BoldStyle makes text bold.
	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	// BoxStyle is used for bordered content boxes.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333")).
			Padding(1, 2)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	PulseIcon   = "📈"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return HealthyStyle.Render(SuccessIcon + " " + message)
}

// FormatError formats an error message with icon.
func FormatError(message string) string {
	return CriticalStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning formats a warning message with icon.
func FormatWarning(message string) string {
	return AtRiskStyle.Render(WarningIcon + " " + message)
}

// FormatInfo formats an info message with icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// TierStyle returns the style matching a health tier.
func TierStyle(tier model.HealthTier) lipgloss.Style {
	switch tier {
	case model.TierHealthy:
		return HealthyStyle
	case model.TierAtRisk:
		return AtRiskStyle
	default:
		return CriticalStyle
	}
}

// ScoreStyle returns the style matching an overall score's tier range.
func ScoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= 67:
		return HealthyStyle
	case score >= 40:
		return AtRiskStyle
	default:
		return CriticalStyle
	}
}

// TrendIcon returns a directional glyph for a trend label.
func TrendIcon(trend model.TrendLabel) string {
	switch trend {
	case model.TrendImproving:
		return "↑"
	case model.TrendDeclining:
		return "↓"
	default:
		return "→"
	}
}

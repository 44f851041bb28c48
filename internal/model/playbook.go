package model

import "time"

// PlaybookType identifies an automated remediation workflow.
type PlaybookType string

// Playbook type constants.
const (
	PlaybookRetentionRisk     PlaybookType = "retention_risk"
	PlaybookAdoption          PlaybookType = "adoption"
	PlaybookSupportEscalation PlaybookType = "support_escalation"
)

// ValidPlaybookType reports whether p is a recognized playbook type.
func ValidPlaybookType(p PlaybookType) bool {
	switch p {
	case PlaybookRetentionRisk, PlaybookAdoption, PlaybookSupportEscalation:
		return true
	}
	return false
}

// TriggerConfig holds a tenant's threshold configuration for one playbook.
// Thresholds is a JSON-shaped map of named threshold values; the evaluator
// mutates only the timestamps and the trigger count.
type TriggerConfig struct {
	LastEvaluatedAt *time.Time
	LastTriggeredAt *time.Time
	Thresholds      map[string]float64
	TenantID        string
	Playbook        PlaybookType
	TriggerCount    int64
	Enabled         bool
}

// Threshold returns the named threshold, or def when not configured.
func (c *TriggerConfig) Threshold(name string, def float64) float64 {
	if v, ok := c.Thresholds[name]; ok {
		return v
	}
	return def
}

// HasThreshold reports whether the named threshold is configured.
func (c *TriggerConfig) HasThreshold(name string) bool {
	_, ok := c.Thresholds[name]
	return ok
}

// TriggerMatch is one matched condition with the evidence behind it.
type TriggerMatch struct {
	Condition string
	Detail    string
}

// AccountTriggerResult is the evaluation outcome for one account. Every
// matched condition is reported, not just the first.
type AccountTriggerResult struct {
	AccountID string
	Matches   []TriggerMatch
}

// Triggered reports whether any condition matched for this account.
func (r *AccountTriggerResult) Triggered() bool {
	return len(r.Matches) > 0
}

package model

import "time"

// SnapshotTrigger identifies what caused a snapshot to be taken.
type SnapshotTrigger string

// Snapshot trigger constants.
const (
	TriggerManual         SnapshotTrigger = "manual"
	TriggerScheduled      SnapshotTrigger = "scheduled"
	TriggerEvent          SnapshotTrigger = "event"
	TriggerRAGAuto        SnapshotTrigger = "rag_auto"
	TriggerPostUpload     SnapshotTrigger = "post_upload"
	TriggerPostHealthCalc SnapshotTrigger = "post_health_calc"
)

// ValidSnapshotTrigger reports whether t is a recognized trigger type.
func ValidSnapshotTrigger(t SnapshotTrigger) bool {
	switch t {
	case TriggerManual, TriggerScheduled, TriggerEvent,
		TriggerRAGAuto, TriggerPostUpload, TriggerPostHealthCalc:
		return true
	}
	return false
}

// TrendLabel classifies the short-term direction of an account's score.
type TrendLabel string

// Trend label constants.
const (
	TrendImproving TrendLabel = "improving"
	TrendDeclining TrendLabel = "declining"
	TrendStable    TrendLabel = "stable"
)

// AccountSnapshot is an immutable point-in-time capture of an account's
// scored state. Sequence numbers are strictly increasing per account with
// no gaps; delta fields are nil only for an account's first snapshot.
type AccountSnapshot struct {
	CreatedAt         time.Time
	OverallScore      *float64
	ScoreDelta        *float64
	RevenueDelta      *float64
	RevenuePctDelta   *float64
	CategoryScores    map[IndicatorCategory]float64
	ID                string
	AccountID         string
	Trigger           SnapshotTrigger
	Trend             TrendLabel
	Sequence          int64
	Revenue           float64
	ProductsActive    int
	PlaybooksActive   int
	OpenEngagements   int
	SignificantChange bool
}

// Significant-change policy constants.
const (
	SignificantScoreDelta = 5.0
	SignificantRevenuePct = 10.0
)

// IsSignificantChange reports whether a score delta and revenue percent
// delta amount to a significant swing. Boundary values are not significant.
func IsSignificantChange(scoreDelta, revenuePctDelta *float64) bool {
	if scoreDelta != nil && abs(*scoreDelta) > SignificantScoreDelta {
		return true
	}
	if revenuePctDelta != nil && abs(*revenuePctDelta) > SignificantRevenuePct {
		return true
	}
	return false
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

package model

import "testing"

func TestIsSignificantChange(t *testing.T) {
	ptr := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		score   *float64
		revenue *float64
		want    bool
	}{
		{"nil deltas", nil, nil, false},
		{"score at boundary", ptr(5.0), nil, false},
		{"score just past boundary", ptr(5.01), nil, true},
		{"negative score by magnitude", ptr(-5.01), nil, true},
		{"revenue at boundary", nil, ptr(10.0), false},
		{"revenue just past boundary", nil, ptr(10.01), true},
		{"negative revenue by magnitude", nil, ptr(-12.0), true},
		{"either side suffices", ptr(1.0), ptr(11.0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSignificantChange(tt.score, tt.revenue); got != tt.want {
				t.Errorf("IsSignificantChange() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidSnapshotTrigger(t *testing.T) {
	for _, trigger := range []SnapshotTrigger{
		TriggerManual, TriggerScheduled, TriggerEvent,
		TriggerRAGAuto, TriggerPostUpload, TriggerPostHealthCalc,
	} {
		if !ValidSnapshotTrigger(trigger) {
			t.Errorf("expected %q to be valid", trigger)
		}
	}
	if ValidSnapshotTrigger("gamma_burst") {
		t.Error("expected unknown trigger to be invalid")
	}
}

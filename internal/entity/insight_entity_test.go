package entity

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from InsightStatus
		to   InsightStatus
		want bool
	}{
		{StatusDetected, StatusResolving, true},
		{StatusDetected, StatusResolved, true},
		{StatusDetected, StatusUnresolved, true},
		{StatusDetected, StatusDismissed, true},
		{StatusDetected, StatusAccepted, false},

		{StatusResolving, StatusResolved, true},
		{StatusResolving, StatusUnresolved, true},
		{StatusResolving, StatusAccepted, false},
		{StatusResolving, StatusDismissed, false},
		{StatusResolving, StatusDetected, false},

		{StatusResolved, StatusAccepted, true},
		{StatusResolved, StatusDismissed, true},
		{StatusResolved, StatusResolving, false},

		{StatusUnresolved, StatusAccepted, false},
		{StatusUnresolved, StatusDismissed, false},
		{StatusAccepted, StatusDismissed, false},
		{StatusDismissed, StatusAccepted, false},
	}

	for _, tt := range tests {
		i := &Insight{Status: tt.from}
		if got := i.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

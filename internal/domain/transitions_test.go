package domain

import "testing"

func TestOpportunityTransitions(t *testing.T) {
	cases := []struct {
		from, to OpportunityStatus
		valid    bool
	}{
		{OpportunityPending, OpportunityQueued, true},
		{OpportunityPending, OpportunityRejected, true},
		{OpportunityQueued, OpportunityImplemented, true},
		{OpportunityPending, OpportunityImplemented, false},
		{OpportunityQueued, OpportunityRejected, false},
		{OpportunityImplemented, OpportunityQueued, false},
		{OpportunityRejected, OpportunityPending, false},
	}
	for _, tc := range cases {
		if got := ValidOpportunityTransition(tc.from, tc.to); got != tc.valid {
			t.Errorf("ValidOpportunityTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.valid)
		}
	}
}

func TestActionTransitions(t *testing.T) {
	cases := []struct {
		from, to ActionStatus
		valid    bool
	}{
		{ActionPending, ActionExecuted, true},
		{ActionPending, ActionFailed, true},
		{ActionExecuted, ActionRolledBack, true},
		{ActionPending, ActionRolledBack, false},
		{ActionExecuted, ActionPending, false},
		{ActionRolledBack, ActionExecuted, false},
		{ActionFailed, ActionPending, false},
	}
	for _, tc := range cases {
		if got := ValidActionTransition(tc.from, tc.to); got != tc.valid {
			t.Errorf("ValidActionTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.valid)
		}
	}
}

func TestParseRunType(t *testing.T) {
	for _, raw := range []string{"full", "ga4_sync", "affiliate_scan", "rpm_analysis", "forecast", "cleanup"} {
		if _, err := ParseRunType(raw); err != nil {
			t.Errorf("ParseRunType(%q) unexpected error: %v", raw, err)
		}
	}
	if _, err := ParseRunType("reindex"); err != ErrUnsupportedJobType {
		t.Errorf("ParseRunType(reindex) = %v, want ErrUnsupportedJobType", err)
	}
}

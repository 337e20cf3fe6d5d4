package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpportunityType identifies the job runner that produced a finding.
type OpportunityType string

const (
	OpportunityAffiliateScan OpportunityType = "affiliate_scan_finding"
	OpportunityRPMAnalysis   OpportunityType = "rpm_analysis_finding"
	OpportunityAnalyticsSync OpportunityType = "ga4_sync_finding"
)

func IsOpportunityType(raw string) bool {
	switch OpportunityType(raw) {
	case OpportunityAffiliateScan, OpportunityRPMAnalysis, OpportunityAnalyticsSync:
		return true
	default:
		return false
	}
}

type OpportunityStatus string

const (
	OpportunityPending     OpportunityStatus = "pending"
	OpportunityQueued      OpportunityStatus = "queued"
	OpportunityImplemented OpportunityStatus = "implemented"
	OpportunityRejected    OpportunityStatus = "rejected"
)

// ValidOpportunityTransition is the single source of truth for the
// opportunity lifecycle: pending -> queued -> implemented, or
// pending -> rejected. Everything else is illegal.
func ValidOpportunityTransition(from, to OpportunityStatus) bool {
	switch from {
	case OpportunityPending:
		return to == OpportunityQueued || to == OpportunityRejected
	case OpportunityQueued:
		return to == OpportunityImplemented
	default:
		return false
	}
}

// Opportunity is a detected, unexecuted monetization lead.
// EstimatedImpact, when present, is a monthly-normalized figure in the
// site's base currency. DedupeKey is the content fingerprint (type plus
// a stable finding identifier) that keeps re-runs from duplicating an
// open finding.
type Opportunity struct {
	OpportunityID   string            `json:"opportunity_id"`
	Type            OpportunityType   `json:"type"`
	Title           string            `json:"title"`
	Priority        int               `json:"priority"`
	EstimatedImpact *decimal.Decimal  `json:"estimated_impact,omitempty"`
	Status          OpportunityStatus `json:"status"`
	DedupeKey       string            `json:"dedupe_key"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionExecuted   ActionStatus = "executed"
	ActionRolledBack ActionStatus = "rolled_back"
	ActionFailed     ActionStatus = "failed"
)

// ValidActionTransition encodes the executor state machine:
// pending -> executed -> rolled_back, pending -> failed.
// rolled_back and failed are terminal.
func ValidActionTransition(from, to ActionStatus) bool {
	switch from {
	case ActionPending:
		return to == ActionExecuted || to == ActionFailed
	case ActionExecuted:
		return to == ActionRolledBack
	default:
		return false
	}
}

const (
	ActionUpdateOfferPlacement = "update_offer_placement"
	ActionClearOfferPlacement  = "clear_offer_placement"
	ActionSetAdDensity         = "set_ad_density"
)

func IsActionType(raw string) bool {
	switch raw {
	case ActionUpdateOfferPlacement, ActionClearOfferPlacement, ActionSetAdDensity:
		return true
	default:
		return false
	}
}

// Action is a concrete, reversible operation derived from one
// opportunity. ClaimedAt is set exactly once by the executor that wins
// the action; it doubles as the execution timestamp for latency and
// impact-window math. MeasuredImpact is populated post-hoc by the
// impact tracker.
type Action struct {
	ActionID       string           `json:"action_id"`
	OpportunityID  string           `json:"opportunity_id"`
	ActionType     string           `json:"action_type"`
	Payload        map[string]any   `json:"payload"`
	Status         ActionStatus     `json:"status"`
	MeasuredImpact *decimal.Decimal `json:"measured_impact,omitempty"`
	MeasuredAt     *time.Time       `json:"measured_at,omitempty"`
	ClaimedAt      *time.Time       `json:"claimed_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/modvault/monetization-agent/internal/domain"
)

type EnqueueActionInput struct {
	OpportunityID string
	ActionType    string
	Payload       map[string]any
}

// EnqueueAction derives a pending action from an opportunity. The
// operation is idempotent per (opportunity, action type): while an
// action for the pair is pending or executed, the existing row is
// returned instead of a new one.
func (s *Service) EnqueueAction(ctx context.Context, actor Actor, in EnqueueActionInput) (domain.Action, error) {
	in.OpportunityID = strings.TrimSpace(in.OpportunityID)
	in.ActionType = strings.TrimSpace(in.ActionType)
	if in.OpportunityID == "" {
		return domain.Action{}, domain.ErrInvalidInput
	}
	if !domain.IsActionType(in.ActionType) {
		return domain.Action{}, domain.ErrUnsupportedActionType
	}
	if err := validateActionPayload(in.ActionType, in.Payload); err != nil {
		return domain.Action{}, err
	}

	opp, err := s.opportunities.GetByID(ctx, in.OpportunityID)
	if err != nil {
		return domain.Action{}, err
	}

	// Idempotency wins over the status gate: once an action for the
	// pair is pending or executed, re-enqueues keep returning that row
	// even after the opportunity closes as implemented.
	if existing, err := s.actions.FindActive(ctx, in.OpportunityID, in.ActionType); err == nil {
		return existing, nil
	} else if err != domain.ErrNotFound {
		return domain.Action{}, err
	}

	if opp.Status != domain.OpportunityPending && opp.Status != domain.OpportunityQueued {
		return domain.Action{}, domain.ErrInvalidState
	}

	now := s.nowFn()
	action := domain.Action{
		ActionID:      "act_" + uuid.NewString(),
		OpportunityID: in.OpportunityID,
		ActionType:    in.ActionType,
		Payload:       in.Payload,
		Status:        domain.ActionPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.actions.Create(ctx, action); err != nil {
		if err == domain.ErrConflict {
			// Lost a concurrent enqueue; the winner's row is the answer.
			return s.actions.FindActive(ctx, in.OpportunityID, in.ActionType)
		}
		return domain.Action{}, fmt.Errorf("create action: %w", err)
	}

	if opp.Status == domain.OpportunityPending {
		err := s.opportunities.Transition(ctx, opp.OpportunityID, domain.OpportunityPending, domain.OpportunityQueued, now)
		if err != nil && err != domain.ErrInvalidState {
			return domain.Action{}, fmt.Errorf("queue opportunity: %w", err)
		}
	}
	s.publishEvent(ctx, EventActionQueued, action.ActionID, map[string]any{
		"action_id":      action.ActionID,
		"opportunity_id": action.OpportunityID,
		"action_type":    action.ActionType,
		"queued_by":      actor.SubjectID,
	})
	return action, nil
}

func validateActionPayload(actionType string, payload map[string]any) error {
	requireString := func(key string) error {
		v, ok := payload[key].(string)
		if !ok || strings.TrimSpace(v) == "" {
			return domain.ErrInvalidInput
		}
		return nil
	}
	switch actionType {
	case domain.ActionUpdateOfferPlacement:
		if err := requireString("offer_id"); err != nil {
			return err
		}
		return requireString("placement")
	case domain.ActionClearOfferPlacement:
		return requireString("offer_id")
	case domain.ActionSetAdDensity:
		if err := requireString("page_path"); err != nil {
			return err
		}
		return requireString("density")
	default:
		return domain.ErrUnsupportedActionType
	}
}

type QueueStats struct {
	Opportunities map[domain.OpportunityStatus]int `json:"opportunities"`
	Actions       map[domain.ActionStatus]int      `json:"actions"`
}

func (s *Service) GetQueueStats(ctx context.Context) (QueueStats, error) {
	opps, err := s.opportunities.CountByStatus(ctx)
	if err != nil {
		return QueueStats{}, fmt.Errorf("count opportunities: %w", err)
	}
	actions, err := s.actions.CountByStatus(ctx)
	if err != nil {
		return QueueStats{}, fmt.Errorf("count actions: %w", err)
	}
	return QueueStats{Opportunities: opps, Actions: actions}, nil
}

type ImplementedOpportunity struct {
	Opportunity domain.Opportunity `json:"opportunity"`
	Actions     []domain.Action    `json:"actions"`
}

// GetImplementedOpportunities returns implemented opportunities with
// their derived actions, most recent first, for learning and
// reporting.
func (s *Service) GetImplementedOpportunities(ctx context.Context, limit int) ([]ImplementedOpportunity, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.opportunities.ListImplemented(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list implemented opportunities: %w", err)
	}
	out := make([]ImplementedOpportunity, 0, len(rows))
	for _, opp := range rows {
		actions, err := s.actions.ListByOpportunityID(ctx, opp.OpportunityID)
		if err != nil {
			return nil, fmt.Errorf("list actions for %s: %w", opp.OpportunityID, err)
		}
		out = append(out, ImplementedOpportunity{Opportunity: opp, Actions: actions})
	}
	return out, nil
}

package application

import (
	"context"
	"testing"

	"github.com/modvault/monetization-agent/internal/domain"
)

func seedOpportunity(t *testing.T, env *testEnv, id string) domain.Opportunity {
	t.Helper()
	row := domain.Opportunity{
		OpportunityID:   id,
		Type:            domain.OpportunityAffiliateScan,
		Title:           "Promote HostCo",
		Priority:        4,
		EstimatedImpact: decPtr(340),
		Status:          domain.OpportunityPending,
		DedupeKey:       "affiliate_scan_finding:promote:" + id,
		CreatedAt:       env.now,
		UpdatedAt:       env.now,
	}
	if err := env.repos.Opportunities.Create(context.Background(), row); err != nil {
		t.Fatalf("seed opportunity: %v", err)
	}
	return row
}

func TestEnqueueActionIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	opp := seedOpportunity(t, env, "opp_1")
	actor := Actor{SubjectID: "admin-1", Role: "admin"}
	in := EnqueueActionInput{
		OpportunityID: opp.OpportunityID,
		ActionType:    domain.ActionUpdateOfferPlacement,
		Payload:       map[string]any{"offer_id": "off-1", "placement": "featured"},
	}

	first, err := env.svc.EnqueueAction(ctx, actor, in)
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if first.Status != domain.ActionPending {
		t.Fatalf("expected pending action, got %s", first.Status)
	}
	second, err := env.svc.EnqueueAction(ctx, actor, in)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if first.ActionID != second.ActionID {
		t.Fatalf("expected idempotent enqueue, got %s vs %s", first.ActionID, second.ActionID)
	}

	got, _ := env.repos.Opportunities.GetByID(ctx, opp.OpportunityID)
	if got.Status != domain.OpportunityQueued {
		t.Fatalf("opportunity status = %s, want queued", got.Status)
	}
}

func TestEnqueueActionValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	opp := seedOpportunity(t, env, "opp_2")
	actor := Actor{SubjectID: "admin-1", Role: "admin"}

	cases := []struct {
		name string
		in   EnqueueActionInput
		want error
	}{
		{"missing opportunity", EnqueueActionInput{ActionType: domain.ActionSetAdDensity, Payload: map[string]any{"page_path": "/p", "density": "high"}}, domain.ErrInvalidInput},
		{"unknown action type", EnqueueActionInput{OpportunityID: opp.OpportunityID, ActionType: "drop_tables"}, domain.ErrUnsupportedActionType},
		{"missing placement", EnqueueActionInput{OpportunityID: opp.OpportunityID, ActionType: domain.ActionUpdateOfferPlacement, Payload: map[string]any{"offer_id": "off-1"}}, domain.ErrInvalidInput},
		{"missing offer id", EnqueueActionInput{OpportunityID: opp.OpportunityID, ActionType: domain.ActionClearOfferPlacement, Payload: map[string]any{}}, domain.ErrInvalidInput},
		{"unknown opportunity", EnqueueActionInput{OpportunityID: "opp_missing", ActionType: domain.ActionClearOfferPlacement, Payload: map[string]any{"offer_id": "off-1"}}, domain.ErrNotFound},
	}
	for _, tc := range cases {
		if _, err := env.svc.EnqueueAction(ctx, actor, tc.in); err != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestEnqueueActionIdempotentAfterExecution(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	opp := seedOpportunity(t, env, "opp_done")
	actor := Actor{SubjectID: "admin-1", Role: "admin"}
	in := EnqueueActionInput{
		OpportunityID: opp.OpportunityID,
		ActionType:    domain.ActionUpdateOfferPlacement,
		Payload:       map[string]any{"offer_id": "off-1", "placement": "featured"},
	}

	first, err := env.svc.EnqueueAction(ctx, actor, in)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	result, err := env.svc.ExecuteAction(ctx, first.ActionID, "admin-1")
	if err != nil || !result.Success {
		t.Fatalf("execute: err=%v result=%+v", err, result)
	}
	got, _ := env.repos.Opportunities.GetByID(ctx, opp.OpportunityID)
	if got.Status != domain.OpportunityImplemented {
		t.Fatalf("opportunity status = %s, want implemented", got.Status)
	}

	// Re-enqueueing the same pair after execution keeps returning the
	// executed row.
	again, err := env.svc.EnqueueAction(ctx, actor, in)
	if err != nil {
		t.Fatalf("re-enqueue after execution: %v", err)
	}
	if again.ActionID != first.ActionID {
		t.Fatalf("expected the executed action back, got %s vs %s", again.ActionID, first.ActionID)
	}
	if again.Status != domain.ActionExecuted {
		t.Fatalf("returned action status = %s, want executed", again.Status)
	}
}

func TestEnqueueActionRejectedOpportunity(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	opp := seedOpportunity(t, env, "opp_3")
	if err := env.repos.Opportunities.Transition(ctx, opp.OpportunityID, domain.OpportunityPending, domain.OpportunityRejected, env.now); err != nil {
		t.Fatalf("reject opportunity: %v", err)
	}
	_, err := env.svc.EnqueueAction(ctx, Actor{SubjectID: "admin-1"}, EnqueueActionInput{
		OpportunityID: opp.OpportunityID,
		ActionType:    domain.ActionClearOfferPlacement,
		Payload:       map[string]any{"offer_id": "off-1"},
	})
	if err != domain.ErrInvalidState {
		t.Fatalf("expected ErrInvalidState for rejected opportunity, got %v", err)
	}
}

func TestGetQueueStats(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedOpportunity(t, env, "opp_4")
	seedOpportunity(t, env, "opp_5")

	stats, err := env.svc.GetQueueStats(ctx)
	if err != nil {
		t.Fatalf("queue stats: %v", err)
	}
	if stats.Opportunities[domain.OpportunityPending] != 2 {
		t.Fatalf("expected 2 pending opportunities, got %d", stats.Opportunities[domain.OpportunityPending])
	}
	if len(stats.Actions) != 0 {
		t.Fatalf("expected no actions yet, got %+v", stats.Actions)
	}
}

package application

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/modvault/monetization-agent/internal/domain"
)

func enqueueTestAction(t *testing.T, env *testEnv, oppID string) domain.Action {
	t.Helper()
	opp := seedOpportunity(t, env, oppID)
	action, err := env.svc.EnqueueAction(context.Background(), Actor{SubjectID: "admin-1"}, EnqueueActionInput{
		OpportunityID: opp.OpportunityID,
		ActionType:    domain.ActionUpdateOfferPlacement,
		Payload:       map[string]any{"offer_id": "off-9", "placement": "featured"},
	})
	if err != nil {
		t.Fatalf("enqueue action: %v", err)
	}
	return action
}

func TestExecuteAndRollbackRestoresConfig(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	if err := env.repos.SiteConfig.Set(ctx, "affiliate.placement.off-9", "sidebar"); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	action := enqueueTestAction(t, env, "opp_exec")

	result, err := env.svc.ExecuteAction(ctx, action.ActionID, "admin-1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if v, ok, _ := env.repos.SiteConfig.Get(ctx, "affiliate.placement.off-9"); !ok || v != "featured" {
		t.Fatalf("config after execute = %q (set=%v), want featured", v, ok)
	}
	got, _ := env.repos.Actions.GetByID(ctx, action.ActionID)
	if got.Status != domain.ActionExecuted {
		t.Fatalf("action status = %s, want executed", got.Status)
	}
	opp, _ := env.repos.Opportunities.GetByID(ctx, "opp_exec")
	if opp.Status != domain.OpportunityImplemented {
		t.Fatalf("opportunity status = %s, want implemented", opp.Status)
	}

	logs, _ := env.repos.ExecutionLogs.ListByActionID(ctx, action.ActionID)
	if len(logs) != 1 {
		t.Fatalf("expected 1 log row after execute, got %d", len(logs))
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(logs[0].Output), &record); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if record["previous_value"] != "sidebar" {
		t.Fatalf("previous_value = %v, want sidebar", record["previous_value"])
	}

	rolledBack, err := env.svc.RollbackExecution(ctx, logs[0].ExecutionLogID, "admin-2", "placement regression")
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if !rolledBack {
		t.Fatalf("expected rollback to succeed")
	}
	if v, _, _ := env.repos.SiteConfig.Get(ctx, "affiliate.placement.off-9"); v != "sidebar" {
		t.Fatalf("config after rollback = %q, want sidebar", v)
	}
	got, _ = env.repos.Actions.GetByID(ctx, action.ActionID)
	if got.Status != domain.ActionRolledBack {
		t.Fatalf("action status = %s, want rolled_back", got.Status)
	}

	logs, _ = env.repos.ExecutionLogs.ListByActionID(ctx, action.ActionID)
	if len(logs) != 2 {
		t.Fatalf("expected exactly 2 log rows after rollback, got %d", len(logs))
	}
	if logs[0].RolledBackAt == nil || logs[0].RolledBackBy == nil || *logs[0].RolledBackBy != "admin-2" {
		t.Fatalf("original row missing rollback annotation: %+v", logs[0])
	}
}

func TestRollbackRestoresUnsetKey(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	action := enqueueTestAction(t, env, "opp_unset")

	result, err := env.svc.ExecuteAction(ctx, action.ActionID, "admin-1")
	if err != nil || !result.Success {
		t.Fatalf("execute: err=%v result=%+v", err, result)
	}
	logRow, err := env.repos.ExecutionLogs.LatestSuccessful(ctx, action.ActionID)
	if err != nil {
		t.Fatalf("latest log: %v", err)
	}
	rolledBack, err := env.svc.RollbackExecution(ctx, logRow.ExecutionLogID, "admin-1", "undo")
	if err != nil || !rolledBack {
		t.Fatalf("rollback: rolledBack=%v err=%v", rolledBack, err)
	}
	if _, ok, _ := env.repos.SiteConfig.Get(ctx, "affiliate.placement.off-9"); ok {
		t.Fatalf("expected key removed when previous value was unset")
	}
}

func TestExecutePendingOnlyAndRollbackGuards(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	action := enqueueTestAction(t, env, "opp_guards")

	// Rollback before any execution: nothing to undo.
	if _, err := env.svc.RollbackExecution(ctx, "exec_missing", "admin-1", "noop"); err != domain.ErrNotFound {
		t.Fatalf("rollback of missing log: got %v, want ErrNotFound", err)
	}

	result, err := env.svc.ExecuteAction(ctx, action.ActionID, "admin-1")
	if err != nil || !result.Success {
		t.Fatalf("execute: err=%v result=%+v", err, result)
	}

	// Re-executing an executed action is an invalid state, not an error.
	again, err := env.svc.ExecuteAction(ctx, action.ActionID, "admin-1")
	if err != nil {
		t.Fatalf("re-execute: %v", err)
	}
	if again.Success {
		t.Fatalf("expected re-execute to report failure")
	}
	logs, _ := env.repos.ExecutionLogs.ListByActionID(ctx, action.ActionID)
	if len(logs) != 1 {
		t.Fatalf("re-execute must not add log rows, got %d", len(logs))
	}

	// Double rollback: second call finds the action already rolled back.
	logRow, _ := env.repos.ExecutionLogs.LatestSuccessful(ctx, action.ActionID)
	if ok, err := env.svc.RollbackExecution(ctx, logRow.ExecutionLogID, "admin-1", "first"); err != nil || !ok {
		t.Fatalf("first rollback: ok=%v err=%v", ok, err)
	}
	if ok, err := env.svc.RollbackExecution(ctx, logRow.ExecutionLogID, "admin-1", "second"); err != nil || ok {
		t.Fatalf("second rollback should be a no-op, got ok=%v err=%v", ok, err)
	}
}

func TestExecuteInvalidPayloadFailsAction(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	opp := seedOpportunity(t, env, "opp_badpayload")
	// Bypass enqueue validation to simulate a payload corrupted after
	// queueing.
	action := domain.Action{
		ActionID:      "act_bad",
		OpportunityID: opp.OpportunityID,
		ActionType:    domain.ActionSetAdDensity,
		Payload:       map[string]any{"page_path": "/p"},
		Status:        domain.ActionPending,
		CreatedAt:     env.now,
		UpdatedAt:     env.now,
	}
	if err := env.repos.Actions.Create(ctx, action); err != nil {
		t.Fatalf("seed action: %v", err)
	}

	result, err := env.svc.ExecuteAction(ctx, action.ActionID, "admin-1")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failure for invalid payload")
	}
	got, _ := env.repos.Actions.GetByID(ctx, action.ActionID)
	if got.Status != domain.ActionFailed {
		t.Fatalf("action status = %s, want failed", got.Status)
	}
	logs, _ := env.repos.ExecutionLogs.ListByActionID(ctx, action.ActionID)
	if len(logs) != 1 || logs[0].Success {
		t.Fatalf("expected one failed log row, got %+v", logs)
	}
}

func TestConcurrentExecuteSingleWinner(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	action := enqueueTestAction(t, env, "opp_race")

	const workers = 8
	var wg sync.WaitGroup
	successes := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			result, err := env.svc.ExecuteAction(ctx, action.ActionID, "admin-1")
			if err != nil {
				t.Errorf("worker %d: %v", worker, err)
				return
			}
			if result.Success {
				successes <- result.Output
			}
		}(i)
	}
	wg.Wait()
	close(successes)

	won := 0
	for range successes {
		won++
	}
	if won != 1 {
		t.Fatalf("expected exactly one winning executor, got %d", won)
	}
	logs, _ := env.repos.ExecutionLogs.ListByActionID(ctx, action.ActionID)
	if len(logs) != 1 {
		t.Fatalf("expected exactly one log row, got %d", len(logs))
	}
}

func TestGetExecutionStats(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	action := enqueueTestAction(t, env, "opp_stats")
	if result, err := env.svc.ExecuteAction(ctx, action.ActionID, "admin-1"); err != nil || !result.Success {
		t.Fatalf("execute: err=%v result=%+v", err, result)
	}

	stats, err := env.svc.GetExecutionStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalAttempts != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

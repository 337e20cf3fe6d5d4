package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/modvault/monetization-agent/internal/domain"
)

// ExecutionResult is the structured outcome of an execute call.
// Invalid-state and side-effect failures land in Success/Error, not in
// a Go error, because operators routinely probe state.
type ExecutionResult struct {
	Success bool
	Output  string
	Error   string
}

// executionRecord is the JSON written to ExecutionLog.Output for a
// successful attempt. previous/previous_set carry what rollback needs
// to restore the configuration exactly.
type executionRecord struct {
	ConfigKey   string `json:"config_key"`
	Applied     string `json:"applied_value"`
	Deleted     bool   `json:"deleted,omitempty"`
	Previous    string `json:"previous_value"`
	PreviousSet bool   `json:"previous_set"`
}

// ExecuteAction applies a pending action's effect to the site
// configuration. The claim is the linearization point: exactly one of
// any concurrent callers wins the action, and only the winner touches
// configuration. One ExecutionLog row is written per attempt. The
// owning opportunity becomes implemented only after the effect and
// status transition have both succeeded, never optimistically.
func (s *Service) ExecuteAction(ctx context.Context, actionID, executedBy string) (ExecutionResult, error) {
	actionID = strings.TrimSpace(actionID)
	executedBy = strings.TrimSpace(executedBy)
	if actionID == "" || executedBy == "" {
		return ExecutionResult{}, domain.ErrInvalidInput
	}
	action, err := s.actions.GetByID(ctx, actionID)
	if err != nil {
		return ExecutionResult{}, err
	}
	if action.Status != domain.ActionPending {
		return ExecutionResult{Success: false, Error: fmt.Sprintf("action is %s, not pending", action.Status)}, nil
	}

	now := s.nowFn()
	if err := s.actions.ClaimForExecution(ctx, actionID, now); err != nil {
		if err == domain.ErrInvalidState {
			return ExecutionResult{Success: false, Error: "action already claimed by another executor"}, nil
		}
		return ExecutionResult{}, fmt.Errorf("claim action: %w", err)
	}

	effect, effectErr := resolveActionEffect(action)
	if effectErr == nil {
		effectErr = s.applyEffect(ctx, &effect)
	}
	if effectErr != nil {
		// Nothing persisted: failed is a clean terminal state.
		s.appendExecutionLog(ctx, actionID, executedBy, now, effectErr.Error(), false)
		if err := s.actions.Transition(ctx, actionID, domain.ActionPending, domain.ActionFailed, now); err != nil {
			return ExecutionResult{}, fmt.Errorf("fail action: %w", err)
		}
		return ExecutionResult{Success: false, Error: effectErr.Error()}, nil
	}

	output, _ := json.Marshal(effect)
	s.appendExecutionLog(ctx, actionID, executedBy, now, string(output), true)
	if err := s.actions.Transition(ctx, actionID, domain.ActionPending, domain.ActionExecuted, now); err != nil {
		return ExecutionResult{}, fmt.Errorf("mark action executed: %w", err)
	}
	// Second or later action for the same opportunity: the transition
	// fails with invalid state because it is already implemented.
	err = s.opportunities.Transition(ctx, action.OpportunityID, domain.OpportunityQueued, domain.OpportunityImplemented, now)
	if err != nil && err != domain.ErrInvalidState {
		return ExecutionResult{}, fmt.Errorf("implement opportunity: %w", err)
	}
	s.publishEvent(ctx, EventActionExecuted, actionID, map[string]any{
		"action_id":      actionID,
		"opportunity_id": action.OpportunityID,
		"executed_by":    executedBy,
	})
	return ExecutionResult{Success: true, Output: string(output)}, nil
}

// resolveActionEffect maps an action to the configuration write it
// performs.
func resolveActionEffect(action domain.Action) (executionRecord, error) {
	str := func(key string) string {
		v, _ := action.Payload[key].(string)
		return strings.TrimSpace(v)
	}
	switch action.ActionType {
	case domain.ActionUpdateOfferPlacement:
		offerID, placement := str("offer_id"), str("placement")
		if offerID == "" || placement == "" {
			return executionRecord{}, fmt.Errorf("%w: offer_id and placement are required", domain.ErrInvalidInput)
		}
		return executionRecord{ConfigKey: "affiliate.placement." + offerID, Applied: placement}, nil
	case domain.ActionClearOfferPlacement:
		offerID := str("offer_id")
		if offerID == "" {
			return executionRecord{}, fmt.Errorf("%w: offer_id is required", domain.ErrInvalidInput)
		}
		return executionRecord{ConfigKey: "affiliate.placement." + offerID, Deleted: true}, nil
	case domain.ActionSetAdDensity:
		pagePath, density := str("page_path"), str("density")
		if pagePath == "" || density == "" {
			return executionRecord{}, fmt.Errorf("%w: page_path and density are required", domain.ErrInvalidInput)
		}
		return executionRecord{ConfigKey: "ads.density." + pagePath, Applied: density}, nil
	default:
		return executionRecord{}, domain.ErrUnsupportedActionType
	}
}

func (s *Service) applyEffect(ctx context.Context, effect *executionRecord) error {
	prev, prevSet, err := s.siteConfig.Get(ctx, effect.ConfigKey)
	if err != nil {
		return fmt.Errorf("read config %s: %w", effect.ConfigKey, err)
	}
	effect.Previous = prev
	effect.PreviousSet = prevSet
	if effect.Deleted {
		if err := s.siteConfig.Delete(ctx, effect.ConfigKey); err != nil {
			return fmt.Errorf("delete config %s: %w", effect.ConfigKey, err)
		}
		return nil
	}
	if err := s.siteConfig.Set(ctx, effect.ConfigKey, effect.Applied); err != nil {
		return fmt.Errorf("write config %s: %w", effect.ConfigKey, err)
	}
	return nil
}

func (s *Service) appendExecutionLog(ctx context.Context, actionID, executedBy string, at time.Time, output string, success bool) {
	row := domain.ExecutionLog{
		ExecutionLogID: "exec_" + uuid.NewString(),
		ActionID:       actionID,
		ExecutedBy:     executedBy,
		ExecutedAt:     at,
		Output:         output,
		Success:        success,
	}
	if err := s.executionLogs.Append(ctx, row); err != nil {
		// The execution already happened; losing the audit row is
		// logged loudly but must not fail the operation.
		s.logger.Error("execution log append failed", "action_id", actionID, "error", err)
	}
}

// RollbackExecution restores the configuration recorded by the given
// execution log entry. It returns false without error for every
// illegal-state case (action not executed, entry not the most recent
// success, already rolled back) so callers get a clean boolean.
func (s *Service) RollbackExecution(ctx context.Context, executionLogID, rolledBackBy, reason string) (bool, error) {
	executionLogID = strings.TrimSpace(executionLogID)
	rolledBackBy = strings.TrimSpace(rolledBackBy)
	if executionLogID == "" || rolledBackBy == "" {
		return false, domain.ErrInvalidInput
	}
	logRow, err := s.executionLogs.GetByID(ctx, executionLogID)
	if err != nil {
		return false, err
	}
	if !logRow.Success {
		return false, nil
	}
	action, err := s.actions.GetByID(ctx, logRow.ActionID)
	if err != nil {
		return false, err
	}
	if action.Status != domain.ActionExecuted {
		return false, nil
	}
	// Only the most recent executed state may be undone.
	latest, err := s.executionLogs.LatestSuccessful(ctx, action.ActionID)
	if err != nil {
		return false, err
	}
	if latest.ExecutionLogID != logRow.ExecutionLogID {
		return false, nil
	}

	now := s.nowFn()
	if err := s.executionLogs.MarkRolledBack(ctx, executionLogID, rolledBackBy, now, reason); err != nil {
		if err == domain.ErrInvalidState {
			return false, nil
		}
		return false, fmt.Errorf("mark rolled back: %w", err)
	}

	var record executionRecord
	if err := json.Unmarshal([]byte(logRow.Output), &record); err != nil {
		return false, fmt.Errorf("decode execution record: %w", err)
	}
	if record.PreviousSet {
		err = s.siteConfig.Set(ctx, record.ConfigKey, record.Previous)
	} else {
		err = s.siteConfig.Delete(ctx, record.ConfigKey)
	}
	if err != nil {
		return false, fmt.Errorf("restore config %s: %w", record.ConfigKey, err)
	}

	restored, _ := json.Marshal(map[string]any{
		"config_key":     record.ConfigKey,
		"restored_value": record.Previous,
		"restored_set":   record.PreviousSet,
		"reason":         reason,
	})
	s.appendExecutionLog(ctx, action.ActionID, rolledBackBy, now, string(restored), true)
	if err := s.actions.Transition(ctx, action.ActionID, domain.ActionExecuted, domain.ActionRolledBack, now); err != nil {
		return false, fmt.Errorf("mark action rolled back: %w", err)
	}
	s.publishEvent(ctx, EventActionRolledBack, action.ActionID, map[string]any{
		"action_id":      action.ActionID,
		"rolled_back_by": rolledBackBy,
		"reason":         reason,
	})
	return true, nil
}

type ExecutionStats struct {
	TotalAttempts        int             `json:"total_attempts"`
	Succeeded            int             `json:"succeeded"`
	Failed               int             `json:"failed"`
	RolledBack           int             `json:"rolled_back"`
	AverageTimeToExecute decimal.Decimal `json:"average_time_to_execute"` // seconds from enqueue to claim
}

// GetExecutionStats aggregates execution outcomes for reporting.
func (s *Service) GetExecutionStats(ctx context.Context) (ExecutionStats, error) {
	logs, err := s.executionLogs.ListRecent(ctx, 1000)
	if err != nil {
		return ExecutionStats{}, fmt.Errorf("list execution logs: %w", err)
	}
	counts, err := s.actions.CountByStatus(ctx)
	if err != nil {
		return ExecutionStats{}, fmt.Errorf("count actions: %w", err)
	}
	stats := ExecutionStats{
		TotalAttempts: len(logs),
		RolledBack:    counts[domain.ActionRolledBack],
		Failed:        counts[domain.ActionFailed],
	}
	for _, row := range logs {
		if row.Success {
			stats.Succeeded++
		}
	}

	latencies := decimal.Zero
	samples := 0
	for _, status := range []domain.ActionStatus{domain.ActionExecuted, domain.ActionRolledBack} {
		rows, err := s.actions.ListByStatus(ctx, status, 1000)
		if err != nil {
			return ExecutionStats{}, fmt.Errorf("list %s actions: %w", status, err)
		}
		for _, a := range rows {
			if a.ClaimedAt == nil {
				continue
			}
			latencies = latencies.Add(decimal.NewFromFloat(a.ClaimedAt.Sub(a.CreatedAt).Seconds()))
			samples++
		}
	}
	if samples > 0 {
		stats.AverageTimeToExecute = latencies.Div(decimal.NewFromInt(int64(samples))).Round(2)
	}
	return stats, nil
}

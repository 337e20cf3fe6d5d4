package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/modvault/monetization-agent/internal/domain"
)

type OpportunityRepository interface {
	// Create fails with domain.ErrConflict when an open (pending or
	// queued) opportunity already carries the same dedupe key.
	Create(ctx context.Context, row domain.Opportunity) error
	GetByID(ctx context.Context, opportunityID string) (domain.Opportunity, error)
	// Transition is a conditional update: it succeeds only when the row
	// is currently in `from`, otherwise it returns domain.ErrInvalidState
	// (or domain.ErrNotFound for a missing row).
	Transition(ctx context.Context, opportunityID string, from, to domain.OpportunityStatus, at time.Time) error
	ListByStatus(ctx context.Context, status domain.OpportunityStatus, limit int) ([]domain.Opportunity, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Opportunity, error)
	// ListImplemented returns implemented opportunities, most recently
	// updated first.
	ListImplemented(ctx context.Context, limit int) ([]domain.Opportunity, error)
	CountByStatus(ctx context.Context) (map[domain.OpportunityStatus]int, error)
}

type ActionRepository interface {
	// Create fails with domain.ErrConflict when a pending or executed
	// action already exists for the same (opportunity, action type).
	// The at-most-one-active-action invariant lives here, backed by a
	// uniqueness constraint, never by a read-then-write check.
	Create(ctx context.Context, row domain.Action) error
	GetByID(ctx context.Context, actionID string) (domain.Action, error)
	// FindActive returns the pending or executed action for the pair,
	// domain.ErrNotFound when none is open.
	FindActive(ctx context.Context, opportunityID, actionType string) (domain.Action, error)
	// ClaimForExecution atomically marks a pending, unclaimed action as
	// claimed. Exactly one concurrent caller wins; losers observe
	// domain.ErrInvalidState.
	ClaimForExecution(ctx context.Context, actionID string, at time.Time) error
	Transition(ctx context.Context, actionID string, from, to domain.ActionStatus, at time.Time) error
	SetMeasuredImpact(ctx context.Context, actionID string, impact decimal.Decimal, at time.Time) error
	ListByOpportunityID(ctx context.Context, opportunityID string) ([]domain.Action, error)
	ListByStatus(ctx context.Context, status domain.ActionStatus, limit int) ([]domain.Action, error)
	// ListExecutedUnmeasured returns executed actions claimed at or
	// before the cutoff whose measured impact is still unset.
	ListExecutedUnmeasured(ctx context.Context, claimedBefore time.Time, limit int) ([]domain.Action, error)
	// ListMeasured returns actions with a measured impact, most recently
	// measured first.
	ListMeasured(ctx context.Context, limit int) ([]domain.Action, error)
	CountByStatus(ctx context.Context) (map[domain.ActionStatus]int, error)
}

type ExecutionLogRepository interface {
	Append(ctx context.Context, row domain.ExecutionLog) error
	GetByID(ctx context.Context, executionLogID string) (domain.ExecutionLog, error)
	// LatestSuccessful returns the most recent success=true row for the
	// action; rollback applies only to that row.
	LatestSuccessful(ctx context.Context, actionID string) (domain.ExecutionLog, error)
	// MarkRolledBack annotates the row with rollback metadata. It is the
	// rollback claim: a row already annotated returns
	// domain.ErrInvalidState so concurrent rollbacks resolve to one
	// winner.
	MarkRolledBack(ctx context.Context, executionLogID, rolledBackBy string, at time.Time, reason string) error
	ListByActionID(ctx context.Context, actionID string) ([]domain.ExecutionLog, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ExecutionLog, error)
}

type AgentRunRepository interface {
	Create(ctx context.Context, row domain.AgentRun) error
	Complete(ctx context.Context, runID string, status domain.RunStatus, completedAt time.Time, itemsProcessed, opportunitiesFound int, errMsg string) error
	ListRecent(ctx context.Context, limit int) ([]domain.AgentRun, error)
}

type ForecastRepository interface {
	// Upsert keys on the forecast month: an existing month is updated in
	// place (preserving CreatedAt), a missing one is inserted.
	Upsert(ctx context.Context, row domain.RevenueForecast) error
	GetByMonth(ctx context.Context, month time.Time) (domain.RevenueForecast, error)
	// ListMissingActuals returns forecasts for months strictly before
	// the given month whose actuals have not been reconciled yet.
	ListMissingActuals(ctx context.Context, before time.Time) ([]domain.RevenueForecast, error)
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]domain.RevenueForecast, error)
	// ListReconciled returns forecasts with both projection and actuals
	// populated, oldest month first.
	ListReconciled(ctx context.Context) ([]domain.RevenueForecast, error)
}

// SiteConfigRepository is the live monetization configuration actions
// mutate: offer placements, ad density and similar keys. Executions
// capture the previous value so a rollback can restore it exactly.
type SiteConfigRepository interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/modvault/monetization-agent/internal/domain"
	"github.com/modvault/monetization-agent/internal/ports"
)

// Repositories is the in-memory store used when no DATABASE_URL is
// configured and by the test suites. It enforces the same uniqueness
// and conditional-update invariants as the Postgres adapter.
type Repositories struct {
	Opportunities *OpportunityRepository
	Actions       *ActionRepository
	ExecutionLogs *ExecutionLogRepository
	Runs          *AgentRunRepository
	Forecasts     *ForecastRepository
	SiteConfig    *SiteConfigRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Opportunities: &OpportunityRepository{byID: map[string]domain.Opportunity{}},
		Actions:       &ActionRepository{byID: map[string]domain.Action{}},
		ExecutionLogs: &ExecutionLogRepository{byID: map[string]domain.ExecutionLog{}},
		Runs:          &AgentRunRepository{byID: map[string]domain.AgentRun{}},
		Forecasts:     &ForecastRepository{byMonth: map[time.Time]domain.RevenueForecast{}},
		SiteConfig:    &SiteConfigRepository{values: map[string]string{}},
	}
}

type OpportunityRepository struct {
	mu   sync.Mutex
	byID map[string]domain.Opportunity
}

func (r *OpportunityRepository) Create(_ context.Context, row domain.Opportunity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[row.OpportunityID]; ok {
		return domain.ErrConflict
	}
	for _, existing := range r.byID {
		if existing.DedupeKey == row.DedupeKey &&
			(existing.Status == domain.OpportunityPending || existing.Status == domain.OpportunityQueued) {
			return domain.ErrConflict
		}
	}
	r.byID[row.OpportunityID] = row
	return nil
}

func (r *OpportunityRepository) GetByID(_ context.Context, opportunityID string) (domain.Opportunity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.byID[strings.TrimSpace(opportunityID)]
	if !ok {
		return domain.Opportunity{}, domain.ErrNotFound
	}
	return row, nil
}

func (r *OpportunityRepository) Transition(_ context.Context, opportunityID string, from, to domain.OpportunityStatus, at time.Time) error {
	if !domain.ValidOpportunityTransition(from, to) {
		return domain.ErrInvalidState
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.byID[opportunityID]
	if !ok {
		return domain.ErrNotFound
	}
	if row.Status != from {
		return domain.ErrInvalidState
	}
	row.Status = to
	row.UpdatedAt = at
	r.byID[opportunityID] = row
	return nil
}

func (r *OpportunityRepository) ListByStatus(_ context.Context, status domain.OpportunityStatus, limit int) ([]domain.Opportunity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Opportunity{}
	for _, row := range r.byID {
		if row.Status == status {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OpportunityRepository) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]domain.Opportunity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Opportunity{}
	for _, row := range r.byID {
		if row.Status == domain.OpportunityPending && row.CreatedAt.Before(olderThan) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OpportunityRepository) ListImplemented(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	return r.ListByStatus(ctx, domain.OpportunityImplemented, limit)
}

func (r *OpportunityRepository) CountByStatus(_ context.Context) (map[domain.OpportunityStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[domain.OpportunityStatus]int{}
	for _, row := range r.byID {
		out[row.Status]++
	}
	return out, nil
}

type ActionRepository struct {
	mu   sync.Mutex
	byID map[string]domain.Action
}

func (r *ActionRepository) Create(_ context.Context, row domain.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[row.ActionID]; ok {
		return domain.ErrConflict
	}
	for _, existing := range r.byID {
		if existing.OpportunityID == row.OpportunityID && existing.ActionType == row.ActionType &&
			(existing.Status == domain.ActionPending || existing.Status == domain.ActionExecuted) {
			return domain.ErrConflict
		}
	}
	r.byID[row.ActionID] = row
	return nil
}

func (r *ActionRepository) GetByID(_ context.Context, actionID string) (domain.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.byID[strings.TrimSpace(actionID)]
	if !ok {
		return domain.Action{}, domain.ErrNotFound
	}
	return row, nil
}

func (r *ActionRepository) FindActive(_ context.Context, opportunityID, actionType string) (domain.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.byID {
		if row.OpportunityID == opportunityID && row.ActionType == actionType &&
			(row.Status == domain.ActionPending || row.Status == domain.ActionExecuted) {
			return row, nil
		}
	}
	return domain.Action{}, domain.ErrNotFound
}

func (r *ActionRepository) ClaimForExecution(_ context.Context, actionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.byID[actionID]
	if !ok {
		return domain.ErrNotFound
	}
	if row.Status != domain.ActionPending || row.ClaimedAt != nil {
		return domain.ErrInvalidState
	}
	claimed := at
	row.ClaimedAt = &claimed
	row.UpdatedAt = at
	r.byID[actionID] = row
	return nil
}

func (r *ActionRepository) Transition(_ context.Context, actionID string, from, to domain.ActionStatus, at time.Time) error {
	if !domain.ValidActionTransition(from, to) {
		return domain.ErrInvalidState
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.byID[actionID]
	if !ok {
		return domain.ErrNotFound
	}
	if row.Status != from {
		return domain.ErrInvalidState
	}
	row.Status = to
	row.UpdatedAt = at
	r.byID[actionID] = row
	return nil
}

func (r *ActionRepository) SetMeasuredImpact(_ context.Context, actionID string, impact decimal.Decimal, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.byID[actionID]
	if !ok {
		return domain.ErrNotFound
	}
	if row.MeasuredImpact != nil {
		return domain.ErrInvalidState
	}
	measured := at
	row.MeasuredImpact = &impact
	row.MeasuredAt = &measured
	row.UpdatedAt = at
	r.byID[actionID] = row
	return nil
}

func (r *ActionRepository) ListByOpportunityID(_ context.Context, opportunityID string) ([]domain.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Action{}
	for _, row := range r.byID {
		if row.OpportunityID == opportunityID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *ActionRepository) ListByStatus(_ context.Context, status domain.ActionStatus, limit int) ([]domain.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Action{}
	for _, row := range r.byID {
		if row.Status == status {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ActionRepository) ListExecutedUnmeasured(_ context.Context, claimedBefore time.Time, limit int) ([]domain.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Action{}
	for _, row := range r.byID {
		if row.Status != domain.ActionExecuted || row.MeasuredImpact != nil || row.ClaimedAt == nil {
			continue
		}
		if row.ClaimedAt.After(claimedBefore) {
			continue
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimedAt.Before(*out[j].ClaimedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ActionRepository) ListMeasured(_ context.Context, limit int) ([]domain.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Action{}
	for _, row := range r.byID {
		if row.MeasuredImpact != nil {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MeasuredAt.After(*out[j].MeasuredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ActionRepository) CountByStatus(_ context.Context) (map[domain.ActionStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[domain.ActionStatus]int{}
	for _, row := range r.byID {
		out[row.Status]++
	}
	return out, nil
}

type ExecutionLogRepository struct {
	mu   sync.Mutex
	byID map[string]domain.ExecutionLog
}

func (r *ExecutionLogRepository) Append(_ context.Context, row domain.ExecutionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[row.ExecutionLogID]; ok {
		return domain.ErrConflict
	}
	r.byID[row.ExecutionLogID] = row
	return nil
}

func (r *ExecutionLogRepository) GetByID(_ context.Context, executionLogID string) (domain.ExecutionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.byID[strings.TrimSpace(executionLogID)]
	if !ok {
		return domain.ExecutionLog{}, domain.ErrNotFound
	}
	return row, nil
}

func (r *ExecutionLogRepository) LatestSuccessful(_ context.Context, actionID string) (domain.ExecutionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var (
		latest domain.ExecutionLog
		found  bool
	)
	for _, row := range r.byID {
		if row.ActionID != actionID || !row.Success {
			continue
		}
		if !found || row.ExecutedAt.After(latest.ExecutedAt) {
			latest = row
			found = true
		}
	}
	if !found {
		return domain.ExecutionLog{}, domain.ErrNotFound
	}
	return latest, nil
}

func (r *ExecutionLogRepository) MarkRolledBack(_ context.Context, executionLogID, rolledBackBy string, at time.Time, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.byID[executionLogID]
	if !ok {
		return domain.ErrNotFound
	}
	if row.RolledBackAt != nil {
		return domain.ErrInvalidState
	}
	by := rolledBackBy
	when := at
	why := reason
	row.RolledBackBy = &by
	row.RolledBackAt = &when
	row.RollbackReason = &why
	r.byID[executionLogID] = row
	return nil
}

func (r *ExecutionLogRepository) ListByActionID(_ context.Context, actionID string) ([]domain.ExecutionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.ExecutionLog{}
	for _, row := range r.byID {
		if row.ActionID == actionID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutedAt.Before(out[j].ExecutedAt) })
	return out, nil
}

func (r *ExecutionLogRepository) ListRecent(_ context.Context, limit int) ([]domain.ExecutionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ExecutionLog, 0, len(r.byID))
	for _, row := range r.byID {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutedAt.After(out[j].ExecutedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type AgentRunRepository struct {
	mu   sync.Mutex
	byID map[string]domain.AgentRun
}

func (r *AgentRunRepository) Create(_ context.Context, row domain.AgentRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[row.RunID]; ok {
		return domain.ErrConflict
	}
	r.byID[row.RunID] = row
	return nil
}

func (r *AgentRunRepository) Complete(_ context.Context, runID string, status domain.RunStatus, completedAt time.Time, itemsProcessed, opportunitiesFound int, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.byID[runID]
	if !ok {
		return domain.ErrNotFound
	}
	if row.Status != domain.RunRunning {
		return domain.ErrInvalidState
	}
	row.Status = status
	row.CompletedAt = &completedAt
	row.ItemsProcessed = itemsProcessed
	row.OpportunitiesFound = opportunitiesFound
	if errMsg != "" {
		msg := errMsg
		row.Error = &msg
	}
	r.byID[runID] = row
	return nil
}

func (r *AgentRunRepository) ListRecent(_ context.Context, limit int) ([]domain.AgentRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AgentRun, 0, len(r.byID))
	for _, row := range r.byID {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type ForecastRepository struct {
	mu      sync.Mutex
	byMonth map[time.Time]domain.RevenueForecast
}

func (r *ForecastRepository) Upsert(_ context.Context, row domain.RevenueForecast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	month := domain.FirstOfMonth(row.ForecastMonth)
	if existing, ok := r.byMonth[month]; ok {
		row.ForecastID = existing.ForecastID
		row.CreatedAt = existing.CreatedAt
	}
	row.ForecastMonth = month
	r.byMonth[month] = row
	return nil
}

func (r *ForecastRepository) GetByMonth(_ context.Context, month time.Time) (domain.RevenueForecast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.byMonth[domain.FirstOfMonth(month)]
	if !ok {
		return domain.RevenueForecast{}, domain.ErrNotFound
	}
	return row, nil
}

func (r *ForecastRepository) ListMissingActuals(_ context.Context, before time.Time) ([]domain.RevenueForecast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.RevenueForecast{}
	for month, row := range r.byMonth {
		if month.Before(before) && row.ActualTotalRevenue == nil {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ForecastMonth.Before(out[j].ForecastMonth) })
	return out, nil
}

func (r *ForecastRepository) ListUpcoming(_ context.Context, from time.Time, limit int) ([]domain.RevenueForecast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.RevenueForecast{}
	for month, row := range r.byMonth {
		if !month.Before(from) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ForecastMonth.Before(out[j].ForecastMonth) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ForecastRepository) ListReconciled(_ context.Context) ([]domain.RevenueForecast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.RevenueForecast{}
	for _, row := range r.byMonth {
		if row.ActualTotalRevenue != nil {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ForecastMonth.Before(out[j].ForecastMonth) })
	return out, nil
}

type SiteConfigRepository struct {
	mu     sync.Mutex
	values map[string]string
}

func (r *SiteConfigRepository) Get(_ context.Context, key string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[key]
	return v, ok, nil
}

func (r *SiteConfigRepository) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

func (r *SiteConfigRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, key)
	return nil
}

var _ ports.OpportunityRepository = (*OpportunityRepository)(nil)
var _ ports.ActionRepository = (*ActionRepository)(nil)
var _ ports.ExecutionLogRepository = (*ExecutionLogRepository)(nil)
var _ ports.AgentRunRepository = (*AgentRunRepository)(nil)
var _ ports.ForecastRepository = (*ForecastRepository)(nil)
var _ ports.SiteConfigRepository = (*SiteConfigRepository)(nil)

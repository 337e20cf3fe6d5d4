package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/modvault/monetization-agent/internal/domain"
	"github.com/modvault/monetization-agent/internal/ports"
)

type Repositories struct {
	Opportunities ports.OpportunityRepository
	Actions       ports.ActionRepository
	ExecutionLogs ports.ExecutionLogRepository
	Runs          ports.AgentRunRepository
	Forecasts     ports.ForecastRepository
	SiteConfig    ports.SiteConfigRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Opportunities: &opportunityRepository{db: db},
		Actions:       &actionRepository{db: db},
		ExecutionLogs: &executionLogRepository{db: db},
		Runs:          &agentRunRepository{db: db},
		Forecasts:     &forecastRepository{db: db},
		SiteConfig:    &siteConfigRepository{db: db},
	}
}

type opportunityRepository struct {
	db *gorm.DB
}

func (r *opportunityRepository) Create(ctx context.Context, row domain.Opportunity) error {
	rec := toOpportunityModel(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *opportunityRepository) GetByID(ctx context.Context, opportunityID string) (domain.Opportunity, error) {
	var rec opportunityModel
	if err := r.db.WithContext(ctx).Where("opportunity_id = ?", opportunityID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Opportunity{}, domain.ErrNotFound
		}
		return domain.Opportunity{}, err
	}
	return toDomainOpportunity(rec), nil
}

func (r *opportunityRepository) Transition(ctx context.Context, opportunityID string, from, to domain.OpportunityStatus, at time.Time) error {
	if !domain.ValidOpportunityTransition(from, to) {
		return domain.ErrInvalidState
	}
	res := r.db.WithContext(ctx).
		Model(&opportunityModel{}).
		Where("opportunity_id = ?", opportunityID).
		Where("status = ?", string(from)).
		Updates(map[string]any{"status": string(to), "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&opportunityModel{}).Where("opportunity_id = ?", opportunityID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidState
	}
	return nil
}

func (r *opportunityRepository) ListByStatus(ctx context.Context, status domain.OpportunityStatus, limit int) ([]domain.Opportunity, error) {
	var rows []opportunityModel
	query := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("updated_at DESC").
		Limit(limit)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Opportunity, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainOpportunity(rec))
	}
	return out, nil
}

func (r *opportunityRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]domain.Opportunity, error) {
	var rows []opportunityModel
	query := r.db.WithContext(ctx).
		Where("status = ?", string(domain.OpportunityPending)).
		Where("created_at < ?", olderThan).
		Order("created_at ASC").
		Limit(limit)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Opportunity, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainOpportunity(rec))
	}
	return out, nil
}

func (r *opportunityRepository) ListImplemented(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	return r.ListByStatus(ctx, domain.OpportunityImplemented, limit)
}

func (r *opportunityRepository) CountByStatus(ctx context.Context) (map[domain.OpportunityStatus]int, error) {
	var rows []struct {
		Status string
		Count  int
	}
	err := r.db.WithContext(ctx).
		Model(&opportunityModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.OpportunityStatus]int, len(rows))
	for _, row := range rows {
		out[domain.OpportunityStatus(row.Status)] = row.Count
	}
	return out, nil
}

type actionRepository struct {
	db *gorm.DB
}

func (r *actionRepository) Create(ctx context.Context, row domain.Action) error {
	rec := toActionModel(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *actionRepository) GetByID(ctx context.Context, actionID string) (domain.Action, error) {
	var rec actionModel
	if err := r.db.WithContext(ctx).Where("action_id = ?", actionID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Action{}, domain.ErrNotFound
		}
		return domain.Action{}, err
	}
	return toDomainAction(rec), nil
}

func (r *actionRepository) FindActive(ctx context.Context, opportunityID, actionType string) (domain.Action, error) {
	var rec actionModel
	err := r.db.WithContext(ctx).
		Where("opportunity_id = ?", opportunityID).
		Where("action_type = ?", actionType).
		Where("status IN ?", []string{string(domain.ActionPending), string(domain.ActionExecuted)}).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Action{}, domain.ErrNotFound
		}
		return domain.Action{}, err
	}
	return toDomainAction(rec), nil
}

func (r *actionRepository) ClaimForExecution(ctx context.Context, actionID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&actionModel{}).
		Where("action_id = ?", actionID).
		Where("status = ?", string(domain.ActionPending)).
		Where("claimed_at IS NULL").
		Updates(map[string]any{"claimed_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&actionModel{}).Where("action_id = ?", actionID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidState
	}
	return nil
}

func (r *actionRepository) Transition(ctx context.Context, actionID string, from, to domain.ActionStatus, at time.Time) error {
	if !domain.ValidActionTransition(from, to) {
		return domain.ErrInvalidState
	}
	res := r.db.WithContext(ctx).
		Model(&actionModel{}).
		Where("action_id = ?", actionID).
		Where("status = ?", string(from)).
		Updates(map[string]any{"status": string(to), "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&actionModel{}).Where("action_id = ?", actionID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidState
	}
	return nil
}

func (r *actionRepository) SetMeasuredImpact(ctx context.Context, actionID string, impact decimal.Decimal, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&actionModel{}).
		Where("action_id = ?", actionID).
		Where("measured_impact IS NULL").
		Updates(map[string]any{"measured_impact": impact, "measured_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&actionModel{}).Where("action_id = ?", actionID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidState
	}
	return nil
}

func (r *actionRepository) ListByOpportunityID(ctx context.Context, opportunityID string) ([]domain.Action, error) {
	var rows []actionModel
	err := r.db.WithContext(ctx).
		Where("opportunity_id = ?", opportunityID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Action, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainAction(rec))
	}
	return out, nil
}

func (r *actionRepository) ListByStatus(ctx context.Context, status domain.ActionStatus, limit int) ([]domain.Action, error) {
	var rows []actionModel
	query := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("updated_at DESC").
		Limit(limit)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Action, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainAction(rec))
	}
	return out, nil
}

func (r *actionRepository) ListExecutedUnmeasured(ctx context.Context, claimedBefore time.Time, limit int) ([]domain.Action, error) {
	var rows []actionModel
	query := r.db.WithContext(ctx).
		Where("status = ?", string(domain.ActionExecuted)).
		Where("measured_impact IS NULL").
		Where("claimed_at IS NOT NULL").
		Where("claimed_at <= ?", claimedBefore).
		Order("claimed_at ASC").
		Limit(limit)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Action, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainAction(rec))
	}
	return out, nil
}

func (r *actionRepository) ListMeasured(ctx context.Context, limit int) ([]domain.Action, error) {
	var rows []actionModel
	query := r.db.WithContext(ctx).
		Where("measured_impact IS NOT NULL").
		Order("measured_at DESC").
		Limit(limit)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Action, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainAction(rec))
	}
	return out, nil
}

func (r *actionRepository) CountByStatus(ctx context.Context) (map[domain.ActionStatus]int, error) {
	var rows []struct {
		Status string
		Count  int
	}
	err := r.db.WithContext(ctx).
		Model(&actionModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.ActionStatus]int, len(rows))
	for _, row := range rows {
		out[domain.ActionStatus(row.Status)] = row.Count
	}
	return out, nil
}

type executionLogRepository struct {
	db *gorm.DB
}

func (r *executionLogRepository) Append(ctx context.Context, row domain.ExecutionLog) error {
	rec := toExecutionLogModel(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *executionLogRepository) GetByID(ctx context.Context, executionLogID string) (domain.ExecutionLog, error) {
	var rec executionLogModel
	if err := r.db.WithContext(ctx).Where("execution_log_id = ?", executionLogID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ExecutionLog{}, domain.ErrNotFound
		}
		return domain.ExecutionLog{}, err
	}
	return toDomainExecutionLog(rec), nil
}

func (r *executionLogRepository) LatestSuccessful(ctx context.Context, actionID string) (domain.ExecutionLog, error) {
	var rec executionLogModel
	err := r.db.WithContext(ctx).
		Where("action_id = ?", actionID).
		Where("success = ?", true).
		Order("executed_at DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ExecutionLog{}, domain.ErrNotFound
		}
		return domain.ExecutionLog{}, err
	}
	return toDomainExecutionLog(rec), nil
}

func (r *executionLogRepository) MarkRolledBack(ctx context.Context, executionLogID, rolledBackBy string, at time.Time, reason string) error {
	res := r.db.WithContext(ctx).
		Model(&executionLogModel{}).
		Where("execution_log_id = ?", executionLogID).
		Where("rolled_back_at IS NULL").
		Updates(map[string]any{
			"rolled_back_by":  rolledBackBy,
			"rolled_back_at":  at,
			"rollback_reason": reason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&executionLogModel{}).Where("execution_log_id = ?", executionLogID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrInvalidState
	}
	return nil
}

func (r *executionLogRepository) ListByActionID(ctx context.Context, actionID string) ([]domain.ExecutionLog, error) {
	var rows []executionLogModel
	err := r.db.WithContext(ctx).
		Where("action_id = ?", actionID).
		Order("executed_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.ExecutionLog, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainExecutionLog(rec))
	}
	return out, nil
}

func (r *executionLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionLog, error) {
	var rows []executionLogModel
	query := r.db.WithContext(ctx).
		Order("executed_at DESC").
		Limit(limit)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ExecutionLog, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainExecutionLog(rec))
	}
	return out, nil
}

type agentRunRepository struct {
	db *gorm.DB
}

func (r *agentRunRepository) Create(ctx context.Context, row domain.AgentRun) error {
	rec := agentRunModel{
		RunID:     row.RunID,
		RunType:   string(row.RunType),
		StartedAt: row.StartedAt,
		Status:    string(row.Status),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *agentRunRepository) Complete(ctx context.Context, runID string, status domain.RunStatus, completedAt time.Time, itemsProcessed, opportunitiesFound int, errMsg string) error {
	updates := map[string]any{
		"status":              string(status),
		"completed_at":        completedAt,
		"items_processed":     itemsProcessed,
		"opportunities_found": opportunitiesFound,
	}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	res := r.db.WithContext(ctx).
		Model(&agentRunModel{}).
		Where("run_id = ?", runID).
		Where("status = ?", string(domain.RunRunning)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

func (r *agentRunRepository) ListRecent(ctx context.Context, limit int) ([]domain.AgentRun, error) {
	var rows []agentRunModel
	query := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AgentRun, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainAgentRun(rec))
	}
	return out, nil
}

type forecastRepository struct {
	db *gorm.DB
}

func (r *forecastRepository) Upsert(ctx context.Context, row domain.RevenueForecast) error {
	rec := toForecastModel(row)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "forecast_month"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"forecasted_ad_revenue",
				"forecasted_affiliate_revenue",
				"forecasted_total_revenue",
				"actual_ad_revenue",
				"actual_affiliate_revenue",
				"actual_total_revenue",
				"confidence_level",
				"month_over_month_growth",
				"growth_rate",
				"updated_at",
			}),
		}).
		Create(&rec).Error
}

func (r *forecastRepository) GetByMonth(ctx context.Context, month time.Time) (domain.RevenueForecast, error) {
	var rec revenueForecastModel
	if err := r.db.WithContext(ctx).Where("forecast_month = ?", month).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RevenueForecast{}, domain.ErrNotFound
		}
		return domain.RevenueForecast{}, err
	}
	return toDomainForecast(rec), nil
}

func (r *forecastRepository) ListMissingActuals(ctx context.Context, before time.Time) ([]domain.RevenueForecast, error) {
	var rows []revenueForecastModel
	err := r.db.WithContext(ctx).
		Where("forecast_month < ?", before).
		Where("actual_total_revenue IS NULL").
		Order("forecast_month ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.RevenueForecast, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainForecast(rec))
	}
	return out, nil
}

func (r *forecastRepository) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]domain.RevenueForecast, error) {
	var rows []revenueForecastModel
	query := r.db.WithContext(ctx).
		Where("forecast_month >= ?", from).
		Order("forecast_month ASC").
		Limit(limit)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RevenueForecast, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainForecast(rec))
	}
	return out, nil
}

func (r *forecastRepository) ListReconciled(ctx context.Context) ([]domain.RevenueForecast, error) {
	var rows []revenueForecastModel
	err := r.db.WithContext(ctx).
		Where("actual_total_revenue IS NOT NULL").
		Order("forecast_month ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.RevenueForecast, 0, len(rows))
	for _, rec := range rows {
		out = append(out, toDomainForecast(rec))
	}
	return out, nil
}

type siteConfigRepository struct {
	db *gorm.DB
}

func (r *siteConfigRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var rec siteConfigModel
	if err := r.db.WithContext(ctx).Where("config_key = ?", key).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return rec.ConfigValue, true, nil
}

func (r *siteConfigRepository) Set(ctx context.Context, key, value string) error {
	rec := siteConfigModel{ConfigKey: key, ConfigValue: value, UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "config_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"config_value", "updated_at"}),
		}).
		Create(&rec).Error
}

func (r *siteConfigRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("config_key = ?", key).Delete(&siteConfigModel{}).Error
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

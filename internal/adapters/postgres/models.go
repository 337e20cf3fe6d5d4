package postgres

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/modvault/monetization-agent/internal/domain"
)

type opportunityModel struct {
	OpportunityID   string           `gorm:"column:opportunity_id;primaryKey"`
	Type            string           `gorm:"column:type"`
	Title           string           `gorm:"column:title"`
	Priority        int              `gorm:"column:priority"`
	EstimatedImpact *decimal.Decimal `gorm:"column:estimated_impact;type:numeric(12,2)"`
	Status          string           `gorm:"column:status"`
	DedupeKey       string           `gorm:"column:dedupe_key"`
	CreatedAt       time.Time        `gorm:"column:created_at"`
	UpdatedAt       time.Time        `gorm:"column:updated_at"`
}

func (opportunityModel) TableName() string { return "opportunities" }

func toOpportunityModel(row domain.Opportunity) opportunityModel {
	return opportunityModel{
		OpportunityID:   row.OpportunityID,
		Type:            string(row.Type),
		Title:           row.Title,
		Priority:        row.Priority,
		EstimatedImpact: row.EstimatedImpact,
		Status:          string(row.Status),
		DedupeKey:       row.DedupeKey,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func toDomainOpportunity(rec opportunityModel) domain.Opportunity {
	return domain.Opportunity{
		OpportunityID:   rec.OpportunityID,
		Type:            domain.OpportunityType(rec.Type),
		Title:           rec.Title,
		Priority:        rec.Priority,
		EstimatedImpact: rec.EstimatedImpact,
		Status:          domain.OpportunityStatus(rec.Status),
		DedupeKey:       rec.DedupeKey,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

type actionModel struct {
	ActionID       string           `gorm:"column:action_id;primaryKey"`
	OpportunityID  string           `gorm:"column:opportunity_id"`
	ActionType     string           `gorm:"column:action_type"`
	Payload        datatypes.JSON   `gorm:"column:payload;type:jsonb"`
	Status         string           `gorm:"column:status"`
	MeasuredImpact *decimal.Decimal `gorm:"column:measured_impact;type:numeric(12,2)"`
	MeasuredAt     *time.Time       `gorm:"column:measured_at"`
	ClaimedAt      *time.Time       `gorm:"column:claimed_at"`
	CreatedAt      time.Time        `gorm:"column:created_at"`
	UpdatedAt      time.Time        `gorm:"column:updated_at"`
}

func (actionModel) TableName() string { return "actions" }

func toActionModel(row domain.Action) actionModel {
	payload, err := json.Marshal(row.Payload)
	if err != nil || row.Payload == nil {
		payload = []byte(`{}`)
	}
	return actionModel{
		ActionID:       row.ActionID,
		OpportunityID:  row.OpportunityID,
		ActionType:     row.ActionType,
		Payload:        datatypes.JSON(payload),
		Status:         string(row.Status),
		MeasuredImpact: row.MeasuredImpact,
		MeasuredAt:     row.MeasuredAt,
		ClaimedAt:      row.ClaimedAt,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func toDomainAction(rec actionModel) domain.Action {
	payload := map[string]any{}
	_ = json.Unmarshal(rec.Payload, &payload)
	return domain.Action{
		ActionID:       rec.ActionID,
		OpportunityID:  rec.OpportunityID,
		ActionType:     rec.ActionType,
		Payload:        payload,
		Status:         domain.ActionStatus(rec.Status),
		MeasuredImpact: rec.MeasuredImpact,
		MeasuredAt:     rec.MeasuredAt,
		ClaimedAt:      rec.ClaimedAt,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

type executionLogModel struct {
	ExecutionLogID string     `gorm:"column:execution_log_id;primaryKey"`
	ActionID       string     `gorm:"column:action_id"`
	ExecutedBy     string     `gorm:"column:executed_by"`
	ExecutedAt     time.Time  `gorm:"column:executed_at"`
	Output         string     `gorm:"column:output"`
	Success        bool       `gorm:"column:success"`
	RolledBackBy   *string    `gorm:"column:rolled_back_by"`
	RolledBackAt   *time.Time `gorm:"column:rolled_back_at"`
	RollbackReason *string    `gorm:"column:rollback_reason"`
}

func (executionLogModel) TableName() string { return "execution_logs" }

func toExecutionLogModel(row domain.ExecutionLog) executionLogModel {
	return executionLogModel(row)
}

func toDomainExecutionLog(rec executionLogModel) domain.ExecutionLog {
	return domain.ExecutionLog(rec)
}

type agentRunModel struct {
	RunID              string     `gorm:"column:run_id;primaryKey"`
	RunType            string     `gorm:"column:run_type"`
	StartedAt          time.Time  `gorm:"column:started_at"`
	CompletedAt        *time.Time `gorm:"column:completed_at"`
	Status             string     `gorm:"column:status"`
	ItemsProcessed     int        `gorm:"column:items_processed"`
	OpportunitiesFound int        `gorm:"column:opportunities_found"`
	Error              *string    `gorm:"column:error"`
}

func (agentRunModel) TableName() string { return "agent_runs" }

func toDomainAgentRun(rec agentRunModel) domain.AgentRun {
	return domain.AgentRun{
		RunID:              rec.RunID,
		RunType:            domain.RunType(rec.RunType),
		StartedAt:          rec.StartedAt,
		CompletedAt:        rec.CompletedAt,
		Status:             domain.RunStatus(rec.Status),
		ItemsProcessed:     rec.ItemsProcessed,
		OpportunitiesFound: rec.OpportunitiesFound,
		Error:              rec.Error,
	}
}

type revenueForecastModel struct {
	ForecastID                 string           `gorm:"column:forecast_id;primaryKey"`
	ForecastMonth              time.Time        `gorm:"column:forecast_month"`
	ForecastedAdRevenue        decimal.Decimal  `gorm:"column:forecasted_ad_revenue;type:numeric(12,2)"`
	ForecastedAffiliateRevenue decimal.Decimal  `gorm:"column:forecasted_affiliate_revenue;type:numeric(12,2)"`
	ForecastedTotalRevenue     decimal.Decimal  `gorm:"column:forecasted_total_revenue;type:numeric(12,2)"`
	ActualAdRevenue            *decimal.Decimal `gorm:"column:actual_ad_revenue;type:numeric(12,2)"`
	ActualAffiliateRevenue     *decimal.Decimal `gorm:"column:actual_affiliate_revenue;type:numeric(12,2)"`
	ActualTotalRevenue         *decimal.Decimal `gorm:"column:actual_total_revenue;type:numeric(12,2)"`
	ConfidenceLevel            string           `gorm:"column:confidence_level"`
	MonthOverMonthGrowth       *decimal.Decimal `gorm:"column:month_over_month_growth;type:numeric(8,4)"`
	GrowthRate                 decimal.Decimal  `gorm:"column:growth_rate;type:numeric(8,4)"`
	CreatedAt                  time.Time        `gorm:"column:created_at"`
	UpdatedAt                  time.Time        `gorm:"column:updated_at"`
}

func (revenueForecastModel) TableName() string { return "revenue_forecasts" }

func toForecastModel(row domain.RevenueForecast) revenueForecastModel {
	return revenueForecastModel(row)
}

func toDomainForecast(rec revenueForecastModel) domain.RevenueForecast {
	return domain.RevenueForecast(rec)
}

type siteConfigModel struct {
	ConfigKey   string    `gorm:"column:config_key;primaryKey"`
	ConfigValue string    `gorm:"column:config_value"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (siteConfigModel) TableName() string { return "site_config" }

package contracts

import "github.com/shopspring/decimal"

type SuccessResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type RunJobRequest struct {
	JobType string `json:"job_type"`
}

type RunJobResponse struct {
	Success            bool    `json:"success"`
	Job                string  `json:"job"`
	Duration           string  `json:"duration"`
	DurationSeconds    float64 `json:"duration_seconds"`
	ItemsProcessed     int     `json:"items_processed"`
	OpportunitiesFound int     `json:"opportunities_found"`
	Timestamp          string  `json:"timestamp"`
	Error              string  `json:"error,omitempty"`
}

type EnqueueActionRequest struct {
	OpportunityID string         `json:"opportunity_id"`
	ActionType    string         `json:"action_type"`
	Payload       map[string]any `json:"payload"`
}

type ActionResponse struct {
	ActionID       string           `json:"action_id"`
	OpportunityID  string           `json:"opportunity_id"`
	ActionType     string           `json:"action_type"`
	Status         string           `json:"status"`
	Payload        map[string]any   `json:"payload,omitempty"`
	MeasuredImpact *decimal.Decimal `json:"measured_impact,omitempty"`
	CreatedAt      string           `json:"created_at"`
}

type ExecuteActionResponse struct {
	ActionID string `json:"action_id"`
	Success  bool   `json:"success"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
}

type RollbackRequest struct {
	Reason string `json:"reason"`
}

type RollbackResponse struct {
	ExecutionLogID string `json:"execution_log_id"`
	RolledBack     bool   `json:"rolled_back"`
}

type ExecutionStatsResponse struct {
	TotalAttempts        int             `json:"total_attempts"`
	Succeeded            int             `json:"succeeded"`
	Failed               int             `json:"failed"`
	RolledBack           int             `json:"rolled_back"`
	AverageTimeToExecute decimal.Decimal `json:"average_time_to_execute_seconds"`
}

type GenerateForecastRequest struct {
	Months int `json:"months"`
}

type GenerateForecastResponse struct {
	MonthsWritten int `json:"months_written"`
}

type ForecastRow struct {
	ForecastID                 string           `json:"forecast_id"`
	ForecastMonth              string           `json:"forecast_month"`
	ForecastedAdRevenue        decimal.Decimal  `json:"forecasted_ad_revenue"`
	ForecastedAffiliateRevenue decimal.Decimal  `json:"forecasted_affiliate_revenue"`
	ForecastedTotalRevenue     decimal.Decimal  `json:"forecasted_total_revenue"`
	ActualTotalRevenue         *decimal.Decimal `json:"actual_total_revenue,omitempty"`
	ConfidenceLevel            string           `json:"confidence_level"`
	GrowthRate                 decimal.Decimal  `json:"growth_rate"`
	MonthOverMonthGrowth       *decimal.Decimal `json:"month_over_month_growth,omitempty"`
}

type ForecastsResponse struct {
	Upcoming []ForecastRow `json:"upcoming"`
	Accuracy any           `json:"accuracy"`
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// RevenueForecast is a forward-looking monthly projection, unique per
// ForecastMonth (always a first-of-month UTC date). Forecasted total
// equals ad plus affiliate at creation time. Actuals stay nil until the
// month has fully elapsed and the reconciliation pass fills them in.
type RevenueForecast struct {
	ForecastID                 string           `json:"forecast_id"`
	ForecastMonth              time.Time        `json:"forecast_month"`
	ForecastedAdRevenue        decimal.Decimal  `json:"forecasted_ad_revenue"`
	ForecastedAffiliateRevenue decimal.Decimal  `json:"forecasted_affiliate_revenue"`
	ForecastedTotalRevenue     decimal.Decimal  `json:"forecasted_total_revenue"`
	ActualAdRevenue            *decimal.Decimal `json:"actual_ad_revenue,omitempty"`
	ActualAffiliateRevenue     *decimal.Decimal `json:"actual_affiliate_revenue,omitempty"`
	ActualTotalRevenue         *decimal.Decimal `json:"actual_total_revenue,omitempty"`
	ConfidenceLevel            string           `json:"confidence_level"`
	MonthOverMonthGrowth       *decimal.Decimal `json:"month_over_month_growth,omitempty"`
	GrowthRate                 decimal.Decimal  `json:"growth_rate"`
	CreatedAt                  time.Time        `json:"created_at"`
	UpdatedAt                  time.Time        `json:"updated_at"`
}

// FirstOfMonth truncates t to midnight UTC on the first of its month.
func FirstOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

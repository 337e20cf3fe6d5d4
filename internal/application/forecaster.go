package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/modvault/monetization-agent/internal/domain"
	"github.com/modvault/monetization-agent/internal/ports"
)

var (
	growthFloor = decimal.NewFromFloat(-0.5)
	growthCeil  = decimal.NewFromFloat(0.5)
	half        = decimal.NewFromFloat(0.5)
	hundred     = decimal.NewFromInt(100)
)

// GenerateForecast projects monthly revenue for the months after the
// current one and upserts one row per month, so re-running a forecast
// revises projections in place instead of duplicating them. Growth is
// the clamped average month-over-month rate of the closed history
// window. Returns the number of rows written.
func (s *Service) GenerateForecast(ctx context.Context, monthsAhead int) (int, error) {
	if monthsAhead <= 0 {
		monthsAhead = s.cfg.DefaultForecastMonths
	}
	if monthsAhead > s.cfg.MaxForecastMonths {
		monthsAhead = s.cfg.MaxForecastMonths
	}

	history, err := s.ledger.MonthlyHistory(ctx, s.cfg.TrendWindowMonths)
	if err != nil {
		return 0, fmt.Errorf("fetch revenue history: %w", err)
	}

	growth := decimal.Zero
	level := decimal.Zero
	adShare := half
	confidence := domain.ConfidenceLow
	if len(history) > 0 {
		last := history[len(history)-1]
		level = last.Total()
		growth = averageGrowth(history)
		if share, ok := adRevenueShare(history); ok {
			adShare = share
		}
		switch {
		case len(history) >= s.cfg.TrendWindowMonths:
			confidence = domain.ConfidenceHigh
		case len(history) >= 3:
			confidence = domain.ConfidenceMedium
		}
	}

	now := s.nowFn()
	current := domain.FirstOfMonth(now)
	factor := decimal.NewFromInt(1).Add(growth)
	projected := level
	written := 0
	for i := 1; i <= monthsAhead; i++ {
		projected = projected.Mul(factor)
		total := projected.Round(2)
		ad := total.Mul(adShare).Round(2)
		affiliate := total.Sub(ad)
		row := domain.RevenueForecast{
			ForecastID:                 "fct_" + uuid.NewString(),
			ForecastMonth:              current.AddDate(0, i, 0),
			ForecastedAdRevenue:        ad,
			ForecastedAffiliateRevenue: affiliate,
			ForecastedTotalRevenue:     total,
			ConfidenceLevel:            confidence,
			GrowthRate:                 growth,
			CreatedAt:                  now,
			UpdatedAt:                  now,
		}
		if err := s.forecasts.Upsert(ctx, row); err != nil {
			return written, fmt.Errorf("upsert forecast for %s: %w", row.ForecastMonth.Format("2006-01"), err)
		}
		written++
	}
	s.logger.Info("forecast generated", "months", monthsAhead, "growth_rate", growth.String(), "confidence", confidence)
	return written, nil
}

// averageGrowth is the mean month-over-month growth rate over closed
// history, clamped to [-50%, +50%] so a single anomalous month cannot
// run the projection away.
func averageGrowth(history []ports.MonthlyRevenue) decimal.Decimal {
	sum := decimal.Zero
	samples := 0
	for i := 1; i < len(history); i++ {
		prev := history[i-1].Total()
		if prev.IsZero() {
			continue
		}
		rate := history[i].Total().Sub(prev).Div(prev)
		sum = sum.Add(rate)
		samples++
	}
	if samples == 0 {
		return decimal.Zero
	}
	avg := sum.Div(decimal.NewFromInt(int64(samples)))
	if avg.LessThan(growthFloor) {
		return growthFloor
	}
	if avg.GreaterThan(growthCeil) {
		return growthCeil
	}
	return avg
}

// adRevenueShare is the observed ad fraction of total revenue across
// the history window. ok is false when no revenue exists to split.
func adRevenueShare(history []ports.MonthlyRevenue) (decimal.Decimal, bool) {
	ad := decimal.Zero
	total := decimal.Zero
	for _, m := range history {
		ad = ad.Add(m.AdRevenue)
		total = total.Add(m.Total())
	}
	if total.IsZero() {
		return decimal.Zero, false
	}
	return ad.Div(total), true
}

// UpdateActuals reconciles forecasts for fully elapsed months against
// the revenue ledger and records realized month-over-month growth.
// Returns the number of months reconciled.
func (s *Service) UpdateActuals(ctx context.Context) (int, error) {
	currentMonth := domain.FirstOfMonth(s.nowFn())
	pending, err := s.forecasts.ListMissingActuals(ctx, currentMonth)
	if err != nil {
		return 0, fmt.Errorf("list unreconciled forecasts: %w", err)
	}

	reconciled := 0
	for _, fc := range pending {
		actual, err := s.ledger.MonthlyRevenue(ctx, fc.ForecastMonth)
		if err != nil {
			return reconciled, fmt.Errorf("fetch actuals for %s: %w", fc.ForecastMonth.Format("2006-01"), err)
		}
		total := actual.Total()
		fc.ActualAdRevenue = &actual.AdRevenue
		fc.ActualAffiliateRevenue = &actual.AffiliateRevenue
		fc.ActualTotalRevenue = &total

		prior, err := s.ledger.MonthlyRevenue(ctx, fc.ForecastMonth.AddDate(0, -1, 0))
		if err == nil && !prior.Total().IsZero() {
			growth := total.Sub(prior.Total()).Div(prior.Total()).Round(4)
			fc.MonthOverMonthGrowth = &growth
		}

		fc.UpdatedAt = s.nowFn()
		if err := s.forecasts.Upsert(ctx, fc); err != nil {
			return reconciled, fmt.Errorf("store actuals for %s: %w", fc.ForecastMonth.Format("2006-01"), err)
		}
		reconciled++
	}
	return reconciled, nil
}

type MonthAccuracy struct {
	Month            string          `json:"month"`
	ForecastedTotal  decimal.Decimal `json:"forecasted_total"`
	ActualTotal      decimal.Decimal `json:"actual_total"`
	AbsolutePctError decimal.Decimal `json:"absolute_pct_error"`
}

type ForecastAccuracy struct {
	MAPE         decimal.Decimal `json:"mape"`
	Observations int             `json:"observations"`
	Months       []MonthAccuracy `json:"months"`
}

// GetForecastAccuracy reports the mean absolute percentage error of
// reconciled forecasts. Months with zero actual revenue are excluded
// because the percentage error is undefined there.
func (s *Service) GetForecastAccuracy(ctx context.Context) (ForecastAccuracy, error) {
	rows, err := s.forecasts.ListReconciled(ctx)
	if err != nil {
		return ForecastAccuracy{}, fmt.Errorf("list reconciled forecasts: %w", err)
	}

	out := ForecastAccuracy{Months: make([]MonthAccuracy, 0, len(rows))}
	errorSum := decimal.Zero
	for _, fc := range rows {
		if fc.ActualTotalRevenue == nil || fc.ActualTotalRevenue.IsZero() {
			continue
		}
		pctErr := fc.ForecastedTotalRevenue.Sub(*fc.ActualTotalRevenue).
			Div(*fc.ActualTotalRevenue).Abs().Mul(hundred).Round(2)
		errorSum = errorSum.Add(pctErr)
		out.Observations++
		out.Months = append(out.Months, MonthAccuracy{
			Month:            fc.ForecastMonth.Format("2006-01"),
			ForecastedTotal:  fc.ForecastedTotalRevenue,
			ActualTotal:      *fc.ActualTotalRevenue,
			AbsolutePctError: pctErr,
		})
	}
	if out.Observations > 0 {
		out.MAPE = errorSum.Div(decimal.NewFromInt(int64(out.Observations))).Round(2)
	}
	return out, nil
}

// GetUpcomingForecasts returns forward-looking forecast rows from the
// current month on.
func (s *Service) GetUpcomingForecasts(ctx context.Context, limit int) ([]domain.RevenueForecast, error) {
	if limit <= 0 {
		limit = s.cfg.MaxForecastMonths
	}
	return s.forecasts.ListUpcoming(ctx, domain.FirstOfMonth(s.nowFn()), limit)
}

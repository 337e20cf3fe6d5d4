package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/modvault/monetization-agent/internal/domain"
)

var (
	accuracyCeil = decimal.NewFromInt(2)
	two          = decimal.NewFromInt(2)
	thirty       = decimal.NewFromInt(30)
)

// MeasureActionImpacts computes realized revenue impact for executed
// actions whose observation window has fully elapsed. The measurement
// compares equal-length revenue windows around the execution instant
// and normalizes the delta to a 30-day month so it is comparable with
// the monthly estimates. Each action is measured once. Returns the
// number measured.
func (s *Service) MeasureActionImpacts(ctx context.Context) (int, error) {
	now := s.nowFn()
	cutoff := now.Add(-s.cfg.ImpactWindow)
	due, err := s.actions.ListExecutedUnmeasured(ctx, cutoff, 100)
	if err != nil {
		return 0, fmt.Errorf("list unmeasured actions: %w", err)
	}

	windowDays := decimal.NewFromFloat(s.cfg.ImpactWindow.Hours() / 24)
	measured := 0
	for _, action := range due {
		if action.ClaimedAt == nil {
			continue
		}
		executedAt := *action.ClaimedAt
		baseline, err := s.ledger.RevenueBetween(ctx, executedAt.Add(-s.cfg.ImpactWindow), executedAt)
		if err != nil {
			return measured, fmt.Errorf("baseline revenue for %s: %w", action.ActionID, err)
		}
		after, err := s.ledger.RevenueBetween(ctx, executedAt, executedAt.Add(s.cfg.ImpactWindow))
		if err != nil {
			return measured, fmt.Errorf("post-execution revenue for %s: %w", action.ActionID, err)
		}

		delta := after.Sub(baseline)
		if !windowDays.IsZero() {
			delta = delta.Mul(thirty).Div(windowDays)
		}
		impact := delta.Round(2)
		if err := s.actions.SetMeasuredImpact(ctx, action.ActionID, impact, now); err != nil {
			return measured, fmt.Errorf("store measured impact for %s: %w", action.ActionID, err)
		}
		s.logger.Info("action impact measured", "action_id", action.ActionID, "measured_impact", impact.String())
		measured++
	}
	return measured, nil
}

type TypeImpact struct {
	Type             domain.OpportunityType `json:"type"`
	Measurements     int                    `json:"measurements"`
	EstimatedTotal   decimal.Decimal        `json:"estimated_total"`
	MeasuredTotal    decimal.Decimal        `json:"measured_total"`
	AccuracyRatio    decimal.Decimal        `json:"accuracy_ratio"`
	HasAccuracyRatio bool                   `json:"has_accuracy_ratio"`
}

type Measurement struct {
	ActionID        string                 `json:"action_id"`
	OpportunityID   string                 `json:"opportunity_id"`
	Type            domain.OpportunityType `json:"type"`
	EstimatedImpact *decimal.Decimal       `json:"estimated_impact,omitempty"`
	MeasuredImpact  decimal.Decimal        `json:"measured_impact"`
}

type ImpactSummary struct {
	TotalMeasured      int             `json:"total_measured"`
	OverallAccuracyPct decimal.Decimal `json:"overall_accuracy_pct"`
	ByType             []TypeImpact    `json:"by_type"`
	RecentMeasurements []Measurement   `json:"recent_measurements"`
}

// GetImpactSummary joins measured actions with their originating
// opportunities and reports, per opportunity type, how realized impact
// compares to the estimate that motivated it.
func (s *Service) GetImpactSummary(ctx context.Context) (ImpactSummary, error) {
	actions, err := s.actions.ListMeasured(ctx, 500)
	if err != nil {
		return ImpactSummary{}, fmt.Errorf("list measured actions: %w", err)
	}

	byType := map[domain.OpportunityType]*TypeImpact{}
	summary := ImpactSummary{TotalMeasured: len(actions)}
	estimatedAll := decimal.Zero
	measuredAll := decimal.Zero
	for _, action := range actions {
		if action.MeasuredImpact == nil {
			continue
		}
		opp, err := s.opportunities.GetByID(ctx, action.OpportunityID)
		if err != nil {
			return ImpactSummary{}, fmt.Errorf("load opportunity %s: %w", action.OpportunityID, err)
		}
		agg, ok := byType[opp.Type]
		if !ok {
			agg = &TypeImpact{Type: opp.Type}
			byType[opp.Type] = agg
		}
		agg.Measurements++
		agg.MeasuredTotal = agg.MeasuredTotal.Add(*action.MeasuredImpact)
		if opp.EstimatedImpact != nil {
			agg.EstimatedTotal = agg.EstimatedTotal.Add(*opp.EstimatedImpact)
			estimatedAll = estimatedAll.Add(*opp.EstimatedImpact)
			measuredAll = measuredAll.Add(*action.MeasuredImpact)
		}
		if len(summary.RecentMeasurements) < 20 {
			summary.RecentMeasurements = append(summary.RecentMeasurements, Measurement{
				ActionID:        action.ActionID,
				OpportunityID:   opp.OpportunityID,
				Type:            opp.Type,
				EstimatedImpact: opp.EstimatedImpact,
				MeasuredImpact:  *action.MeasuredImpact,
			})
		}
	}

	for _, agg := range byType {
		if agg.EstimatedTotal.IsPositive() {
			agg.AccuracyRatio = agg.MeasuredTotal.Div(agg.EstimatedTotal).Round(4)
			agg.HasAccuracyRatio = true
		}
		summary.ByType = append(summary.ByType, *agg)
	}
	if estimatedAll.IsPositive() {
		summary.OverallAccuracyPct = measuredAll.Div(estimatedAll).Mul(hundred).Round(2)
	}
	return summary, nil
}

// typeAccuracy returns per-type measured-vs-estimated accuracy ratios
// for priority calibration. Presence in the map means the type has
// measurement history; a measured ratio of zero is kept as a real
// entry. Best effort: a failure yields nil, which leaves all
// priorities at their base values.
func (s *Service) typeAccuracy(ctx context.Context) map[domain.OpportunityType]decimal.Decimal {
	summary, err := s.GetImpactSummary(ctx)
	if err != nil {
		s.logger.Warn("impact summary unavailable, priorities uncalibrated", "error", err)
		return nil
	}
	out := make(map[domain.OpportunityType]decimal.Decimal, len(summary.ByType))
	for _, agg := range summary.ByType {
		if agg.HasAccuracyRatio {
			out[agg.Type] = agg.AccuracyRatio
		}
	}
	return out
}

// priorityFor resolves a runner's priority from its base and the
// type's measurement history. A type absent from the accuracy map has
// never been measured and keeps its base; a present entry is evidence,
// including a measured zero, and always scales.
func priorityFor(base int, accuracy map[domain.OpportunityType]decimal.Decimal, t domain.OpportunityType) int {
	acc, ok := accuracy[t]
	if !ok {
		return base
	}
	return calibratedPriority(base, acc)
}

// calibratedPriority scales a base priority by measured accuracy. The
// multiplier is 0.5 + accuracy/2 with accuracy clamped to [0, 2], so
// over-delivering types rise and over-promising types sink, and the
// mapping is monotone in accuracy. A measured zero bottoms out at half
// the base.
func calibratedPriority(base int, accuracy decimal.Decimal) int {
	if accuracy.IsNegative() {
		accuracy = decimal.Zero
	}
	if accuracy.GreaterThan(accuracyCeil) {
		accuracy = accuracyCeil
	}
	multiplier := half.Add(accuracy.Div(two))
	p := int(decimal.NewFromInt(int64(base)).Mul(multiplier).Round(0).IntPart())
	if p < 1 {
		p = 1
	}
	return p
}

package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/modvault/monetization-agent/internal/domain"
)

const (
	EventOpportunityDetected = "agent.opportunity.detected"
	EventActionQueued        = "agent.action.queued"
	EventActionExecuted      = "agent.action.executed"
	EventActionRolledBack    = "agent.action.rolled_back"
)

var thousand = decimal.NewFromInt(1000)

// runAnalyticsSync flags pages with meaningful traffic and zero ad
// revenue: inventory the ad layer never reached.
func (s *Service) runAnalyticsSync(ctx context.Context) (runnerResult, error) {
	since := s.nowFn().Add(-s.cfg.MetricsWindow)
	metrics, err := s.analytics.PageMetrics(ctx, since)
	if err != nil {
		return runnerResult{}, fmt.Errorf("fetch page metrics: %w", err)
	}
	accuracy := s.typeAccuracy(ctx)

	res := runnerResult{items: len(metrics)}
	for _, m := range metrics {
		if m.Sessions < s.cfg.MinSessions || !m.AdRevenue.IsZero() {
			continue
		}
		impact := s.monthlyNormalize(decimal.NewFromInt(int64(m.Sessions)).Div(thousand).Mul(s.cfg.BaselineRPM))
		created, err := s.recordOpportunity(ctx, domain.Opportunity{
			Type:            domain.OpportunityAnalyticsSync,
			Title:           fmt.Sprintf("Untapped ad inventory on %s (%d sessions, no ad revenue)", m.PagePath, m.Sessions),
			Priority:        priorityFor(3, accuracy, domain.OpportunityAnalyticsSync),
			EstimatedImpact: &impact,
			DedupeKey:       string(domain.OpportunityAnalyticsSync) + ":" + m.PagePath,
		})
		if err != nil {
			return res, err
		}
		if created {
			res.opportunities++
		}
	}
	return res, nil
}

// runAffiliateScan inspects the partner catalog for two findings:
// high-EPC offers missing from the featured placement, and retired
// offers that still hold one.
func (s *Service) runAffiliateScan(ctx context.Context) (runnerResult, error) {
	offers, err := s.catalog.ListOffers(ctx)
	if err != nil {
		return runnerResult{}, fmt.Errorf("list affiliate offers: %w", err)
	}
	accuracy := s.typeAccuracy(ctx)
	priority := func(base int) int {
		return priorityFor(base, accuracy, domain.OpportunityAffiliateScan)
	}

	res := runnerResult{items: len(offers)}
	for _, offer := range offers {
		switch {
		case offer.Active && offer.EPC.GreaterThanOrEqual(s.cfg.EPCFloor) && offer.Placement != s.cfg.FeaturedPlacement:
			impact := offer.EPC.Mul(decimal.NewFromInt(int64(s.cfg.ProjectedMonthlyClicks))).Round(2)
			created, err := s.recordOpportunity(ctx, domain.Opportunity{
				Type:            domain.OpportunityAffiliateScan,
				Title:           fmt.Sprintf("Promote %s (%s): EPC %s without featured placement", offer.Merchant, offer.OfferID, offer.EPC.StringFixed(2)),
				Priority:        priority(4),
				EstimatedImpact: &impact,
				DedupeKey:       string(domain.OpportunityAffiliateScan) + ":promote:" + offer.OfferID,
			})
			if err != nil {
				return res, err
			}
			if created {
				res.opportunities++
			}
		case !offer.Active && offer.Placement != "":
			created, err := s.recordOpportunity(ctx, domain.Opportunity{
				Type:      domain.OpportunityAffiliateScan,
				Title:     fmt.Sprintf("Retired offer %s (%s) still occupies placement %q", offer.OfferID, offer.Merchant, offer.Placement),
				Priority:  priority(5),
				DedupeKey: string(domain.OpportunityAffiliateScan) + ":retire:" + offer.OfferID,
			})
			if err != nil {
				return res, err
			}
			if created {
				res.opportunities++
			}
		}
	}
	return res, nil
}

// runRPMAnalysis compares each page's RPM against the session-weighted
// site average and flags heavy-traffic pages yielding well below it.
func (s *Service) runRPMAnalysis(ctx context.Context) (runnerResult, error) {
	since := s.nowFn().Add(-s.cfg.MetricsWindow)
	metrics, err := s.analytics.PageMetrics(ctx, since)
	if err != nil {
		return runnerResult{}, fmt.Errorf("fetch page metrics: %w", err)
	}

	totalSessions := 0
	totalRevenue := decimal.Zero
	for _, m := range metrics {
		totalSessions += m.Sessions
		totalRevenue = totalRevenue.Add(m.AdRevenue)
	}
	res := runnerResult{items: len(metrics)}
	if totalSessions == 0 {
		return res, nil
	}
	siteRPM := totalRevenue.Div(decimal.NewFromInt(int64(totalSessions)).Div(thousand))
	if siteRPM.IsZero() {
		return res, nil
	}
	floor := siteRPM.Mul(s.cfg.RPMGapThreshold)
	accuracy := s.typeAccuracy(ctx)

	for _, m := range metrics {
		if m.Sessions < s.cfg.MinSessions {
			continue
		}
		sessionsK := decimal.NewFromInt(int64(m.Sessions)).Div(thousand)
		pageRPM := m.AdRevenue.Div(sessionsK)
		if pageRPM.GreaterThanOrEqual(floor) {
			continue
		}
		impact := s.monthlyNormalize(siteRPM.Sub(pageRPM).Mul(sessionsK))
		created, err := s.recordOpportunity(ctx, domain.Opportunity{
			Type:            domain.OpportunityRPMAnalysis,
			Title:           fmt.Sprintf("Low RPM on %s: %s vs site average %s", m.PagePath, pageRPM.StringFixed(2), siteRPM.StringFixed(2)),
			Priority:        priorityFor(2, accuracy, domain.OpportunityRPMAnalysis),
			EstimatedImpact: &impact,
			DedupeKey:       string(domain.OpportunityRPMAnalysis) + ":" + m.PagePath,
		})
		if err != nil {
			return res, err
		}
		if created {
			res.opportunities++
		}
	}
	return res, nil
}

// runCleanup retires pending opportunities past the staleness
// threshold. They are rejected, never deleted, so the audit trail
// survives.
func (s *Service) runCleanup(ctx context.Context) (runnerResult, error) {
	cutoff := s.nowFn().Add(-s.cfg.StaleOpportunityAge)
	stale, err := s.opportunities.ListStalePending(ctx, cutoff, 500)
	if err != nil {
		return runnerResult{}, fmt.Errorf("list stale opportunities: %w", err)
	}
	res := runnerResult{}
	for _, opp := range stale {
		err := s.opportunities.Transition(ctx, opp.OpportunityID, domain.OpportunityPending, domain.OpportunityRejected, s.nowFn())
		if err != nil {
			// A concurrent enqueue may have moved it to queued; skip.
			if err == domain.ErrInvalidState {
				continue
			}
			return res, fmt.Errorf("reject stale opportunity %s: %w", opp.OpportunityID, err)
		}
		res.items++
	}
	return res, nil
}

// runForecastJob is the revenue-accounting leg of a full run:
// reconcile elapsed months, measure executed actions, then extend the
// projection.
func (s *Service) runForecastJob(ctx context.Context) (runnerResult, error) {
	res := runnerResult{}
	var firstErr error

	reconciled, err := s.UpdateActuals(ctx)
	res.items += reconciled
	if err != nil && firstErr == nil {
		firstErr = err
	}

	measured, err := s.MeasureActionImpacts(ctx)
	res.items += measured
	if err != nil && firstErr == nil {
		firstErr = err
	}

	written, err := s.GenerateForecast(ctx, s.cfg.DefaultForecastMonths)
	res.items += written
	if err != nil && firstErr == nil {
		firstErr = err
	}
	return res, firstErr
}

// recordOpportunity inserts a pending opportunity unless an open row
// with the same fingerprint exists. The uniqueness check rides on the
// repository constraint, so concurrent runs collapse to one row.
func (s *Service) recordOpportunity(ctx context.Context, row domain.Opportunity) (bool, error) {
	now := s.nowFn()
	row.OpportunityID = "opp_" + uuid.NewString()
	row.Status = domain.OpportunityPending
	row.CreatedAt = now
	row.UpdatedAt = now
	if err := s.opportunities.Create(ctx, row); err != nil {
		if err == domain.ErrConflict {
			return false, nil
		}
		return false, fmt.Errorf("create opportunity: %w", err)
	}
	s.publishEvent(ctx, EventOpportunityDetected, row.OpportunityID, row)
	return true, nil
}

func (s *Service) monthlyNormalize(v decimal.Decimal) decimal.Decimal {
	windowDays := decimal.NewFromFloat(s.cfg.MetricsWindow.Hours() / 24)
	if windowDays.IsZero() {
		return v.Round(2)
	}
	return v.Mul(decimal.NewFromInt(30)).Div(windowDays).Round(2)
}

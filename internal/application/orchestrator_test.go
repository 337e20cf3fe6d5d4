package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/modvault/monetization-agent/internal/domain"
	"github.com/modvault/monetization-agent/internal/ports"
)

func seedSignals(env *testEnv) {
	env.catalog.SetOffers([]ports.AffiliateOffer{
		{OfferID: "off-1", Merchant: "HostCo", Category: "hosting", Placement: "sidebar", EPC: dec(0.85), Active: true},
		{OfferID: "off-2", Merchant: "VPNCo", Category: "vpn", Placement: "featured", EPC: dec(1.20), Active: true},
		{OfferID: "off-3", Merchant: "DeadCo", Category: "misc", Placement: "footer", EPC: dec(0.10), Active: false},
	})
	env.metrics.SetMetrics([]ports.PageMetrics{
		{PagePath: "/guides/setup", Sessions: 4000, Pageviews: 5200, AdRevenue: dec(18)},
		{PagePath: "/reviews/tools", Sessions: 2500, Pageviews: 3100, AdRevenue: dec(0)},
		{PagePath: "/tiny", Sessions: 120, Pageviews: 150, AdRevenue: dec(0)},
	})
}

func TestRunJobFullCompletesRun(t *testing.T) {
	env := newTestEnv()
	seedSignals(env)
	ctx := context.Background()

	result, err := env.svc.RunJob(ctx, domain.RunFull)
	if err != nil {
		t.Fatalf("run full: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.OpportunitiesFound == 0 {
		t.Fatalf("expected opportunities from seeded signals")
	}

	runs, err := env.svc.GetRecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 agent run, got %d", len(runs))
	}
	if runs[0].Status != domain.RunSuccess {
		t.Fatalf("expected run status success, got %s", runs[0].Status)
	}
	if runs[0].CompletedAt == nil {
		t.Fatalf("expected completed_at set")
	}
	if runs[0].OpportunitiesFound != result.OpportunitiesFound {
		t.Fatalf("run row and result disagree: %d vs %d", runs[0].OpportunitiesFound, result.OpportunitiesFound)
	}
}

func TestRunJobRerunDoesNotDuplicateOpenFindings(t *testing.T) {
	env := newTestEnv()
	seedSignals(env)
	ctx := context.Background()

	first, err := env.svc.RunJob(ctx, domain.RunAffiliateScan)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if first.OpportunitiesFound == 0 {
		t.Fatalf("expected findings on first scan")
	}
	second, err := env.svc.RunJob(ctx, domain.RunAffiliateScan)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if second.OpportunitiesFound != 0 {
		t.Fatalf("expected rerun to dedupe open findings, got %d new", second.OpportunitiesFound)
	}
}

func TestRunJobUnknownType(t *testing.T) {
	env := newTestEnv()
	if _, err := env.svc.RunJob(context.Background(), domain.RunType("reindex")); err != domain.ErrUnsupportedJobType {
		t.Fatalf("expected ErrUnsupportedJobType, got %v", err)
	}
	runs, _ := env.svc.GetRecentRuns(context.Background(), 10)
	if len(runs) != 0 {
		t.Fatalf("unknown job type must not create a run row, got %d", len(runs))
	}
}

func TestRunJobOverlappingRunRejected(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	acquired, err := env.svc.runLock.Acquire(ctx, "agent_run:cleanup", env.svc.cfg.RunLockTTL)
	if err != nil || !acquired {
		t.Fatalf("pre-acquire lock: acquired=%v err=%v", acquired, err)
	}
	if _, err := env.svc.RunJob(ctx, domain.RunCleanup); err != domain.ErrConflict {
		t.Fatalf("expected ErrConflict while lock held, got %v", err)
	}
}

type failingLedger struct{}

func (failingLedger) MonthlyHistory(context.Context, int) ([]ports.MonthlyRevenue, error) {
	return nil, errors.New("ledger unavailable")
}
func (failingLedger) MonthlyRevenue(context.Context, time.Time) (ports.MonthlyRevenue, error) {
	return ports.MonthlyRevenue{}, errors.New("ledger unavailable")
}
func (failingLedger) RevenueBetween(context.Context, time.Time, time.Time) (decimal.Decimal, error) {
	return decimal.Decimal{}, errors.New("ledger unavailable")
}

func TestRunJobRunnerFailureMarksRunFailed(t *testing.T) {
	env := newTestEnv()
	env.svc.ledger = failingLedger{}

	result, err := env.svc.RunJob(context.Background(), domain.RunForecast)
	if err != nil {
		t.Fatalf("run forecast: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failed result")
	}
	if result.Error == "" {
		t.Fatalf("expected error message in result")
	}
	runs, _ := env.svc.GetRecentRuns(context.Background(), 10)
	if len(runs) != 1 || runs[0].Status != domain.RunFailed {
		t.Fatalf("expected failed run row, got %+v", runs)
	}
}

func TestCleanupRejectsStalePending(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	stale := domain.Opportunity{
		OpportunityID: "opp_stale",
		Type:          domain.OpportunityAffiliateScan,
		Title:         "old finding",
		Priority:      3,
		Status:        domain.OpportunityPending,
		DedupeKey:     "affiliate_scan_finding:promote:old",
		CreatedAt:     env.now.AddDate(0, -2, 0),
		UpdatedAt:     env.now.AddDate(0, -2, 0),
	}
	fresh := stale
	fresh.OpportunityID = "opp_fresh"
	fresh.DedupeKey = "affiliate_scan_finding:promote:new"
	fresh.CreatedAt = env.now.AddDate(0, 0, -2)
	if err := env.repos.Opportunities.Create(ctx, stale); err != nil {
		t.Fatalf("seed stale: %v", err)
	}
	if err := env.repos.Opportunities.Create(ctx, fresh); err != nil {
		t.Fatalf("seed fresh: %v", err)
	}

	result, err := env.svc.RunJob(ctx, domain.RunCleanup)
	if err != nil {
		t.Fatalf("run cleanup: %v", err)
	}
	if result.ItemsProcessed != 1 {
		t.Fatalf("expected 1 rejected opportunity, got %d", result.ItemsProcessed)
	}
	got, _ := env.repos.Opportunities.GetByID(ctx, "opp_stale")
	if got.Status != domain.OpportunityRejected {
		t.Fatalf("stale opportunity status = %s, want rejected", got.Status)
	}
	got, _ = env.repos.Opportunities.GetByID(ctx, "opp_fresh")
	if got.Status != domain.OpportunityPending {
		t.Fatalf("fresh opportunity must stay pending, got %s", got.Status)
	}
}

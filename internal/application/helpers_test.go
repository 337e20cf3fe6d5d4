package application

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	eventadapter "github.com/modvault/monetization-agent/internal/adapters/events"
	"github.com/modvault/monetization-agent/internal/adapters/memory"
)

// testEnv bundles the service with its memory adapters so tests can
// seed and inspect state directly.
type testEnv struct {
	svc     *Service
	repos   *memory.Repositories
	catalog *memory.AffiliateCatalog
	metrics *memory.AnalyticsSource
	ledger  *memory.RevenueLedger
	events  *eventadapter.MemoryPublisher
	now     time.Time
}

var testClock = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func newTestEnv() *testEnv {
	repos := memory.NewRepositories()
	catalog := memory.NewAffiliateCatalog(nil)
	metrics := memory.NewAnalyticsSource(nil)
	ledger := memory.NewRevenueLedger(nil).WithClock(func() time.Time { return testClock })
	events := eventadapter.NewMemoryPublisher()

	svc := NewService(Dependencies{
		Opportunities: repos.Opportunities,
		Actions:       repos.Actions,
		ExecutionLogs: repos.ExecutionLogs,
		Runs:          repos.Runs,
		Forecasts:     repos.Forecasts,
		SiteConfig:    repos.SiteConfig,
		Catalog:       catalog,
		Analytics:     metrics,
		Ledger:        ledger,
		Events:        events,
		RunLock:       memory.NewRunLock(),
		Logger:        slog.Default(),
	}).WithClock(func() time.Time { return testClock })

	return &testEnv{
		svc:     svc,
		repos:   repos,
		catalog: catalog,
		metrics: metrics,
		ledger:  ledger,
		events:  events,
		now:     testClock,
	}
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func decPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

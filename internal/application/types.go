package application

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/modvault/monetization-agent/internal/ports"
)

type Config struct {
	ServiceName string

	// Runner thresholds.
	MinSessions            int
	RPMGapThreshold        decimal.Decimal // pages below this fraction of site-average RPM are flagged
	EPCFloor               decimal.Decimal // offers at or above this EPC deserve a featured slot
	FeaturedPlacement      string
	BaselineRPM            decimal.Decimal // assumed RPM for pages with traffic but no ads
	ProjectedMonthlyClicks int             // click volume assumed for placement-impact estimates
	MetricsWindow          time.Duration

	// Cleanup.
	StaleOpportunityAge time.Duration

	// Forecasting.
	TrendWindowMonths     int
	DefaultForecastMonths int
	MaxForecastMonths     int

	// Impact measurement.
	ImpactWindow time.Duration

	RunLockTTL time.Duration
}

// Actor is the authenticated caller identity resolved by the HTTP
// middleware.
type Actor struct {
	SubjectID string
	Role      string
	RequestID string
}

type Service struct {
	cfg Config

	opportunities ports.OpportunityRepository
	actions       ports.ActionRepository
	executionLogs ports.ExecutionLogRepository
	runs          ports.AgentRunRepository
	forecasts     ports.ForecastRepository
	siteConfig    ports.SiteConfigRepository

	catalog   ports.AffiliateCatalog
	analytics ports.AnalyticsSource
	ledger    ports.RevenueLedger

	events  ports.DomainPublisher
	runLock ports.RunLock

	logger *slog.Logger
	nowFn  func() time.Time
}

type Dependencies struct {
	Config Config

	Opportunities ports.OpportunityRepository
	Actions       ports.ActionRepository
	ExecutionLogs ports.ExecutionLogRepository
	Runs          ports.AgentRunRepository
	Forecasts     ports.ForecastRepository
	SiteConfig    ports.SiteConfigRepository

	Catalog   ports.AffiliateCatalog
	Analytics ports.AnalyticsSource
	Ledger    ports.RevenueLedger

	Events  ports.DomainPublisher
	RunLock ports.RunLock

	Logger *slog.Logger
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "monetization-agent"
	}
	if cfg.MinSessions <= 0 {
		cfg.MinSessions = 500
	}
	if cfg.RPMGapThreshold.IsZero() {
		cfg.RPMGapThreshold = decimal.NewFromFloat(0.5)
	}
	if cfg.EPCFloor.IsZero() {
		cfg.EPCFloor = decimal.NewFromFloat(0.40)
	}
	if cfg.FeaturedPlacement == "" {
		cfg.FeaturedPlacement = "featured"
	}
	if cfg.BaselineRPM.IsZero() {
		cfg.BaselineRPM = decimal.NewFromInt(4)
	}
	if cfg.ProjectedMonthlyClicks <= 0 {
		cfg.ProjectedMonthlyClicks = 400
	}
	if cfg.MetricsWindow <= 0 {
		cfg.MetricsWindow = 28 * 24 * time.Hour
	}
	if cfg.StaleOpportunityAge <= 0 {
		cfg.StaleOpportunityAge = 30 * 24 * time.Hour
	}
	if cfg.TrendWindowMonths <= 0 {
		cfg.TrendWindowMonths = 6
	}
	if cfg.DefaultForecastMonths <= 0 {
		cfg.DefaultForecastMonths = 3
	}
	if cfg.MaxForecastMonths <= 0 {
		cfg.MaxForecastMonths = 12
	}
	if cfg.ImpactWindow <= 0 {
		cfg.ImpactWindow = 14 * 24 * time.Hour
	}
	if cfg.RunLockTTL <= 0 {
		cfg.RunLockTTL = 5 * time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:           cfg,
		opportunities: deps.Opportunities,
		actions:       deps.Actions,
		executionLogs: deps.ExecutionLogs,
		runs:          deps.Runs,
		forecasts:     deps.Forecasts,
		siteConfig:    deps.SiteConfig,
		catalog:       deps.Catalog,
		analytics:     deps.Analytics,
		ledger:        deps.Ledger,
		events:        deps.Events,
		runLock:       deps.RunLock,
		logger:        logger,
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the service clock. Test hook.
func (s *Service) WithClock(nowFn func() time.Time) *Service {
	s.nowFn = nowFn
	return s
}

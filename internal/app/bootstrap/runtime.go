package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modvault/monetization-agent/internal/adapters/cache"
	eventadapter "github.com/modvault/monetization-agent/internal/adapters/events"
	httpadapter "github.com/modvault/monetization-agent/internal/adapters/http"
	"github.com/modvault/monetization-agent/internal/adapters/memory"
	"github.com/modvault/monetization-agent/internal/adapters/postgres"
	"github.com/modvault/monetization-agent/internal/adapters/security"
	"github.com/modvault/monetization-agent/internal/adapters/signals"
	"github.com/modvault/monetization-agent/internal/application"
	"github.com/modvault/monetization-agent/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
}

// NewRuntime wires the service from configuration. Each infrastructure
// edge degrades independently: memory repositories without a
// DATABASE_URL, a single-process lock without Redis, a logging
// publisher without Kafka, fixture signal feeds without upstream URLs.
func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	var (
		opportunities ports.OpportunityRepository
		actions       ports.ActionRepository
		executionLogs ports.ExecutionLogRepository
		runs          ports.AgentRunRepository
		forecasts     ports.ForecastRepository
		siteConfig    ports.SiteConfigRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, 20)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return nil, err
		}
		repos := postgres.NewRepositories(db)
		opportunities = repos.Opportunities
		actions = repos.Actions
		executionLogs = repos.ExecutionLogs
		runs = repos.Runs
		forecasts = repos.Forecasts
		siteConfig = repos.SiteConfig
	} else {
		logger.Warn("no database configured, using in-memory store")
		repos := memory.NewRepositories()
		opportunities = repos.Opportunities
		actions = repos.Actions
		executionLogs = repos.ExecutionLogs
		runs = repos.Runs
		forecasts = repos.Forecasts
		siteConfig = repos.SiteConfig
	}

	var runLock ports.RunLock
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		runLock = cache.NewRedisRunLock(client)
	} else {
		runLock = memory.NewRunLock()
	}

	var publisher ports.DomainPublisher
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		kafkaPub, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		publisher = kafkaPub
	} else {
		publisher = eventadapter.NewLoggingPublisher(logger)
	}

	var (
		catalog   ports.AffiliateCatalog
		analytics ports.AnalyticsSource
		ledger    ports.RevenueLedger
	)
	if cfg.AffiliateFeedURL != "" {
		catalog = signals.NewHTTPAffiliateCatalog(cfg.AffiliateFeedURL, cfg.AffiliateFeedKey, cfg.SignalTimeout)
	} else {
		logger.Warn("no affiliate feed configured, using empty fixture catalog")
		catalog = memory.NewAffiliateCatalog(nil)
	}
	if cfg.AnalyticsAPIURL != "" {
		source := signals.NewHTTPAnalyticsSource(cfg.AnalyticsAPIURL, cfg.AnalyticsAPIKey, cfg.SignalTimeout)
		analytics = source
		ledger = source
	} else {
		logger.Warn("no analytics api configured, using empty fixture source")
		analytics = memory.NewAnalyticsSource(nil)
		ledger = memory.NewRevenueLedger(nil)
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:            cfg.ServiceID,
			MinSessions:            cfg.MinSessions,
			RPMGapThreshold:        cfg.RPMGapThreshold,
			EPCFloor:               cfg.EPCFloor,
			FeaturedPlacement:      cfg.FeaturedPlacement,
			BaselineRPM:            cfg.BaselineRPM,
			ProjectedMonthlyClicks: cfg.ProjectedMonthlyClicks,
			MetricsWindow:          cfg.MetricsWindow,
			StaleOpportunityAge:    cfg.StaleOpportunityAge,
			TrendWindowMonths:      cfg.TrendWindowMonths,
			DefaultForecastMonths:  cfg.DefaultForecastMonths,
			MaxForecastMonths:      cfg.MaxForecastMonths,
			ImpactWindow:           cfg.ImpactWindow,
			RunLockTTL:             cfg.RunLockTTL,
		},
		Opportunities: opportunities,
		Actions:       actions,
		ExecutionLogs: executionLogs,
		Runs:          runs,
		Forecasts:     forecasts,
		SiteConfig:    siteConfig,
		Catalog:       catalog,
		Analytics:     analytics,
		Ledger:        ledger,
		Events:        publisher,
		RunLock:       runLock,
		Logger:        logger,
	})

	verifier, err := security.NewAdminTokenVerifier(cfg.AdminTokenSecret)
	if err != nil {
		return nil, fmt.Errorf("admin token verifier: %w", err)
	}

	handler := httpadapter.NewHandler(svc)
	router := httpadapter.NewRouter(handler, cfg.CronSecret, verifier)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &Runtime{cfg: cfg, logger: logger, httpServer: httpServer}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	r.logger.InfoContext(ctx, "http server started", "port", r.cfg.HTTPPort)
	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	return nil
}

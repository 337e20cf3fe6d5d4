package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string
	HTTPPort  int

	DatabaseURL string
	RedisURL    string

	KafkaBrokers []string
	KafkaTopic   string

	CronSecret       string
	AdminTokenSecret string

	AffiliateFeedURL string
	AffiliateFeedKey string
	AnalyticsAPIURL  string
	AnalyticsAPIKey  string
	SignalTimeout    time.Duration

	MinSessions            int
	RPMGapThreshold        decimal.Decimal
	EPCFloor               decimal.Decimal
	FeaturedPlacement      string
	BaselineRPM            decimal.Decimal
	ProjectedMonthlyClicks int
	MetricsWindow          time.Duration
	StaleOpportunityAge    time.Duration
	TrendWindowMonths      int
	DefaultForecastMonths  int
	MaxForecastMonths      int
	ImpactWindow           time.Duration
	RunLockTTL             time.Duration
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
	} `yaml:"service"`
	Storage struct {
		DatabaseURL string `yaml:"database_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"storage"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Auth struct {
		CronSecret       string `yaml:"cron_secret"`
		AdminTokenSecret string `yaml:"admin_token_secret"`
	} `yaml:"auth"`
	Signals struct {
		AffiliateFeedURL string `yaml:"affiliate_feed_url"`
		AffiliateFeedKey string `yaml:"affiliate_feed_key"`
		AnalyticsAPIURL  string `yaml:"analytics_api_url"`
		AnalyticsAPIKey  string `yaml:"analytics_api_key"`
		TimeoutSeconds   int    `yaml:"timeout_seconds"`
	} `yaml:"signals"`
	Agent struct {
		MinSessions            int     `yaml:"min_sessions"`
		RPMGapThreshold        float64 `yaml:"rpm_gap_threshold"`
		EPCFloor               float64 `yaml:"epc_floor"`
		FeaturedPlacement      string  `yaml:"featured_placement"`
		BaselineRPM            float64 `yaml:"baseline_rpm"`
		ProjectedMonthlyClicks int     `yaml:"projected_monthly_clicks"`
		MetricsWindowDays      int     `yaml:"metrics_window_days"`
		StaleOpportunityDays   int     `yaml:"stale_opportunity_days"`
		TrendWindowMonths      int     `yaml:"trend_window_months"`
		DefaultForecastMonths  int     `yaml:"default_forecast_months"`
		MaxForecastMonths      int     `yaml:"max_forecast_months"`
		ImpactWindowDays       int     `yaml:"impact_window_days"`
		RunLockTTLMinutes      int     `yaml:"run_lock_ttl_minutes"`
	} `yaml:"agent"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:              "monetization-agent",
		HTTPPort:               8080,
		SignalTimeout:          10 * time.Second,
		MinSessions:            500,
		RPMGapThreshold:        decimal.NewFromFloat(0.5),
		EPCFloor:               decimal.NewFromFloat(0.40),
		FeaturedPlacement:      "featured",
		BaselineRPM:            decimal.NewFromInt(4),
		ProjectedMonthlyClicks: 400,
		MetricsWindow:          28 * 24 * time.Hour,
		StaleOpportunityAge:    30 * 24 * time.Hour,
		TrendWindowMonths:      6,
		DefaultForecastMonths:  3,
		MaxForecastMonths:      12,
		ImpactWindow:           14 * 24 * time.Hour,
		RunLockTTL:             5 * time.Minute,
	}
	if raw, err := os.ReadFile(path); err == nil {
		var f configFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		cfg.DatabaseURL = f.Storage.DatabaseURL
		cfg.RedisURL = f.Storage.RedisURL
		cfg.KafkaBrokers = f.Kafka.Brokers
		cfg.KafkaTopic = f.Kafka.Topic
		cfg.CronSecret = f.Auth.CronSecret
		cfg.AdminTokenSecret = f.Auth.AdminTokenSecret
		cfg.AffiliateFeedURL = f.Signals.AffiliateFeedURL
		cfg.AffiliateFeedKey = f.Signals.AffiliateFeedKey
		cfg.AnalyticsAPIURL = f.Signals.AnalyticsAPIURL
		cfg.AnalyticsAPIKey = f.Signals.AnalyticsAPIKey
		if f.Signals.TimeoutSeconds > 0 {
			cfg.SignalTimeout = time.Duration(f.Signals.TimeoutSeconds) * time.Second
		}
		if f.Agent.MinSessions > 0 {
			cfg.MinSessions = f.Agent.MinSessions
		}
		if f.Agent.RPMGapThreshold > 0 {
			cfg.RPMGapThreshold = decimal.NewFromFloat(f.Agent.RPMGapThreshold)
		}
		if f.Agent.EPCFloor > 0 {
			cfg.EPCFloor = decimal.NewFromFloat(f.Agent.EPCFloor)
		}
		if f.Agent.FeaturedPlacement != "" {
			cfg.FeaturedPlacement = f.Agent.FeaturedPlacement
		}
		if f.Agent.BaselineRPM > 0 {
			cfg.BaselineRPM = decimal.NewFromFloat(f.Agent.BaselineRPM)
		}
		if f.Agent.ProjectedMonthlyClicks > 0 {
			cfg.ProjectedMonthlyClicks = f.Agent.ProjectedMonthlyClicks
		}
		if f.Agent.MetricsWindowDays > 0 {
			cfg.MetricsWindow = time.Duration(f.Agent.MetricsWindowDays) * 24 * time.Hour
		}
		if f.Agent.StaleOpportunityDays > 0 {
			cfg.StaleOpportunityAge = time.Duration(f.Agent.StaleOpportunityDays) * 24 * time.Hour
		}
		if f.Agent.TrendWindowMonths > 0 {
			cfg.TrendWindowMonths = f.Agent.TrendWindowMonths
		}
		if f.Agent.DefaultForecastMonths > 0 {
			cfg.DefaultForecastMonths = f.Agent.DefaultForecastMonths
		}
		if f.Agent.MaxForecastMonths > 0 {
			cfg.MaxForecastMonths = f.Agent.MaxForecastMonths
		}
		if f.Agent.ImpactWindowDays > 0 {
			cfg.ImpactWindow = time.Duration(f.Agent.ImpactWindowDays) * 24 * time.Hour
		}
		if f.Agent.RunLockTTLMinutes > 0 {
			cfg.RunLockTTL = time.Duration(f.Agent.RunLockTTLMinutes) * time.Minute
		}
	}
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = envString("REDIS_URL", cfg.RedisURL)
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		cfg.KafkaBrokers = splitAndTrim(raw)
	}
	cfg.KafkaTopic = envString("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.CronSecret = envString("CRON_SECRET", cfg.CronSecret)
	cfg.AdminTokenSecret = envString("ADMIN_TOKEN_SECRET", cfg.AdminTokenSecret)
	cfg.AffiliateFeedURL = envString("AFFILIATE_FEED_URL", cfg.AffiliateFeedURL)
	cfg.AffiliateFeedKey = envString("AFFILIATE_FEED_KEY", cfg.AffiliateFeedKey)
	cfg.AnalyticsAPIURL = envString("ANALYTICS_API_URL", cfg.AnalyticsAPIURL)
	cfg.AnalyticsAPIKey = envString("ANALYTICS_API_KEY", cfg.AnalyticsAPIKey)
	cfg.MinSessions = envInt("MIN_SESSIONS", cfg.MinSessions)
	cfg.TrendWindowMonths = envInt("TREND_WINDOW_MONTHS", cfg.TrendWindowMonths)
	cfg.DefaultForecastMonths = envInt("DEFAULT_FORECAST_MONTHS", cfg.DefaultForecastMonths)
	cfg.MaxForecastMonths = envInt("MAX_FORECAST_MONTHS", cfg.MaxForecastMonths)
	cfg.ImpactWindow = time.Duration(envInt("IMPACT_WINDOW_DAYS", int(cfg.ImpactWindow.Hours()/24))) * 24 * time.Hour
	cfg.StaleOpportunityAge = time.Duration(envInt("STALE_OPPORTUNITY_DAYS", int(cfg.StaleOpportunityAge.Hours()/24))) * 24 * time.Hour
	return cfg, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func envInt(name string, fallback int) int {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envString(name, fallback string) string {
	if raw := os.Getenv(name); raw != "" {
		return raw
	}
	return fallback
}

package application

import (
	"context"
	"fmt"

	"github.com/modvault/monetization-agent/internal/domain"
)

type Dashboard struct {
	Queue             QueueStats               `json:"queue"`
	RecentRuns        []domain.AgentRun        `json:"recent_runs"`
	UpcomingForecasts []domain.RevenueForecast `json:"upcoming_forecasts"`
	Execution         ExecutionStats           `json:"execution"`
}

// GetDashboard assembles the operator overview: queue depth, recent
// orchestrator runs, forward forecasts and execution health.
func (s *Service) GetDashboard(ctx context.Context) (Dashboard, error) {
	queue, err := s.GetQueueStats(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	runs, err := s.GetRecentRuns(ctx, 10)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list recent runs: %w", err)
	}
	forecasts, err := s.GetUpcomingForecasts(ctx, s.cfg.DefaultForecastMonths)
	if err != nil {
		return Dashboard{}, fmt.Errorf("list upcoming forecasts: %w", err)
	}
	execution, err := s.GetExecutionStats(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Queue:             queue,
		RecentRuns:        runs,
		UpcomingForecasts: forecasts,
		Execution:         execution,
	}, nil
}

type LearningDashboard struct {
	Impact           ImpactSummary            `json:"impact"`
	ForecastAccuracy ForecastAccuracy         `json:"forecast_accuracy"`
	Implemented      []ImplementedOpportunity `json:"implemented"`
}

// GetLearningDashboard pairs measured action impact with forecast
// accuracy so operators can judge how well the agent's numbers track
// reality, alongside the implemented opportunities that produced the
// measurements.
func (s *Service) GetLearningDashboard(ctx context.Context) (LearningDashboard, error) {
	impact, err := s.GetImpactSummary(ctx)
	if err != nil {
		return LearningDashboard{}, err
	}
	accuracy, err := s.GetForecastAccuracy(ctx)
	if err != nil {
		return LearningDashboard{}, err
	}
	implemented, err := s.GetImplementedOpportunities(ctx, 20)
	if err != nil {
		return LearningDashboard{}, err
	}
	return LearningDashboard{Impact: impact, ForecastAccuracy: accuracy, Implemented: implemented}, nil
}

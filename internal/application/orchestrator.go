package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/modvault/monetization-agent/internal/domain"
	"github.com/modvault/monetization-agent/internal/ports"
)

// RunResult is the aggregated outcome of one orchestrator invocation.
// A runner failure is reported here, not as a Go error: the scheduling
// entry point must keep serving future invocations.
type RunResult struct {
	Success            bool
	Duration           time.Duration
	ItemsProcessed     int
	OpportunitiesFound int
	Error              string
}

type runnerResult struct {
	items         int
	opportunities int
}

type namedRunner struct {
	name string
	fn   func(context.Context) (runnerResult, error)
}

// RunJob executes one job type to completion. A full run sequences
// sync -> scan -> analyze -> forecast -> cleanup; runners after a
// failed one still execute, and the first error becomes the run's
// error. An AgentRun row brackets the invocation regardless of
// outcome. Overlapping runs of the same job type are rejected with
// domain.ErrConflict via the run lock; runner dedupe keys keep the
// store consistent even without it.
func (s *Service) RunJob(ctx context.Context, runType domain.RunType) (RunResult, error) {
	runners, err := s.runnersFor(runType)
	if err != nil {
		return RunResult{}, err
	}

	if s.runLock != nil {
		acquired, lockErr := s.runLock.Acquire(ctx, "agent_run:"+string(runType), s.cfg.RunLockTTL)
		if lockErr != nil {
			return RunResult{}, fmt.Errorf("acquire run lock: %w", lockErr)
		}
		if !acquired {
			return RunResult{}, domain.ErrConflict
		}
		defer func() {
			if releaseErr := s.runLock.Release(context.WithoutCancel(ctx), "agent_run:"+string(runType)); releaseErr != nil {
				s.logger.Warn("run lock release failed", "job", runType, "error", releaseErr)
			}
		}()
	}

	started := s.nowFn()
	run := domain.AgentRun{
		RunID:     "run_" + uuid.NewString(),
		RunType:   runType,
		StartedAt: started,
		Status:    domain.RunRunning,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return RunResult{}, fmt.Errorf("create agent run: %w", err)
	}

	var (
		items    int
		opps     int
		firstErr error
	)
	for _, r := range runners {
		s.logger.Info("runner started", "job", runType, "runner", r.name)
		res, runErr := r.fn(ctx)
		items += res.items
		opps += res.opportunities
		if runErr != nil {
			s.logger.Error("runner failed", "job", runType, "runner", r.name, "error", runErr)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", r.name, runErr)
			}
			continue
		}
		s.logger.Info("runner completed", "job", runType, "runner", r.name,
			"items_processed", res.items, "opportunities_found", res.opportunities)
	}

	completed := s.nowFn()
	status := domain.RunSuccess
	errMsg := ""
	if firstErr != nil {
		status = domain.RunFailed
		errMsg = firstErr.Error()
	}
	if err := s.runs.Complete(ctx, run.RunID, status, completed, items, opps, errMsg); err != nil {
		return RunResult{}, fmt.Errorf("complete agent run: %w", err)
	}

	return RunResult{
		Success:            firstErr == nil,
		Duration:           completed.Sub(started),
		ItemsProcessed:     items,
		OpportunitiesFound: opps,
		Error:              errMsg,
	}, nil
}

func (s *Service) runnersFor(runType domain.RunType) ([]namedRunner, error) {
	sync := namedRunner{"analytics_sync", s.runAnalyticsSync}
	scan := namedRunner{"affiliate_scan", s.runAffiliateScan}
	analyze := namedRunner{"rpm_analysis", s.runRPMAnalysis}
	forecast := namedRunner{"forecast", s.runForecastJob}
	cleanup := namedRunner{"cleanup", s.runCleanup}

	switch runType {
	case domain.RunFull:
		return []namedRunner{sync, scan, analyze, forecast, cleanup}, nil
	case domain.RunAnalyticsSync:
		return []namedRunner{sync}, nil
	case domain.RunAffiliateScan:
		return []namedRunner{scan}, nil
	case domain.RunRPMAnalysis:
		return []namedRunner{analyze}, nil
	case domain.RunForecast:
		return []namedRunner{forecast}, nil
	case domain.RunCleanup:
		return []namedRunner{cleanup}, nil
	default:
		return nil, domain.ErrUnsupportedJobType
	}
}

// GetRecentRuns returns orchestrator history, newest first.
func (s *Service) GetRecentRuns(ctx context.Context, limit int) ([]domain.AgentRun, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.runs.ListRecent(ctx, limit)
}

// publishEvent is the explicit best-effort wrapper: delivery failures
// are logged and swallowed so they never block the primary operation.
func (s *Service) publishEvent(ctx context.Context, eventType, partitionKey string, payload any) {
	if s.events == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("event payload marshal failed", "event_type", eventType, "error", err)
		return
	}
	event := ports.DomainEvent{
		EventID:      "evt_" + uuid.NewString(),
		EventType:    eventType,
		PartitionKey: partitionKey,
		OccurredAt:   s.nowFn(),
		Payload:      raw,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", "event_type", eventType, "error", err)
	}
}

package domain

import "time"

type RunType string

const (
	RunFull          RunType = "full"
	RunAnalyticsSync RunType = "ga4_sync"
	RunAffiliateScan RunType = "affiliate_scan"
	RunRPMAnalysis   RunType = "rpm_analysis"
	RunForecast      RunType = "forecast"
	RunCleanup       RunType = "cleanup"
)

func ParseRunType(raw string) (RunType, error) {
	switch RunType(raw) {
	case RunFull, RunAnalyticsSync, RunAffiliateScan, RunRPMAnalysis, RunForecast, RunCleanup:
		return RunType(raw), nil
	default:
		return "", ErrUnsupportedJobType
	}
}

type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// AgentRun records one invocation of a job type by the orchestrator.
// Created at job start with status running; completed exactly once.
type AgentRun struct {
	RunID              string     `json:"run_id"`
	RunType            RunType    `json:"run_type"`
	StartedAt          time.Time  `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	Status             RunStatus  `json:"status"`
	ItemsProcessed     int        `json:"items_processed"`
	OpportunitiesFound int        `json:"opportunities_found"`
	Error              *string    `json:"error,omitempty"`
}

package domain

import "time"

// ExecutionLog is the immutable audit record of one execution attempt.
// Rows are never deleted; a rollback annotates the original row with
// the RolledBack* fields and appends a further row for the restore
// attempt, so history stays append-only.
type ExecutionLog struct {
	ExecutionLogID string     `json:"execution_log_id"`
	ActionID       string     `json:"action_id"`
	ExecutedBy     string     `json:"executed_by"`
	ExecutedAt     time.Time  `json:"executed_at"`
	Output         string     `json:"output"`
	Success        bool       `json:"success"`
	RolledBackBy   *string    `json:"rolled_back_by,omitempty"`
	RolledBackAt   *time.Time `json:"rolled_back_at,omitempty"`
	RollbackReason *string    `json:"rollback_reason,omitempty"`
}

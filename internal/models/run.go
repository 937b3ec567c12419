package models

import "time"

// RunStatus is the audit run lifecycle state.
type RunStatus string

const (
	RunQueued         RunStatus = "Queued"
	RunRunning        RunStatus = "Running"
	RunAwaitingReport RunStatus = "AwaitingReport"
	RunCompleted      RunStatus = "Completed"
	RunFailed         RunStatus = "Failed"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// StepRecord is one entry in a run's ordered step log.
type StepRecord struct {
	Index     int           `json:"index"`
	Name      string        `json:"name"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Warning   string        `json:"warning,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// AuditRun is the top-level aggregate for one audit. The orchestrator is its
// sole mutator for the run's lifetime.
type AuditRun struct {
	ID           string       `json:"id"`
	WorkspaceID  string       `json:"workspace_id"`
	LookbackDays int          `json:"lookback_days"`
	Status       RunStatus    `json:"status"`
	StepIndex    int          `json:"step_index"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	Error        string       `json:"error,omitempty"`
	Steps        []StepRecord `json:"steps"`
	Report       *Report      `json:"report,omitempty"`
}

// ProgressEvent is emitted at every orchestrator step transition. Status is
// a step-level state ("running", "completed", "degraded", "failed") or, for
// the stream's final event, the run's terminal RunStatus.
type ProgressEvent struct {
	RunID      string    `json:"run_id"`
	StepIndex  int       `json:"step_index"`
	TotalSteps int       `json:"total_steps"`
	StepName   string    `json:"step_name"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

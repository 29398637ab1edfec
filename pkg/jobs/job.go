package jobs

import (
	"time"

	"github.com/fingraph/simengine/pkg/dto"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Job is the lifecycle record of one backtest. The manager's registry lock
// guards reads; once a job enters RUNNING only the executing worker mutates
// it, so snapshots may be stale by one progress tick.
type Job struct {
	ID           string
	Status       Status
	Request      dto.BacktestRequest
	Result       *dto.BacktestResult
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    time.Time
	CompletedAt  time.Time
	Progress     float64 // in [0, 1]
	CurrentStep  string
}

// snapshot returns a status DTO for the job. Caller must hold the registry
// lock.
func (j *Job) snapshot() dto.JobStatus {
	status := dto.JobStatus{
		JobID:    j.ID,
		Status:   string(j.Status),
		Progress: j.Progress,
		Message:  j.CurrentStep,
	}
	if !j.StartedAt.IsZero() {
		status.StartTimeMs = j.StartedAt.UnixMilli()
	}
	// Linear extrapolation from elapsed time and progress so far
	if j.Status == StatusRunning && j.Progress > 0 && !j.StartedAt.IsZero() {
		elapsed := time.Since(j.StartedAt)
		total := time.Duration(float64(elapsed) / j.Progress)
		status.EstimatedCompletionMs = j.StartedAt.Add(total).UnixMilli()
	}
	return status
}

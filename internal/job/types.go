package job

import (
	"context"
	"encoding/json"
	"time"
)

// JobType represents the kind of job
type JobType string

const (
	// JobBurnIn composites the active transcript into the video via the
	// remote renderer.
	JobBurnIn JobType = "burnin"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job represents a queued render task.
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Status      JobStatus       `json:"status"`
	SessionID   string          `json:"session_id"`
	Params      json.RawMessage `json:"params"`
	Progress    float64         `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// BurnInParams are parameters for a burn-in job. The segment snapshot is
// taken at enqueue time so later edits or language switches do not change
// what gets rendered.
type BurnInParams struct {
	RemoteName string          `json:"remote_name"`
	Language   string          `json:"language"`
	Segments   json.RawMessage `json:"segments"`
}

// BurnInResult is the output of a successful burn-in job.
type BurnInResult struct {
	OutputFilename string `json:"output_filename"`
}

// JobHandler processes a job. Implementations are provided by the caller
// that registers them.
type JobHandler func(ctx context.Context, job *Job, updateProgress func(float64)) error

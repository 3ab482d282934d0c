package entity

import "time"

// JobStatus is the lifecycle state of a supervised job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobKind selects the executable and the parameter schema of a job
type JobKind string

const (
	JobKindCrawl JobKind = "crawl"
	JobKindIndex JobKind = "index"
)

func (k JobKind) Valid() bool {
	return k == JobKindCrawl || k == JobKindIndex
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a record may move from s to next.
// queued may fail directly when the process never got started.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusRunning || next == JobStatusFailed
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

// JobRecord is the persisted state of a job in the job store.
type JobRecord struct {
	ID                string         `json:"id"`
	Kind              JobKind        `json:"kind"`
	Status            JobStatus      `json:"status"`
	Error             *string        `json:"error"`
	CreatedAt         time.Time      `json:"created_at"`
	StartedAt         *time.Time     `json:"started_at"`
	FinishedAt        *time.Time     `json:"finished_at"`
	LastHeartbeat     *time.Time     `json:"last_heartbeat"`
	MemoryUsageMB     *float64       `json:"memory_usage_mb"`
	RequestParameters map[string]any `json:"request_parameters"`
	ParentJobID       string         `json:"parent_job_id,omitempty"`
	LogObject         string         `json:"log_object,omitempty"`
}

// JobStatusResponse is the public projection returned by the status endpoints
type JobStatusResponse struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
	Error  *string   `json:"error"`
}

func (r *JobRecord) StatusResponse() JobStatusResponse {
	return JobStatusResponse{
		JobID:  r.ID,
		Status: r.Status,
		Error:  r.Error,
	}
}

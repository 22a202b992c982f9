package model

import "time"

// JobStatus represents transcription job state.
type JobStatus string

const (
	JobStatusActive JobStatus = "active"
	JobStatusEnded  JobStatus = "ended"
)

// Job is one live transcription job held in memory.
type Job struct {
	ID          string
	PIN         string
	WriterToken string
	Status      JobStatus
	CreatedAt   time.Time
	EndedAt     *time.Time
}

// Active reports whether the job still accepts viewer authentication.
func (j *Job) Active() bool { return j.Status == JobStatusActive }

// CreateJobResponse is the response for POST /create_job.
type CreateJobResponse struct {
	JobID       string `json:"job_id"`
	PIN         string `json:"pin"`
	WriterToken string `json:"writer_token"`
}

// AuthJobRequest is the request body for POST /auth_job.
// PIN is kept raw because clients send it either as a string or a number.
type AuthJobRequest struct {
	JobID string `json:"job_id"`
	PIN   any    `json:"pin"`
}

// EndJobRequest is the request body for POST /end_job.
type EndJobRequest struct {
	JobID       string `json:"job_id"`
	WriterToken string `json:"writer_token"`
}

// OKResponse is the {ok, message?} envelope of auth/end endpoints.
type OKResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

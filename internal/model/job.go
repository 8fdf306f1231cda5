package model

import "time"

// JobStatus represents the current state of a prospecting job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status is absorbing. A job that has reached
// a terminal state never transitions again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// CanTransition reports whether a transition from s to next is legal:
// queued → processing → {complete | failed}.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusComplete || next == JobStatusFailed
	default:
		return false
	}
}

// ProspectingJob is a persisted record tracking one asynchronous pipeline
// run. It is created once at submission (status=queued), owned by the worker
// that claims it, and mutated only through state transitions.
type ProspectingJob struct {
	ID        string     `json:"id"`
	URL       string     `json:"url"`
	Status    JobStatus  `json:"status"`
	Result    *JobResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// JobResult holds the final outcome of a completed prospecting job.
type JobResult struct {
	Summary     string              `json:"summary"`
	Prospects   []ExtractedProspect `json:"prospects"`
	TotalTokens int                 `json:"total_tokens"`
	TotalCost   float64             `json:"total_cost"`
}

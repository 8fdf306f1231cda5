package store

import (
	"context"
	"errors"
	"time"

	"github.com/sells-group/prospector/internal/model"
)

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	URL    string          `json:"url,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the prospecting pipeline.
//
// Job transitions are guarded: each mutation names the state it expects to
// move from, and a job already in a terminal state can never be written
// again. Each job id is written by exactly one worker, so last-writer-wins
// is sufficient; no version counters.
type Store interface {
	// Jobs
	CreateJob(ctx context.Context, url string) (*model.ProspectingJob, error)
	GetJob(ctx context.Context, jobID string) (*model.ProspectingJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.ProspectingJob, error)
	// ClaimJob transitions queued → processing.
	ClaimJob(ctx context.Context, jobID string) error
	// CompleteJob transitions processing → complete and records the result.
	CompleteJob(ctx context.Context, jobID string, result *model.JobResult) error
	// FailJob transitions processing → failed and records the error message.
	FailJob(ctx context.Context, jobID string, errMsg string) error

	// Prospects. SaveProspects writes the batch atomically: on error no
	// prospect from the batch is visible.
	SaveProspects(ctx context.Context, jobID, sourceURL string, prospects []model.ExtractedProspect) ([]model.ProspectRecord, error)
	ListProspects(ctx context.Context, jobID string) ([]model.ProspectRecord, error)

	// Analysis cache. GetAnalysis returns (nil, nil) for a miss; an entry
	// whose expires_at has passed is a miss. SetAnalysis overwrites any
	// existing entry for the key.
	GetAnalysis(ctx context.Context, key string) (*model.CacheEntry, error)
	SetAnalysis(ctx context.Context, key string, output model.AnalysisReport, ttl time.Duration) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// IsNotFound reports whether err marks a missing job or record. Backends
// produce these via notFoundError so the HTTP layer can map them to 404.
func IsNotFound(err error) bool {
	var nf *notFoundError
	return errors.As(err, &nf)
}

type notFoundError struct {
	entity string
	id     string
}

func (e *notFoundError) Error() string {
	return e.entity + " not found: " + e.id
}

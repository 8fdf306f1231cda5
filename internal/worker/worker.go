// Package worker runs queued prospecting jobs through the pipeline in the
// background.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/monitoring"
	"github.com/sells-group/prospector/internal/pipeline"
	"github.com/sells-group/prospector/internal/store"
)

// sweepInterval is how often the pool rescans the store for queued jobs
// that never made it into the channel (startup backlog, dropped submits).
const sweepInterval = 30 * time.Second

// Pool consumes job IDs from a channel and drives each job through the
// state machine: claim, run the pipeline, complete or fail.
type Pool struct {
	store       store.Store
	pipeline    *pipeline.Pipeline
	metrics     *monitoring.Metrics
	jobs        chan string
	concurrency int
}

// NewPool creates a worker pool. metrics may be nil.
func NewPool(st store.Store, p *pipeline.Pipeline, metrics *monitoring.Metrics, concurrency, queueDepth int) *Pool {
	if concurrency <= 0 {
		concurrency = 1
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Pool{
		store:       st,
		pipeline:    p,
		metrics:     metrics,
		jobs:        make(chan string, queueDepth),
		concurrency: concurrency,
	}
}

// Submit enqueues a job for processing. When the queue is full the job
// stays in queued state and the periodic sweep picks it up later.
func (w *Pool) Submit(jobID string) {
	select {
	case w.jobs <- jobID:
	default:
		zap.L().Warn("worker: queue full, job deferred to sweep",
			zap.String("job_id", jobID),
		)
	}
}

// Run starts the workers and the requeue sweep, blocking until ctx is
// cancelled. Jobs still queued from a previous process are picked up by
// the first sweep.
func (w *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case jobID := <-w.jobs:
					w.process(ctx, jobID)
				}
			}
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		w.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				w.sweep(ctx)
			}
		}
	})

	return g.Wait()
}

// sweep requeues jobs sitting in queued state.
func (w *Pool) sweep(ctx context.Context) {
	queued, err := w.store.ListJobs(ctx, store.JobFilter{Status: model.JobStatusQueued})
	if err != nil {
		zap.L().Warn("worker: sweep failed", zap.Error(err))
		return
	}
	for _, job := range queued {
		w.Submit(job.ID)
	}
}

// process drives one job to a terminal state. A claim failure means another
// worker got there first; everything after the claim ends in complete or
// failed, never back to queued.
func (w *Pool) process(ctx context.Context, jobID string) {
	if err := w.store.ClaimJob(ctx, jobID); err != nil {
		zap.L().Debug("worker: claim skipped",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return
	}

	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		w.fail(ctx, jobID, err)
		return
	}

	zap.L().Info("worker: job started",
		zap.String("job_id", jobID),
		zap.String("url", job.URL),
	)

	out, err := w.pipeline.RunProspect(ctx, jobID, job.URL)
	if err != nil {
		w.fail(ctx, jobID, err)
		return
	}

	result := &model.JobResult{
		Summary:     out.Summary,
		Prospects:   out.Prospects,
		TotalTokens: out.Usage.Total(),
		TotalCost:   out.CostUSD,
	}
	if err := w.store.CompleteJob(ctx, jobID, result); err != nil {
		zap.L().Error("worker: complete transition failed",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return
	}

	w.metrics.JobFinished("complete")
	zap.L().Info("worker: job complete",
		zap.String("job_id", jobID),
		zap.Int("prospects", len(out.Prospects)),
		zap.Int("total_tokens", out.Usage.Total()),
	)
}

func (w *Pool) fail(ctx context.Context, jobID string, cause error) {
	if err := w.store.FailJob(ctx, jobID, cause.Error()); err != nil {
		zap.L().Error("worker: fail transition failed",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return
	}
	w.metrics.JobFinished("failed")
	zap.L().Warn("worker: job failed",
		zap.String("job_id", jobID),
		zap.Error(cause),
	)
}

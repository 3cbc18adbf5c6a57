package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quaero-ai/quaero/internal/domain"
)

const (
	// MaxRetries is the maximum number of delivery attempts per job
	MaxRetries = 3
	// DefaultRetryBaseDelay seeds the exponential backoff between attempts
	DefaultRetryBaseDelay = 30 * time.Second
)

// JobStore is the queue persistence the runner drives
type JobStore interface {
	ClaimPending(ctx context.Context, limit int) ([]*domain.Job, error)
	SetStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error
	ScheduleRetry(ctx context.Context, id string, runAfter time.Time, errMsg string) error
}

// Handler executes one job kind. Delivery is at-least-once, so Run must
// be idempotent. The failure hooks let the owning record (document,
// question, message) track the job's fate; either may be nil.
type Handler struct {
	Run         func(ctx context.Context, job *domain.Job) error
	OnRetry     func(ctx context.Context, targetID string, cause error)
	OnExhausted func(ctx context.Context, targetID string, cause error)
}

// Config controls the runner's claim batch and parallelism
type Config struct {
	BatchSize      int
	Concurrency    int
	MaxRetries     int32
	RetryBaseDelay time.Duration
}

// Runner claims pending jobs and dispatches them to kind handlers with
// bounded concurrency. Failed jobs are rescheduled with exponential
// backoff until the retry budget is exhausted.
type Runner struct {
	jobs     JobStore
	handlers map[domain.JobKind]Handler
	cfg      Config
	now      func() time.Time
}

func NewRunner(jobs JobStore, handlers map[domain.JobKind]Handler, cfg Config) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = MaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
	return &Runner{
		jobs:     jobs,
		handlers: handlers,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ProcessJobs implements the JobProcessor interface
func (r *Runner) ProcessJobs(ctx context.Context) error {
	jobs, err := r.jobs.ClaimPending(ctx, r.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d claimed jobs", len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			if err := r.processJob(gctx, job); err != nil {
				log.Printf("Error processing job %s (%s): %v", job.ID, job.Kind, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) processJob(ctx context.Context, job *domain.Job) error {
	handler, ok := r.handlers[job.Kind]
	if !ok {
		errMsg := fmt.Sprintf("no handler for job kind %q", job.Kind)
		if err := r.jobs.SetStatus(ctx, job.ID, domain.JobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to fail unroutable job: %w", err)
		}
		return nil
	}

	log.Printf("Processing job %s (%s) for target %s", job.ID, job.Kind, job.TargetID)

	if err := handler.Run(ctx, job); err != nil {
		return r.handleJobFailure(ctx, job, handler, err)
	}

	if err := r.jobs.SetStatus(ctx, job.ID, domain.JobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed successfully", job.ID)
	return nil
}

// handleJobFailure reschedules the job with backoff, or marks it failed
// once the retry budget is spent
func (r *Runner) handleJobFailure(ctx context.Context, job *domain.Job, handler Handler, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if job.Retries+1 >= r.cfg.MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, r.cfg.MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := r.jobs.SetStatus(ctx, job.ID, domain.JobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		if handler.OnExhausted != nil {
			handler.OnExhausted(ctx, job.TargetID, jobErr)
		}
		return nil
	}

	// base delay doubling per completed attempt
	delay := r.cfg.RetryBaseDelay << uint(job.Retries)
	runAfter := r.now().Add(delay)

	log.Printf("Job %s will be retried in %v (attempt %d/%d)", job.ID, delay, job.Retries+1, r.cfg.MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := r.jobs.ScheduleRetry(ctx, job.ID, runAfter, errMsg); err != nil {
		return fmt.Errorf("failed to schedule job retry: %w", err)
	}
	if handler.OnRetry != nil {
		handler.OnRetry(ctx, job.TargetID, jobErr)
	}
	return nil
}

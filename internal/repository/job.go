package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quaero-ai/quaero/internal/domain"
)

type JobRepository struct {
	db dbtx
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: pool}
}

func NewJobRepositoryWithTx(tx pgx.Tx) *JobRepository {
	return &JobRepository{db: tx}
}

const jobColumns = `id, kind, target_id, status, retries, error, run_after, created_at, processed_at`

func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.Kind, job.TargetID, job.Status, job.Retries,
		nullableString(job.Error), job.RunAfter, job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// ClaimPending atomically claims up to limit runnable jobs. Competing
// workers skip each other's rows, and jobs whose backoff window has not
// elapsed stay untouched.
func (r *JobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM jobs
			 WHERE status = $1 AND run_after <= $2
			 ORDER BY run_after ASC, created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $3
		 )
		 UPDATE jobs
		 SET status = $4,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE jobs.id = cte.id
		 RETURNING jobs.id, jobs.kind, jobs.target_id, jobs.status, jobs.retries,
		           jobs.error, jobs.run_after, jobs.created_at, jobs.processed_at`,
		domain.JobStatusPending, time.Now().UTC(), limit, domain.JobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// SetStatus finalizes a claimed job. Completed and failed jobs get a
// processed_at stamp.
func (r *JobRepository) SetStatus(ctx context.Context, id string, status domain.JobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.JobStatusCompleted || status == domain.JobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// ScheduleRetry returns a claimed job to pending with a future run_after,
// counting the failed attempt
func (r *JobRepository) ScheduleRetry(ctx context.Context, id string, runAfter time.Time, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE jobs
		 SET status = $1, retries = retries + 1, error = $2, run_after = $3
		 WHERE id = $4`,
		domain.JobStatusPending, nullableString(errMsg), runAfter, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// HasActive reports whether a pending or processing job already exists
// for the kind/target pair. Enqueueing checks this so each document has
// at most one ingestion in flight.
func (r *JobRepository) HasActive(ctx context.Context, kind domain.JobKind, targetID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			 SELECT 1 FROM jobs
			 WHERE kind = $1 AND target_id = $2 AND status IN ($3, $4)
		 )`,
		kind, targetID, domain.JobStatusPending, domain.JobStatusProcessing,
	).Scan(&exists)
	return exists, err
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var errMsg pgtype.Text
	err := row.Scan(&job.ID, &job.Kind, &job.TargetID, &job.Status, &job.Retries,
		&errMsg, &job.RunAfter, &job.CreatedAt, &job.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}

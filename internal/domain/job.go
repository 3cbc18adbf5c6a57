package domain

import (
	"fmt"
	"time"
)

// JobKind identifies the handler a queued job is dispatched to
type JobKind string

const (
	JobKindDocumentIngest JobKind = "document_ingest"
	JobKindDocumentDelete JobKind = "document_delete"
	JobKindQuestionIngest JobKind = "question_ingest"
	JobKindQuestionDelete JobKind = "question_delete"
	JobKindAnswer         JobKind = "answer"
)

// JobStatus represents the status of a queued job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job represents one unit of asynchronous work keyed by kind and target.
// Delivery is at-least-once; handlers must be idempotent.
type Job struct {
	ID          string
	Kind        JobKind
	TargetID    string // document, question, or message identity
	Status      JobStatus
	Retries     int32
	Error       string
	RunAfter    time.Time // not claimable before this instant
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewJob creates a new Job in the pending state, runnable immediately
func NewJob(id string, kind JobKind, targetID string, createdAt time.Time) *Job {
	return &Job{
		ID:        id,
		Kind:      kind,
		TargetID:  targetID,
		Status:    JobStatusPending,
		RunAfter:  createdAt,
		CreatedAt: createdAt,
	}
}

// ValidateJob validates a Job instance
func ValidateJob(j *Job) error {
	if j == nil {
		return fmt.Errorf("job cannot be nil")
	}

	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	if j.TargetID == "" {
		return fmt.Errorf("job TargetID is required")
	}

	if !isValidJobKind(j.Kind) {
		return fmt.Errorf("job Kind is invalid: %s", j.Kind)
	}

	if !isValidJobStatus(j.Status) {
		return fmt.Errorf("job Status is invalid: %s", j.Status)
	}

	if j.Retries < 0 {
		return fmt.Errorf("job Retries cannot be negative")
	}

	return nil
}

// isValidJobKind checks if a JobKind is valid
func isValidJobKind(k JobKind) bool {
	switch k {
	case JobKindDocumentIngest, JobKindDocumentDelete,
		JobKindQuestionIngest, JobKindQuestionDelete, JobKindAnswer:
		return true
	}
	return false
}

// isValidJobStatus checks if a JobStatus is valid
func isValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

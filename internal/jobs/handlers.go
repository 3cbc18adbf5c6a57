package jobs

import (
	"context"

	"github.com/quaero-ai/quaero/internal/domain"
)

// DocumentPipeline is the ingestion surface the document handlers drive
type DocumentPipeline interface {
	IngestDocument(ctx context.Context, documentID string) error
	DeleteDocument(ctx context.Context, documentID string) error
	OnTransientFailure(ctx context.Context, documentID string, cause error)
	OnPermanentFailure(ctx context.Context, documentID string, cause error)
}

// QuestionIndexer is the question ingestion surface the handlers drive
type QuestionIndexer interface {
	IngestQuestion(ctx context.Context, questionID string) error
	DeleteQuestion(ctx context.Context, questionID string) error
	OnPermanentFailure(ctx context.Context, questionID string, cause error)
}

// Answerer produces the answer for a pending assistant message
type Answerer interface {
	AnswerMessage(ctx context.Context, messageID string) error
	OnPermanentFailure(ctx context.Context, messageID string, cause error)
}

// NewHandlerSet wires every job kind to its processing component
func NewHandlerSet(pipeline DocumentPipeline, questions QuestionIndexer, answerer Answerer) map[domain.JobKind]Handler {
	return map[domain.JobKind]Handler{
		domain.JobKindDocumentIngest: {
			Run: func(ctx context.Context, job *domain.Job) error {
				return pipeline.IngestDocument(ctx, job.TargetID)
			},
			OnRetry:     pipeline.OnTransientFailure,
			OnExhausted: pipeline.OnPermanentFailure,
		},
		domain.JobKindDocumentDelete: {
			Run: func(ctx context.Context, job *domain.Job) error {
				return pipeline.DeleteDocument(ctx, job.TargetID)
			},
		},
		domain.JobKindQuestionIngest: {
			Run: func(ctx context.Context, job *domain.Job) error {
				return questions.IngestQuestion(ctx, job.TargetID)
			},
			OnExhausted: questions.OnPermanentFailure,
		},
		domain.JobKindQuestionDelete: {
			Run: func(ctx context.Context, job *domain.Job) error {
				return questions.DeleteQuestion(ctx, job.TargetID)
			},
		},
		domain.JobKindAnswer: {
			Run: func(ctx context.Context, job *domain.Job) error {
				return answerer.AnswerMessage(ctx, job.TargetID)
			},
			OnExhausted: answerer.OnPermanentFailure,
		},
	}
}

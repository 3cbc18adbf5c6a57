package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/vectorstore"
)

// QuestionStore is the question persistence the indexer drives
type QuestionStore interface {
	GetByID(ctx context.Context, id string) (*domain.Question, error)
	SetStatus(ctx context.Context, id string, status domain.QuestionStatus, errMsg string) error
	Delete(ctx context.Context, id string) error
}

// QuestionIndexer embeds curated questions into the question namespace
// so incoming queries can be matched against them directly.
type QuestionIndexer struct {
	questions QuestionStore
	vectors   vectorstore.Store
	embedder  Embedder
}

func NewQuestionIndexer(questions QuestionStore, vectors vectorstore.Store, embedder Embedder) *QuestionIndexer {
	return &QuestionIndexer{
		questions: questions,
		vectors:   vectors,
		embedder:  embedder,
	}
}

// IngestQuestion embeds one question's text and upserts it. Safe to
// redeliver: a completed question short-circuits, and the upsert
// replaces any previous vector for the same identity.
func (x *QuestionIndexer) IngestQuestion(ctx context.Context, questionID string) error {
	q, err := x.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, domain.ErrQuestionNotFound) {
			log.Printf("ingest: question %s no longer exists, skipping", questionID)
			return nil
		}
		return err
	}

	if q.Status == domain.QuestionStatusCompleted {
		return nil
	}

	embedding, err := x.embedder.GenerateEmbedding(ctx, q.Text)
	if err != nil {
		return fmt.Errorf("failed to embed question: %w", err)
	}

	record := vectorstore.Record{
		ID:              q.ID,
		KnowledgeBaseID: q.KnowledgeBaseID,
		QuestionID:      q.ID,
		Title:           q.Text,
		Content:         q.Answer,
		Embedding:       embedding,
	}
	if err := x.vectors.Upsert(ctx, vectorstore.NamespaceQuestions, []vectorstore.Record{record}); err != nil {
		return fmt.Errorf("failed to write question vector: %w", err)
	}

	if err := x.questions.SetStatus(ctx, questionID, domain.QuestionStatusCompleted, ""); err != nil {
		if errors.Is(err, domain.ErrQuestionNotFound) {
			// deleted while indexing; remove what was just written
			return x.vectors.DeleteByFilter(ctx, vectorstore.NamespaceQuestions,
				vectorstore.Filter{QuestionID: questionID})
		}
		return err
	}
	return nil
}

// OnPermanentFailure records the terminal error on the question
func (x *QuestionIndexer) OnPermanentFailure(ctx context.Context, questionID string, cause error) {
	if err := x.questions.SetStatus(ctx, questionID, domain.QuestionStatusFailed, cause.Error()); err != nil && !errors.Is(err, domain.ErrQuestionNotFound) {
		log.Printf("ingest: failed to mark question %s failed: %v", questionID, err)
	}
}

// DeleteQuestion removes a question's vector and then its record
func (x *QuestionIndexer) DeleteQuestion(ctx context.Context, questionID string) error {
	if err := x.vectors.DeleteByFilter(ctx, vectorstore.NamespaceQuestions,
		vectorstore.Filter{QuestionID: questionID}); err != nil {
		return fmt.Errorf("failed to delete question vector: %w", err)
	}
	if err := x.questions.Delete(ctx, questionID); err != nil && !errors.Is(err, domain.ErrQuestionNotFound) {
		return err
	}
	return nil
}

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockQuestionStore struct {
	mu        sync.Mutex
	questions map[string]*domain.Question
}

func newMockQuestionStore(questions ...*domain.Question) *mockQuestionStore {
	s := &mockQuestionStore{questions: make(map[string]*domain.Question)}
	for _, q := range questions {
		copied := *q
		s.questions[q.ID] = &copied
	}
	return s
}

func (s *mockQuestionStore) GetByID(ctx context.Context, id string) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	copied := *q
	return &copied, nil
}

func (s *mockQuestionStore) SetStatus(ctx context.Context, id string, status domain.QuestionStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	q.Status = status
	q.ErrorMessage = errMsg
	return nil
}

func (s *mockQuestionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(s.questions, id)
	return nil
}

func testQuestion() *domain.Question {
	return domain.NewQuestion(uuid.NewString(), uuid.NewString(),
		"What is the refund window?", "30 days.", domain.AnswerTypeDirect, time.Now().UTC())
}

func TestQuestionIndexer_IngestQuestion(t *testing.T) {
	ctx := context.Background()
	q := testQuestion()
	store := newMockQuestionStore(q)
	vectors := vectorstore.NewMemory()
	indexer := NewQuestionIndexer(store, vectors, &stubEmbedder{})

	require.NoError(t, indexer.IngestQuestion(ctx, q.ID))

	got, err := store.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QuestionStatusCompleted, got.Status)

	ids, err := vectors.ListIDs(ctx, vectorstore.NamespaceQuestions, vectorstore.Filter{QuestionID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{q.ID}, ids)
}

func TestQuestionIndexer_IngestQuestion_Idempotent(t *testing.T) {
	ctx := context.Background()
	q := testQuestion()
	q.Status = domain.QuestionStatusCompleted
	store := newMockQuestionStore(q)
	embedder := &stubEmbedder{}
	indexer := NewQuestionIndexer(store, vectorstore.NewMemory(), embedder)

	require.NoError(t, indexer.IngestQuestion(ctx, q.ID))
	assert.Zero(t, embedder.calls)
}

func TestQuestionIndexer_IngestQuestion_Missing(t *testing.T) {
	ctx := context.Background()
	indexer := NewQuestionIndexer(newMockQuestionStore(), vectorstore.NewMemory(), &stubEmbedder{})

	assert.NoError(t, indexer.IngestQuestion(ctx, uuid.NewString()))
}

func TestQuestionIndexer_IngestQuestion_EmbedFailure(t *testing.T) {
	ctx := context.Background()
	q := testQuestion()
	store := newMockQuestionStore(q)
	vectors := vectorstore.NewMemory()
	indexer := NewQuestionIndexer(store, vectors, &stubEmbedder{err: errors.New("rate limited")})

	require.Error(t, indexer.IngestQuestion(ctx, q.ID))

	got, err := store.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QuestionStatusPending, got.Status)

	ids, err := vectors.ListIDs(ctx, vectorstore.NamespaceQuestions, vectorstore.Filter{QuestionID: q.ID})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestQuestionIndexer_OnPermanentFailure(t *testing.T) {
	ctx := context.Background()
	q := testQuestion()
	store := newMockQuestionStore(q)
	indexer := NewQuestionIndexer(store, vectorstore.NewMemory(), &stubEmbedder{})

	indexer.OnPermanentFailure(ctx, q.ID, errors.New("max retries exceeded"))

	got, err := store.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QuestionStatusFailed, got.Status)
	assert.Equal(t, "max retries exceeded", got.ErrorMessage)
}

func TestQuestionIndexer_DeleteQuestion(t *testing.T) {
	ctx := context.Background()
	q := testQuestion()
	store := newMockQuestionStore(q)
	vectors := vectorstore.NewMemory()
	indexer := NewQuestionIndexer(store, vectors, &stubEmbedder{})

	require.NoError(t, indexer.IngestQuestion(ctx, q.ID))
	require.NoError(t, indexer.DeleteQuestion(ctx, q.ID))

	_, err := store.GetByID(ctx, q.ID)
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)

	ids, err := vectors.ListIDs(ctx, vectorstore.NamespaceQuestions, vectorstore.Filter{QuestionID: q.ID})
	require.NoError(t, err)
	assert.Empty(t, ids)

	// deleting again is a no-op
	assert.NoError(t, indexer.DeleteQuestion(ctx, q.ID))
}

package service

import (
	"context"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/openai"
	"github.com/quaero-ai/quaero/internal/tabular"
	"github.com/quaero-ai/quaero/internal/vectorstore"
	"github.com/stretchr/testify/mock"
)

// MockDocumentRepository is a mock implementation of DocumentRepositoryInterface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Document, error) {
	args := m.Called(ctx, knowledgeBaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ResetForResubmit(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockQuestionRepository is a mock implementation of QuestionRepositoryInterface
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) Create(ctx context.Context, q *domain.Question) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func (m *MockQuestionRepository) GetByID(ctx context.Context, id string) (*domain.Question, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Question), args.Error(1)
}

func (m *MockQuestionRepository) ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Question, error) {
	args := m.Called(ctx, knowledgeBaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Question), args.Error(1)
}

// MockKnowledgeBaseRepository is a mock implementation of KnowledgeBaseRepositoryInterface
type MockKnowledgeBaseRepository struct {
	mock.Mock
}

func (m *MockKnowledgeBaseRepository) Create(ctx context.Context, kb *domain.KnowledgeBase) error {
	args := m.Called(ctx, kb)
	return args.Error(0)
}

func (m *MockKnowledgeBaseRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeBase), args.Error(1)
}

func (m *MockKnowledgeBaseRepository) List(ctx context.Context) ([]*domain.KnowledgeBase, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeBase), args.Error(1)
}

func (m *MockKnowledgeBaseRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockJobRepository is a mock implementation of JobRepositoryInterface
type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Create(ctx context.Context, job *domain.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) HasActive(ctx context.Context, kind domain.JobKind, targetID string) (bool, error) {
	args := m.Called(ctx, kind, targetID)
	return args.Bool(0), args.Error(1)
}

// MockConversationRepository is a mock implementation of ConversationRepositoryInterface
type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Conversation, error) {
	args := m.Called(ctx, knowledgeBaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockMessageRepository is a mock implementation of MessageRepositoryInterface
// and MessageAnswerStore
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) SetCompleted(ctx context.Context, id, content string, sources []domain.Source, routing *domain.RoutingDecision) error {
	args := m.Called(ctx, id, content, sources, routing)
	return args.Error(0)
}

func (m *MockMessageRepository) SetFailed(ctx context.Context, id, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

// MockStorageClient is a mock implementation of StorageClientInterface
// and ObjectDeleter
type MockStorageClient struct {
	mock.Mock
}

func (m *MockStorageClient) PutObject(ctx context.Context, key, contentType string, content []byte) error {
	args := m.Called(ctx, key, contentType, content)
	return args.Error(0)
}

func (m *MockStorageClient) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockUUIDGenerator returns a fixed sequence of IDs
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		id := m.uuids[m.callCount]
		m.callCount++
		return id
	}
	return "default-uuid"
}

// testTxRepos hands the same mocks back as transaction-bound repositories
type testTxRepos struct {
	documents DocumentRepositoryInterface
	questions QuestionRepositoryInterface
	messages  MessageRepositoryInterface
	jobs      JobRepositoryInterface
}

func (t *testTxRepos) Documents() DocumentRepositoryInterface { return t.documents }
func (t *testTxRepos) Questions() QuestionRepositoryInterface { return t.questions }
func (t *testTxRepos) Messages() MessageRepositoryInterface   { return t.messages }
func (t *testTxRepos) Jobs() JobRepositoryInterface           { return t.jobs }

type testTxRunner struct {
	repos  TxRepositories
	called int
	err    error
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called++
	if t.err != nil {
		return t.err
	}
	return fn(t.repos)
}

// stubEmbedder returns a canned vector or error
type stubEmbedder struct {
	vector []float32
	err    error
	texts  []string
}

func (s *stubEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	s.texts = append(s.texts, text)
	if s.err != nil {
		return nil, s.err
	}
	if s.vector != nil {
		return s.vector, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// stubCompleter replays canned responses in call order
type stubCompleter struct {
	responses []string
	err       error
	calls     [][]openai.ChatMessage
}

func (s *stubCompleter) Complete(ctx context.Context, messages []openai.ChatMessage, opts openai.CompletionOptions) (string, error) {
	s.calls = append(s.calls, messages)
	if s.err != nil {
		return "", s.err
	}
	idx := len(s.calls) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	if idx < 0 {
		return "", nil
	}
	return s.responses[idx], nil
}

// stubVectorSearcher returns canned matches per namespace
type stubVectorSearcher struct {
	matches map[string][]vectorstore.Match
	err     error
	queries []string
}

func (s *stubVectorSearcher) Query(ctx context.Context, namespace string, vector []float32, topK int, filter vectorstore.Filter) ([]vectorstore.Match, error) {
	s.queries = append(s.queries, namespace)
	if s.err != nil {
		return nil, s.err
	}
	matches := s.matches[namespace]
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// stubTableQuerier serves canned schemas and rows
type stubTableQuerier struct {
	schemas  []tabular.TableSchema
	rows     []map[string]any
	queryErr error
	queries  []string
}

func (s *stubTableQuerier) Schemas(ctx context.Context) ([]tabular.TableSchema, error) {
	return s.schemas, nil
}

func (s *stubTableQuerier) Query(ctx context.Context, query string) ([]map[string]any, error) {
	s.queries = append(s.queries, query)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.rows, nil
}

package service

import (
	"context"
	"strings"
	"time"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/telemetry"
)

// ConversationRepositoryInterface defines the repository interface for conversation persistence
type ConversationRepositoryInterface interface {
	Create(ctx context.Context, c *domain.Conversation) error
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Conversation, error)
	Delete(ctx context.Context, id string) error
}

// MessageRepositoryInterface defines the repository interface for message persistence
type MessageRepositoryInterface interface {
	Create(ctx context.Context, m *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*domain.Message, error)
}

// ConversationService handles conversations and the ask flow. Asking
// stores the user message, a pending assistant message and the answer
// job in one transaction; the job worker fills in the answer.
type ConversationService struct {
	conversations  ConversationRepositoryInterface
	messages       MessageRepositoryInterface
	knowledgeBases KnowledgeBaseRepositoryInterface
	txRunner       TxRunner
	uuidGen        UUIDGenerator
}

// NewConversationService creates a new ConversationService instance
func NewConversationService(
	conversations ConversationRepositoryInterface,
	messages MessageRepositoryInterface,
	knowledgeBases KnowledgeBaseRepositoryInterface,
	txRunner TxRunner,
) *ConversationService {
	return &ConversationService{
		conversations:  conversations,
		messages:       messages,
		knowledgeBases: knowledgeBases,
		txRunner:       txRunner,
		uuidGen:        &DefaultUUIDGenerator{},
	}
}

// CreateConversationInput represents the input for creating a conversation
type CreateConversationInput struct {
	KnowledgeBaseID string
	Title           string
}

// Create creates a new conversation in a knowledge base
func (s *ConversationService) Create(ctx context.Context, input CreateConversationInput) (*domain.Conversation, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConversationService.Create", telemetry.SpanAttributes{
		KnowledgeBaseID: input.KnowledgeBaseID,
		Operation:       "create",
	})
	defer span.End()

	if _, err := s.knowledgeBases.GetByID(ctx, input.KnowledgeBaseID); err != nil {
		return nil, err
	}

	conv := &domain.Conversation{
		ID:              s.uuidGen.NewString(),
		KnowledgeBaseID: input.KnowledgeBaseID,
		Title:           strings.TrimSpace(input.Title),
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// AskInput represents the input for asking a question in a conversation
type AskInput struct {
	ConversationID string
	Query          string
	// ForceService optionally pins the answering path to "retrieval"
	// or "table" instead of letting the router decide
	ForceService string
}

// AskResult holds the stored messages of one ask. The assistant message
// starts pending and is completed asynchronously.
type AskResult struct {
	UserMessage      *domain.Message
	AssistantMessage *domain.Message
	JobID            string
}

// Ask records the user's query and queues the answer job. The user
// message, the pending assistant message and the job commit atomically,
// so a visible question always has an answer in flight.
func (s *ConversationService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConversationService.Ask", telemetry.SpanAttributes{
		ConversationID: input.ConversationID,
		Operation:      "ask",
	})
	defer span.End()

	conv, err := s.conversations.GetByID(ctx, input.ConversationID)
	if err != nil {
		return nil, err
	}

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	var routing *domain.RoutingDecision
	if input.ForceService != "" {
		service, valid := domain.NormalizeRouteService(domain.RouteService(strings.ToLower(input.ForceService)))
		if !valid || service == domain.RouteQuestions {
			return nil, domain.ErrInvalidForceService
		}
		// Stored on the pending message so the answer job sees the
		// caller's choice
		routing = &domain.RoutingDecision{
			Query:      query,
			Service:    service,
			Confidence: 1.0,
			Reasoning:  "service was explicitly forced by the caller",
			Fallback:   false,
		}
	}

	now := time.Now().UTC()
	userMsg := domain.NewUserMessage(s.uuidGen.NewString(), conv.ID, query, now)
	assistantMsg := domain.NewPendingAssistantMessage(s.uuidGen.NewString(), conv.ID, now.Add(time.Microsecond))
	assistantMsg.Routing = routing
	job := domain.NewJob(s.uuidGen.NewString(), domain.JobKindAnswer, assistantMsg.ID, now)

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Messages().Create(ctx, userMsg); err != nil {
			return err
		}
		if err := repos.Messages().Create(ctx, assistantMsg); err != nil {
			return err
		}
		return repos.Jobs().Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	return &AskResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		JobID:            job.ID,
	}, nil
}

// GetByID retrieves a conversation by ID
func (s *ConversationService) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	return s.conversations.GetByID(ctx, id)
}

// ListByKnowledgeBase retrieves all conversations in a knowledge base
func (s *ConversationService) ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Conversation, error) {
	if _, err := s.knowledgeBases.GetByID(ctx, knowledgeBaseID); err != nil {
		return nil, err
	}
	return s.conversations.ListByKnowledgeBase(ctx, knowledgeBaseID)
}

// ListMessages retrieves a conversation's messages in chronological order
func (s *ConversationService) ListMessages(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	if _, err := s.conversations.GetByID(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.messages.ListByConversation(ctx, conversationID)
}

// GetMessage retrieves a single message, for polling a pending answer
func (s *ConversationService) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	return s.messages.GetByID(ctx, id)
}

// Delete removes a conversation and its messages
func (s *ConversationService) Delete(ctx context.Context, id string) error {
	return s.conversations.Delete(ctx, id)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/telemetry"
	"github.com/quaero-ai/quaero/internal/vectorstore"
)

// MessageAnswerStore is the message persistence the answer flow drives
type MessageAnswerStore interface {
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*domain.Message, error)
	SetCompleted(ctx context.Context, id, content string, sources []domain.Source, routing *domain.RoutingDecision) error
	SetFailed(ctx context.Context, id, errMsg string) error
}

// ConversationFinder resolves the knowledge base a message belongs to
type ConversationFinder interface {
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
}

// Router decides the answering path for a query
type Router interface {
	Route(ctx context.Context, knowledgeBaseID, query string, force domain.RouteService) (*domain.RoutingDecision, *domain.Question, error)
}

// Retriever finds the chunks most relevant to a query
type Retriever interface {
	Retrieve(ctx context.Context, knowledgeBaseID, query string) ([]vectorstore.Match, error)
}

// TableAnswerer answers structured questions over ingested tables
type TableAnswerer interface {
	Answer(ctx context.Context, knowledgeBaseID, query string) (*TableAnswer, error)
	Execute(ctx context.Context, question, sqlQuery string) (*TableAnswer, error)
}

// AnswerSynthesizer produces a grounded answer from context items
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, query string, items []domain.Source) (string, []domain.Source, error)
}

// AnswerService completes pending assistant messages: it routes the
// user's query, executes the chosen path and stores the answer with its
// sources and routing decision. It runs inside the job worker, so every
// returned error is a retry.
type AnswerService struct {
	messages      MessageAnswerStore
	conversations ConversationFinder
	router        Router
	retrieval     Retriever
	tables        TableAnswerer
	synthesizer   AnswerSynthesizer
}

// NewAnswerService creates a new AnswerService instance
func NewAnswerService(
	messages MessageAnswerStore,
	conversations ConversationFinder,
	router Router,
	retrieval Retriever,
	tables TableAnswerer,
	synthesizer AnswerSynthesizer,
) *AnswerService {
	return &AnswerService{
		messages:      messages,
		conversations: conversations,
		router:        router,
		retrieval:     retrieval,
		tables:        tables,
		synthesizer:   synthesizer,
	}
}

// AnswerMessage answers the pending assistant message with the given
// ID. A message that no longer exists or is already answered is a
// no-op, which keeps redelivered jobs harmless.
func (s *AnswerService) AnswerMessage(ctx context.Context, messageID string) error {
	ctx, span := telemetry.StartSpan(ctx, "AnswerService.AnswerMessage", telemetry.SpanAttributes{
		Operation: "answer",
	})
	defer span.End()

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			log.Printf("answer: message %s no longer exists, skipping", messageID)
			return nil
		}
		return fmt.Errorf("failed to load message: %w", err)
	}
	if msg.Role != domain.MessageRoleAssistant || msg.Status != domain.MessageStatusPending {
		return nil
	}

	conv, err := s.conversations.GetByID(ctx, msg.ConversationID)
	if err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			log.Printf("answer: conversation %s no longer exists, skipping message %s", msg.ConversationID, messageID)
			return nil
		}
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	history, err := s.messages.ListByConversation(ctx, msg.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to list conversation messages: %w", err)
	}
	query := latestUserQuery(history, msg.ID)
	if query == "" {
		// Retrying cannot produce a user message that was never stored
		return s.failMessage(ctx, messageID, fmt.Errorf("no user message precedes assistant message %s", msg.ID))
	}

	// A routing decision stored at creation carries the caller's
	// forced service
	var force domain.RouteService
	if msg.Routing != nil {
		force = msg.Routing.Service
	}

	decision, question, err := s.router.Route(ctx, conv.KnowledgeBaseID, query, force)
	if err != nil {
		return s.failMessage(ctx, messageID, err)
	}

	answer, sources, err := s.dispatch(ctx, conv.KnowledgeBaseID, query, decision, question)
	if err != nil {
		return err
	}

	if err := s.messages.SetCompleted(ctx, messageID, answer, sources, decision); err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			log.Printf("answer: message %s deleted while answering, discarding answer", messageID)
			return nil
		}
		return fmt.Errorf("failed to store answer: %w", err)
	}
	return nil
}

// OnPermanentFailure marks the message as failed once the answer job
// has exhausted its retries. The user sees a clearly failed message,
// never a silently empty one.
func (s *AnswerService) OnPermanentFailure(ctx context.Context, messageID string, cause error) {
	errMsg := fmt.Sprintf("max retries exceeded: %v", cause)
	if err := s.messages.SetFailed(ctx, messageID, errMsg); err != nil && !errors.Is(err, domain.ErrMessageNotFound) {
		log.Printf("answer: failed to mark message %s as failed: %v", messageID, err)
	}
}

// dispatch executes the routed path and returns the answer plus the
// sources it is grounded in
func (s *AnswerService) dispatch(ctx context.Context, knowledgeBaseID, query string, decision *domain.RoutingDecision, question *domain.Question) (string, []domain.Source, error) {
	switch decision.Service {
	case domain.RouteQuestions:
		return s.answerFromQuestion(ctx, query, decision, question)

	case domain.RouteTable:
		ta, err := s.tables.Answer(ctx, knowledgeBaseID, query)
		if err != nil {
			if errors.Is(err, domain.ErrNoTablesAvailable) {
				// Fail-safe: no tables means the classifier guessed
				// wrong, answer from documents instead
				decision.Service = domain.RouteRetrieval
				decision.Fallback = true
				decision.Reasoning += "; no ingested tables available, falling back to retrieval"
				return s.answerFromRetrieval(ctx, knowledgeBaseID, query)
			}
			return "", nil, err
		}
		// every table that backed the query is a citable source
		sources := make([]domain.Source, 0, len(ta.Documents))
		for _, d := range ta.Documents {
			sources = append(sources, domain.Source{
				DocumentID: d.ID,
				Title:      d.Title,
				Content:    ta.SQL,
				Score:      1.0,
			})
		}
		return ta.Answer, sources, nil

	default:
		return s.answerFromRetrieval(ctx, knowledgeBaseID, query)
	}
}

func (s *AnswerService) answerFromQuestion(ctx context.Context, query string, decision *domain.RoutingDecision, question *domain.Question) (string, []domain.Source, error) {
	if question.AnswerType == domain.AnswerTypeStructuredQuery {
		ta, err := s.tables.Execute(ctx, query, question.Answer)
		if err != nil {
			return "", nil, err
		}
		sources := []domain.Source{{
			QuestionID: question.ID,
			Title:      question.Text,
			Content:    ta.SQL,
			Score:      decision.Confidence,
		}}
		return ta.Answer, sources, nil
	}

	// Direct questions return the canonical answer verbatim
	sources := []domain.Source{{
		QuestionID: question.ID,
		Title:      question.Text,
		Content:    question.Answer,
		Score:      decision.Confidence,
	}}
	return question.Answer, sources, nil
}

func (s *AnswerService) answerFromRetrieval(ctx context.Context, knowledgeBaseID, query string) (string, []domain.Source, error) {
	matches, err := s.retrieval.Retrieve(ctx, knowledgeBaseID, query)
	if err != nil {
		return "", nil, err
	}

	items := make([]domain.Source, 0, len(matches))
	for _, m := range matches {
		items = append(items, domain.Source{
			DocumentID: m.DocumentID,
			ChunkID:    m.ID,
			Title:      m.Title,
			Content:    m.Content,
			Score:      m.Score,
		})
	}

	return s.synthesizer.Synthesize(ctx, query, items)
}

// latestUserQuery returns the text of the latest user message preceding
// the assistant message being answered
func latestUserQuery(history []*domain.Message, assistantID string) string {
	var query string
	for _, m := range history {
		if m.ID == assistantID {
			break
		}
		if m.Role == domain.MessageRoleUser {
			query = m.Content
		}
	}
	return query
}

// failMessage records a non-retryable failure on the message itself
func (s *AnswerService) failMessage(ctx context.Context, messageID string, cause error) error {
	if err := s.messages.SetFailed(ctx, messageID, cause.Error()); err != nil && !errors.Is(err, domain.ErrMessageNotFound) {
		return fmt.Errorf("failed to mark message as failed: %w", err)
	}
	return nil
}

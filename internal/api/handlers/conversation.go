package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/quaero-ai/quaero/internal/api"
	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/service"
)

type ConversationService interface {
	Create(ctx context.Context, input service.CreateConversationInput) (*domain.Conversation, error)
	GetByID(ctx context.Context, id string) (*domain.Conversation, error)
	ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Conversation, error)
	Ask(ctx context.Context, input service.AskInput) (*service.AskResult, error)
	ListMessages(ctx context.Context, conversationID string) ([]*domain.Message, error)
	GetMessage(ctx context.Context, id string) (*domain.Message, error)
	Delete(ctx context.Context, id string) error
}

type ConversationHandler struct {
	svc ConversationService
}

func NewConversationHandler(svc ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type ConversationResponse struct {
	ID              string `json:"id"`
	KnowledgeBaseID string `json:"knowledge_base_id"`
	Title           string `json:"title,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func conversationToResponse(c *domain.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:              c.ID,
		KnowledgeBaseID: c.KnowledgeBaseID,
		Title:           c.Title,
		CreatedAt:       c.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

type AskRequest struct {
	Query string `json:"query"`
	// ForceService optionally pins the answering path to "retrieval"
	// or "table"
	ForceService string `json:"force_service,omitempty"`
}

type AskResponse struct {
	UserMessage      *MessageResponse `json:"user_message"`
	AssistantMessage *MessageResponse `json:"assistant_message"`
}

type MessageResponse struct {
	ID             string                  `json:"id"`
	ConversationID string                  `json:"conversation_id"`
	Role           string                  `json:"role"`
	Content        string                  `json:"content,omitempty"`
	Status         string                  `json:"status"`
	Sources        []domain.Source         `json:"sources,omitempty"`
	Routing        *domain.RoutingDecision `json:"routing,omitempty"`
	ErrorMessage   string                  `json:"error_message,omitempty"`
	CreatedAt      string                  `json:"created_at"`
}

func messageToResponse(m *domain.Message) *MessageResponse {
	return &MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           string(m.Role),
		Content:        m.Content,
		Status:         string(m.Status),
		Sources:        m.Sources,
		Routing:        m.Routing,
		ErrorMessage:   m.ErrorMessage,
		CreatedAt:      m.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	knowledgeBaseID := chi.URLParam(r, "id")
	if knowledgeBaseID == "" {
		api.Error(w, http.StatusBadRequest, "knowledge base id is required")
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.svc.Create(r.Context(), service.CreateConversationInput{
		KnowledgeBaseID: knowledgeBaseID,
		Title:           req.Title,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, conversationToResponse(conv))
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	conv, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, conversationToResponse(conv))
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	knowledgeBaseID := chi.URLParam(r, "id")
	if knowledgeBaseID == "" {
		api.Error(w, http.StatusBadRequest, "knowledge base id is required")
		return
	}

	convs, err := h.svc.ListByKnowledgeBase(r.Context(), knowledgeBaseID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ConversationResponse, len(convs))
	for i, c := range convs {
		responses[i] = conversationToResponse(c)
	}

	api.Success(w, http.StatusOK, responses)
}

// Ask stores the query and returns immediately; the assistant message
// comes back pending and is completed by the answer job. Clients poll
// the message endpoint for the result.
func (h *ConversationHandler) Ask(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if conversationID == "" {
		api.Error(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Ask(r.Context(), service.AskInput{
		ConversationID: conversationID,
		Query:          req.Query,
		ForceService:   req.ForceService,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, AskResponse{
		UserMessage:      messageToResponse(result.UserMessage),
		AssistantMessage: messageToResponse(result.AssistantMessage),
	})
}

func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if conversationID == "" {
		api.Error(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	messages, err := h.svc.ListMessages(r.Context(), conversationID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*MessageResponse, len(messages))
	for i, m := range messages {
		responses[i] = messageToResponse(m)
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *ConversationHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	msg, err := h.svc.GetMessage(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, messageToResponse(msg))
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/quaero-ai/quaero/internal/api"
	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/service"
)

type QuestionService interface {
	Create(ctx context.Context, input service.CreateQuestionInput) (*domain.Question, error)
	GetByID(ctx context.Context, id string) (*domain.Question, error)
	ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Question, error)
	ImportCSV(ctx context.Context, knowledgeBaseID string, content []byte) (*service.ImportResult, error)
	Delete(ctx context.Context, id string) error
}

type QuestionHandler struct {
	svc QuestionService
}

func NewQuestionHandler(svc QuestionService) *QuestionHandler {
	return &QuestionHandler{svc: svc}
}

type CreateQuestionRequest struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	AnswerType string `json:"answer_type"`
}

type QuestionResponse struct {
	ID              string `json:"id"`
	KnowledgeBaseID string `json:"knowledge_base_id"`
	Question        string `json:"question"`
	Answer          string `json:"answer"`
	AnswerType      string `json:"answer_type"`
	Status          string `json:"status"`
	ErrorMessage    string `json:"error_message,omitempty"`
	CreatedAt       string `json:"created_at"`
}

func questionToResponse(q *domain.Question) *QuestionResponse {
	return &QuestionResponse{
		ID:              q.ID,
		KnowledgeBaseID: q.KnowledgeBaseID,
		Question:        q.Text,
		Answer:          q.Answer,
		AnswerType:      string(q.AnswerType),
		Status:          string(q.Status),
		ErrorMessage:    q.ErrorMessage,
		CreatedAt:       q.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *QuestionHandler) Create(w http.ResponseWriter, r *http.Request) {
	knowledgeBaseID := chi.URLParam(r, "id")
	if knowledgeBaseID == "" {
		api.Error(w, http.StatusBadRequest, "knowledge base id is required")
		return
	}

	var req CreateQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}
	if req.Answer == "" {
		api.Error(w, http.StatusBadRequest, "answer is required")
		return
	}
	if req.AnswerType == "" {
		req.AnswerType = string(domain.AnswerTypeDirect)
	}

	question, err := h.svc.Create(r.Context(), service.CreateQuestionInput{
		KnowledgeBaseID: knowledgeBaseID,
		Text:            req.Question,
		Answer:          req.Answer,
		AnswerType:      req.AnswerType,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, questionToResponse(question))
}

// Import bulk-creates questions from an uploaded CSV with the header
// question,answer,answer_type
func (h *QuestionHandler) Import(w http.ResponseWriter, r *http.Request) {
	knowledgeBaseID := chi.URLParam(r, "id")
	if knowledgeBaseID == "" {
		api.Error(w, http.StatusBadRequest, "knowledge base id is required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	result, err := h.svc.ImportCSV(r.Context(), knowledgeBaseID, content)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}

func (h *QuestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	question, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, questionToResponse(question))
}

func (h *QuestionHandler) List(w http.ResponseWriter, r *http.Request) {
	knowledgeBaseID := chi.URLParam(r, "id")
	if knowledgeBaseID == "" {
		api.Error(w, http.StatusBadRequest, "knowledge base id is required")
		return
	}

	questions, err := h.svc.ListByKnowledgeBase(r.Context(), knowledgeBaseID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*QuestionResponse, len(questions))
	for i, q := range questions {
		responses[i] = questionToResponse(q)
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *QuestionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusAccepted, nil)
}

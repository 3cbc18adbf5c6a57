package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockKnowledgeBaseService struct {
	mock.Mock
}

func (m *MockKnowledgeBaseService) Create(ctx context.Context, input service.CreateKnowledgeBaseInput) (*domain.KnowledgeBase, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeBase), args.Error(1)
}

func (m *MockKnowledgeBaseService) GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeBase), args.Error(1)
}

func (m *MockKnowledgeBaseService) List(ctx context.Context) ([]*domain.KnowledgeBase, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeBase), args.Error(1)
}

func (m *MockKnowledgeBaseService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// withURLParam injects a chi URL parameter into the request context
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func newTestKnowledgeBase() *domain.KnowledgeBase {
	return &domain.KnowledgeBase{
		ID:          "kb-123",
		Name:        "Support",
		Description: "Customer support docs",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestKnowledgeBaseHandler_Create(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)

	mockSvc.On("Create", mock.Anything, service.CreateKnowledgeBaseInput{
		Name:        "Support",
		Description: "Customer support docs",
	}).Return(newTestKnowledgeBase(), nil)

	body, _ := json.Marshal(CreateKnowledgeBaseRequest{Name: "Support", Description: "Customer support docs"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge-bases", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data KnowledgeBaseResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "kb-123", resp.Data.ID)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeBaseHandler_Create_MissingName(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)

	body, _ := json.Marshal(CreateKnowledgeBaseRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge-bases", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestKnowledgeBaseHandler_Get(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)
	mockSvc.On("GetByID", mock.Anything, "kb-123").Return(newTestKnowledgeBase(), nil)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/knowledge-bases/kb-123", nil), "id", "kb-123")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestKnowledgeBaseHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)
	mockSvc.On("GetByID", mock.Anything, "kb-999").Return(nil, domain.ErrKnowledgeBaseNotFound)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/knowledge-bases/kb-999", nil), "id", "kb-999")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestKnowledgeBaseHandler_List(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)
	mockSvc.On("List", mock.Anything).Return([]*domain.KnowledgeBase{newTestKnowledgeBase()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/knowledge-bases", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []KnowledgeBaseResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Support", resp.Data[0].Name)
}

func TestKnowledgeBaseHandler_Delete(t *testing.T) {
	mockSvc := new(MockKnowledgeBaseService)
	handler := NewKnowledgeBaseHandler(mockSvc)
	mockSvc.On("Delete", mock.Anything, "kb-123").Return(nil)

	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/knowledge-bases/kb-123", nil), "id", "kb-123")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockSvc.AssertExpectations(t)
}

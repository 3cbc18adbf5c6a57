package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, input service.UploadInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Document, error) {
	args := m.Called(ctx, knowledgeBaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Resubmit(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestDocument() *domain.Document {
	now := time.Now().UTC()
	return &domain.Document{
		ID:              "doc-123",
		KnowledgeBaseID: "kb-123",
		Title:           "handbook.txt",
		MediaType:       domain.MediaTypeText,
		StorageKey:      "kb-123/doc-123",
		Status:          domain.DocumentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// multipartUpload builds a multipart body with one file part and
// optional form fields
func multipartUpload(t *testing.T, filename, contentType string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)

	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestDocumentHandler_Upload(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, 1<<20)

	mockSvc.On("Upload", mock.Anything, mock.MatchedBy(func(input service.UploadInput) bool {
		return input.KnowledgeBaseID == "kb-123" &&
			input.Title == "Employee handbook" &&
			input.MediaType == domain.MediaTypeText &&
			string(input.Content) == "handbook text"
	})).Return(newTestDocument(), nil)

	body, contentType := multipartUpload(t, "handbook.txt", "text/plain", []byte("handbook text"),
		map[string]string{"title": "Employee handbook"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge-bases/kb-123/documents", body)
	req.Header.Set("Content-Type", contentType)
	req = withURLParam(req, "id", "kb-123")
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp struct {
		Data DocumentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "doc-123", resp.Data.ID)
	assert.Equal(t, string(domain.DocumentStatusPending), resp.Data.Status)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Upload_TitleDefaultsToFilename(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, 1<<20)

	mockSvc.On("Upload", mock.Anything, mock.MatchedBy(func(input service.UploadInput) bool {
		return input.Title == "sales.csv" && input.MediaType == domain.MediaTypeCSV
	})).Return(newTestDocument(), nil)

	body, contentType := multipartUpload(t, "sales.csv", "text/csv", []byte("a,b\n1,2\n"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge-bases/kb-123/documents", body)
	req.Header.Set("Content-Type", contentType)
	req = withURLParam(req, "id", "kb-123")
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Upload_MissingFile(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, 1<<20)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("title", "no file"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge-bases/kb-123/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req = withURLParam(req, "id", "kb-123")
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestDocumentHandler_Upload_TooLarge(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, 1<<20)
	mockSvc.On("Upload", mock.Anything, mock.Anything).Return(nil, domain.ErrDocumentTooLarge)

	body, contentType := multipartUpload(t, "big.txt", "text/plain", []byte("content"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/knowledge-bases/kb-123/documents", body)
	req.Header.Set("Content-Type", contentType)
	req = withURLParam(req, "id", "kb-123")
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestDocumentHandler_Resubmit(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, 1<<20)
	mockSvc.On("Resubmit", mock.Anything, "doc-123").Return(newTestDocument(), nil)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc-123/resubmit", nil), "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Resubmit(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Resubmit_NotFailed(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, 1<<20)
	mockSvc.On("Resubmit", mock.Anything, "doc-123").Return(nil, domain.ErrDocumentNotFailed)

	req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc-123/resubmit", nil), "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Resubmit(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDocumentHandler_Delete(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc, 1<<20)
	mockSvc.On("Delete", mock.Anything, "doc-123").Return(nil)

	req := withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/documents/doc-123", nil), "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDetectMediaType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		filename    string
		expected    domain.MediaType
	}{
		{"content type wins", "application/pdf", "report.txt", domain.MediaTypePDF},
		{"content type with parameters", "text/csv; charset=utf-8", "data.bin", domain.MediaTypeCSV},
		{"octet-stream falls back to extension", "application/octet-stream", "notes.md", domain.MediaTypeMarkdown},
		{"extension only", "", "page.html", domain.MediaTypeHTML},
		{"docx extension", "", "contract.DOCX", domain.MediaTypeDOCX},
		{"unknown defaults to text", "", "mystery.xyz", domain.MediaTypeText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, detectMediaType(tt.contentType, tt.filename))
		})
	}
}

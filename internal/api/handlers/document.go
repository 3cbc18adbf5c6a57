package handlers

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/quaero-ai/quaero/internal/api"
	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/service"
)

type DocumentService interface {
	Upload(ctx context.Context, input service.UploadInput) (*domain.Document, error)
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Document, error)
	Resubmit(ctx context.Context, id string) (*domain.Document, error)
	Delete(ctx context.Context, id string) error
}

type DocumentHandler struct {
	svc            DocumentService
	maxUploadBytes int64
}

func NewDocumentHandler(svc DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

type DocumentResponse struct {
	ID              string `json:"id"`
	KnowledgeBaseID string `json:"knowledge_base_id"`
	Title           string `json:"title"`
	MediaType       string `json:"media_type"`
	Status          string `json:"status"`
	Summary         string `json:"summary,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	Retries         int32  `json:"retries"`
	ChunkCount      int    `json:"chunk_count"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:              d.ID,
		KnowledgeBaseID: d.KnowledgeBaseID,
		Title:           d.Title,
		MediaType:       string(d.MediaType),
		Status:          string(d.Status),
		Summary:         d.Summary,
		ErrorMessage:    d.ErrorMessage,
		Retries:         d.Retries,
		ChunkCount:      d.ChunkCount,
		CreatedAt:       d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:       d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// Upload accepts multipart/form-data with a "file" part and an optional
// "title" field. The media type comes from the part header, falling
// back to the filename extension.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	knowledgeBaseID := chi.URLParam(r, "id")
	if knowledgeBaseID == "" {
		api.Error(w, http.StatusBadRequest, "knowledge base id is required")
		return
	}

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
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

	title := r.FormValue("title")
	if title == "" {
		title = header.Filename
	}

	mediaType := detectMediaType(header.Header.Get("Content-Type"), header.Filename)

	doc, err := h.svc.Upload(r.Context(), service.UploadInput{
		KnowledgeBaseID: knowledgeBaseID,
		Title:           title,
		MediaType:       mediaType,
		Content:         content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	knowledgeBaseID := chi.URLParam(r, "id")
	if knowledgeBaseID == "" {
		api.Error(w, http.StatusBadRequest, "knowledge base id is required")
		return
	}

	docs, err := h.svc.ListByKnowledgeBase(r.Context(), knowledgeBaseID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(docs))
	for i, d := range docs {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *DocumentHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Resubmit(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

var extensionMediaTypes = map[string]domain.MediaType{
	".pdf":  domain.MediaTypePDF,
	".txt":  domain.MediaTypeText,
	".md":   domain.MediaTypeMarkdown,
	".html": domain.MediaTypeHTML,
	".htm":  domain.MediaTypeHTML,
	".csv":  domain.MediaTypeCSV,
	".docx": domain.MediaTypeDOCX,
}

// detectMediaType resolves the declared media type of an upload,
// preferring the part's Content-Type over the filename extension
func detectMediaType(contentType, filename string) domain.MediaType {
	if contentType != "" {
		if parsed, _, err := mime.ParseMediaType(contentType); err == nil &&
			parsed != "application/octet-stream" {
			return domain.MediaType(parsed)
		}
	}

	if mt, ok := extensionMediaTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mt
	}
	return domain.MediaTypeText
}

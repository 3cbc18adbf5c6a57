package domain

import (
	"fmt"
	"time"
)

// MediaType represents the declared media type of an uploaded document
type MediaType string

const (
	MediaTypePDF      MediaType = "application/pdf"
	MediaTypeText     MediaType = "text/plain"
	MediaTypeMarkdown MediaType = "text/markdown"
	MediaTypeHTML     MediaType = "text/html"
	MediaTypeCSV      MediaType = "text/csv"
	MediaTypeDOCX     MediaType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// DocumentStatus represents the ingestion status of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document represents an uploaded document in a knowledge base.
// Its status is driven exclusively by the ingestion pipeline.
type Document struct {
	ID              string
	KnowledgeBaseID string
	Title           string
	MediaType       MediaType
	StorageKey      string // object-storage key of the raw uploaded bytes
	Status          DocumentStatus
	Summary         string
	ErrorMessage    string
	Retries         int32
	ChunkCount      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewDocument creates a new Document in the pending state
func NewDocument(id, knowledgeBaseID, title string, mediaType MediaType, storageKey string, createdAt time.Time) *Document {
	return &Document{
		ID:              id,
		KnowledgeBaseID: knowledgeBaseID,
		Title:           title,
		MediaType:       mediaType,
		StorageKey:      storageKey,
		Status:          DocumentStatusPending,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

// IsStructured reports whether the document carries tabular data
func (d *Document) IsStructured() bool {
	return d.MediaType == MediaTypeCSV
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.KnowledgeBaseID == "" {
		return fmt.Errorf("document KnowledgeBaseID is required")
	}

	if d.Title == "" {
		return fmt.Errorf("document Title is required")
	}

	if !isValidMediaType(d.MediaType) {
		return fmt.Errorf("document MediaType is unsupported: %s", d.MediaType)
	}

	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	return nil
}

// isValidMediaType checks if a MediaType is supported
func isValidMediaType(t MediaType) bool {
	switch t {
	case MediaTypePDF, MediaTypeText, MediaTypeMarkdown, MediaTypeHTML,
		MediaTypeCSV, MediaTypeDOCX:
		return true
	}
	return false
}

// isValidDocumentStatus checks if a DocumentStatus is valid
func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing,
		DocumentStatusCompleted, DocumentStatusFailed:
		return true
	}
	return false
}

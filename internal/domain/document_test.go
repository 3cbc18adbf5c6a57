package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDocument(t *testing.T) {
	now := time.Now()
	doc := NewDocument("d1", "kb1", "handbook.pdf", MediaTypePDF, "kb1/d1/handbook.pdf", now)

	assert.Equal(t, "d1", doc.ID)
	assert.Equal(t, "kb1", doc.KnowledgeBaseID)
	assert.Equal(t, "handbook.pdf", doc.Title)
	assert.Equal(t, MediaTypePDF, doc.MediaType)
	assert.Equal(t, "kb1/d1/handbook.pdf", doc.StorageKey)
	assert.Equal(t, DocumentStatusPending, doc.Status)
	assert.Equal(t, int32(0), doc.Retries)
	assert.Equal(t, now, doc.CreatedAt)
	assert.Equal(t, now, doc.UpdatedAt)
}

func TestDocumentIsStructured(t *testing.T) {
	tests := []struct {
		name      string
		mediaType MediaType
		expected  bool
	}{
		{"csv is structured", MediaTypeCSV, true},
		{"pdf is not structured", MediaTypePDF, false},
		{"plain text is not structured", MediaTypeText, false},
		{"markdown is not structured", MediaTypeMarkdown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &Document{MediaType: tt.mediaType}
			assert.Equal(t, tt.expected, doc.IsStructured())
		})
	}
}

func TestValidateDocument(t *testing.T) {
	now := time.Now()

	valid := func() *Document {
		return NewDocument("d1", "kb1", "notes.md", MediaTypeMarkdown, "kb1/d1/notes.md", now)
	}

	tests := []struct {
		name    string
		mutate  func(*Document)
		wantErr string
	}{
		{
			name:   "valid document",
			mutate: func(d *Document) {},
		},
		{
			name:    "nil document",
			mutate:  nil,
			wantErr: "document cannot be nil",
		},
		{
			name:    "missing ID",
			mutate:  func(d *Document) { d.ID = "" },
			wantErr: "document ID is required",
		},
		{
			name:    "missing knowledge base",
			mutate:  func(d *Document) { d.KnowledgeBaseID = "" },
			wantErr: "document KnowledgeBaseID is required",
		},
		{
			name:    "missing title",
			mutate:  func(d *Document) { d.Title = "" },
			wantErr: "document Title is required",
		},
		{
			name:    "unsupported media type",
			mutate:  func(d *Document) { d.MediaType = "application/zip" },
			wantErr: "document MediaType is unsupported",
		},
		{
			name:    "invalid status",
			mutate:  func(d *Document) { d.Status = "archived" },
			wantErr: "document Status is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc *Document
			if tt.mutate != nil {
				doc = valid()
				tt.mutate(doc)
			}

			err := ValidateDocument(doc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

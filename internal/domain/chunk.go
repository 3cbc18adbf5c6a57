package domain

import "time"

// Chunk is a retrieval-sized unit of a document's extracted text.
// Chunks are immutable once written; re-ingesting a document replaces
// its chunk set wholesale.
type Chunk struct {
	ID              string
	DocumentID      string
	KnowledgeBaseID string
	Index           int
	Content         string
	SectionPath     []string // heading hierarchy for hierarchical chunking
	Page            int
	IsTable         bool
	CreatedAt       time.Time
}

package vectorstore

import "context"

// Namespaces used by the ingestion pipeline and the query router.
const (
	// NamespaceChunks holds embedded document chunks
	NamespaceChunks = "chunks"
	// NamespaceQuestions holds embedded stored questions
	NamespaceQuestions = "questions"
)

// Record is one embedded item tagged with its provenance
type Record struct {
	ID              string
	KnowledgeBaseID string
	DocumentID      string
	QuestionID      string
	ChunkIndex      int
	Title           string
	Content         string
	SectionPath     []string
	// Page is the source page for page-oriented formats, zero otherwise
	Page int
	// IsTable marks chunks cut from tabular content
	IsTable   bool
	Embedding []float32
}

// Match is a query hit with its similarity score in [0,1]
type Match struct {
	Record
	Score float64
}

// Filter restricts queries and deletions by provenance. Zero-value
// fields are ignored; KnowledgeBaseID is required for queries.
type Filter struct {
	KnowledgeBaseID string
	DocumentID      string
	QuestionID      string
}

// Store is the external vector index the pipeline writes to and the
// retriever reads from
type Store interface {
	// Upsert inserts or replaces records in a namespace
	Upsert(ctx context.Context, namespace string, records []Record) error

	// Query returns up to topK records most similar to the vector,
	// best first
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter Filter) ([]Match, error)

	// DeleteByFilter removes all records matching the filter
	DeleteByFilter(ctx context.Context, namespace string, filter Filter) error

	// ListIDs returns record identifiers matching the filter, in
	// chunk-index order
	ListIDs(ctx context.Context, namespace string, filter Filter) ([]string, error)
}

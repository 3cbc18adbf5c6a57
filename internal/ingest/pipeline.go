package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/quaero-ai/quaero/internal/chunker"
	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/extract"
	"github.com/quaero-ai/quaero/internal/openai"
	"github.com/quaero-ai/quaero/internal/tabular"
	"github.com/quaero-ai/quaero/internal/vectorstore"
)

const (
	// summaryInputLimit bounds how much extracted text feeds the
	// summary prompt
	summaryInputLimit = 6000
	// summaryMaxTokens bounds the generated summary
	summaryMaxTokens = 200
)

// DocumentStore is the document persistence the pipeline drives
type DocumentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ClaimForProcessing(ctx context.Context, id string) error
	SetCompleted(ctx context.Context, id, summary string, chunkCount int) error
	SetFailed(ctx context.Context, id, errMsg string) error
	ResetForRetry(ctx context.Context, id, errMsg string) error
	Delete(ctx context.Context, id string) error
}

// ObjectStore reads and removes raw uploaded bytes
type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
}

// Embedder turns text into a fixed-length vector
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Completer generates text from a prompt; used for document summaries
type Completer interface {
	Complete(ctx context.Context, messages []openai.ChatMessage, opts openai.CompletionOptions) (string, error)
}

// TableStore materializes tabular documents for the table query engine
type TableStore interface {
	CreateTable(ctx context.Context, name string, table *extract.Table) error
	DropTable(ctx context.Context, name string) error
}

// Config controls pipeline behavior
type Config struct {
	ChunkTargetTokens  int
	ChunkOverlapTokens int
	// EmbedConcurrency bounds parallel embedding calls per document
	EmbedConcurrency int
}

// Pipeline drives a document through extraction, chunking, embedding
// and index writing. Every stage is idempotent so redelivered jobs are
// safe.
type Pipeline struct {
	documents  DocumentStore
	objects    ObjectStore
	vectors    vectorstore.Store
	extractors *extract.Registry
	chunkers   *chunker.Registry
	embedder   Embedder
	completer  Completer
	tables     TableStore
	sizing     *chunker.Sizing
	cfg        Config
}

func NewPipeline(
	documents DocumentStore,
	objects ObjectStore,
	vectors vectorstore.Store,
	extractors *extract.Registry,
	chunkers *chunker.Registry,
	embedder Embedder,
	completer Completer,
	tables TableStore,
	cfg Config,
) *Pipeline {
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 4
	}
	return &Pipeline{
		documents:  documents,
		objects:    objects,
		vectors:    vectors,
		extractors: extractors,
		chunkers:   chunkers,
		embedder:   embedder,
		completer:  completer,
		tables:     tables,
		sizing: chunker.NewSizing(chunker.Config{
			TargetTokens:  cfg.ChunkTargetTokens,
			OverlapTokens: cfg.ChunkOverlapTokens,
		}),
		cfg: cfg,
	}
}

// IngestDocument runs the full ingestion for one document. A document
// deleted before or during ingestion is not an error: the pipeline
// aborts and cleans up whatever it wrote.
func (p *Pipeline) IngestDocument(ctx context.Context, documentID string) error {
	doc, err := p.documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			log.Printf("ingest: document %s no longer exists, skipping", documentID)
			return nil
		}
		return err
	}

	// redelivered job for finished work short-circuits
	if doc.Status == domain.DocumentStatusCompleted {
		log.Printf("ingest: document %s already completed, skipping", documentID)
		return nil
	}

	if err := p.documents.ClaimForProcessing(ctx, documentID); err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return nil
		}
		return err
	}

	content, err := p.objects.GetObject(ctx, doc.StorageKey)
	if err != nil {
		return fmt.Errorf("failed to read document content: %w", err)
	}

	result, err := p.extractors.Extract(ctx, doc.MediaType, content)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	chunks, err := p.chunkers.ForResult(result).Chunk(result, p.sizing.For(doc.MediaType))
	if err != nil {
		return fmt.Errorf("chunking failed: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("document produced no chunks")
	}

	records, err := p.embedChunks(ctx, doc, chunks)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	// a deletion while embeddings were in flight means nothing more may
	// be written
	if _, err := p.documents.GetByID(ctx, documentID); err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			log.Printf("ingest: document %s deleted mid-ingestion, aborting", documentID)
			return p.cleanupVectors(ctx, doc)
		}
		return err
	}

	// wholesale replace: stale chunks from a prior run never survive
	filter := vectorstore.Filter{DocumentID: doc.ID}
	if err := p.vectors.DeleteByFilter(ctx, vectorstore.NamespaceChunks, filter); err != nil {
		return fmt.Errorf("failed to clear existing chunks: %w", err)
	}
	if err := p.vectors.Upsert(ctx, vectorstore.NamespaceChunks, records); err != nil {
		return fmt.Errorf("failed to write chunk vectors: %w", err)
	}

	if doc.IsStructured() && result.Table != nil {
		if err := p.tables.CreateTable(ctx, tableName(doc), result.Table); err != nil {
			return fmt.Errorf("failed to materialize table: %w", err)
		}
	}

	summary := p.summarize(ctx, doc, result.Text)

	if err := p.documents.SetCompleted(ctx, documentID, summary, len(chunks)); err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			log.Printf("ingest: document %s deleted before completion, cleaning up", documentID)
			return p.cleanupVectors(ctx, doc)
		}
		return err
	}

	log.Printf("ingest: document %s completed with %d chunks", documentID, len(chunks))
	return nil
}

// OnTransientFailure returns the document to pending so the retried job
// can claim it again
func (p *Pipeline) OnTransientFailure(ctx context.Context, documentID string, cause error) {
	if err := p.documents.ResetForRetry(ctx, documentID, cause.Error()); err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		log.Printf("ingest: failed to reset document %s for retry: %v", documentID, err)
	}
}

// OnPermanentFailure records the terminal error on the document
func (p *Pipeline) OnPermanentFailure(ctx context.Context, documentID string, cause error) {
	if err := p.documents.SetFailed(ctx, documentID, cause.Error()); err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		log.Printf("ingest: failed to mark document %s failed: %v", documentID, err)
	}
}

// DeleteDocument removes every artifact of a document: chunk vectors
// first, then the materialized table, stored bytes, and finally the
// record itself, so a failed partial delete can always be retried.
func (p *Pipeline) DeleteDocument(ctx context.Context, documentID string) error {
	filter := vectorstore.Filter{DocumentID: documentID}
	if err := p.vectors.DeleteByFilter(ctx, vectorstore.NamespaceChunks, filter); err != nil {
		return fmt.Errorf("failed to delete chunk vectors: %w", err)
	}

	doc, err := p.documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return nil
		}
		return err
	}

	if doc.IsStructured() {
		if err := p.tables.DropTable(ctx, tableName(doc)); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}

	if err := p.objects.DeleteObject(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("failed to delete stored bytes: %w", err)
	}

	if err := p.documents.Delete(ctx, documentID); err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
		return err
	}

	log.Printf("ingest: document %s deleted", documentID)
	return nil
}

func (p *Pipeline) embedChunks(ctx context.Context, doc *domain.Document, chunks []chunker.Chunk) ([]vectorstore.Record, error) {
	records := make([]vectorstore.Record, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.EmbedConcurrency)
	for i, c := range chunks {
		g.Go(func() error {
			embedding, err := p.embedder.GenerateEmbedding(gctx, c.Content)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", c.Index, err)
			}
			records[i] = vectorstore.Record{
				ID:              fmt.Sprintf("%s:%d", doc.ID, c.Index),
				KnowledgeBaseID: doc.KnowledgeBaseID,
				DocumentID:      doc.ID,
				ChunkIndex:      c.Index,
				Title:           doc.Title,
				Content:         c.Content,
				SectionPath:     c.SectionPath,
				Page:            c.Page,
				IsTable:         c.IsTable,
				Embedding:       embedding,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// summarize asks the model for a short document summary. Summaries are
// a convenience, so failures degrade to an empty summary instead of
// failing the ingestion.
func (p *Pipeline) summarize(ctx context.Context, doc *domain.Document, text string) string {
	if p.completer == nil {
		return ""
	}

	input := truncateUTF8(text, summaryInputLimit)

	summary, err := p.completer.Complete(ctx, []openai.ChatMessage{
		{Role: "system", Content: "You summarize documents. Reply with a concise 2-3 sentence summary of the provided content. Do not add commentary."},
		{Role: "user", Content: fmt.Sprintf("Document title: %s\n\nContent:\n%s", doc.Title, input)},
	}, openai.CompletionOptions{MaxTokens: summaryMaxTokens})
	if err != nil {
		log.Printf("ingest: summary generation failed for document %s: %v", doc.ID, err)
		return ""
	}
	return strings.TrimSpace(summary)
}

func (p *Pipeline) cleanupVectors(ctx context.Context, doc *domain.Document) error {
	filter := vectorstore.Filter{DocumentID: doc.ID}
	if err := p.vectors.DeleteByFilter(ctx, vectorstore.NamespaceChunks, filter); err != nil {
		return fmt.Errorf("failed to clean up vectors for deleted document: %w", err)
	}
	return nil
}

// tableName derives the sqlite table identity for a structured document
func tableName(doc *domain.Document) string {
	return tabular.TableName(doc.ID)
}

// truncateUTF8 caps s at limit bytes, backing off to a rune boundary so
// the cut never leaves a broken multibyte sequence in a prompt
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

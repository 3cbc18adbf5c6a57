package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/tabular"
	"github.com/quaero-ai/quaero/internal/telemetry"
	"github.com/quaero-ai/quaero/internal/vectorstore"
)

// VectorDeleter removes indexed vectors by provenance
type VectorDeleter interface {
	DeleteByFilter(ctx context.Context, namespace string, filter vectorstore.Filter) error
}

// ObjectDeleter removes stored raw document bytes
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, key string) error
}

// TableDropper removes tables materialized from structured documents
type TableDropper interface {
	DropTable(ctx context.Context, name string) error
}

// KnowledgeBaseService handles knowledge base lifecycle. Deleting a
// knowledge base tears down everything derived from it: vectors,
// materialized tables and stored raw bytes, then the records.
type KnowledgeBaseService struct {
	knowledgeBases KnowledgeBaseRepositoryInterface
	documents      DocumentRepositoryInterface
	vectors        VectorDeleter
	storage        ObjectDeleter
	tables         TableDropper
	uuidGen        UUIDGenerator
}

// NewKnowledgeBaseService creates a new KnowledgeBaseService instance
func NewKnowledgeBaseService(
	knowledgeBases KnowledgeBaseRepositoryInterface,
	documents DocumentRepositoryInterface,
	vectors VectorDeleter,
	storage ObjectDeleter,
	tables TableDropper,
) *KnowledgeBaseService {
	return &KnowledgeBaseService{
		knowledgeBases: knowledgeBases,
		documents:      documents,
		vectors:        vectors,
		storage:        storage,
		tables:         tables,
		uuidGen:        &DefaultUUIDGenerator{},
	}
}

// CreateKnowledgeBaseInput represents the input for creating a knowledge base
type CreateKnowledgeBaseInput struct {
	Name        string
	Description string
}

// Create creates a new knowledge base
func (s *KnowledgeBaseService) Create(ctx context.Context, input CreateKnowledgeBaseInput) (*domain.KnowledgeBase, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Create", telemetry.SpanAttributes{
		Operation: "create",
	})
	defer span.End()

	kb := domain.NewKnowledgeBase(s.uuidGen.NewString(), strings.TrimSpace(input.Name),
		strings.TrimSpace(input.Description), time.Now().UTC())
	if err := domain.ValidateKnowledgeBase(kb); err != nil {
		return nil, err
	}

	if err := s.knowledgeBases.Create(ctx, kb); err != nil {
		return nil, err
	}
	return kb, nil
}

// GetByID retrieves a knowledge base by ID
func (s *KnowledgeBaseService) GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	return s.knowledgeBases.GetByID(ctx, id)
}

// List retrieves all knowledge bases
func (s *KnowledgeBaseService) List(ctx context.Context) ([]*domain.KnowledgeBase, error) {
	return s.knowledgeBases.List(ctx)
}

// Delete removes a knowledge base and everything derived from it.
// Derived state goes first so a partial failure can be retried without
// leaving orphaned vectors behind a deleted record.
func (s *KnowledgeBaseService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeBaseService.Delete", telemetry.SpanAttributes{
		KnowledgeBaseID: id,
		Operation:       "delete",
	})
	defer span.End()

	if _, err := s.knowledgeBases.GetByID(ctx, id); err != nil {
		return err
	}

	documents, err := s.documents.ListByKnowledgeBase(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	filter := vectorstore.Filter{KnowledgeBaseID: id}
	if err := s.vectors.DeleteByFilter(ctx, vectorstore.NamespaceChunks, filter); err != nil {
		return fmt.Errorf("failed to delete chunk vectors: %w", err)
	}
	if err := s.vectors.DeleteByFilter(ctx, vectorstore.NamespaceQuestions, filter); err != nil {
		return fmt.Errorf("failed to delete question vectors: %w", err)
	}

	for _, doc := range documents {
		if doc.IsStructured() {
			if err := s.tables.DropTable(ctx, tabular.TableName(doc.ID)); err != nil {
				return fmt.Errorf("failed to drop table for document %s: %w", doc.ID, err)
			}
		}
		if err := s.storage.DeleteObject(ctx, doc.StorageKey); err != nil {
			return fmt.Errorf("failed to delete stored content for document %s: %w", doc.ID, err)
		}
	}

	// Documents, questions, conversations and messages cascade
	return s.knowledgeBases.Delete(ctx, id)
}

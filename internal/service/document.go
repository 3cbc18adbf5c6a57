package service

import (
	"context"
	"fmt"
	"time"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Document, error)
	ResetForResubmit(ctx context.Context, id string) error
}

// JobRepositoryInterface defines the repository interface for job persistence
type JobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.Job) error
	HasActive(ctx context.Context, kind domain.JobKind, targetID string) (bool, error)
}

// KnowledgeBaseRepositoryInterface defines the repository interface for knowledge base persistence
type KnowledgeBaseRepositoryInterface interface {
	Create(ctx context.Context, kb *domain.KnowledgeBase) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error)
	List(ctx context.Context) ([]*domain.KnowledgeBase, error)
	Delete(ctx context.Context, id string) error
}

// StorageClientInterface defines the object storage interface for raw uploads
type StorageClientInterface interface {
	PutObject(ctx context.Context, key, contentType string, content []byte) error
}

// DocumentService handles document upload, re-submission and deletion.
// Ingestion itself happens asynchronously: the service stores the raw
// bytes, persists the record and queues a job.
type DocumentService struct {
	documents      DocumentRepositoryInterface
	knowledgeBases KnowledgeBaseRepositoryInterface
	jobs           JobRepositoryInterface
	storage        StorageClientInterface
	txRunner       TxRunner
	uuidGen        UUIDGenerator
	maxUploadBytes int64
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(
	documents DocumentRepositoryInterface,
	knowledgeBases KnowledgeBaseRepositoryInterface,
	jobs JobRepositoryInterface,
	storage StorageClientInterface,
	txRunner TxRunner,
	maxUploadBytes int64,
) *DocumentService {
	return &DocumentService{
		documents:      documents,
		knowledgeBases: knowledgeBases,
		jobs:           jobs,
		storage:        storage,
		txRunner:       txRunner,
		uuidGen:        &DefaultUUIDGenerator{},
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadInput represents the input for uploading a document
type UploadInput struct {
	KnowledgeBaseID string
	Title           string
	MediaType       domain.MediaType
	Content         []byte
}

// Upload stores the raw bytes, creates the document in the pending
// state and queues its ingestion job. The record and the job commit
// atomically so no document can exist without a job driving it.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Upload", telemetry.SpanAttributes{
		KnowledgeBaseID: input.KnowledgeBaseID,
		Operation:       "upload",
	})
	defer span.End()

	if _, err := s.knowledgeBases.GetByID(ctx, input.KnowledgeBaseID); err != nil {
		return nil, err
	}

	if s.maxUploadBytes > 0 && int64(len(input.Content)) > s.maxUploadBytes {
		return nil, domain.ErrDocumentTooLarge
	}
	if len(input.Content) == 0 {
		return nil, fmt.Errorf("%w: content", domain.ErrMissingRequiredField)
	}

	now := time.Now().UTC()
	docID := s.uuidGen.NewString()
	storageKey := fmt.Sprintf("%s/%s", input.KnowledgeBaseID, docID)

	doc := domain.NewDocument(docID, input.KnowledgeBaseID, input.Title, input.MediaType, storageKey, now)
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}

	if err := s.storage.PutObject(ctx, storageKey, string(input.MediaType), input.Content); err != nil {
		return nil, fmt.Errorf("failed to store document content: %w", err)
	}

	job := domain.NewJob(s.uuidGen.NewString(), domain.JobKindDocumentIngest, docID, now)
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		return repos.Jobs().Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// Resubmit resets a failed document to pending with zeroed retries and
// queues a fresh ingestion job. Only failed documents qualify.
func (s *DocumentService) Resubmit(ctx context.Context, id string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Resubmit", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "resubmit",
	})
	defer span.End()

	if err := s.documents.ResetForResubmit(ctx, id); err != nil {
		return nil, err
	}

	active, err := s.jobs.HasActive(ctx, domain.JobKindDocumentIngest, id)
	if err != nil {
		return nil, err
	}
	if !active {
		job := domain.NewJob(s.uuidGen.NewString(), domain.JobKindDocumentIngest, id, time.Now().UTC())
		if err := s.jobs.Create(ctx, job); err != nil {
			return nil, err
		}
	}

	return s.documents.GetByID(ctx, id)
}

// Delete queues asynchronous deletion of the document, its vectors, its
// table and its stored bytes. Queuing twice is a no-op.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	if _, err := s.documents.GetByID(ctx, id); err != nil {
		return err
	}

	active, err := s.jobs.HasActive(ctx, domain.JobKindDocumentDelete, id)
	if err != nil {
		return err
	}
	if active {
		return nil
	}

	job := domain.NewJob(s.uuidGen.NewString(), domain.JobKindDocumentDelete, id, time.Now().UTC())
	return s.jobs.Create(ctx, job)
}

// GetByID retrieves a document by ID
func (s *DocumentService) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return s.documents.GetByID(ctx, id)
}

// ListByKnowledgeBase retrieves all documents in a knowledge base
func (s *DocumentService) ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Document, error) {
	if _, err := s.knowledgeBases.GetByID(ctx, knowledgeBaseID); err != nil {
		return nil, err
	}
	return s.documents.ListByKnowledgeBase(ctx, knowledgeBaseID)
}

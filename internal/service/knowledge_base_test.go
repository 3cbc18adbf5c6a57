package service

import (
	"context"
	"errors"
	"testing"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubVectorDeleter struct {
	deleted []string // namespaces, in call order
	filters []vectorstore.Filter
	err     error
}

func (s *stubVectorDeleter) DeleteByFilter(ctx context.Context, namespace string, filter vectorstore.Filter) error {
	s.deleted = append(s.deleted, namespace)
	s.filters = append(s.filters, filter)
	return s.err
}

type stubTableDropper struct {
	dropped []string
	err     error
}

func (s *stubTableDropper) DropTable(ctx context.Context, name string) error {
	s.dropped = append(s.dropped, name)
	return s.err
}

type knowledgeBaseFixture struct {
	knowledgeBases *MockKnowledgeBaseRepository
	documents      *MockDocumentRepository
	vectors        *stubVectorDeleter
	storage        *MockStorageClient
	tables         *stubTableDropper
	svc            *KnowledgeBaseService
}

func newKnowledgeBaseFixture(uuids ...string) *knowledgeBaseFixture {
	f := &knowledgeBaseFixture{
		knowledgeBases: new(MockKnowledgeBaseRepository),
		documents:      new(MockDocumentRepository),
		vectors:        &stubVectorDeleter{},
		storage:        new(MockStorageClient),
		tables:         &stubTableDropper{},
	}
	f.svc = NewKnowledgeBaseService(f.knowledgeBases, f.documents, f.vectors, f.storage, f.tables)
	f.svc.uuidGen = NewMockUUIDGenerator(uuids...)
	return f
}

func TestKnowledgeBaseService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a knowledge base with trimmed fields", func(t *testing.T) {
		f := newKnowledgeBaseFixture("kb-1")
		f.knowledgeBases.On("Create", mock.Anything, mock.MatchedBy(func(kb *domain.KnowledgeBase) bool {
			return kb.ID == "kb-1" && kb.Name == "Support" && kb.Description == "Customer support docs"
		})).Return(nil)

		kb, err := f.svc.Create(ctx, CreateKnowledgeBaseInput{
			Name:        "  Support  ",
			Description: "  Customer support docs  ",
		})

		require.NoError(t, err)
		assert.Equal(t, "Support", kb.Name)
		f.knowledgeBases.AssertExpectations(t)
	})

	t.Run("rejects a missing name", func(t *testing.T) {
		f := newKnowledgeBaseFixture("kb-1")

		_, err := f.svc.Create(ctx, CreateKnowledgeBaseInput{Name: "   "})

		require.Error(t, err)
		f.knowledgeBases.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestKnowledgeBaseService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("tears down vectors, tables and stored bytes before the record", func(t *testing.T) {
		f := newKnowledgeBaseFixture()
		f.knowledgeBases.On("GetByID", mock.Anything, "kb-1").
			Return(&domain.KnowledgeBase{ID: "kb-1"}, nil)
		f.documents.On("ListByKnowledgeBase", mock.Anything, "kb-1").Return([]*domain.Document{
			{ID: "11111111-2222-3333-4444-555555555555", MediaType: domain.MediaTypeCSV, StorageKey: "kb-1/doc-csv"},
			{ID: "doc-text", MediaType: domain.MediaTypeText, StorageKey: "kb-1/doc-text"},
		}, nil)
		f.storage.On("DeleteObject", mock.Anything, "kb-1/doc-csv").Return(nil)
		f.storage.On("DeleteObject", mock.Anything, "kb-1/doc-text").Return(nil)
		f.knowledgeBases.On("Delete", mock.Anything, "kb-1").Return(nil)

		require.NoError(t, f.svc.Delete(ctx, "kb-1"))

		assert.Equal(t, []string{vectorstore.NamespaceChunks, vectorstore.NamespaceQuestions}, f.vectors.deleted)
		assert.Equal(t, vectorstore.Filter{KnowledgeBaseID: "kb-1"}, f.vectors.filters[0])
		// only the structured document owns a table
		assert.Equal(t, []string{"doc_11111111_2222_3333_4444_555555555555"}, f.tables.dropped)
		f.storage.AssertExpectations(t)
		f.knowledgeBases.AssertExpectations(t)
	})

	t.Run("vector deletion failure keeps the record", func(t *testing.T) {
		f := newKnowledgeBaseFixture()
		f.knowledgeBases.On("GetByID", mock.Anything, "kb-1").
			Return(&domain.KnowledgeBase{ID: "kb-1"}, nil)
		f.documents.On("ListByKnowledgeBase", mock.Anything, "kb-1").Return([]*domain.Document{}, nil)
		f.vectors.err = errors.New("index unavailable")

		err := f.svc.Delete(ctx, "kb-1")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to delete chunk vectors")
		f.knowledgeBases.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("missing knowledge base surfaces", func(t *testing.T) {
		f := newKnowledgeBaseFixture()
		f.knowledgeBases.On("GetByID", mock.Anything, "kb-gone").Return(nil, domain.ErrKnowledgeBaseNotFound)

		require.ErrorIs(t, f.svc.Delete(ctx, "kb-gone"), domain.ErrKnowledgeBaseNotFound)
	})
}

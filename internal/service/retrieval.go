package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/telemetry"
	"github.com/quaero-ai/quaero/internal/vectorstore"
)

const (
	defaultTopK             = 5
	defaultRerankCandidates = 20
)

// VectorSearcher is the read side of the vector store
type VectorSearcher interface {
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter vectorstore.Filter) ([]vectorstore.Match, error)
}

// RetrievalConfig tunes chunk retrieval
type RetrievalConfig struct {
	TopK                int
	SimilarityThreshold float64
	// RerankCandidates is how many chunks are fetched when a reranker
	// narrows them down to TopK
	RerankCandidates int
}

// RetrievalService finds the document chunks most similar to a query,
// optionally refined by a reranking pass
type RetrievalService struct {
	vectors  VectorSearcher
	embedder Embedder
	reranker *Reranker // nil disables reranking
	cfg      RetrievalConfig
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(vectors VectorSearcher, embedder Embedder, reranker *Reranker, cfg RetrievalConfig) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.RerankCandidates <= 0 {
		cfg.RerankCandidates = defaultRerankCandidates
	}
	if cfg.RerankCandidates < cfg.TopK {
		cfg.RerankCandidates = cfg.TopK
	}
	return &RetrievalService{
		vectors:  vectors,
		embedder: embedder,
		reranker: reranker,
		cfg:      cfg,
	}
}

// Retrieve returns the chunks most relevant to the query within one
// knowledge base, best first. Chunks scoring below the similarity
// threshold are excluded.
func (s *RetrievalService) Retrieve(ctx context.Context, knowledgeBaseID, query string) ([]vectorstore.Match, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		KnowledgeBaseID: knowledgeBaseID,
		Operation:       "retrieve",
	})
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidateK := s.cfg.TopK
	if s.reranker != nil {
		candidateK = s.cfg.RerankCandidates
	}

	matches, err := s.vectors.Query(ctx, vectorstore.NamespaceChunks, embedding, candidateK,
		vectorstore.Filter{KnowledgeBaseID: knowledgeBaseID})
	if err != nil {
		return nil, fmt.Errorf("failed to query vector store: %w", err)
	}

	kept := matches[:0]
	for _, m := range matches {
		if m.Score >= s.cfg.SimilarityThreshold {
			kept = append(kept, m)
		}
	}

	if s.reranker != nil {
		return s.reranker.Rerank(ctx, query, kept, s.cfg.TopK), nil
	}
	if len(kept) > s.cfg.TopK {
		kept = kept[:s.cfg.TopK]
	}
	return kept, nil
}

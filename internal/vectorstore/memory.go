package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process Store keeping records per namespace. It is
// used by tests and by local development without Postgres.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[string]Record // namespace -> id -> record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[string]Record)}
}

// Upsert inserts or replaces records in a namespace
func (m *Memory) Upsert(ctx context.Context, namespace string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.records[namespace]
	if !ok {
		ns = make(map[string]Record)
		m.records[namespace] = ns
	}
	for _, rec := range records {
		ns[rec.ID] = rec
	}
	return nil
}

// Query returns up to topK records most similar to the vector
func (m *Memory) Query(ctx context.Context, namespace string, vector []float32, topK int, filter Filter) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []Match
	for _, rec := range m.records[namespace] {
		if !matchesFilter(rec, filter) {
			continue
		}
		matches = append(matches, Match{Record: rec, Score: cosineSimilarity(vector, rec.Embedding)})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// DeleteByFilter removes all records matching the filter
func (m *Memory) DeleteByFilter(ctx context.Context, namespace string, filter Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, rec := range m.records[namespace] {
		if matchesFilter(rec, filter) {
			delete(m.records[namespace], id)
		}
	}
	return nil
}

// ListIDs returns record identifiers matching the filter
func (m *Memory) ListIDs(ctx context.Context, namespace string, filter Filter) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var recs []Record
	for _, rec := range m.records[namespace] {
		if matchesFilter(rec, filter) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ChunkIndex < recs[j].ChunkIndex })

	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	return ids, nil
}

func matchesFilter(rec Record, filter Filter) bool {
	if filter.KnowledgeBaseID != "" && rec.KnowledgeBaseID != filter.KnowledgeBaseID {
		return false
	}
	if filter.DocumentID != "" && rec.DocumentID != filter.DocumentID {
		return false
	}
	if filter.QuestionID != "" && rec.QuestionID != filter.QuestionID {
		return false
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgxStore implements Store on a pgvector-enabled Postgres
type PgxStore struct {
	pool *pgxpool.Pool
}

func NewPgxStore(pool *pgxpool.Pool) *PgxStore {
	return &PgxStore{pool: pool}
}

// Upsert inserts or replaces records in a namespace
func (s *PgxStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(
			`INSERT INTO vectors
				(namespace, id, knowledge_base_id, document_id, question_id, chunk_index, title, content, section_path, page, is_table, embedding)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 ON CONFLICT (namespace, id) DO UPDATE SET
				knowledge_base_id = EXCLUDED.knowledge_base_id,
				document_id = EXCLUDED.document_id,
				question_id = EXCLUDED.question_id,
				chunk_index = EXCLUDED.chunk_index,
				title = EXCLUDED.title,
				content = EXCLUDED.content,
				section_path = EXCLUDED.section_path,
				page = EXCLUDED.page,
				is_table = EXCLUDED.is_table,
				embedding = EXCLUDED.embedding`,
			namespace,
			rec.ID,
			rec.KnowledgeBaseID,
			nullableString(rec.DocumentID),
			nullableString(rec.QuestionID),
			rec.ChunkIndex,
			rec.Title,
			rec.Content,
			rec.SectionPath,
			rec.Page,
			rec.IsTable,
			pgvector.NewVector(rec.Embedding),
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert vector: %w", err)
		}
	}

	return nil
}

// Query returns up to topK records most similar to the vector
func (s *PgxStore) Query(ctx context.Context, namespace string, vector []float32, topK int, filter Filter) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}

	query := `
		SELECT id, knowledge_base_id, document_id, question_id, chunk_index, title, content, section_path, page, is_table,
		       1.0 - (embedding <=> $1) AS score
		FROM vectors
		WHERE namespace = $2`
	args := []interface{}{pgvector.NewVector(vector), namespace}

	query, args = appendFilter(query, args, filter)

	args = append(args, topK)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1 ASC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var documentID, questionID pgtype.Text
		if err := rows.Scan(&m.ID, &m.KnowledgeBaseID, &documentID, &questionID, &m.ChunkIndex,
			&m.Title, &m.Content, &m.SectionPath, &m.Page, &m.IsTable, &m.Score); err != nil {
			return nil, err
		}
		if documentID.Valid {
			m.DocumentID = documentID.String
		}
		if questionID.Valid {
			m.QuestionID = questionID.String
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

// DeleteByFilter removes all records matching the filter
func (s *PgxStore) DeleteByFilter(ctx context.Context, namespace string, filter Filter) error {
	query := `DELETE FROM vectors WHERE namespace = $1`
	args := []interface{}{namespace}
	query, args = appendFilter(query, args, filter)

	_, err := s.pool.Exec(ctx, query, args...)
	return err
}

// ListIDs returns record identifiers matching the filter
func (s *PgxStore) ListIDs(ctx context.Context, namespace string, filter Filter) ([]string, error) {
	query := `SELECT id FROM vectors WHERE namespace = $1`
	args := []interface{}{namespace}
	query, args = appendFilter(query, args, filter)
	query += " ORDER BY chunk_index ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func appendFilter(query string, args []interface{}, filter Filter) (string, []interface{}) {
	if filter.KnowledgeBaseID != "" {
		args = append(args, filter.KnowledgeBaseID)
		query += fmt.Sprintf(" AND knowledge_base_id = $%d", len(args))
	}
	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		query += fmt.Sprintf(" AND document_id = $%d", len(args))
	}
	if filter.QuestionID != "" {
		args = append(args, filter.QuestionID)
		query += fmt.Sprintf(" AND question_id = $%d", len(args))
	}
	return query, args
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

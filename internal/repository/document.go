package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quaero-ai/quaero/internal/domain"
)

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

const documentColumns = `id, knowledge_base_id, title, media_type, storage_key, status,
	summary, error_message, retries, chunk_count, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		d.ID, d.KnowledgeBaseID, d.Title, d.MediaType, d.StorageKey, d.Status,
		nullableString(d.Summary), nullableString(d.ErrorMessage), d.Retries, d.ChunkCount,
		d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (r *DocumentRepository) ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE knowledge_base_id = $1 ORDER BY created_at DESC`,
		knowledgeBaseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// ClaimForProcessing flips a pending document to processing. It returns
// ErrIngestionConflict when the document is in any other state, which is
// how redelivered jobs detect work that is already underway or done.
func (r *DocumentRepository) ClaimForProcessing(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $1, error_message = NULL, updated_at = $2
		 WHERE id = $3 AND status = $4`,
		domain.DocumentStatusProcessing, time.Now().UTC(), id, domain.DocumentStatusPending,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrIngestionConflict
	}
	return nil
}

// SetCompleted records a successful ingestion outcome
func (r *DocumentRepository) SetCompleted(ctx context.Context, id, summary string, chunkCount int) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $1, summary = $2, chunk_count = $3, error_message = NULL, updated_at = $4
		 WHERE id = $5`,
		domain.DocumentStatusCompleted, nullableString(summary), chunkCount, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// SetFailed records a terminal ingestion failure with its reason
func (r *DocumentRepository) SetFailed(ctx context.Context, id, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		domain.DocumentStatusFailed, nullableString(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// ResetForRetry returns a document to pending and counts the attempt,
// so the next delivery of its job can claim it again
func (r *DocumentRepository) ResetForRetry(ctx context.Context, id, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $1, error_message = $2, retries = retries + 1, updated_at = $3
		 WHERE id = $4`,
		domain.DocumentStatusPending, nullableString(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// ResetForResubmit clears a failed document back to pending. Only
// failed documents are eligible.
func (r *DocumentRepository) ResetForResubmit(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $1, error_message = NULL, retries = 0, updated_at = $2
		 WHERE id = $3 AND status = $4`,
		domain.DocumentStatusPending, time.Now().UTC(), id, domain.DocumentStatusFailed,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrDocumentNotFailed
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var summary, errMsg pgtype.Text
	err := row.Scan(&d.ID, &d.KnowledgeBaseID, &d.Title, &d.MediaType, &d.StorageKey, &d.Status,
		&summary, &errMsg, &d.Retries, &d.ChunkCount, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if summary.Valid {
		d.Summary = summary.String
	}
	if errMsg.Valid {
		d.ErrorMessage = errMsg.String
	}
	return &d, nil
}

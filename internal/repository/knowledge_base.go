package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quaero-ai/quaero/internal/domain"
)

type KnowledgeBaseRepository struct {
	db dbtx
}

func NewKnowledgeBaseRepository(pool *pgxpool.Pool) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: pool}
}

func NewKnowledgeBaseRepositoryWithTx(tx pgx.Tx) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: tx}
}

func (r *KnowledgeBaseRepository) Create(ctx context.Context, kb *domain.KnowledgeBase) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_bases (id, name, description, created_at)
		 VALUES ($1, $2, $3, $4)`,
		kb.ID, kb.Name, nullableString(kb.Description), kb.CreatedAt,
	)
	return err
}

func (r *KnowledgeBaseRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	var kb domain.KnowledgeBase
	var description pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, name, description, created_at FROM knowledge_bases WHERE id = $1`,
		id,
	).Scan(&kb.ID, &kb.Name, &description, &kb.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeBaseNotFound
		}
		return nil, err
	}
	if description.Valid {
		kb.Description = description.String
	}
	return &kb, nil
}

func (r *KnowledgeBaseRepository) List(ctx context.Context) ([]*domain.KnowledgeBase, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, description, created_at FROM knowledge_bases ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kbs []*domain.KnowledgeBase
	for rows.Next() {
		var kb domain.KnowledgeBase
		var description pgtype.Text
		if err := rows.Scan(&kb.ID, &kb.Name, &description, &kb.CreatedAt); err != nil {
			return nil, err
		}
		if description.Valid {
			kb.Description = description.String
		}
		kbs = append(kbs, &kb)
	}
	return kbs, rows.Err()
}

func (r *KnowledgeBaseRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM knowledge_bases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeBaseNotFound
	}
	return nil
}

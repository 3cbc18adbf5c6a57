package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quaero-ai/quaero/internal/domain"
)

type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func NewConversationRepositoryWithTx(tx pgx.Tx) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

func (r *ConversationRepository) Create(ctx context.Context, c *domain.Conversation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversations (id, knowledge_base_id, title, created_at)
		 VALUES ($1, $2, $3, $4)`,
		c.ID, c.KnowledgeBaseID, nullableString(c.Title), c.CreatedAt,
	)
	return err
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	var title pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, knowledge_base_id, title, created_at FROM conversations WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.KnowledgeBaseID, &title, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	if title.Valid {
		c.Title = title.String
	}
	return &c, nil
}

func (r *ConversationRepository) ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Conversation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, knowledge_base_id, title, created_at FROM conversations
		 WHERE knowledge_base_id = $1 ORDER BY created_at DESC`,
		knowledgeBaseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		var title pgtype.Text
		if err := rows.Scan(&c.ID, &c.KnowledgeBaseID, &title, &c.CreatedAt); err != nil {
			return nil, err
		}
		if title.Valid {
			c.Title = title.String
		}
		conversations = append(conversations, &c)
	}
	return conversations, rows.Err()
}

func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

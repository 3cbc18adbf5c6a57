package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quaero-ai/quaero/internal/domain"
)

type MessageRepository struct {
	db dbtx
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: pool}
}

func NewMessageRepositoryWithTx(tx pgx.Tx) *MessageRepository {
	return &MessageRepository{db: tx}
}

const messageColumns = `id, conversation_id, role, content, status, sources, routing,
	error_message, created_at, updated_at`

func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) error {
	sources, routing, err := marshalAnswerMeta(m)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO messages (`+messageColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, m.ConversationID, m.Role, m.Content, m.Status, sources, routing,
		nullableString(m.ErrorMessage), m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (r *MessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	return scanMessage(row)
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE conversation_id = $1 ORDER BY created_at ASC`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// SetCompleted fills in a pending assistant message with its answer,
// sources and the routing decision that produced it
func (r *MessageRepository) SetCompleted(ctx context.Context, id, content string, sources []domain.Source, routing *domain.RoutingDecision) error {
	m := &domain.Message{Sources: sources, Routing: routing}
	sourcesJSON, routingJSON, err := marshalAnswerMeta(m)
	if err != nil {
		return err
	}
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE messages
		 SET status = $1, content = $2, sources = $3, routing = $4, error_message = NULL, updated_at = $5
		 WHERE id = $6`,
		domain.MessageStatusCompleted, content, sourcesJSON, routingJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

// SetFailed marks a pending assistant message as failed with its reason
func (r *MessageRepository) SetFailed(ctx context.Context, id, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE messages SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		domain.MessageStatusFailed, nullableString(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func marshalAnswerMeta(m *domain.Message) ([]byte, []byte, error) {
	var sources, routing []byte
	var err error
	if len(m.Sources) > 0 {
		sources, err = json.Marshal(m.Sources)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal message sources: %w", err)
		}
	}
	if m.Routing != nil {
		routing, err = json.Marshal(m.Routing)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal routing decision: %w", err)
		}
	}
	return sources, routing, nil
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var m domain.Message
	var content, errMsg pgtype.Text
	var sources, routing []byte
	err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &content, &m.Status, &sources, &routing,
		&errMsg, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	if content.Valid {
		m.Content = content.String
	}
	if errMsg.Valid {
		m.ErrorMessage = errMsg.String
	}
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &m.Sources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message sources: %w", err)
		}
	}
	if len(routing) > 0 {
		if err := json.Unmarshal(routing, &m.Routing); err != nil {
			return nil, fmt.Errorf("failed to unmarshal routing decision: %w", err)
		}
	}
	return &m, nil
}

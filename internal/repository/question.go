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

type QuestionRepository struct {
	db dbtx
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{db: pool}
}

func NewQuestionRepositoryWithTx(tx pgx.Tx) *QuestionRepository {
	return &QuestionRepository{db: tx}
}

const questionColumns = `id, knowledge_base_id, text, answer, answer_type, status,
	error_message, retries, created_at, updated_at`

func (r *QuestionRepository) Create(ctx context.Context, q *domain.Question) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO questions (`+questionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		q.ID, q.KnowledgeBaseID, q.Text, q.Answer, q.AnswerType, q.Status,
		nullableString(q.ErrorMessage), q.Retries, q.CreatedAt, q.UpdatedAt,
	)
	return err
}

func (r *QuestionRepository) GetByID(ctx context.Context, id string) (*domain.Question, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	return scanQuestion(row)
}

func (r *QuestionRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Question, error) {
	if len(ids) == 0 {
		return []*domain.Question{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuestionRows(rows)
}

func (r *QuestionRepository) ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Question, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+questionColumns+` FROM questions
		 WHERE knowledge_base_id = $1 ORDER BY created_at DESC`,
		knowledgeBaseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQuestionRows(rows)
}

// SetStatus finalizes an indexing attempt; failed attempts keep their
// reason
func (r *QuestionRepository) SetStatus(ctx context.Context, id string, status domain.QuestionStatus, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE questions SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (r *QuestionRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE questions SET retries = retries + 1, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (r *QuestionRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func scanQuestion(row pgx.Row) (*domain.Question, error) {
	var q domain.Question
	var errMsg pgtype.Text
	err := row.Scan(&q.ID, &q.KnowledgeBaseID, &q.Text, &q.Answer, &q.AnswerType, &q.Status,
		&errMsg, &q.Retries, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrQuestionNotFound
		}
		return nil, err
	}
	if errMsg.Valid {
		q.ErrorMessage = errMsg.String
	}
	return &q, nil
}

func scanQuestionRows(rows pgx.Rows) ([]*domain.Question, error) {
	var questions []*domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

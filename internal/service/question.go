package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/telemetry"
)

// QuestionRepositoryInterface defines the repository interface for question persistence
type QuestionRepositoryInterface interface {
	Create(ctx context.Context, q *domain.Question) error
	GetByID(ctx context.Context, id string) (*domain.Question, error)
	ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Question, error)
}

// QuestionService handles curated question/answer pairs. Indexing runs
// asynchronously through the job queue, like document ingestion.
type QuestionService struct {
	questions      QuestionRepositoryInterface
	knowledgeBases KnowledgeBaseRepositoryInterface
	jobs           JobRepositoryInterface
	txRunner       TxRunner
	uuidGen        UUIDGenerator
}

// NewQuestionService creates a new QuestionService instance
func NewQuestionService(
	questions QuestionRepositoryInterface,
	knowledgeBases KnowledgeBaseRepositoryInterface,
	jobs JobRepositoryInterface,
	txRunner TxRunner,
) *QuestionService {
	return &QuestionService{
		questions:      questions,
		knowledgeBases: knowledgeBases,
		jobs:           jobs,
		txRunner:       txRunner,
		uuidGen:        &DefaultUUIDGenerator{},
	}
}

// CreateQuestionInput represents the input for creating a question
type CreateQuestionInput struct {
	KnowledgeBaseID string
	Text            string
	Answer          string
	AnswerType      string
}

// Create persists a question in the pending state and queues its
// indexing job
func (s *QuestionService) Create(ctx context.Context, input CreateQuestionInput) (*domain.Question, error) {
	ctx, span := telemetry.StartSpan(ctx, "QuestionService.Create", telemetry.SpanAttributes{
		KnowledgeBaseID: input.KnowledgeBaseID,
		Operation:       "create",
	})
	defer span.End()

	if _, err := s.knowledgeBases.GetByID(ctx, input.KnowledgeBaseID); err != nil {
		return nil, err
	}

	question, err := s.buildQuestion(input)
	if err != nil {
		return nil, err
	}

	job := domain.NewJob(s.uuidGen.NewString(), domain.JobKindQuestionIngest, question.ID, question.CreatedAt)
	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Questions().Create(ctx, question); err != nil {
			return err
		}
		return repos.Jobs().Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	return question, nil
}

// Delete queues asynchronous deletion of the question and its vector
func (s *QuestionService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "QuestionService.Delete", telemetry.SpanAttributes{
		Operation: "delete",
	})
	defer span.End()

	if _, err := s.questions.GetByID(ctx, id); err != nil {
		return err
	}

	active, err := s.jobs.HasActive(ctx, domain.JobKindQuestionDelete, id)
	if err != nil {
		return err
	}
	if active {
		return nil
	}

	job := domain.NewJob(s.uuidGen.NewString(), domain.JobKindQuestionDelete, id, time.Now().UTC())
	return s.jobs.Create(ctx, job)
}

// GetByID retrieves a question by ID
func (s *QuestionService) GetByID(ctx context.Context, id string) (*domain.Question, error) {
	return s.questions.GetByID(ctx, id)
}

// ListByKnowledgeBase retrieves all questions in a knowledge base
func (s *QuestionService) ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Question, error) {
	if _, err := s.knowledgeBases.GetByID(ctx, knowledgeBaseID); err != nil {
		return nil, err
	}
	return s.questions.ListByKnowledgeBase(ctx, knowledgeBaseID)
}

// ImportRowError describes why one CSV row was rejected
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarizes a bulk question import
type ImportResult struct {
	Success int              `json:"success"`
	Failed  int              `json:"failed"`
	Errors  []ImportRowError `json:"errors,omitempty"`
}

// ImportCSV bulk-creates questions from CSV content with the header
// question,answer,answer_type. Rows are validated independently: a bad
// row is reported with its row number and the rest still import.
func (s *QuestionService) ImportCSV(ctx context.Context, knowledgeBaseID string, content []byte) (*ImportResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "QuestionService.ImportCSV", telemetry.SpanAttributes{
		KnowledgeBaseID: knowledgeBaseID,
		Operation:       "import",
	})
	defer span.End()

	if _, err := s.knowledgeBases.GetByID(ctx, knowledgeBaseID); err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	questionCol, hasQuestion := columns["question"]
	answerCol, hasAnswer := columns["answer"]
	if !hasQuestion || !hasAnswer {
		return nil, fmt.Errorf("CSV header must contain question and answer columns")
	}
	typeCol, hasType := columns["answer_type"]

	result := &ImportResult{}
	row := 1
	for {
		row++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ImportRowError{Row: row, Message: err.Error()})
			continue
		}

		input := CreateQuestionInput{
			KnowledgeBaseID: knowledgeBaseID,
			Text:            field(record, questionCol),
			Answer:          field(record, answerCol),
			AnswerType:      string(domain.AnswerTypeDirect),
		}
		if hasType {
			if t := field(record, typeCol); t != "" {
				input.AnswerType = t
			}
		}

		if err := s.importRow(ctx, input); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ImportRowError{Row: row, Message: err.Error()})
			continue
		}
		result.Success++
	}

	return result, nil
}

func (s *QuestionService) importRow(ctx context.Context, input CreateQuestionInput) error {
	question, err := s.buildQuestion(input)
	if err != nil {
		return err
	}
	job := domain.NewJob(s.uuidGen.NewString(), domain.JobKindQuestionIngest, question.ID, question.CreatedAt)
	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Questions().Create(ctx, question); err != nil {
			return err
		}
		return repos.Jobs().Create(ctx, job)
	})
}

func (s *QuestionService) buildQuestion(input CreateQuestionInput) (*domain.Question, error) {
	answerType, err := domain.ParseAnswerType(strings.ToLower(strings.TrimSpace(input.AnswerType)))
	if err != nil {
		return nil, domain.ErrInvalidAnswerType
	}

	now := time.Now().UTC()
	question := domain.NewQuestion(s.uuidGen.NewString(), input.KnowledgeBaseID,
		strings.TrimSpace(input.Text), strings.TrimSpace(input.Answer), answerType, now)
	if err := domain.ValidateQuestion(question); err != nil {
		return nil, err
	}
	return question, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

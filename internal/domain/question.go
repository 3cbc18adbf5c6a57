package domain

import (
	"fmt"
	"time"
)

// AnswerType represents how a stored question is answered
type AnswerType string

const (
	// AnswerTypeDirect returns the canonical answer text verbatim
	AnswerTypeDirect AnswerType = "direct"
	// AnswerTypeStructuredQuery answers through the table query engine
	AnswerTypeStructuredQuery AnswerType = "structured_query"
)

// QuestionStatus represents the indexing status of a stored question
type QuestionStatus string

const (
	QuestionStatusPending   QuestionStatus = "pending"
	QuestionStatusCompleted QuestionStatus = "completed"
	QuestionStatusFailed    QuestionStatus = "failed"
)

// Question is a curated question/answer pair indexed for direct matching
type Question struct {
	ID              string
	KnowledgeBaseID string
	Text            string
	Answer          string
	AnswerType      AnswerType
	Status          QuestionStatus
	ErrorMessage    string
	Retries         int32
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewQuestion creates a new Question in the pending state
func NewQuestion(id, knowledgeBaseID, text, answer string, answerType AnswerType, createdAt time.Time) *Question {
	return &Question{
		ID:              id,
		KnowledgeBaseID: knowledgeBaseID,
		Text:            text,
		Answer:          answer,
		AnswerType:      answerType,
		Status:          QuestionStatusPending,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

// ValidateQuestion validates a Question instance
func ValidateQuestion(q *Question) error {
	if q == nil {
		return fmt.Errorf("question cannot be nil")
	}

	if q.ID == "" {
		return fmt.Errorf("question ID is required")
	}

	if q.KnowledgeBaseID == "" {
		return fmt.Errorf("question KnowledgeBaseID is required")
	}

	if q.Text == "" {
		return fmt.Errorf("question Text is required")
	}

	if q.Answer == "" {
		return fmt.Errorf("question Answer is required")
	}

	if !isValidAnswerType(q.AnswerType) {
		return fmt.Errorf("question AnswerType is invalid: %s", q.AnswerType)
	}

	return nil
}

// ParseAnswerType parses a string into an AnswerType
func ParseAnswerType(s string) (AnswerType, error) {
	switch AnswerType(s) {
	case AnswerTypeDirect:
		return AnswerTypeDirect, nil
	case AnswerTypeStructuredQuery:
		return AnswerTypeStructuredQuery, nil
	}
	return "", fmt.Errorf("invalid answer type: %q", s)
}

// isValidAnswerType checks if an AnswerType is valid
func isValidAnswerType(t AnswerType) bool {
	switch t {
	case AnswerTypeDirect, AnswerTypeStructuredQuery:
		return true
	}
	return false
}

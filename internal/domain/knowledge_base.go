package domain

import (
	"fmt"
	"time"
)

// KnowledgeBase is a named collection of documents and questions sharing
// one retrieval namespace
type KnowledgeBase struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// NewKnowledgeBase creates a new KnowledgeBase instance
func NewKnowledgeBase(id, name, description string, createdAt time.Time) *KnowledgeBase {
	return &KnowledgeBase{
		ID:          id,
		Name:        name,
		Description: description,
		CreatedAt:   createdAt,
	}
}

// ValidateKnowledgeBase validates a KnowledgeBase instance
func ValidateKnowledgeBase(kb *KnowledgeBase) error {
	if kb == nil {
		return fmt.Errorf("knowledge base cannot be nil")
	}

	if kb.ID == "" {
		return fmt.Errorf("knowledge base ID is required")
	}

	if kb.Name == "" {
		return fmt.Errorf("knowledge base Name is required")
	}

	return nil
}

package domain

import (
	"fmt"
	"time"
)

// MessageRole represents the author of a conversation message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// MessageStatus represents the lifecycle of an assistant message while
// its answer is produced asynchronously
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusCompleted MessageStatus = "completed"
	MessageStatusFailed    MessageStatus = "failed"
)

// Conversation groups messages asked against one knowledge base
type Conversation struct {
	ID              string
	KnowledgeBaseID string
	Title           string
	CreatedAt       time.Time
}

// Source records the provenance of material that grounded an answer.
// At most one of DocumentID or QuestionID is set; table-derived sources
// set neither and carry the executed query in Content.
type Source struct {
	DocumentID string  `json:"document_id,omitempty"`
	QuestionID string  `json:"question_id,omitempty"`
	ChunkID    string  `json:"chunk_id,omitempty"`
	Title      string  `json:"title,omitempty"`
	Content    string  `json:"content,omitempty"`
	Score      float64 `json:"score"`
}

// Message is a single turn in a conversation. Assistant messages carry
// the sources and routing decision of the answer that produced them.
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	Status         MessageStatus
	Sources        []Source
	Routing        *RoutingDecision
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUserMessage creates a completed user message
func NewUserMessage(id, conversationID, content string, createdAt time.Time) *Message {
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           MessageRoleUser,
		Content:        content,
		Status:         MessageStatusCompleted,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

// NewPendingAssistantMessage creates the assistant placeholder that an
// answer job later completes or fails
func NewPendingAssistantMessage(id, conversationID string, createdAt time.Time) *Message {
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Role:           MessageRoleAssistant,
		Status:         MessageStatusPending,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

// ValidateMessage validates a Message instance
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}

	if m.ID == "" {
		return fmt.Errorf("message ID is required")
	}

	if m.ConversationID == "" {
		return fmt.Errorf("message ConversationID is required")
	}

	if m.Role != MessageRoleUser && m.Role != MessageRoleAssistant {
		return fmt.Errorf("message Role is invalid: %s", m.Role)
	}

	if m.Role == MessageRoleUser && m.Content == "" {
		return fmt.Errorf("user message Content is required")
	}

	return nil
}

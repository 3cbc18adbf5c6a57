package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/quaero-ai/quaero/internal/openai"
)

// Embedder turns text into a fixed-length vector
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Completer generates text from a conversation prompt
type Completer interface {
	Complete(ctx context.Context, messages []openai.ChatMessage, opts openai.CompletionOptions) (string, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

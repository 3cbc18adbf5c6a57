package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/openai"
)

const (
	defaultContextTokenBudget = 3000
	defaultAnswerMaxTokens    = 500

	// NoContextAnswer is returned when nothing relevant was retrieved
	NoContextAnswer = "I couldn't find any relevant information to answer your question."
)

const synthesisSystemPrompt = `You answer questions using only the provided context passages.
Each passage is numbered; cite the passages you used as [1], [2] and so on.
If the context does not contain the answer, say so instead of guessing.`

// SynthesizerConfig tunes answer generation
type SynthesizerConfig struct {
	// TokenBudget bounds the total context presented to the model;
	// lowest-scoring items are dropped first
	TokenBudget     int
	AnswerMaxTokens int
}

// Synthesizer produces a grounded answer from routed context and the
// list of sources actually presented to the model
type Synthesizer struct {
	llm Completer
	cfg SynthesizerConfig
}

// NewSynthesizer creates a new Synthesizer instance
func NewSynthesizer(llm Completer, cfg SynthesizerConfig) *Synthesizer {
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = defaultContextTokenBudget
	}
	if cfg.AnswerMaxTokens <= 0 {
		cfg.AnswerMaxTokens = defaultAnswerMaxTokens
	}
	return &Synthesizer{llm: llm, cfg: cfg}
}

// Synthesize answers the query from the given context items. The
// returned sources are exactly the items that fit the token budget and
// were shown to the model; an empty context yields a canned answer and
// no sources.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, items []domain.Source) (string, []domain.Source, error) {
	if len(items) == 0 {
		return NoContextAnswer, nil, nil
	}

	included := s.fitBudget(items)

	var b strings.Builder
	b.WriteString("Context:\n")
	for i, item := range included {
		fmt.Fprintf(&b, "\n[%d] %s\n%s\n", i+1, item.Title, item.Content)
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", query)

	answer, err := s.llm.Complete(ctx, []openai.ChatMessage{
		{Role: "system", Content: synthesisSystemPrompt},
		{Role: "user", Content: b.String()},
	}, openai.CompletionOptions{Temperature: 0.2, MaxTokens: s.cfg.AnswerMaxTokens})
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return strings.TrimSpace(answer), included, nil
}

// fitBudget keeps the highest-scoring items whose combined size fits the
// token budget. The best item is always kept so an answer can be
// grounded in something.
func (s *Synthesizer) fitBudget(items []domain.Source) []domain.Source {
	ranked := make([]domain.Source, len(items))
	copy(ranked, items)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	var included []domain.Source
	used := 0
	for i, item := range ranked {
		cost := estimateTokens(item.Title) + estimateTokens(item.Content)
		if i > 0 && used+cost > s.cfg.TokenBudget {
			break
		}
		included = append(included, item)
		used += cost
	}
	return included
}

// estimateTokens approximates tokens as four characters each
func estimateTokens(s string) int {
	return len(s)/4 + 1
}

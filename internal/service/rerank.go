package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/quaero-ai/quaero/internal/openai"
	"github.com/quaero-ai/quaero/internal/vectorstore"
)

const (
	// rerankCandidateChars bounds how much of each candidate goes into
	// the rerank prompt
	rerankCandidateChars = 500
	defaultRerankTimeout = 15 * time.Second
)

const rerankSystemPrompt = `You are a relevance judge for a retrieval system.
You are given a user query and a numbered list of text passages.
Order the passage numbers from most to least relevant to the query.
Return a JSON object with a single key "ranking" holding the ordered list of passage numbers.
Include every passage number exactly once.`

// Reranker reorders retrieval candidates with a finer-grained relevance
// pass. It fails open: any model error, timeout or malformed response
// leaves the original order and scores untouched.
type Reranker struct {
	llm     Completer
	timeout time.Duration
}

// NewReranker creates a Reranker with the given per-call timeout
func NewReranker(llm Completer, timeout time.Duration) *Reranker {
	if timeout <= 0 {
		timeout = defaultRerankTimeout
	}
	return &Reranker{llm: llm, timeout: timeout}
}

// Rerank returns the candidates reordered by model relevance, truncated
// to topK. On any failure the input order is returned instead.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []vectorstore.Match, topK int) []vectorstore.Match {
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}
	if len(candidates) < 2 {
		return candidates[:topK]
	}

	ranking, err := r.score(ctx, query, candidates)
	if err != nil {
		log.Printf("reranker: falling back to retrieval order: %v", err)
		return candidates[:topK]
	}

	reordered := make([]vectorstore.Match, 0, len(candidates))
	seen := make(map[int]bool, len(candidates))
	for _, idx := range ranking {
		if idx < 0 || idx >= len(candidates) || seen[idx] {
			continue
		}
		seen[idx] = true
		reordered = append(reordered, candidates[idx])
	}
	// Anything the model forgot keeps its retrieval position at the tail
	for i, c := range candidates {
		if !seen[i] {
			reordered = append(reordered, c)
		}
	}
	return reordered[:topK]
}

func (r *Reranker) score(ctx context.Context, query string, candidates []vectorstore.Match) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nPassages:\n", query)
	for i, c := range candidates {
		fmt.Fprintf(&b, "[%d] %s\n\n", i, truncateUTF8(c.Content, rerankCandidateChars))
	}

	response, err := r.llm.Complete(ctx, []openai.ChatMessage{
		{Role: "system", Content: rerankSystemPrompt},
		{Role: "user", Content: b.String()},
	}, openai.CompletionOptions{Temperature: 0})
	if err != nil {
		return nil, err
	}

	body, ok := extractJSONObject(response)
	if !ok {
		return nil, fmt.Errorf("no JSON object in rerank response")
	}
	var parsed struct {
		Ranking []int `json:"ranking"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse rerank response: %w", err)
	}
	if len(parsed.Ranking) == 0 {
		return nil, fmt.Errorf("rerank response holds no ranking")
	}
	return parsed.Ranking, nil
}

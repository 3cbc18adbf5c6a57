package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/openai"
	"github.com/quaero-ai/quaero/internal/telemetry"
	"github.com/quaero-ai/quaero/internal/vectorstore"
)

const (
	defaultQuestionMatchThreshold     = 0.8
	defaultRoutingConfidenceThreshold = 0.7
	// fallbackConfidence is reported when classification could not be
	// trusted and the router defaulted to retrieval
	fallbackConfidence = 0.6
)

const routingSystemPrompt = `You are a query router for a hybrid retrieval system. Decide whether a user query should be answered by:

1. "table" - the query needs structured data and is best answered with SQL: statistical questions (averages, counts, sums), tabular data, filtering, sorting or comparing quantitative values.
2. "retrieval" - the query asks about concepts, explanations, procedures or any other free-text document content.

Return a JSON object with the keys: service, confidence, reasoning.
"service" is "table" or "retrieval"; "confidence" is a number between 0 and 1.`

// QuestionFinder loads stored questions matched through the vector index
type QuestionFinder interface {
	GetByID(ctx context.Context, id string) (*domain.Question, error)
}

// RouterConfig tunes routing decisions
type RouterConfig struct {
	// QuestionMatchThreshold is the similarity above which a stored
	// question answers the query directly
	QuestionMatchThreshold float64
	// ConfidenceThreshold is the classification confidence below which
	// the router falls back to retrieval
	ConfidenceThreshold float64
}

// QueryRouter decides which answering path a query takes: a stored
// question match, the table query engine, or vector retrieval. It is
// stateless per call; the decision it returns is attached to the
// eventual answer for auditability.
type QueryRouter struct {
	vectors   VectorSearcher
	questions QuestionFinder
	embedder  Embedder
	llm       Completer
	cfg       RouterConfig
}

// NewQueryRouter creates a new QueryRouter instance
func NewQueryRouter(vectors VectorSearcher, questions QuestionFinder, embedder Embedder, llm Completer, cfg RouterConfig) *QueryRouter {
	if cfg.QuestionMatchThreshold <= 0 {
		cfg.QuestionMatchThreshold = defaultQuestionMatchThreshold
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = defaultRoutingConfidenceThreshold
	}
	return &QueryRouter{
		vectors:   vectors,
		questions: questions,
		embedder:  embedder,
		llm:       llm,
		cfg:       cfg,
	}
}

// Route decides the answering path for a query. When a stored question
// matches above the threshold it is returned alongside the decision;
// otherwise the query is classified as table-oriented or free-text.
// A non-empty force skips both steps and is recorded as an explicit
// decision with full confidence.
func (r *QueryRouter) Route(ctx context.Context, knowledgeBaseID, query string, force domain.RouteService) (*domain.RoutingDecision, *domain.Question, error) {
	ctx, span := telemetry.StartSpan(ctx, "QueryRouter.Route", telemetry.SpanAttributes{
		KnowledgeBaseID: knowledgeBaseID,
		Operation:       "route",
	})
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil, domain.ErrEmptyQuery
	}

	if force != "" {
		service, valid := domain.NormalizeRouteService(force)
		reasoning := fmt.Sprintf("service was explicitly forced to %s", service)
		if !valid {
			reasoning = fmt.Sprintf("invalid forced service %q, defaulting to retrieval", force)
		}
		return &domain.RoutingDecision{
			Query:      query,
			Service:    service,
			Confidence: 1.0,
			Reasoning:  reasoning,
			Fallback:   false,
		}, nil, nil
	}

	if decision, question := r.matchQuestion(ctx, knowledgeBaseID, query); decision != nil {
		return decision, question, nil
	}

	decision := r.classify(ctx, query)
	decision.Query = query
	return decision, nil, nil
}

// matchQuestion looks for a stored question similar enough to answer
// the query directly. Lookup failures only disable the shortcut; they
// never fail the route.
func (r *QueryRouter) matchQuestion(ctx context.Context, knowledgeBaseID, query string) (*domain.RoutingDecision, *domain.Question) {
	embedding, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		log.Printf("router: question match skipped, embedding failed: %v", err)
		return nil, nil
	}

	matches, err := r.vectors.Query(ctx, vectorstore.NamespaceQuestions, embedding, 1,
		vectorstore.Filter{KnowledgeBaseID: knowledgeBaseID})
	if err != nil {
		log.Printf("router: question match skipped, vector query failed: %v", err)
		return nil, nil
	}
	if len(matches) == 0 || matches[0].Score < r.cfg.QuestionMatchThreshold {
		return nil, nil
	}

	question, err := r.questions.GetByID(ctx, matches[0].QuestionID)
	if err != nil {
		// The question record may be gone while its vector lingers
		log.Printf("router: matched question %s not loadable: %v", matches[0].QuestionID, err)
		return nil, nil
	}
	if question.Status != domain.QuestionStatusCompleted {
		return nil, nil
	}

	return &domain.RoutingDecision{
		Query:      query,
		Service:    domain.RouteQuestions,
		Confidence: matches[0].Score,
		Reasoning:  fmt.Sprintf("matched stored question %q", question.Text),
		Fallback:   false,
	}, question
}

// classify asks the model whether the query targets structured data.
// Every failure path resolves to the retrieval fallback, never an error.
func (r *QueryRouter) classify(ctx context.Context, query string) *domain.RoutingDecision {
	response, err := r.llm.Complete(ctx, []openai.ChatMessage{
		{Role: "system", Content: routingSystemPrompt},
		{Role: "user", Content: "User Query: " + query},
	}, openai.CompletionOptions{Temperature: 0})
	if err != nil {
		log.Printf("router: classification failed: %v", err)
		return &domain.RoutingDecision{
			Service:    domain.RouteRetrieval,
			Confidence: fallbackConfidence,
			Reasoning:  fmt.Sprintf("classification error: %v, defaulting to retrieval", err),
			Fallback:   true,
		}
	}

	body, ok := extractJSONObject(response)
	if !ok {
		log.Printf("router: no JSON in classification response")
		return &domain.RoutingDecision{
			Service:    domain.RouteRetrieval,
			Confidence: fallbackConfidence,
			Reasoning:  "could not extract routing information, defaulting to retrieval",
			Fallback:   true,
		}
	}

	var parsed struct {
		Service    string  `json:"service"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		log.Printf("router: failed to parse classification response: %v", err)
		return &domain.RoutingDecision{
			Service:    domain.RouteRetrieval,
			Confidence: fallbackConfidence,
			Reasoning:  "failed to parse routing decision, defaulting to retrieval",
			Fallback:   true,
		}
	}

	service, valid := domain.NormalizeRouteService(domain.RouteService(strings.ToLower(parsed.Service)))
	confidence := parsed.Confidence
	if confidence < 0 || confidence > 1 {
		confidence = 0.5
	}
	reasoning := parsed.Reasoning
	if reasoning == "" {
		reasoning = "no reasoning provided"
	}
	fallback := !valid

	// Prefer retrieval unless the model is confident the query is
	// table-oriented
	if service == domain.RouteTable && confidence < r.cfg.ConfidenceThreshold {
		reasoning = fmt.Sprintf("table chosen with confidence %.2f below threshold %.2f, defaulting to retrieval",
			confidence, r.cfg.ConfidenceThreshold)
		service = domain.RouteRetrieval
		confidence = fallbackConfidence
		fallback = true
	}

	return &domain.RoutingDecision{
		Service:    service,
		Confidence: confidence,
		Reasoning:  reasoning,
		Fallback:   fallback,
	}
}

//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quaero-ai/quaero/internal/api/handlers"
	"github.com/quaero-ai/quaero/internal/chunker"
	"github.com/quaero-ai/quaero/internal/extract"
	"github.com/quaero-ai/quaero/internal/ingest"
	"github.com/quaero-ai/quaero/internal/jobs"
	"github.com/quaero-ai/quaero/internal/openai"
	"github.com/quaero-ai/quaero/internal/repository"
	"github.com/quaero-ai/quaero/internal/server"
	"github.com/quaero-ai/quaero/internal/service"
	"github.com/quaero-ai/quaero/internal/storage"
	"github.com/quaero-ai/quaero/internal/tabular"
	"github.com/quaero-ai/quaero/internal/testutil"
	"github.com/quaero-ai/quaero/internal/vectorstore"
)

const embeddingDimensions = 1536

// fakeModel is a deterministic stand-in for the model provider.
// Embeddings are bag-of-words vectors, so texts sharing terms score
// above the similarity threshold while unrelated texts score near
// zero. Completions are keyed off the system prompt of the caller.
type fakeModel struct {
	mu sync.Mutex
	// Answer returned for synthesis prompts
	SynthesisAnswer string
	// Classification JSON returned for routing prompts
	RouteResponse string
	// Error injected into every embedding call when set
	EmbedErr error
}

func newFakeModel() *fakeModel {
	return &fakeModel{
		SynthesisAnswer: "Answer grounded in the provided context.",
		RouteResponse:   `{"service": "retrieval", "confidence": 0.9, "reasoning": "free-text question"}`,
	}
}

func (m *fakeModel) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	embedErr := m.EmbedErr
	m.mu.Unlock()
	if embedErr != nil {
		return nil, embedErr
	}

	vec := make([]float32, embeddingDimensions)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%embeddingDimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec, nil
}

func (m *fakeModel) Complete(_ context.Context, messages []openai.ChatMessage, _ openai.CompletionOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	system := ""
	if len(messages) > 0 && messages[0].Role == "system" {
		system = messages[0].Content
	}
	switch {
	case strings.Contains(system, "query router"):
		return m.RouteResponse, nil
	case strings.Contains(system, "summarize documents"):
		return "A short summary of the document.", nil
	default:
		return m.SynthesisAnswer, nil
	}
}

func (m *fakeModel) SetEmbedErr(err error) {
	m.mu.Lock()
	m.EmbedErr = err
	m.mu.Unlock()
}

// TestEnv wires the full stack against real containers: Postgres with
// pgvector, an S3-compatible store, the sqlite table store and an
// in-process HTTP server. The model provider is the only fake.
type TestEnv struct {
	T          *testing.T
	Ctx        context.Context
	Pool       *pgxpool.Pool
	Server     *httptest.Server
	HTTPClient *http.Client
	Model      *fakeModel
	Vectors    *vectorstore.PgxStore
	runner     *jobs.Runner
}

func SetupTestEnv(t *testing.T) *TestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	s3C := testutil.NewRustFSContainer(ctx, t)
	t.Cleanup(func() { _ = s3C.Terminate(context.Background()) })

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")
	t.Cleanup(pool.Close)

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "quaero-test",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	tables, err := tabular.NewStore(filepath.Join(t.TempDir(), "tables.db"))
	if err != nil {
		t.Fatalf("failed to open table store: %v", err)
	}
	t.Cleanup(func() { _ = tables.Close() })

	model := newFakeModel()
	vectors := vectorstore.NewPgxStore(pool)

	knowledgeBaseRepo := repository.NewKnowledgeBaseRepository(pool)
	documentRepo := repository.NewDocumentRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	jobRepo := repository.NewJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	pipeline := ingest.NewPipeline(
		documentRepo, s3Client, vectors,
		extract.NewRegistry(), chunker.NewRegistry(),
		model, model, tables,
		ingest.Config{ChunkTargetTokens: 100, ChunkOverlapTokens: 10},
	)
	questionIndexer := ingest.NewQuestionIndexer(questionRepo, vectors, model)

	retrieval := service.NewRetrievalService(vectors, model, nil, service.RetrievalConfig{
		TopK:                5,
		SimilarityThreshold: 0.1,
	})
	queryRouter := service.NewQueryRouter(vectors, questionRepo, model, model, service.RouterConfig{
		QuestionMatchThreshold: 0.8,
		ConfidenceThreshold:    0.7,
	})
	tableQuery := service.NewTableQueryService(tables, documentRepo, model)
	synthesizer := service.NewSynthesizer(model, service.SynthesizerConfig{})
	answerSvc := service.NewAnswerService(messageRepo, conversationRepo, queryRouter, retrieval, tableQuery, synthesizer)

	documentSvc := service.NewDocumentService(documentRepo, knowledgeBaseRepo, jobRepo, s3Client, txRunner, 1<<20)
	questionSvc := service.NewQuestionService(questionRepo, knowledgeBaseRepo, jobRepo, txRunner)
	conversationSvc := service.NewConversationService(conversationRepo, messageRepo, knowledgeBaseRepo, txRunner)
	knowledgeBaseSvc := service.NewKnowledgeBaseService(knowledgeBaseRepo, documentRepo, vectors, s3Client, tables)

	runner := jobs.NewRunner(jobRepo, jobs.NewHandlerSet(pipeline, questionIndexer, answerSvc), jobs.Config{
		BatchSize:      10,
		Concurrency:    2,
		RetryBaseDelay: 10 * time.Millisecond,
	})

	router := server.NewRouter(server.RouterConfig{
		KnowledgeBaseHandler: handlers.NewKnowledgeBaseHandler(knowledgeBaseSvc),
		DocumentHandler:      handlers.NewDocumentHandler(documentSvc, 1<<20),
		QuestionHandler:      handlers.NewQuestionHandler(questionSvc),
		ConversationHandler:  handlers.NewConversationHandler(conversationSvc),
		MaxBodyBytes:         2 << 20,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &TestEnv{
		T:          t,
		Ctx:        ctx,
		Pool:       pool,
		Server:     srv,
		HTTPClient: srv.Client(),
		Model:      model,
		Vectors:    vectors,
		runner:     runner,
	}
}

// RunJobs drains the queue by running claim/process passes until a
// pass claims nothing. Retried jobs carry a backoff, so each pass
// waits long enough for rescheduled work to become claimable.
func (e *TestEnv) RunJobs() {
	e.T.Helper()
	for i := 0; i < 20; i++ {
		if err := e.runner.ProcessJobs(e.Ctx); err != nil {
			e.T.Fatalf("job pass failed: %v", err)
		}
		var pending int
		err := e.Pool.QueryRow(e.Ctx,
			"SELECT COUNT(*) FROM jobs WHERE status IN ('pending', 'processing')").Scan(&pending)
		if err != nil {
			e.T.Fatalf("failed to count jobs: %v", err)
		}
		if pending == 0 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatal("job queue did not drain")
}

// PostJSON sends a JSON request and decodes the data envelope into out
func (e *TestEnv) PostJSON(path string, body any, out any) int {
	e.T.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		e.T.Fatalf("failed to marshal request: %v", err)
	}
	resp, err := e.HTTPClient.Post(e.Server.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		e.T.Fatalf("POST %s failed: %v", path, err)
	}
	return e.decode(resp, out)
}

// GetJSON fetches a path and decodes the data envelope into out
func (e *TestEnv) GetJSON(path string, out any) int {
	e.T.Helper()
	resp, err := e.HTTPClient.Get(e.Server.URL + path)
	if err != nil {
		e.T.Fatalf("GET %s failed: %v", path, err)
	}
	return e.decode(resp, out)
}

// Delete issues a DELETE and returns the status code
func (e *TestEnv) Delete(path string) int {
	e.T.Helper()
	req, err := http.NewRequest(http.MethodDelete, e.Server.URL+path, nil)
	if err != nil {
		e.T.Fatalf("failed to build DELETE request: %v", err)
	}
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		e.T.Fatalf("DELETE %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

// UploadDocument uploads file content through the multipart endpoint
func (e *TestEnv) UploadDocument(knowledgeBaseID, filename, contentType string, content []byte, out any) int {
	e.T.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		e.T.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		e.T.Fatalf("failed to write multipart content: %v", err)
	}
	if err := writer.Close(); err != nil {
		e.T.Fatalf("failed to close multipart writer: %v", err)
	}

	path := fmt.Sprintf("/api/v1/knowledge-bases/%s/documents", knowledgeBaseID)
	resp, err := e.HTTPClient.Post(e.Server.URL+path, writer.FormDataContentType(), &buf)
	if err != nil {
		e.T.Fatalf("upload failed: %v", err)
	}
	return e.decode(resp, out)
}

func (e *TestEnv) decode(resp *http.Response, out any) int {
	e.T.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		e.T.Fatalf("failed to read response body: %v", err)
	}
	if out == nil || resp.StatusCode >= 400 {
		return resp.StatusCode
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		e.T.Fatalf("failed to decode envelope from %q: %v", raw, err)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		e.T.Fatalf("failed to decode data from %q: %v", envelope.Data, err)
	}
	return resp.StatusCode
}

// CreateKnowledgeBase creates a knowledge base and returns its ID
func (e *TestEnv) CreateKnowledgeBase(name string) string {
	e.T.Helper()
	var kb handlers.KnowledgeBaseResponse
	status := e.PostJSON("/api/v1/knowledge-bases", map[string]string{"name": name}, &kb)
	if status != http.StatusCreated {
		e.T.Fatalf("expected 201 creating knowledge base, got %d", status)
	}
	return kb.ID
}

// WaitForDocumentStatus polls the document until it reaches the status
func (e *TestEnv) WaitForDocumentStatus(documentID, status string) handlers.DocumentResponse {
	e.T.Helper()
	var doc handlers.DocumentResponse
	for i := 0; i < 50; i++ {
		code := e.GetJSON("/api/v1/documents/"+documentID, &doc)
		if code == http.StatusOK && doc.Status == status {
			return doc
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("document %s never reached status %s (last: %s, error: %s)",
		documentID, status, doc.Status, doc.ErrorMessage)
	return doc
}

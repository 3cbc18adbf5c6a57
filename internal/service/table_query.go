package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/openai"
	"github.com/quaero-ai/quaero/internal/tabular"
	"github.com/quaero-ai/quaero/internal/telemetry"
)

const (
	// maxResultRows bounds how many result rows feed the answer prompt
	maxResultRows = 50
	// maxResultChars bounds the serialized result set in the prompt
	maxResultChars = 4000
)

const sqlSystemPrompt = `You are a SQL expert answering questions over SQLite tables.
Write a single SELECT statement that answers the user's question using only the tables and columns described below.
Never modify data: no INSERT, UPDATE, DELETE, DDL or PRAGMA.
Return only the SQL statement in a ` + "```sql" + ` code block.`

const tableAnswerSystemPrompt = `You answer questions using the result of a SQL query.
You are given the question, the query that was executed, and its result rows as JSON.
Answer concisely in natural language based only on those rows.
If the result is empty, say that no matching data was found.`

// TableQuerier is the table store the query engine runs against
type TableQuerier interface {
	Schemas(ctx context.Context) ([]tabular.TableSchema, error)
	Query(ctx context.Context, query string) ([]map[string]any, error)
}

// DocumentLister scopes the table engine to one knowledge base
type DocumentLister interface {
	ListByKnowledgeBase(ctx context.Context, knowledgeBaseID string) ([]*domain.Document, error)
}

// TableDocument identifies a document whose materialized table backed
// a table answer
type TableDocument struct {
	ID    string
	Title string
}

// TableAnswer is the outcome of answering a query over ingested tables
type TableAnswer struct {
	Answer    string
	SQL       string
	Rows      []map[string]any
	Documents []TableDocument
}

// TableQueryService answers structured questions by generating a
// read-only SELECT over the tables materialized from a knowledge base's
// tabular documents
type TableQueryService struct {
	tables    TableQuerier
	documents DocumentLister
	llm       Completer
}

// NewTableQueryService creates a new TableQueryService instance
func NewTableQueryService(tables TableQuerier, documents DocumentLister, llm Completer) *TableQueryService {
	return &TableQueryService{
		tables:    tables,
		documents: documents,
		llm:       llm,
	}
}

// Answer generates a SQL query for the question, executes it against
// the knowledge base's tables and phrases the result in natural
// language. Returns ErrNoTablesAvailable when the knowledge base holds
// no ingested tabular documents.
func (s *TableQueryService) Answer(ctx context.Context, knowledgeBaseID, query string) (*TableAnswer, error) {
	ctx, span := telemetry.StartSpan(ctx, "TableQueryService.Answer", telemetry.SpanAttributes{
		KnowledgeBaseID: knowledgeBaseID,
		Operation:       "table_answer",
	})
	defer span.End()

	schemas, owners, err := s.knowledgeBaseSchemas(ctx, knowledgeBaseID)
	if err != nil {
		return nil, err
	}
	if len(schemas) == 0 {
		return nil, domain.ErrNoTablesAvailable
	}

	sqlQuery, err := s.generateSQL(ctx, query, schemas)
	if err != nil {
		return nil, err
	}

	answer, err := s.run(ctx, query, sqlQuery)
	if err != nil {
		return nil, err
	}
	answer.Documents = owners
	return answer, nil
}

// Execute runs a stored SQL query for a question whose canonical answer
// is the query itself. The statement goes through the same read-only
// validation as generated SQL.
func (s *TableQueryService) Execute(ctx context.Context, question, sqlQuery string) (*TableAnswer, error) {
	return s.run(ctx, question, sqlQuery)
}

func (s *TableQueryService) run(ctx context.Context, question, sqlQuery string) (*TableAnswer, error) {
	if err := tabular.ValidateQuery(sqlQuery); err != nil {
		return nil, err
	}

	rows, err := s.tables.Query(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute table query: %w", err)
	}

	answer, err := s.phraseAnswer(ctx, question, sqlQuery, rows)
	if err != nil {
		return nil, err
	}

	return &TableAnswer{Answer: answer, SQL: sqlQuery, Rows: rows}, nil
}

// knowledgeBaseSchemas returns the schemas of tables belonging to the
// knowledge base's completed structured documents, paired with the
// documents that own them
func (s *TableQueryService) knowledgeBaseSchemas(ctx context.Context, knowledgeBaseID string) ([]tabular.TableSchema, []TableDocument, error) {
	documents, err := s.documents.ListByKnowledgeBase(ctx, knowledgeBaseID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list documents: %w", err)
	}

	owned := make(map[string]TableDocument)
	for _, d := range documents {
		if d.IsStructured() && d.Status == domain.DocumentStatusCompleted {
			owned[tabular.TableName(d.ID)] = TableDocument{ID: d.ID, Title: d.Title}
		}
	}
	if len(owned) == 0 {
		return nil, nil, nil
	}

	all, err := s.tables.Schemas(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read table schemas: %w", err)
	}

	var schemas []tabular.TableSchema
	var owners []TableDocument
	for _, schema := range all {
		if doc, ok := owned[schema.Name]; ok {
			schemas = append(schemas, schema)
			owners = append(owners, doc)
		}
	}
	return schemas, owners, nil
}

func (s *TableQueryService) generateSQL(ctx context.Context, query string, schemas []tabular.TableSchema) (string, error) {
	var b strings.Builder
	b.WriteString("Tables:\n")
	for _, schema := range schemas {
		fmt.Fprintf(&b, "\nTable %s:\n", schema.Name)
		for _, col := range schema.Columns {
			fmt.Fprintf(&b, "  %s %s\n", col.Name, col.Type)
		}
		if len(schema.SampleRows) > 0 {
			samples, err := json.Marshal(schema.SampleRows)
			if err == nil {
				fmt.Fprintf(&b, "  sample rows: %s\n", samples)
			}
		}
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n", query)

	response, err := s.llm.Complete(ctx, []openai.ChatMessage{
		{Role: "system", Content: sqlSystemPrompt},
		{Role: "user", Content: b.String()},
	}, openai.CompletionOptions{Temperature: 0})
	if err != nil {
		return "", fmt.Errorf("failed to generate table query: %w", err)
	}

	sqlQuery := extractSQL(response)
	if sqlQuery == "" {
		return "", fmt.Errorf("model returned no table query")
	}
	return sqlQuery, nil
}

func (s *TableQueryService) phraseAnswer(ctx context.Context, question, sqlQuery string, rows []map[string]any) (string, error) {
	capped := rows
	if len(capped) > maxResultRows {
		capped = capped[:maxResultRows]
	}
	serialized, err := json.Marshal(capped)
	if err != nil {
		return "", fmt.Errorf("failed to serialize query result: %w", err)
	}
	result := truncateUTF8(string(serialized), maxResultChars)

	prompt := fmt.Sprintf("Question: %s\n\nQuery: %s\n\nResult rows: %s", question, sqlQuery, result)
	answer, err := s.llm.Complete(ctx, []openai.ChatMessage{
		{Role: "system", Content: tableAnswerSystemPrompt},
		{Role: "user", Content: prompt},
	}, openai.CompletionOptions{Temperature: 0})
	if err != nil {
		return "", fmt.Errorf("failed to phrase table answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

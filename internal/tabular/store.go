package tabular

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/quaero-ai/quaero/internal/extract"

	_ "modernc.org/sqlite"
)

// sampleRowLimit bounds how many rows Schemas returns per table; the
// samples go into an LLM prompt, so small is deliberate
const sampleRowLimit = 3

// TableName derives the table identity for a structured document.
// Hyphens are not valid in unquoted identifiers, so they become
// underscores.
func TableName(documentID string) string {
	return "doc_" + strings.ReplaceAll(documentID, "-", "_")
}

// Column describes one column of a materialized table
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableSchema is what the SQL-generation prompt sees for one table
type TableSchema struct {
	Name       string           `json:"name"`
	Columns    []Column         `json:"columns"`
	SampleRows []map[string]any `json:"sample_rows"`
}

// Store materializes tabular documents into a local sqlite database so
// structured questions can be answered with real SQL instead of
// embeddings.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create table store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open table store: %w", err)
	}

	// sqlite tolerates exactly one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTable replaces the named table with the extracted rows. Column
// types are inferred from the data so numeric questions can aggregate.
func (s *Store) CreateTable(ctx context.Context, name string, table *extract.Table) error {
	if len(table.Columns) == 0 {
		return fmt.Errorf("table %q has no columns", name)
	}
	ident, err := sanitizeIdentifier(name)
	if err != nil {
		return err
	}

	columns := make([]string, 0, len(table.Columns))
	defs := make([]string, 0, len(table.Columns))
	for i, col := range table.Columns {
		colIdent, err := sanitizeIdentifier(col)
		if err != nil {
			colIdent = fmt.Sprintf("column_%d", i+1)
		}
		columns = append(columns, colIdent)
		defs = append(defs, fmt.Sprintf("%q %s", colIdent, inferColumnType(table.Rows, i)))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin table transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", ident)); err != nil {
		return fmt.Errorf("failed to drop existing table %q: %w", ident, err)
	}
	createStmt := fmt.Sprintf("CREATE TABLE %q (%s)", ident, strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, createStmt); err != nil {
		return fmt.Errorf("failed to create table %q: %w", ident, err)
	}

	if len(table.Rows) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",")
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = fmt.Sprintf("%q", c)
		}
		insertStmt := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
			ident, strings.Join(quoted, ", "), placeholders)

		stmt, err := tx.PrepareContext(ctx, insertStmt)
		if err != nil {
			return fmt.Errorf("failed to prepare insert for %q: %w", ident, err)
		}
		defer stmt.Close()

		for _, row := range table.Rows {
			args := make([]any, len(row))
			for i, v := range row {
				args[i] = v
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("failed to insert row into %q: %w", ident, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit table %q: %w", ident, err)
	}
	return nil
}

// DropTable removes a materialized table; missing tables are fine
func (s *Store) DropTable(ctx context.Context, name string) error {
	ident, err := sanitizeIdentifier(name)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", ident)); err != nil {
		return fmt.Errorf("failed to drop table %q: %w", ident, err)
	}
	return nil
}

// Schemas lists every materialized table with columns and a few sample
// rows
func (s *Store) Schemas(ctx context.Context) ([]TableSchema, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tables: %w", err)
	}

	schemas := make([]TableSchema, 0, len(names))
	for _, name := range names {
		schema, err := s.tableSchema(ctx, name)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}

func (s *Store) tableSchema(ctx context.Context, name string) (TableSchema, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", name))
	if err != nil {
		return TableSchema{}, fmt.Errorf("failed to read schema of %q: %w", name, err)
	}
	defer rows.Close()

	schema := TableSchema{Name: name}
	for rows.Next() {
		var (
			cid, notNull, pk int
			colName, colType string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return TableSchema{}, fmt.Errorf("failed to scan column of %q: %w", name, err)
		}
		schema.Columns = append(schema.Columns, Column{Name: colName, Type: colType})
	}
	if err := rows.Err(); err != nil {
		return TableSchema{}, fmt.Errorf("failed to iterate columns of %q: %w", name, err)
	}

	samples, err := s.execute(ctx, fmt.Sprintf("SELECT * FROM %q LIMIT %d", name, sampleRowLimit))
	if err != nil {
		return TableSchema{}, err
	}
	schema.SampleRows = samples
	return schema, nil
}

// Query validates and executes a read-only statement, returning rows as
// column-keyed maps
func (s *Store) Query(ctx context.Context, query string) ([]map[string]any, error) {
	if err := ValidateQuery(query); err != nil {
		return nil, err
	}
	return s.execute(ctx, query)
}

func (s *Store) execute(ctx context.Context, query string) ([]map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}
	return results, nil
}

var identifierPattern = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// sanitizeIdentifier reduces an arbitrary document or column name to a
// safe sqlite identifier
func sanitizeIdentifier(name string) (string, error) {
	ident := identifierPattern.ReplaceAllString(strings.TrimSpace(name), "_")
	ident = strings.Trim(ident, "_")
	if ident == "" {
		return "", fmt.Errorf("name %q yields no usable identifier", name)
	}
	if ident[0] >= '0' && ident[0] <= '9' {
		ident = "t_" + ident
	}
	return strings.ToLower(ident), nil
}

// inferColumnType picks INTEGER, REAL or TEXT by scanning the column's
// values; empty values don't disqualify a numeric column
func inferColumnType(rows [][]string, col int) string {
	sawValue := false
	allInt := true
	allReal := true
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		v := strings.TrimSpace(row[col])
		if v == "" {
			continue
		}
		sawValue = true
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			allInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			allReal = false
		}
	}
	switch {
	case !sawValue:
		return "TEXT"
	case allInt:
		return "INTEGER"
	case allReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

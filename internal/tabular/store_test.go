package tabular

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/quaero-ai/quaero/internal/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "tables.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedEmployees(t *testing.T, store *Store) {
	t.Helper()
	table := &extract.Table{
		Columns: []string{"name", "department", "salary"},
		Rows: [][]string{
			{"alice", "engineering", "90000"},
			{"bob", "engineering", "85000"},
			{"carol", "sales", "70000"},
		},
	}
	require.NoError(t, store.CreateTable(context.Background(), "employees", table))
}

func TestStore_CreateTableAndQuery(t *testing.T) {
	store := testStore(t)
	seedEmployees(t, store)

	results, err := store.Query(context.Background(),
		"SELECT name FROM employees WHERE department = 'sales'")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alice", mustQueryOne(t, store,
		"SELECT name FROM employees ORDER BY salary DESC LIMIT 1")["name"])
	assert.Equal(t, "carol", results[0]["name"])
}

func TestStore_CreateTable_InfersNumericTypes(t *testing.T) {
	store := testStore(t)
	seedEmployees(t, store)

	// salary was inferred INTEGER, so aggregation works numerically
	result := mustQueryOne(t, store, "SELECT SUM(salary) AS total FROM employees")
	assert.EqualValues(t, 245000, result["total"])

	schemas, err := store.Schemas(context.Background())
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, "employees", schemas[0].Name)
	assert.Equal(t, []Column{
		{Name: "name", Type: "TEXT"},
		{Name: "department", Type: "TEXT"},
		{Name: "salary", Type: "INTEGER"},
	}, schemas[0].Columns)
	assert.Len(t, schemas[0].SampleRows, 3)
}

func TestStore_CreateTable_Replaces(t *testing.T) {
	store := testStore(t)
	seedEmployees(t, store)

	smaller := &extract.Table{
		Columns: []string{"name"},
		Rows:    [][]string{{"dave"}},
	}
	require.NoError(t, store.CreateTable(context.Background(), "employees", smaller))

	results, err := store.Query(context.Background(), "SELECT name FROM employees")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "dave", results[0]["name"])
}

func TestStore_CreateTable_SanitizesName(t *testing.T) {
	store := testStore(t)

	table := &extract.Table{Columns: []string{"v"}, Rows: [][]string{{"1"}}}
	require.NoError(t, store.CreateTable(context.Background(), "Q3 Report (final).csv", table))

	schemas, err := store.Schemas(context.Background())
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, "q3_report_final_csv", schemas[0].Name)
}

func TestStore_CreateTable_NoColumns(t *testing.T) {
	store := testStore(t)

	err := store.CreateTable(context.Background(), "empty", &extract.Table{})
	assert.Error(t, err)
}

func TestStore_DropTable(t *testing.T) {
	store := testStore(t)
	seedEmployees(t, store)

	require.NoError(t, store.DropTable(context.Background(), "employees"))

	schemas, err := store.Schemas(context.Background())
	require.NoError(t, err)
	assert.Empty(t, schemas)

	// dropping again is a no-op
	assert.NoError(t, store.DropTable(context.Background(), "employees"))
}

func TestStore_Query_RejectsUnsafe(t *testing.T) {
	store := testStore(t)
	seedEmployees(t, store)

	_, err := store.Query(context.Background(), "DELETE FROM employees")
	assert.ErrorIs(t, err, domain.ErrUnsafeTableQuery)

	// nothing was deleted
	results, err := store.Query(context.Background(), "SELECT name FROM employees")
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{name: "plain select", query: "SELECT * FROM employees"},
		{name: "select with trailing semicolon", query: "SELECT 1;"},
		{name: "cte", query: "WITH top AS (SELECT * FROM employees) SELECT name FROM top"},
		{name: "aggregation", query: "SELECT department, COUNT(*) FROM employees GROUP BY department"},
		{name: "string literal with keyword", query: "SELECT * FROM employees WHERE name = 'drop table'"},
		{name: "column containing keyword", query: "SELECT created_at FROM employees"},
		{name: "empty", query: "  ", wantErr: true},
		{name: "delete", query: "DELETE FROM employees", wantErr: true},
		{name: "insert", query: "INSERT INTO employees VALUES ('x')", wantErr: true},
		{name: "drop", query: "DROP TABLE employees", wantErr: true},
		{name: "pragma", query: "PRAGMA table_info(employees)", wantErr: true},
		{name: "stacked statements", query: "SELECT 1; DROP TABLE employees", wantErr: true},
		{name: "comment smuggling", query: "SELECT 1 -- DROP TABLE employees", wantErr: true},
		{name: "block comment", query: "SELECT /* hidden */ 1", wantErr: true},
		{name: "embedded delete", query: "SELECT * FROM employees; DELETE FROM employees", wantErr: true},
		{name: "keyword inside select", query: "SELECT name FROM employees UNION SELECT 1 FROM x WHERE (SELECT count(*) FROM y) > 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.query)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrUnsafeTableQuery)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func mustQueryOne(t *testing.T, store *Store, query string) map[string]any {
	t.Helper()
	results, err := store.Query(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, results, 1)
	return results[0]
}

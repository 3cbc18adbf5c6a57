package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
)

// CSV parses tabular content. The parsed table feeds the table store;
// the rendered text feeds chunking and embedding so tabular documents
// remain retrievable as free text too.
type CSV struct{}

func NewCSV() *CSV {
	return &CSV{}
}

func (e *CSV) Extract(ctx context.Context, content []byte) (*Result, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1 // validated against the header below

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyContent
	}

	columns := make([]string, 0, len(records[0]))
	for _, col := range records[0] {
		columns = append(columns, strings.TrimSpace(col))
	}

	rows := make([][]string, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != len(columns) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+2, len(record), len(columns))
		}
		rows = append(rows, record)
	}

	return &Result{
		Text:  renderTableText(columns, rows),
		Table: &Table{Columns: columns, Rows: rows},
	}, nil
}

// renderTableText flattens rows into "col: value" lines, one row per
// paragraph, which embeds better than raw comma-separated text
func renderTableText(columns []string, rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		pairs := make([]string, 0, len(columns))
		for i, col := range columns {
			pairs = append(pairs, fmt.Sprintf("%s: %s", col, row[i]))
		}
		b.WriteString(strings.Join(pairs, ", "))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

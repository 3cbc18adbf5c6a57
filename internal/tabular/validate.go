package tabular

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/quaero-ai/quaero/internal/domain"
)

// forbiddenKeywords are statement types and constructs that must never
// reach the table store, even embedded inside a SELECT
var forbiddenKeywords = []string{
	"insert", "update", "delete", "drop", "alter", "create",
	"replace", "truncate", "attach", "detach", "pragma", "vacuum", "reindex",
}

var wordPattern = regexp.MustCompile(`[a-zA-Z_]+`)

// ValidateQuery admits a single read-only SELECT (or WITH ... SELECT)
// statement and nothing else. Model-generated SQL goes through here
// before execution.
func ValidateQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("%w: empty query", domain.ErrUnsafeTableQuery)
	}

	stripped := stripStrings(trimmed)
	if strings.Contains(stripped, "--") || strings.Contains(stripped, "/*") {
		return fmt.Errorf("%w: comments are not allowed", domain.ErrUnsafeTableQuery)
	}

	// one statement only: a semicolon may appear solely as a trailer
	if i := strings.Index(stripped, ";"); i >= 0 && strings.TrimSpace(stripped[i+1:]) != "" {
		return fmt.Errorf("%w: multiple statements", domain.ErrUnsafeTableQuery)
	}

	lower := strings.ToLower(stripped)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return fmt.Errorf("%w: only SELECT statements are allowed", domain.ErrUnsafeTableQuery)
	}

	for _, word := range wordPattern.FindAllString(lower, -1) {
		for _, forbidden := range forbiddenKeywords {
			if word == forbidden {
				return fmt.Errorf("%w: forbidden keyword %q", domain.ErrUnsafeTableQuery, forbidden)
			}
		}
	}
	return nil
}

// stripStrings blanks out single-quoted literals so keyword and comment
// checks don't trip on data values
func stripStrings(query string) string {
	var b strings.Builder
	inString := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == '\'' {
			// doubled quote inside a literal is an escaped quote
			if inString && i+1 < len(query) && query[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
			b.WriteByte(c)
			continue
		}
		if inString {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

package extract

import (
	"context"
	"strings"
	"unicode/utf8"
)

// Plain extracts UTF-8 text verbatim
type Plain struct{}

func NewPlain() *Plain {
	return &Plain{}
}

func (e *Plain) Extract(ctx context.Context, content []byte) (*Result, error) {
	text := strings.TrimSpace(sanitizeUTF8(content))
	if text == "" {
		return nil, ErrEmptyContent
	}
	return &Result{Text: text}, nil
}

// sanitizeUTF8 drops invalid byte sequences so downstream embedding
// requests never carry broken encoding
func sanitizeUTF8(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	return strings.ToValidUTF8(string(content), "")
}

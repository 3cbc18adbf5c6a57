package extract

import (
	"context"
	"strings"
)

// Markdown extracts text and collects heading lines so the chunker can
// preserve document hierarchy
type Markdown struct{}

func NewMarkdown() *Markdown {
	return &Markdown{}
}

func (e *Markdown) Extract(ctx context.Context, content []byte) (*Result, error) {
	text := strings.TrimSpace(sanitizeUTF8(content))
	if text == "" {
		return nil, ErrEmptyContent
	}

	var headings []string
	inCodeBlock := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			headings = append(headings, trimmed)
		}
	}

	return &Result{Text: text, Headings: headings}, nil
}

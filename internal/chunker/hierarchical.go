package chunker

import (
	"strings"

	"github.com/quaero-ai/quaero/internal/extract"
)

// Hierarchical chunks markdown-structured text along heading
// boundaries. Sections that fit within the target become one chunk;
// oversized sections are subdivided with the fixed window. Every chunk
// carries the heading path that leads to it.
type Hierarchical struct{}

func NewHierarchical() *Hierarchical {
	return &Hierarchical{}
}

// section is a contiguous run of text under one heading
type section struct {
	path []string // heading titles from the root down to this section
	body string
}

func (c *Hierarchical) Chunk(doc *extract.Result, cfg Config) ([]Chunk, error) {
	sections := splitSections(doc.Text)

	var chunks []Chunk
	for _, sec := range sections {
		if strings.TrimSpace(sec.body) == "" {
			continue
		}
		for _, content := range splitFixed(sec.body, cfg) {
			chunks = append(chunks, Chunk{
				Index:       len(chunks),
				Content:     content,
				SectionPath: sec.path,
				IsTable:     doc.Table != nil,
			})
		}
	}

	// headings with no body at all still produce one chunk for the
	// document, otherwise a heading-only file would vanish
	if len(chunks) == 0 {
		return NewFixed().Chunk(doc, cfg)
	}
	return chunks, nil
}

// splitSections walks the text line by line, maintaining a heading
// stack keyed by markdown level. Code blocks are treated as body text.
func splitSections(text string) []section {
	type stackEntry struct {
		level int
		title string
	}

	var (
		sections []section
		stack    []stackEntry
		body     strings.Builder
		inCode   bool
	)

	flush := func() {
		path := make([]string, 0, len(stack))
		for _, e := range stack {
			path = append(path, e.title)
		}
		sections = append(sections, section{path: path, body: body.String()})
		body.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inCode = !inCode
			body.WriteString(line)
			body.WriteString("\n")
			continue
		}

		level := headingLevel(trimmed)
		if inCode || level == 0 {
			body.WriteString(line)
			body.WriteString("\n")
			continue
		}

		flush()
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, stackEntry{
			level: level,
			title: strings.TrimSpace(strings.TrimLeft(trimmed, "#")),
		})
	}
	flush()

	return sections
}

// headingLevel counts leading # characters; 0 means not a heading
func headingLevel(line string) int {
	if !strings.HasPrefix(line, "#") {
		return 0
	}
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level > 6 || level >= len(line) || line[level] != ' ' {
		return 0
	}
	return level
}

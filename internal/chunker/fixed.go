package chunker

import (
	"strings"

	"github.com/quaero-ai/quaero/internal/extract"
)

// Fixed splits text into windows of roughly TargetTokens words with
// OverlapTokens words carried over between consecutive chunks.
type Fixed struct{}

func NewFixed() *Fixed {
	return &Fixed{}
}

func (c *Fixed) Chunk(doc *extract.Result, cfg Config) ([]Chunk, error) {
	pieces := splitFixed(doc.Text, cfg)

	chunks := make([]Chunk, 0, len(pieces))
	for i, content := range pieces {
		chunks = append(chunks, Chunk{
			Index:   i,
			Content: content,
			IsTable: doc.Table != nil,
		})
	}
	return chunks, nil
}

// splitFixed windows the text by word count. The step is target minus
// overlap, clamped so the loop always advances.
func splitFixed(text string, cfg Config) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	target := cfg.TargetTokens
	if target <= 0 {
		target = DefaultConfig().TargetTokens
	}
	overlap := cfg.OverlapTokens
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= target {
		overlap = target / 2
	}

	if len(words) <= target {
		return []string{strings.Join(words, " ")}
	}

	step := target - overlap
	var pieces []string
	for start := 0; start < len(words); start += step {
		end := start + target
		if end > len(words) {
			end = len(words)
		}
		pieces = append(pieces, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return pieces
}

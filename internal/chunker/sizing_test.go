package chunker

import (
	"testing"

	"github.com/quaero-ai/quaero/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSizing_ForMediaType(t *testing.T) {
	sizing := NewSizing(Config{TargetTokens: 400, OverlapTokens: 50})

	markdown := sizing.For(domain.MediaTypeMarkdown)
	csv := sizing.For(domain.MediaTypeCSV)

	assert.Equal(t, 600, markdown.TargetTokens)
	assert.Equal(t, 75, markdown.OverlapTokens)
	assert.Equal(t, 200, csv.TargetTokens)
	assert.NotEqual(t, markdown.TargetTokens, csv.TargetTokens,
		"markup and row-oriented formats must not share a chunk size")

	// plain text has no dedicated entry and keeps the base size
	assert.Equal(t, Config{TargetTokens: 400, OverlapTokens: 50}, sizing.For(domain.MediaTypeText))
}

func TestSizing_PageOrientedFormatsShareSizing(t *testing.T) {
	sizing := NewSizing(Config{TargetTokens: 400, OverlapTokens: 50})

	assert.Equal(t, sizing.For(domain.MediaTypePDF), sizing.For(domain.MediaTypeDOCX))
	assert.Equal(t, 500, sizing.For(domain.MediaTypePDF).TargetTokens)
}

func TestSizing_ZeroBaseFallsBackToDefault(t *testing.T) {
	sizing := NewSizing(Config{})

	assert.Equal(t, DefaultConfig(), sizing.For(domain.MediaTypeText))
}

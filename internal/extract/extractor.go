package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quaero-ai/quaero/internal/domain"
)

// ErrEmptyContent is returned when extraction yields no text
var ErrEmptyContent = errors.New("extraction produced no text")

// Table holds rows parsed from tabular media
type Table struct {
	Columns []string
	Rows    [][]string
}

// Result is the output of content extraction: plain text plus the
// structural metadata the chunker and table engine need
type Result struct {
	Text     string
	Headings []string // heading lines discovered, in document order
	Table    *Table   // set only for tabular media
}

// Extractor turns raw bytes of one media type into a Result
type Extractor interface {
	Extract(ctx context.Context, content []byte) (*Result, error)
}

// defaultStrategyTimeout bounds each extraction strategy attempt
const defaultStrategyTimeout = 2 * time.Minute

// Registry resolves the ordered extraction strategies for a media type.
// Strategies are tried in sequence; the first success wins.
type Registry struct {
	strategies map[domain.MediaType][]Extractor
	timeout    time.Duration
}

func NewRegistry() *Registry {
	plain := NewPlain()
	markdown := NewMarkdown()

	return &Registry{
		strategies: map[domain.MediaType][]Extractor{
			domain.MediaTypeText:     {plain},
			domain.MediaTypeMarkdown: {markdown},
			domain.MediaTypeCSV:      {NewCSV()},
			domain.MediaTypePDF:      {NewDocconv(string(domain.MediaTypePDF))},
			domain.MediaTypeDOCX:     {NewDocconv(string(domain.MediaTypeDOCX))},
			domain.MediaTypeHTML:     {NewDocconv(string(domain.MediaTypeHTML)), plain},
		},
		timeout: defaultStrategyTimeout,
	}
}

// Extract runs the strategy chain for the media type. Each strategy
// gets its own timeout; the last error is returned when all fail.
func (r *Registry) Extract(ctx context.Context, mediaType domain.MediaType, content []byte) (*Result, error) {
	chain, ok := r.strategies[mediaType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedMediaType, mediaType)
	}

	var lastErr error
	for _, strategy := range chain {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		result, err := strategy.Extract(attemptCtx, content)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("all extraction strategies failed for %s: %w", mediaType, lastErr)
}

// Supports reports whether the registry has a strategy chain for the
// media type
func (r *Registry) Supports(mediaType domain.MediaType) bool {
	_, ok := r.strategies[mediaType]
	return ok
}

package chunker

import (
	"strings"

	"github.com/quaero-ai/quaero/internal/extract"
)

// Chunk is one retrieval-sized unit produced from extracted text
type Chunk struct {
	Index       int
	Content     string
	SectionPath []string
	Page        int
	IsTable     bool
}

// Config controls chunk sizing. Token counts are approximated by
// whitespace-separated words.
type Config struct {
	TargetTokens  int
	OverlapTokens int
}

// DefaultConfig provides sane defaults for chunking.
func DefaultConfig() Config {
	return Config{
		TargetTokens:  400,
		OverlapTokens: 50,
	}
}

// Chunker splits extracted text into an ordered sequence of chunks.
// Implementations never emit an empty chunk.
type Chunker interface {
	Chunk(doc *extract.Result, cfg Config) ([]Chunk, error)
}

// Strategy selects a chunking implementation
type Strategy string

const (
	StrategyFixed        Strategy = "fixed"
	StrategyHierarchical Strategy = "hierarchical"
)

// Registry maps strategies to chunkers, built once at startup
type Registry struct {
	chunkers map[Strategy]Chunker
}

func NewRegistry() *Registry {
	return &Registry{
		chunkers: map[Strategy]Chunker{
			StrategyFixed:        NewFixed(),
			StrategyHierarchical: NewHierarchical(),
		},
	}
}

// ForResult selects the strategy for an extraction result: text with
// structural headings is chunked hierarchically, everything else with
// the fixed-size strategy.
func (r *Registry) ForResult(doc *extract.Result) Chunker {
	if len(doc.Headings) > 0 {
		return r.chunkers[StrategyHierarchical]
	}
	return r.chunkers[StrategyFixed]
}

// Get returns the chunker for an explicit strategy
func (r *Registry) Get(s Strategy) (Chunker, bool) {
	c, ok := r.chunkers[s]
	return c, ok
}

func countTokens(text string) int {
	return len(strings.Fields(text))
}

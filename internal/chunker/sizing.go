package chunker

import (
	"github.com/quaero-ai/quaero/internal/domain"
)

// Sizing resolves the chunk sizing for a document's media type,
// resolved once at startup like the extraction registry. Formats with
// structural markup get larger windows so sections stay together,
// row-oriented data gets smaller ones so individual rows stay
// addressable, and everything else keeps the base size.
type Sizing struct {
	base   Config
	byType map[domain.MediaType]Config
}

// NewSizing derives per-media-type chunk sizing from a base config.
// A non-positive base falls back to DefaultConfig.
func NewSizing(base Config) *Sizing {
	if base.TargetTokens <= 0 {
		base = DefaultConfig()
	}
	scale := func(num, den int) Config {
		return Config{
			TargetTokens:  base.TargetTokens * num / den,
			OverlapTokens: base.OverlapTokens * num / den,
		}
	}
	return &Sizing{
		base: base,
		byType: map[domain.MediaType]Config{
			// markup formats hold technical sections worth keeping whole
			domain.MediaTypeMarkdown: scale(3, 2),
			domain.MediaTypeHTML:     scale(3, 2),
			// page-oriented formats run longer between structural breaks
			domain.MediaTypePDF:  scale(5, 4),
			domain.MediaTypeDOCX: scale(5, 4),
			// row-oriented data chunks small so rows stay addressable
			domain.MediaTypeCSV: scale(1, 2),
		},
	}
}

// For returns the sizing for a media type, or the base config when the
// type has no dedicated entry.
func (s *Sizing) For(mediaType domain.MediaType) Config {
	if cfg, ok := s.byType[mediaType]; ok {
		return cfg
	}
	return s.base
}

package driven

import (
	"context"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// Normaliser transforms raw uploaded bytes into normalised text.
// Each normaliser handles specific MIME types. Heavier formats (PDF,
// DOCX, PPTX) are handled by external extractors behind this same port.
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts and normalises text from a raw document.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
// Chunking is handled separately by the chunker post-processor.
type NormaliseResult struct {
	// Sections is the normalised text in document order. A plain text
	// file yields a single section; paged formats yield one per page.
	Sections []Section
}

// Section is a span of normalised text with optional provenance.
type Section struct {
	// Page is the 1-based page number, 0 when the format has no pages.
	Page int

	// Title is the section heading, if any.
	Title string

	// Text is the normalised text content.
	Text string
}

// NormaliserRegistry selects the appropriate normaliser for a document.
type NormaliserRegistry interface {
	// Normalise picks the best normaliser by MIME type and runs it.
	// Returns domain.ErrUnsupportedType when no normaliser matches.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)

	// Register adds a normaliser to the registry.
	Register(n Normaliser)
}

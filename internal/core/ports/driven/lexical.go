package driven

import (
	"context"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// LexicalIndex provides ranked keyword search over chunk text.
// Indexing is idempotent by chunk ID: re-indexing the same chunk
// replaces its postings rather than duplicating them.
type LexicalIndex interface {
	// Index adds or replaces a chunk in the index.
	Index(ctx context.Context, chunk domain.Chunk) error

	// Search performs a ranked keyword search. Filters are applied before
	// ranking so k hits are always drawn from the filtered population.
	Search(ctx context.Context, query string, k int, filters domain.Filters) ([]LexicalHit, error)

	// DeleteByDocument removes all postings belonging to a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Close releases resources.
	Close() error
}

// LexicalHit represents a keyword search result.
type LexicalHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the relevance score (BM25).
	Score float64
}

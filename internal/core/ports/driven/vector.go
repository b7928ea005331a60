package driven

import (
	"context"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// VectorIndex provides semantic similarity search over chunk embeddings.
// Entries are keyed by chunk ID with a 1:1 lifecycle: created once,
// never updated, removed only when the owning document is purged.
type VectorIndex interface {
	// Has reports whether a vector exists for the chunk ID. Ingestion
	// uses this as a cheap pre-check to skip the embedding call entirely
	// for already-seen chunk content.
	Has(ctx context.Context, chunkID string) (bool, error)

	// AddIfAbsent atomically inserts a vector for the chunk ID unless one
	// already exists. Returns true when the vector was inserted, false
	// when another writer got there first. This is the single primitive
	// that makes concurrent ingestion race-free per chunk ID.
	AddIfAbsent(ctx context.Context, chunkID string, embedding []float32, metadata map[string]string) (bool, error)

	// Search finds the k nearest neighbours to the query vector.
	// Filters are applied before ranking so k hits are always drawn from
	// the filtered population.
	Search(ctx context.Context, query []float32, k int, filters domain.Filters) ([]VectorHit, error)

	// DeleteByDocument removes all vectors belonging to a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score (0-1).
	Similarity float64
}

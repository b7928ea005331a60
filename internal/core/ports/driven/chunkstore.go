package driven

import (
	"context"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// ChunkStore persists documents and their per-document chunk manifests.
// The manifest is append-only and idempotent: appending an already-known
// chunk ID refreshes the record without duplicating it, so the store
// survives process restart and re-ingestion without drift.
type ChunkStore interface {
	// SaveDocument stores a document record. Saving an existing ID is a
	// no-op refresh (documents are content-addressed and immutable).
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// AppendChunks appends chunks to their document's manifest,
	// idempotently by chunk ID.
	AppendChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// GetChunks retrieves a document's manifest in chunk order.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// ListDocuments returns all known documents.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// DeleteDocument removes a document and its manifest.
	DeleteDocument(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}

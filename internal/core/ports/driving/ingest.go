package driving

import (
	"context"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// Ingestor coordinates document ingestion: normalise, chunk, dedup,
// embed, and index.
type Ingestor interface {
	// Ingest processes one uploaded document end to end. Chunks whose
	// dedup key is already present in the vector index are skipped at
	// the embedding stage. A per-chunk embedding failure is reported in
	// the result rather than aborting the document.
	Ingest(ctx context.Context, raw *domain.RawDocument) (*domain.IngestResult, error)

	// IngestAll processes a batch. A failure in one document never
	// corrupts or aborts the others; per-document errors are joined.
	IngestAll(ctx context.Context, raws []*domain.RawDocument) ([]*domain.IngestResult, error)

	// DeleteDocument removes a document from the chunk store and both
	// indexes.
	DeleteDocument(ctx context.Context, documentID string) error
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docqa-cli/internal/logger"
	"github.com/custodia-labs/docqa-cli/internal/postprocessors/chunker"
)

// Ensure IngestionCoordinator implements the interface.
var _ driving.Ingestor = (*IngestionCoordinator)(nil)

// embedRetryAttempts bounds embedding retries per document.
const embedRetryAttempts = 3

// embedRetryBase is the initial backoff delay for embedding retries.
const embedRetryBase = 250 * time.Millisecond

// IngestionCoordinator drives the ingest pipeline: normalise, chunk,
// dedup against the vector index, embed, and index.
//
// Re-ingestion is idempotent by construction. Chunk IDs are deterministic
// content hashes, the chunk manifest append is idempotent, and the vector
// upsert is add-if-absent, so ingesting the same bytes twice performs
// zero additional embedding calls.
type IngestionCoordinator struct {
	chunkStore   driven.ChunkStore
	vectorIndex  driven.VectorIndex
	lexicalIndex driven.LexicalIndex
	embedder     driven.EmbeddingService
	registry     driven.NormaliserRegistry
	splitter     *chunker.Processor
	limiter      *rate.Limiter
}

// NewIngestionCoordinator creates a new ingestion coordinator.
// The limiter throttles embedding provider calls; pass nil to disable.
func NewIngestionCoordinator(
	chunkStore driven.ChunkStore,
	vectorIndex driven.VectorIndex,
	lexicalIndex driven.LexicalIndex,
	embedder driven.EmbeddingService,
	registry driven.NormaliserRegistry,
	splitter *chunker.Processor,
	limiter *rate.Limiter,
) *IngestionCoordinator {
	return &IngestionCoordinator{
		chunkStore:   chunkStore,
		vectorIndex:  vectorIndex,
		lexicalIndex: lexicalIndex,
		embedder:     embedder,
		registry:     registry,
		splitter:     splitter,
		limiter:      limiter,
	}
}

// Ingest processes one uploaded document end to end.
func (c *IngestionCoordinator) Ingest(ctx context.Context, raw *domain.RawDocument) (*domain.IngestResult, error) {
	if raw == nil || len(raw.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", domain.ErrInvalidInput)
	}
	if c.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	logger.Section("Ingest")
	logger.Debug("Source: %s (%s, %d bytes)", raw.SourceName, raw.MIMEType, len(raw.Content))

	// 1. NORMALISE (produces ordered text sections)
	normalised, err := c.registry.Normalise(ctx, raw)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedType) {
			return nil, fmt.Errorf("%s: %w", raw.SourceName, err)
		}
		return nil, fmt.Errorf("%s: %w: %w", raw.SourceName, domain.ErrParseFailure, err)
	}

	// 2. BUILD CONTENT-ADDRESSED DOCUMENT
	doc := &domain.Document{
		ID:         domain.DocumentID(raw.Content),
		SourceName: raw.SourceName,
		MIMEType:   raw.MIMEType,
		UploadedBy: raw.UploadedBy,
		Metadata:   raw.Metadata,
		CreatedAt:  time.Now().UTC(),
	}

	// 3. CHUNK
	chunks, err := c.splitter.Process(ctx, doc, normalised.Sections)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", raw.SourceName, err)
	}
	logger.Debug("Document %s: %d chunks", doc.ID, len(chunks))

	// 4. PERSIST MANIFEST (idempotent; safe to redo on re-ingest)
	if err := c.chunkStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	if err := c.chunkStore.AppendChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("append chunks: %w", err)
	}

	// 5. DEDUP + EMBED + INDEX
	result := &domain.IngestResult{DocumentID: doc.ID}

	var pending []domain.Chunk
	for _, chunk := range chunks {
		exists, err := c.vectorIndex.Has(ctx, chunk.ID)
		if err != nil {
			return result, fmt.Errorf("check vector %s: %w", chunk.ID, err)
		}
		if exists {
			// Dedup hit: the chunk content is already embedded.
			// No embedding call is made for it.
			result.ChunksSkipped++
			continue
		}
		pending = append(pending, chunk)
	}
	logger.Debug("Dedup: %d new, %d already indexed", len(pending), result.ChunksSkipped)

	embeddings, failed := c.embedPending(ctx, pending)

	for i, chunk := range pending {
		if embeddings[i] == nil {
			result.ChunksFailed++
			result.FailedChunks = append(result.FailedChunks, chunk.ID)
			continue
		}

		added, err := c.vectorIndex.AddIfAbsent(ctx, chunk.ID, embeddings[i], chunk.Metadata)
		if err != nil {
			return result, fmt.Errorf("add vector %s: %w", chunk.ID, err)
		}
		if !added {
			// A concurrent writer inserted the same content first.
			// Embeddings are deterministic, so losing the race is harmless.
			result.ChunksSkipped++
			continue
		}
		result.ChunksCreated++
	}

	// 6. INDEX FOR KEYWORD SEARCH (idempotent by chunk ID)
	for _, chunk := range chunks {
		if err := c.lexicalIndex.Index(ctx, chunk); err != nil {
			return result, fmt.Errorf("index chunk %s: %w", chunk.ID, err)
		}
	}

	logger.Info("Ingested %s: created=%d skipped=%d failed=%d",
		doc.ID, result.ChunksCreated, result.ChunksSkipped, result.ChunksFailed)

	if failed != nil {
		return result, fmt.Errorf("%s: %w: %w", raw.SourceName, domain.ErrEmbeddingFailure, failed)
	}
	return result, nil
}

// embedPending embeds the new chunks, batch-first with per-chunk fallback
// so one bad chunk does not sink the document. The returned slice is
// parallel to pending; nil entries mark chunks that failed after retries.
func (c *IngestionCoordinator) embedPending(ctx context.Context, pending []domain.Chunk) ([][]float32, error) {
	embeddings := make([][]float32, len(pending))
	if len(pending) == 0 {
		return embeddings, nil
	}

	texts := make([]string, len(pending))
	for i, chunk := range pending {
		texts[i] = chunk.Text
	}

	batchErr := withRetry(ctx, embedRetryAttempts, embedRetryBase, func() error {
		if err := c.waitEmbedSlot(ctx); err != nil {
			return err
		}
		vectors, err := c.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		// A provider answering with the wrong cardinality is a contract
		// violation, not a partial success.
		if len(vectors) != len(texts) {
			return fmt.Errorf("%w: got %d vectors for %d texts",
				domain.ErrEmbeddingFailure, len(vectors), len(texts))
		}
		copy(embeddings, vectors)
		return nil
	})
	if batchErr == nil {
		return embeddings, nil
	}
	logger.Warn("Batch embedding failed, retrying per chunk: %v", batchErr)

	var errs []error
	for i, chunk := range pending {
		err := withRetry(ctx, embedRetryAttempts, embedRetryBase, func() error {
			if err := c.waitEmbedSlot(ctx); err != nil {
				return err
			}
			vector, err := c.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				return err
			}
			embeddings[i] = vector
			return nil
		})
		if err != nil {
			logger.Warn("Embedding failed for chunk %s: %v", chunk.ID, err)
			errs = append(errs, fmt.Errorf("chunk %s: %w", chunk.ID, err))
		}
	}

	return embeddings, errors.Join(errs...)
}

// waitEmbedSlot blocks until the embedding rate limiter admits a call.
func (c *IngestionCoordinator) waitEmbedSlot(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// IngestAll processes a batch of documents. A failure in one document is
// reported but never aborts the others.
func (c *IngestionCoordinator) IngestAll(ctx context.Context, raws []*domain.RawDocument) ([]*domain.IngestResult, error) {
	results := make([]*domain.IngestResult, 0, len(raws))
	var errs []error

	for _, raw := range raws {
		result, err := c.Ingest(ctx, raw)
		if err != nil {
			errs = append(errs, err)
		}
		if result != nil {
			results = append(results, result)
		}
	}

	return results, errors.Join(errs...)
}

// DeleteDocument removes a document from the chunk store and both indexes.
func (c *IngestionCoordinator) DeleteDocument(ctx context.Context, documentID string) error {
	if err := c.vectorIndex.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := c.lexicalIndex.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete postings: %w", err)
	}
	if err := c.chunkStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

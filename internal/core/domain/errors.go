package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a document MIME type with no normaliser.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrParseFailure indicates a document could not be read or normalised.
	// It is reported per document and never aborts a batch.
	ErrParseFailure = errors.New("parse failure")

	// ErrEmbeddingFailure indicates the embedding provider failed.
	// Embedding calls are retried with backoff before this surfaces.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrGenerationFailure indicates the generation provider failed during
	// drafting. The pipeline degrades to a well-formed Answer rather than
	// propagating this to the caller.
	ErrGenerationFailure = errors.New("generation failure")

	// ErrEmbeddingUnavailable indicates the embedding provider is not
	// configured. Dense retrieval and ingestion require it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationUnavailable indicates the generation provider is not
	// configured. Answering requires it.
	ErrGenerationUnavailable = errors.New("generation service unavailable")
)

// NotFoundReason values for Answer.NotFoundReason. Logical outcomes, not
// errors: they are valid answers and are never retried.
const (
	// ReasonNoEvidence means retrieval produced zero candidates.
	ReasonNoEvidence = "no evidence"

	// ReasonGenerationUnavailable means the generation provider failed
	// even after retry and no draft could be produced.
	ReasonGenerationUnavailable = "generation unavailable"
)

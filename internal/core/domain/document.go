package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// documentIDLength is the number of hex characters kept from the content hash.
const documentIDLength = 16

// chunkIDLength is the number of hex characters kept from the chunk hash.
const chunkIDLength = 32

// Document represents one uploaded source. Identity is content-addressed:
// re-uploading byte-identical content yields the same ID, which is what
// makes ingestion safely re-runnable.
type Document struct {
	// ID is derived from a SHA-256 hash of the raw uploaded bytes.
	ID string

	// SourceName is the human-readable origin (usually a file name).
	SourceName string

	// MIMEType is the declared content type of the upload.
	MIMEType string

	// UploadedBy identifies who submitted the document.
	UploadedBy string

	// Metadata contains arbitrary key-value pairs attached at upload time.
	// These become retrieval filters and citation payload on every chunk.
	Metadata map[string]string

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time
}

// Chunk is a bounded span of normalised document text, the unit of
// retrieval and citation. Chunks are created during ingestion and never
// mutated afterwards.
type Chunk struct {
	// ID is the dedup key: a hash of (DocumentID, Index, Text). It is
	// deterministic and stable across re-ingestion of the same content.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Index is the ordinal position within the document.
	Index int

	// Text is the normalised chunk text.
	Text string

	// Section is optional provenance (heading or section title).
	Section string

	// Page is the 1-based page number when the source has pages, else 0.
	Page int

	// TokenCount is the approximate token length of Text.
	TokenCount int

	// Metadata carries the parent document's metadata plus chunk-level
	// provenance, used as retrieval filters and citation payload.
	Metadata map[string]string
}

// RawDocument is an uploaded payload before normalisation.
type RawDocument struct {
	// SourceName is the file name or other display identifier.
	SourceName string

	// MIMEType is the declared content type.
	MIMEType string

	// Content is the raw uploaded bytes.
	Content []byte

	// UploadedBy identifies who submitted the document.
	UploadedBy string

	// Metadata is attached to the document and all of its chunks.
	Metadata map[string]string
}

// DocumentID computes the content-addressed identifier for raw bytes.
func DocumentID(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:documentIDLength]
}

// ChunkID computes the deterministic dedup key for a chunk.
// Two chunks with the same parent document, position and text always
// produce the same ID, so re-ingestion never duplicates index entries.
func ChunkID(documentID string, index int, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s", documentID, index, text)
	return hex.EncodeToString(h.Sum(nil))[:chunkIDLength]
}

// IngestResult reports the outcome of ingesting one document.
type IngestResult struct {
	// DocumentID is the content-addressed identifier of the document.
	DocumentID string

	// ChunksCreated is the number of chunks embedded and indexed.
	ChunksCreated int

	// ChunksSkipped is the number of chunks already present in the
	// vector index (dedup hits - no embedding call was made for these).
	ChunksSkipped int

	// ChunksFailed is the number of chunks that could not be embedded
	// after retries. Failed chunks are reported, not silently dropped.
	ChunksFailed int

	// FailedChunks lists the IDs of chunks that failed, if any.
	FailedChunks []string
}

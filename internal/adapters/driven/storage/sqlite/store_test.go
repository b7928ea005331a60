package sqlite

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*ChunkStore, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "docqa-test-*")
	require.NoError(t, err)

	store, err := NewChunkStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

func testDocument(content string, name string) *domain.Document {
	return &domain.Document{
		ID:         domain.DocumentID([]byte(content)),
		SourceName: name,
		MIMEType:   "text/plain",
		UploadedBy: "tester",
		Metadata:   map[string]string{"team": "platform"},
		CreatedAt:  time.Now().UTC(),
	}
}

func storedChunk(docID string, index int, text string) domain.Chunk {
	return domain.Chunk{
		ID:         domain.ChunkID(docID, index, text),
		DocumentID: docID,
		Index:      index,
		Text:       text,
		Section:    "intro",
		Page:       1,
		TokenCount: 3,
		Metadata:   map[string]string{"document_id": docID},
	}
}

func TestChunkStore_SaveAndGetDocument(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	doc := testDocument("hello world", "hello.txt")
	require.NoError(t, store.SaveDocument(ctx, doc))

	got, err := store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, "hello.txt", got.SourceName)
	assert.Equal(t, "text/plain", got.MIMEType)
	assert.Equal(t, "tester", got.UploadedBy)
	assert.Equal(t, map[string]string{"team": "platform"}, got.Metadata)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestChunkStore_SaveDocument_IdempotentRefresh(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	doc := testDocument("same bytes", "first.txt")
	require.NoError(t, store.SaveDocument(ctx, doc))

	renamed := *doc
	renamed.SourceName = "renamed.txt"
	require.NoError(t, store.SaveDocument(ctx, &renamed))

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "renamed.txt", docs[0].SourceName)
}

func TestChunkStore_SaveDocument_EmptyID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.SaveDocument(context.Background(), &domain.Document{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChunkStore_AppendAndGetChunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	doc := testDocument("chunked content", "doc.txt")
	require.NoError(t, store.SaveDocument(ctx, doc))

	chunks := []domain.Chunk{
		storedChunk(doc.ID, 1, "second chunk text"),
		storedChunk(doc.ID, 0, "first chunk text"),
	}
	require.NoError(t, store.AppendChunks(ctx, chunks))

	got, err := store.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, "first chunk text", got[0].Text)
	assert.Equal(t, 1, got[1].Index)
}

func TestChunkStore_AppendChunks_Idempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	doc := testDocument("dedup content", "doc.txt")
	require.NoError(t, store.SaveDocument(ctx, doc))

	chunk := storedChunk(doc.ID, 0, "stable text")
	require.NoError(t, store.AppendChunks(ctx, []domain.Chunk{chunk}))
	require.NoError(t, store.AppendChunks(ctx, []domain.Chunk{chunk}))

	got, err := store.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestChunkStore_GetChunk(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	doc := testDocument("lookup content", "doc.txt")
	require.NoError(t, store.SaveDocument(ctx, doc))

	chunk := storedChunk(doc.ID, 0, "findable text")
	require.NoError(t, store.AppendChunks(ctx, []domain.Chunk{chunk}))

	got, err := store.GetChunk(ctx, chunk.ID)
	require.NoError(t, err)
	assert.Equal(t, "findable text", got.Text)
	assert.Equal(t, map[string]string{"document_id": doc.ID}, got.Metadata)

	_, err = store.GetChunk(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChunkStore_DeleteDocument_CascadesToChunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	doc := testDocument("doomed content", "doc.txt")
	require.NoError(t, store.SaveDocument(ctx, doc))
	chunk := storedChunk(doc.ID, 0, "doomed text")
	require.NoError(t, store.AppendChunks(ctx, []domain.Chunk{chunk}))

	require.NoError(t, store.DeleteDocument(ctx, doc.ID))

	_, err := store.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetChunk(ctx, chunk.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = store.DeleteDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChunkStore_SurvivesReopen(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "docqa-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)
	ctx := context.Background()

	store, err := NewChunkStore(tempDir)
	require.NoError(t, err)

	doc := testDocument("durable content", "doc.txt")
	require.NoError(t, store.SaveDocument(ctx, doc))
	require.NoError(t, store.AppendChunks(ctx, []domain.Chunk{storedChunk(doc.ID, 0, "durable text")}))
	require.NoError(t, store.Close())

	reopened, err := NewChunkStore(tempDir)
	require.NoError(t, err)
	defer reopened.Close()

	chunks, err := reopened.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

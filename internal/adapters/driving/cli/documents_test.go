package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

func TestDocumentsCmd_ListEmpty(t *testing.T) {
	_, _, cleanup := setupTestServices(t)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"documents", "list"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No documents ingested yet")
}

func TestDocumentsCmd_ListShowsDocuments(t *testing.T) {
	_, _, cleanup := setupTestServices(t)
	defer cleanup()

	doc := &domain.Document{
		ID:         domain.DocumentID([]byte("handbook content")),
		SourceName: "handbook.txt",
		MIMEType:   "text/plain",
		CreatedAt:  time.Now(),
	}
	require.NoError(t, chunkStore.SaveDocument(context.Background(), doc))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"documents", "list"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, buf.String(), doc.ID)
	assert.Contains(t, buf.String(), "handbook.txt")
}

func TestDocumentsCmd_Delete(t *testing.T) {
	_, ingestor, cleanup := setupTestServices(t)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"documents", "delete", "abc123"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, []string{"abc123"}, ingestor.deleted)
	assert.Contains(t, buf.String(), "Deleted abc123")
}

func TestDocumentsCmd_DeleteNotFound(t *testing.T) {
	_, ingestor, cleanup := setupTestServices(t)
	defer cleanup()
	ingestor.err = domain.ErrNotFound

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"documents", "delete", "missing"})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestCmd_Use(t *testing.T) {
	assert.Equal(t, "ingest [path...]", ingestCmd.Use)
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"notes.txt", "text/plain"},
		{"readme.md", "text/markdown"},
		{"guide.markdown", "text/markdown"},
		{"config.toml", "application/toml"},
		{"data.yaml", "application/yaml"},
		{"data.yml", "application/yaml"},
		{"binary.exe", ""},
		{"image.png", ""},
		{"archive.tar.gz", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, detectMIMEType(tt.path))
		})
	}
}

func TestCollectFiles_WalksDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("b"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.bin"), []byte{0}, 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.txt"), []byte("h"), 0600))
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "c.txt"), []byte("c"), 0600))

	paths, err := collectFiles([]string{dir})
	require.NoError(t, err)

	assert.Len(t, paths, 3)
	assert.Contains(t, paths, filepath.Join(dir, "a.txt"))
	assert.Contains(t, paths, filepath.Join(dir, "b.md"))
	assert.Contains(t, paths, filepath.Join(sub, "c.txt"))
}

func TestCollectFiles_ExplicitFileBypassesExtensionCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.log")
	require.NoError(t, os.WriteFile(path, []byte("log"), 0600))

	paths, err := collectFiles([]string{path})
	require.NoError(t, err)
	assert.Equal(t, []string{path}, paths)
}

func TestCollectFiles_MissingPath(t *testing.T) {
	_, err := collectFiles([]string{"/does/not/exist"})
	assert.Error(t, err)
}

func TestIngestCmd_IngestsFiles(t *testing.T) {
	_, ingestor, cleanup := setupTestServices(t)
	defer cleanup()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "handbook.txt"), []byte("some text"), 0600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"ingest", dir})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	require.NoError(t, err)
	assert.Equal(t, []string{"handbook.txt"}, ingestor.sources)
	assert.Contains(t, buf.String(), "1 chunks indexed")
}

func TestIngestCmd_EmbeddingNotConfigured(t *testing.T) {
	_, _, cleanup := setupTestServices(t)
	defer cleanup()
	appSettings.Embedding.Provider = ""

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", dir})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	assert.ErrorIs(t, err, errNotConfigured)
}

func TestIngestCmd_NoSupportedFiles(t *testing.T) {
	_, _, cleanup := setupTestServices(t)
	defer cleanup()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.bin"), []byte{0}, 0600))

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"ingest", dir})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no supported files")
}

func TestIngestCmd_ContinuesPastFailedFile(t *testing.T) {
	_, ingestor, cleanup := setupTestServices(t)
	defer cleanup()
	ingestor.err = assert.AnError

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0600))

	buf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(errBuf)
	rootCmd.SetArgs([]string{"ingest", dir})
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()

	// Both files attempted despite per-file failures.
	require.NoError(t, err)
	assert.Len(t, ingestor.sources, 2)
	assert.Contains(t, errBuf.String(), assert.AnError.Error())
}

package cli

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

var (
	ingestMetadata   []string
	ingestUploadedBy string
	ingestWatch      bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest files or directories into the index",
	Long: `Reads the given files (or all supported files under the given
directories), splits them into chunks, embeds them, and adds them to the
search index. Re-ingesting unchanged content is a no-op: chunks are
content-addressed and already-indexed chunks are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringArrayVarP(&ingestMetadata, "metadata", "m", nil, "metadata as key=value, attached to every chunk (repeatable)")
	ingestCmd.Flags().StringVar(&ingestUploadedBy, "uploaded-by", "", "uploader identity recorded on the document")
	ingestCmd.Flags().BoolVarP(&ingestWatch, "watch", "w", false, "watch directories and re-ingest on change")
	rootCmd.AddCommand(ingestCmd)
}

// extensionMIMETypes covers types the stdlib mime table may miss.
var extensionMIMETypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".toml":     "application/toml",
	".yaml":     "application/yaml",
	".yml":      "application/yaml",
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	if !appSettings.Embedding.IsConfigured() {
		return errNotConfigured
	}

	metadata, err := parseFilters(ingestMetadata)
	if err != nil {
		return err
	}

	paths, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 && !ingestWatch {
		return fmt.Errorf("no supported files found under %s", strings.Join(args, ", "))
	}

	ctx := cmd.Context()
	for _, path := range paths {
		if err := ingestFile(ctx, cmd, path, metadata); err != nil {
			// One bad file never aborts the batch.
			cmd.PrintErrf("  %s: %v\n", path, err)
		}
	}

	if ingestWatch {
		return watchAndIngest(ctx, cmd, args, metadata)
	}
	return nil
}

// collectFiles expands the given paths into the supported files they
// contain. Dotfiles and unsupported extensions are skipped silently.
func collectFiles(roots []string) ([]string, error) {
	var paths []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}

		if !info.IsDir() {
			paths = append(paths, root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if strings.HasPrefix(name, ".") && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(name, ".") || detectMIMEType(path) == "" {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	return paths, nil
}

// detectMIMEType resolves a file's MIME type from its extension.
// Returns empty for unsupported extensions.
func detectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mimeType, ok := extensionMIMETypes[ext]; ok {
		return mimeType
	}
	mimeType := mime.TypeByExtension(ext)
	switch {
	case strings.HasPrefix(mimeType, "text/"),
		mimeType == "application/json":
		return mimeType
	default:
		return ""
	}
}

func ingestFile(ctx context.Context, cmd *cobra.Command, path string, metadata domain.Filters) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	raw := &domain.RawDocument{
		SourceName: filepath.Base(path),
		MIMEType:   detectMIMEType(path),
		Content:    content,
		UploadedBy: ingestUploadedBy,
		Metadata:   metadata,
	}

	result, err := ingestService.Ingest(ctx, raw)
	if err != nil {
		return err
	}

	cmd.Printf("%s: %d chunks indexed, %d already known", path, result.ChunksCreated, result.ChunksSkipped)
	if result.ChunksFailed > 0 {
		cmd.Printf(", %d FAILED", result.ChunksFailed)
	}
	cmd.Println()
	return nil
}

// watchAndIngest re-ingests files as they are created or modified under
// the watched directories. Blocks until the context is cancelled.
func watchAndIngest(ctx context.Context, cmd *cobra.Command, roots []string, metadata domain.Filters) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("stat %s: %w", root, err)
		}
		watchPath := root
		if !info.IsDir() {
			watchPath = filepath.Dir(root)
		}
		if err := watcher.Add(watchPath); err != nil {
			return fmt.Errorf("watching %s: %w", watchPath, err)
		}
	}

	cmd.Printf("Watching %s for changes (ctrl-c to stop)\n", strings.Join(roots, ", "))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if detectMIMEType(event.Name) == "" {
				continue
			}
			// Ingestion is content-addressed, so duplicate events for
			// the same write are harmless.
			if err := ingestFile(ctx, cmd, event.Name, metadata); err != nil {
				cmd.PrintErrf("  %s: %v\n", event.Name, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error: %v", err)
		}
	}
}

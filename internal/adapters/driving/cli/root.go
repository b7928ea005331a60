// Package cli implements the command-line interface. Commands share a
// lazily-initialised service graph: the first command that needs a
// service triggers full wiring from settings.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/config/file"
	indexmem "github.com/custodia-labs/docqa-cli/internal/adapters/driven/index/memory"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/index/qdrant"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/lexical/bm25"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docqa-cli/internal/core/services"
	"github.com/custodia-labs/docqa-cli/internal/logger"
	"github.com/custodia-labs/docqa-cli/internal/normalisers"
	"github.com/custodia-labs/docqa-cli/internal/normalisers/markdown"
	"github.com/custodia-labs/docqa-cli/internal/normalisers/plaintext"
	"github.com/custodia-labs/docqa-cli/internal/postprocessors/chunker"
)

// version is set at build time via -ldflags.
var version = "dev"

// embedRateLimit caps embedding provider calls per second during ingest.
const embedRateLimit = 10

var (
	verboseFlag bool
	dataDirFlag string
)

// Shared services, populated by initServices. Tests may substitute these.
var (
	settingsStore driven.SettingsStore
	promptStore   driven.PromptStore
	chunkStore    driven.ChunkStore
	vectorIndex   driven.VectorIndex
	lexicalIndex  driven.LexicalIndex
	ingestService driving.Ingestor
	answerService driving.Answerer

	appSettings domain.AppSettings
	initialised bool
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Question answering over your documents",
	Long: `docqa ingests documents into a hybrid search index and answers
questions about them with citations back to the source material.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data directory (default ~/.docqa)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initServices wires the service graph from settings. Safe to call from
// multiple commands; wiring happens once per process.
func initServices() error {
	if initialised {
		return nil
	}

	// .env is optional, used mainly for API keys and the Qdrant endpoint
	_ = godotenv.Load()

	var err error
	settingsStore, err = file.NewSettingsStore(dataDirFlag)
	if err != nil {
		return fmt.Errorf("opening settings: %w", err)
	}
	appSettings, err = settingsStore.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	applyEnvOverrides(&appSettings)

	promptStore, err = file.NewPromptStore("")
	if err != nil {
		return fmt.Errorf("opening prompt store: %w", err)
	}

	chunkStore, err = sqlite.NewChunkStore(dataDirFlag)
	if err != nil {
		return fmt.Errorf("opening chunk store: %w", err)
	}

	embedder, err := ai.CreateEmbeddingService(&appSettings.Embedding)
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}
	generator, err := ai.CreateGenerationService(&appSettings.Generation)
	if err != nil {
		return fmt.Errorf("creating generation service: %w", err)
	}
	if aware, ok := generator.(driven.PromptStoreAware); ok {
		aware.SetPromptStore(promptStore)
	}

	if vectorIndex, err = buildVectorIndex(embedder); err != nil {
		return err
	}

	lexicalIndex = bm25.New()
	if err := rebuildLexicalIndex(context.Background()); err != nil {
		return fmt.Errorf("rebuilding lexical index: %w", err)
	}

	registry := normalisers.NewRegistry()
	registry.Register(plaintext.New())
	registry.Register(markdown.New())

	splitter := chunker.New(
		chunker.WithChunkSize(appSettings.RAG.ChunkSizeTokens),
		chunker.WithOverlap(appSettings.RAG.ChunkOverlapTokens),
	)

	var limiter *rate.Limiter
	if embedder != nil {
		limiter = rate.NewLimiter(rate.Limit(embedRateLimit), embedRateLimit)
	}

	ingestService = services.NewIngestionCoordinator(
		chunkStore, vectorIndex, lexicalIndex, embedder, registry, splitter, limiter)

	retriever := services.NewHybridRetriever(
		chunkStore, vectorIndex, lexicalIndex, embedder,
		appSettings.RAG.TopKDense, appSettings.RAG.TopKSparse,
		appSettings.RAG.ContextBudgetTokens)

	pipeline := services.NewAnswerPipeline(
		retriever, generator, nil,
		appSettings.RAG.ReflectionThreshold,
		appSettings.RAG.MaxReflectionLoops,
		appSettings.RAG.TopKDense+appSettings.RAG.TopKSparse)

	answerService = services.NewResponseCache(pipeline, appSettings.Cache.Enabled)

	initialised = true
	return nil
}

// buildVectorIndex returns a Qdrant-backed index when QDRANT_URL is set,
// otherwise an in-process index. The in-process index does not persist,
// so chunks are re-embedded on restart; Qdrant keeps vectors across runs.
func buildVectorIndex(embedder driven.EmbeddingService) (driven.VectorIndex, error) {
	url := os.Getenv("QDRANT_URL")
	if url == "" {
		return indexmem.NewVectorIndex(), nil
	}

	idx := qdrant.New(qdrant.Config{
		URL:        url,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		Collection: os.Getenv("QDRANT_COLLECTION"),
	})
	if embedder != nil {
		if err := idx.Init(context.Background(), embedder.Dimensions()); err != nil {
			return nil, fmt.Errorf("initialising vector index: %w", err)
		}
	}
	return idx, nil
}

// rebuildLexicalIndex reloads all stored chunks into the in-process
// keyword index. The chunk manifest is the durable copy; the postings
// are derived state.
func rebuildLexicalIndex(ctx context.Context) error {
	docs, err := chunkStore.ListDocuments(ctx)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		chunks, err := chunkStore.GetChunks(ctx, doc.ID)
		if err != nil {
			return err
		}
		for _, chunk := range chunks {
			if err := lexicalIndex.Index(ctx, chunk); err != nil {
				return err
			}
		}
	}
	logger.Debug("lexical index rebuilt from %d documents", len(docs))
	return nil
}

// applyEnvOverrides lets environment variables supply credentials so the
// config file never has to hold secrets.
func applyEnvOverrides(settings *domain.AppSettings) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if settings.Embedding.Provider == domain.AIProviderOpenAI && settings.Embedding.APIKey == "" {
			settings.Embedding.APIKey = key
		}
		if settings.Generation.Provider == domain.AIProviderOpenAI && settings.Generation.APIKey == "" {
			settings.Generation.APIKey = key
		}
	}
}

// errNotConfigured explains how to set up a missing AI provider.
var errNotConfigured = errors.New("AI provider not configured: set [embedding] and [generation] in config.toml")

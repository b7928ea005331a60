package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure retrieval parameters and AI providers.

Settings live in a TOML file; API keys may also be supplied via
environment variables (OPENAI_API_KEY) to keep them out of the file.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var (
	providerFlag string
	modelFlag    string
	baseURLFlag  string
	apiKeyFlag   string
)

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure the embedding provider",
	RunE:  runSettingsEmbedding,
}

var settingsGenerationCmd = &cobra.Command{
	Use:   "generation",
	Short: "Configure the generation provider",
	RunE:  runSettingsGeneration,
}

var cacheEnabledFlag bool

var settingsCacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Configure the response cache",
	RunE:  runSettingsCache,
}

func init() {
	for _, c := range []*cobra.Command{settingsEmbeddingCmd, settingsGenerationCmd} {
		c.Flags().StringVar(&providerFlag, "provider", "", "provider name (ollama or openai)")
		c.Flags().StringVar(&modelFlag, "model", "", "model name")
		c.Flags().StringVar(&baseURLFlag, "base-url", "", "API endpoint")
		c.Flags().StringVar(&apiKeyFlag, "api-key", "", "API key")
	}
	settingsCacheCmd.Flags().BoolVar(&cacheEnabledFlag, "enabled", false, "enable answer memoisation")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsGenerationCmd)
	settingsCmd.AddCommand(settingsCacheCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if err := initServices(); err != nil {
		return err
	}

	cmd.Printf("Settings file: %s\n\n", settingsStore.Path())

	cmd.Println("[Retrieval]")
	cmd.Printf("  Chunk size:          %d tokens (overlap %d)\n",
		appSettings.RAG.ChunkSizeTokens, appSettings.RAG.ChunkOverlapTokens)
	cmd.Printf("  Top-k:               %d dense + %d sparse\n",
		appSettings.RAG.TopKDense, appSettings.RAG.TopKSparse)
	cmd.Printf("  Context budget:      %d tokens\n", appSettings.RAG.ContextBudgetTokens)
	cmd.Printf("  Reflection:          threshold %.2f, max %d loops\n",
		appSettings.RAG.ReflectionThreshold, appSettings.RAG.MaxReflectionLoops)
	cmd.Println()

	cmd.Println("[Embedding]")
	printProvider(cmd, appSettings.Embedding.Provider, appSettings.Embedding.Model, appSettings.Embedding.IsConfigured())
	cmd.Println()

	cmd.Println("[Generation]")
	printProvider(cmd, appSettings.Generation.Provider, appSettings.Generation.Model, appSettings.Generation.IsConfigured())
	cmd.Println()

	cmd.Println("[Cache]")
	cmd.Printf("  Enabled:             %v\n", appSettings.Cache.Enabled)
	return nil
}

func printProvider(cmd *cobra.Command, provider domain.AIProvider, model string, configured bool) {
	if provider == "" {
		cmd.Println("  Provider:            (not set)")
		return
	}
	cmd.Printf("  Provider:            %s\n", provider)
	if model != "" {
		cmd.Printf("  Model:               %s\n", model)
	}
	if !configured {
		cmd.Println("  Status:              NOT CONFIGURED (missing API key?)")
	}
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	return updateSettings(cmd, func(settings *domain.AppSettings) error {
		provider := domain.AIProvider(providerFlag)
		if !provider.IsValid() {
			return fmt.Errorf("unknown provider %q", providerFlag)
		}
		settings.Embedding = domain.EmbeddingSettings{
			Provider: provider,
			Model:    modelFlag,
			BaseURL:  baseURLFlag,
			APIKey:   apiKeyFlag,
		}
		return nil
	})
}

func runSettingsGeneration(cmd *cobra.Command, _ []string) error {
	return updateSettings(cmd, func(settings *domain.AppSettings) error {
		provider := domain.AIProvider(providerFlag)
		if !provider.IsValid() {
			return fmt.Errorf("unknown provider %q", providerFlag)
		}
		settings.Generation.Provider = provider
		settings.Generation.Model = modelFlag
		settings.Generation.BaseURL = baseURLFlag
		settings.Generation.APIKey = apiKeyFlag
		return nil
	})
}

func runSettingsCache(cmd *cobra.Command, _ []string) error {
	return updateSettings(cmd, func(settings *domain.AppSettings) error {
		settings.Cache.Enabled = cacheEnabledFlag
		return nil
	})
}

// updateSettings loads, mutates, and persists the settings file.
func updateSettings(cmd *cobra.Command, mutate func(*domain.AppSettings) error) error {
	if err := initServices(); err != nil {
		return err
	}

	settings, err := settingsStore.Load()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if err := mutate(&settings); err != nil {
		return err
	}
	if err := settingsStore.Save(settings); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}

	cmd.Printf("Saved %s\n", settingsStore.Path())
	return nil
}

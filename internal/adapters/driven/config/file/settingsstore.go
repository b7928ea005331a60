package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// Ensure SettingsStore implements the interface.
var _ driven.SettingsStore = (*SettingsStore)(nil)

// SettingsStore is a file-based implementation of driven.SettingsStore
// using TOML. Missing keys fall back to defaults on load, so a partial
// config file written by hand still yields a fully-populated settings
// value.
type SettingsStore struct {
	mu       sync.RWMutex
	filePath string
}

// fileSettings mirrors domain.AppSettings with TOML tags. Keeping the
// serialisation shape out of the domain package lets the file format
// evolve independently of the domain types.
type fileSettings struct {
	RAG        ragSettings        `toml:"rag"`
	Embedding  providerSettings   `toml:"embedding"`
	Generation generationSettings `toml:"generation"`
	Cache      cacheSettings      `toml:"cache"`
}

type ragSettings struct {
	ChunkSizeTokens     int     `toml:"chunk_size_tokens"`
	ChunkOverlapTokens  int     `toml:"chunk_overlap_tokens"`
	TopKDense           int     `toml:"top_k_dense"`
	TopKSparse          int     `toml:"top_k_sparse"`
	ContextBudgetTokens int     `toml:"context_budget_tokens"`
	ReflectionThreshold float64 `toml:"reflection_threshold"`
	MaxReflectionLoops  int     `toml:"max_reflection_loops"`
}

type providerSettings struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url"`
	APIKey   string `toml:"api_key"`
}

type generationSettings struct {
	Provider        string `toml:"provider"`
	Model           string `toml:"model"`
	BaseURL         string `toml:"base_url"`
	APIKey          string `toml:"api_key"`
	MaxOutputTokens int    `toml:"max_output_tokens"`
}

type cacheSettings struct {
	Enabled bool `toml:"enabled"`
}

// NewSettingsStore creates a TOML-backed settings store.
// If configDir is empty, defaults to ~/.docqa/config.toml.
func NewSettingsStore(configDir string) (*SettingsStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".docqa")
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	return &SettingsStore{
		filePath: filepath.Join(configDir, "config.toml"),
	}, nil
}

// Load reads settings from the TOML file. A missing file yields the
// defaults; a present file has its zero-valued retrieval knobs filled
// from the defaults so an edited config never disables retrieval
// outright.
func (s *SettingsStore) Load() (domain.AppSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := domain.DefaultAppSettings()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, fmt.Errorf("reading settings: %w", err)
	}

	var loaded fileSettings
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return settings, fmt.Errorf("parsing settings: %w", err)
	}

	applyRAG(&settings.RAG, loaded.RAG)
	settings.Embedding = domain.EmbeddingSettings{
		Provider: domain.AIProvider(loaded.Embedding.Provider),
		Model:    loaded.Embedding.Model,
		BaseURL:  loaded.Embedding.BaseURL,
		APIKey:   loaded.Embedding.APIKey,
	}
	settings.Generation = domain.GenerationSettings{
		Provider:        domain.AIProvider(loaded.Generation.Provider),
		Model:           loaded.Generation.Model,
		BaseURL:         loaded.Generation.BaseURL,
		APIKey:          loaded.Generation.APIKey,
		MaxOutputTokens: loaded.Generation.MaxOutputTokens,
	}
	settings.Cache = domain.CacheSettings{Enabled: loaded.Cache.Enabled}

	return settings, nil
}

// Save persists settings to the TOML file.
func (s *SettingsStore) Save(settings domain.AppSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := fileSettings{
		RAG: ragSettings{
			ChunkSizeTokens:     settings.RAG.ChunkSizeTokens,
			ChunkOverlapTokens:  settings.RAG.ChunkOverlapTokens,
			TopKDense:           settings.RAG.TopKDense,
			TopKSparse:          settings.RAG.TopKSparse,
			ContextBudgetTokens: settings.RAG.ContextBudgetTokens,
			ReflectionThreshold: settings.RAG.ReflectionThreshold,
			MaxReflectionLoops:  settings.RAG.MaxReflectionLoops,
		},
		Embedding: providerSettings{
			Provider: string(settings.Embedding.Provider),
			Model:    settings.Embedding.Model,
			BaseURL:  settings.Embedding.BaseURL,
			APIKey:   settings.Embedding.APIKey,
		},
		Generation: generationSettings{
			Provider:        string(settings.Generation.Provider),
			Model:           settings.Generation.Model,
			BaseURL:         settings.Generation.BaseURL,
			APIKey:          settings.Generation.APIKey,
			MaxOutputTokens: settings.Generation.MaxOutputTokens,
		},
		Cache: cacheSettings{Enabled: settings.Cache.Enabled},
	}

	data, err := toml.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshalling settings: %w", err)
	}

	// Write with restricted permissions (the file may hold API keys)
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

// Path returns the settings file path.
func (s *SettingsStore) Path() string {
	return s.filePath
}

// applyRAG overlays non-zero loaded values on the defaults. Zero means
// "not set in the file", not "disable".
func applyRAG(dst *domain.RAGSettings, src ragSettings) {
	if src.ChunkSizeTokens > 0 {
		dst.ChunkSizeTokens = src.ChunkSizeTokens
	}
	if src.ChunkOverlapTokens > 0 {
		dst.ChunkOverlapTokens = src.ChunkOverlapTokens
	}
	if src.TopKDense > 0 {
		dst.TopKDense = src.TopKDense
	}
	if src.TopKSparse > 0 {
		dst.TopKSparse = src.TopKSparse
	}
	if src.ContextBudgetTokens > 0 {
		dst.ContextBudgetTokens = src.ContextBudgetTokens
	}
	if src.ReflectionThreshold > 0 {
		dst.ReflectionThreshold = src.ReflectionThreshold
	}
	if src.MaxReflectionLoops > 0 {
		dst.MaxReflectionLoops = src.MaxReflectionLoops
	}
}

package domain

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible APIs).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// GenerationSettings holds generation provider configuration.
type GenerationSettings struct {
	// Provider is the generation service provider.
	Provider AIProvider

	// Model is the model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or OpenAI-compatible APIs).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// MaxOutputTokens caps completion length. Zero means provider default.
	MaxOutputTokens int
}

// IsConfigured returns true if the generation provider is set up.
func (g GenerationSettings) IsConfigured() bool {
	if !g.Provider.IsValid() {
		return false
	}
	if g.Provider.RequiresAPIKey() && g.APIKey == "" {
		return false
	}
	return true
}

// RAGSettings holds the retrieval and reflection knobs. Threshold and
// MaxReflectionLoops are configuration, never hardcoded in the pipeline.
type RAGSettings struct {
	// ChunkSizeTokens is the target chunk size in tokens.
	ChunkSizeTokens int

	// ChunkOverlapTokens is the overlap carried between adjacent chunks.
	ChunkOverlapTokens int

	// TopKDense is the candidate count requested from the vector index.
	TopKDense int

	// TopKSparse is the candidate count requested from the lexical index.
	TopKSparse int

	// ContextBudgetTokens caps the total tokens handed to generation.
	ContextBudgetTokens int

	// ReflectionThreshold is the groundedness score at or above which the
	// pipeline finalises instead of looping.
	ReflectionThreshold float64

	// MaxReflectionLoops bounds REFLECT->RETRIEVE cycles and therefore
	// worst-case latency.
	MaxReflectionLoops int
}

// CacheSettings holds response cache configuration.
type CacheSettings struct {
	// Enabled turns answer memoisation on.
	Enabled bool
}

// AppSettings holds all application settings.
type AppSettings struct {
	// RAG holds retrieval and reflection settings.
	RAG RAGSettings

	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// Generation holds generation provider settings.
	Generation GenerationSettings

	// Cache holds response cache settings.
	Cache CacheSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured; users must set them up explicitly.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		RAG: RAGSettings{
			ChunkSizeTokens:     600,
			ChunkOverlapTokens:  120,
			TopKDense:           6,
			TopKSparse:          4,
			ContextBudgetTokens: 3000,
			ReflectionThreshold: 0.65,
			MaxReflectionLoops:  2,
		},
		Embedding:  EmbeddingSettings{},
		Generation: GenerationSettings{},
		Cache:      CacheSettings{Enabled: false},
	}
}

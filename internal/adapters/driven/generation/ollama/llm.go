// Package ollama provides a generation service adapter using a local
// Ollama instance.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/generation"
	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// Ensure GenerationService implements the interfaces.
var (
	_ driven.GenerationService = (*GenerationService)(nil)
	_ driven.PromptStoreAware  = (*GenerationService)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL   = "http://localhost:11434"
	DefaultModel     = "llama3.2"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024
)

// Config holds configuration for the Ollama generation service.
type Config struct {
	// BaseURL is the Ollama API base URL.
	BaseURL string

	// Model is the chat model to use.
	Model string

	// Timeout is the request timeout.
	Timeout time.Duration

	// MaxOutputTokens caps the completion length.
	MaxOutputTokens int
}

// GenerationService produces structured drafts through a local Ollama
// server.
type GenerationService struct {
	client      *http.Client
	baseURL     string
	model       string
	maxTokens   int
	promptStore driven.PromptStore
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// New creates a new Ollama generation service.
func New(cfg Config) *GenerationService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = DefaultMaxTokens
	}

	return &GenerationService{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		maxTokens: cfg.MaxOutputTokens,
	}
}

// Draft generates a structured answer for the question from the context
// block.
func (s *GenerationService) Draft(ctx context.Context, question, contextBlock string) (*domain.Draft, error) {
	system := s.loadPrompt(driven.PromptDraftSystem, generation.DefaultDraftSystemPrompt)
	userTemplate := s.loadPrompt(driven.PromptDraftUser, generation.DefaultDraftUserPrompt)

	content, err := s.chat(ctx, []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: fmt.Sprintf(userTemplate, question, contextBlock)},
	}, 0)
	if err != nil {
		return nil, err
	}

	draft, err := generation.ParseDraft(content)
	if err != nil {
		return nil, fmt.Errorf("ollama draft: %w", err)
	}
	return draft, nil
}

// RewriteQuery broadens a question for better retrieval recall.
func (s *GenerationService) RewriteQuery(ctx context.Context, query string) (string, error) {
	template := s.loadPrompt(driven.PromptQueryRewrite, generation.DefaultQueryRewritePrompt)

	content, err := s.chat(ctx, []chatMessage{
		{Role: "user", Content: fmt.Sprintf(template, query)},
	}, 0.3)
	if err != nil {
		return "", fmt.Errorf("rewrite query: %w", err)
	}
	return strings.TrimSpace(content), nil
}

// chat sends one non-streaming chat request and returns the completion.
func (s *GenerationService) chat(ctx context.Context, messages []chatMessage, temperature float64) (string, error) {
	jsonBody, err := json.Marshal(chatRequest{
		Model:    s.model,
		Messages: messages,
		Stream:   false,
		Options: &options{
			NumPredict:  s.maxTokens,
			Temperature: temperature,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return chatResp.Message.Content, nil
}

// loadPrompt loads a prompt from the store, falling back to the default
// if unavailable.
func (s *GenerationService) loadPrompt(name, fallback string) string {
	if s.promptStore == nil {
		return fallback
	}
	prompt, err := s.promptStore.Load(name)
	if err != nil {
		return fallback
	}
	return prompt
}

// ModelName returns the name of the chat model being used.
func (s *GenerationService) ModelName() string {
	return s.model
}

// SetPromptStore sets the prompt store for loading customisable prompts.
// If not set, the service uses embedded default prompts.
func (s *GenerationService) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// Ping validates the Ollama server is reachable.
func (s *GenerationService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed (is ollama running?): %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: server returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (s *GenerationService) Close() error {
	return nil
}

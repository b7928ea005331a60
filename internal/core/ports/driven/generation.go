package driven

import (
	"context"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// GenerationService produces structured, grounded completions.
// The pipeline is provider-agnostic: cloud-hosted and locally-hosted
// models sit behind this same contract, selected by configuration.
//
// Implementations may include:
//   - OpenAI (gpt-4o-mini and compatible chat-completion APIs)
//   - Ollama (local models)
type GenerationService interface {
	// Draft generates a structured answer for the question using ONLY the
	// provided context block. The returned Draft conforms to the answer
	// schema: answer text, citations, evidence, confidence, and an
	// optional refusal reason when evidence is insufficient.
	Draft(ctx context.Context, question, contextBlock string) (*domain.Draft, error)

	// RewriteQuery broadens or rewrites a question for better recall.
	// Used by the reflection loop to recover from poorly grounded drafts.
	RewriteQuery(ctx context.Context, query string) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

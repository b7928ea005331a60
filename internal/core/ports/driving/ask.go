package driving

import (
	"context"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// Answerer runs the question-answering pipeline.
type Answerer interface {
	// Ask answers a natural-language question over the ingested corpus.
	// The returned Answer is always well-formed: when no answer can be
	// grounded, NotFoundReason is set instead of returning an error.
	Ask(ctx context.Context, question string, filters domain.Filters) (*domain.Answer, error)
}

// Retriever produces the merged, deduplicated candidate list for a query.
// Exposed as a driving port so retrieval can be exercised and tested
// independently of answer generation.
type Retriever interface {
	// Retrieve merges dense and sparse search into one ranked candidate
	// sequence. The sequence is finite, deduplicated by chunk ID, and
	// truncated to the configured context token budget.
	Retrieve(ctx context.Context, query string, filters domain.Filters, k int) ([]domain.Candidate, error)
}

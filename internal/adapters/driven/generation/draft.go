// Package generation holds what the provider-specific generation
// adapters share: the structured draft wire schema, a tolerant parser
// for model output, and the default prompt templates.
package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// draftWire is the JSON schema the draft prompts instruct the model to
// emit.
type draftWire struct {
	Answer    string `json:"answer"`
	Citations []struct {
		ChunkID    string `json:"chunk_id"`
		DocumentID string `json:"document_id"`
		Page       int    `json:"page"`
	} `json:"citations"`
	Evidence       []string `json:"evidence"`
	Confidence     float64  `json:"confidence"`
	NotFoundReason string   `json:"not_found_reason"`
}

// ParseDraft decodes a model completion into a draft. Models routinely
// wrap JSON in markdown code fences or lead with prose despite
// instructions, so the parser extracts the outermost JSON object before
// decoding.
func ParseDraft(raw string) (*domain.Draft, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object in completion: %q", truncate(raw, 120))
	}

	var wire draftWire
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}

	draft := &domain.Draft{
		Answer:         strings.TrimSpace(wire.Answer),
		Evidence:       wire.Evidence,
		Confidence:     clamp01(wire.Confidence),
		NotFoundReason: strings.TrimSpace(wire.NotFoundReason),
	}
	for _, c := range wire.Citations {
		draft.Citations = append(draft.Citations, domain.Citation{
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Page:       c.Page,
		})
	}
	return draft, nil
}

// extractJSON returns the outermost {...} span of the completion,
// stripping any code fences or surrounding prose.
func extractJSON(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// DefaultDraftSystemPrompt is the fallback grounding instruction when
// no PromptStore is configured.
const DefaultDraftSystemPrompt = `You answer questions using ONLY the provided context chunks.
Each chunk is labelled with its ID in square brackets.
Respond with a single JSON object, no code fences, in this shape:
{"answer": "...", "citations": [{"chunk_id": "...", "page": 0}], "evidence": ["verbatim supporting quote"], "confidence": 0.0, "not_found_reason": ""}
Rules:
- Every claim in the answer must cite the chunk it came from.
- Quote supporting text verbatim in evidence.
- If the context does not contain the answer, leave answer empty and set not_found_reason.
- Never use knowledge that is not in the context.`

// DefaultDraftUserPrompt is the fallback drafting message. Expects the
// question and the context block.
const DefaultDraftUserPrompt = `Question: %s

Context:
%s`

// DefaultQueryRewritePrompt is the fallback query rewrite prompt.
const DefaultQueryRewritePrompt = `Rewrite this question as a search query with better recall. Add synonyms for key terms.
Return ONLY the rewritten query, nothing else.

Original: %s
Rewritten:`

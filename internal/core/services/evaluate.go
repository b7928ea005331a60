package services

import (
	"strings"
	"unicode"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// Weights for combining the two groundedness components.
const (
	supportWeight  = 0.7
	coverageWeight = 0.3

	// A claim counts as supported when at least this fraction of its
	// content terms appears in the cited evidence.
	claimSupportRatio = 0.3
)

// GroundednessEvaluator scores a draft answer against its retrieved
// evidence. The score is deterministic and purely lexical, so the same
// draft and candidates always produce the same result.
type GroundednessEvaluator struct{}

// NewGroundednessEvaluator creates a new evaluator.
func NewGroundednessEvaluator() *GroundednessEvaluator {
	return &GroundednessEvaluator{}
}

// Score returns a groundedness value in [0,1]. It combines the fraction
// of draft claims supported by cited evidence with the fraction of the
// question's content terms covered by that evidence. A draft with no
// text or no evidence scores zero.
func (e *GroundednessEvaluator) Score(draft *domain.Draft, candidates []domain.Candidate, question string) float64 {
	if draft == nil || strings.TrimSpace(draft.Answer) == "" {
		return 0
	}

	evidence := citedEvidence(draft, candidates)
	if len(evidence) == 0 {
		return 0
	}

	evidenceTerms := make(map[string]struct{})
	for _, text := range evidence {
		for _, term := range contentTerms(text) {
			evidenceTerms[term] = struct{}{}
		}
	}
	if len(evidenceTerms) == 0 {
		return 0
	}

	support := claimSupport(draft.Answer, evidenceTerms)
	coverage := termCoverage(question, evidenceTerms)

	return supportWeight*support + coverageWeight*coverage
}

// citedEvidence returns the texts of the chunks the draft cites. When
// the draft carries no usable citations, all candidate chunks count as
// evidence so an uncited but retrievable answer is not scored zero.
func citedEvidence(draft *domain.Draft, candidates []domain.Candidate) []string {
	cited := make(map[string]struct{}, len(draft.Citations))
	for _, c := range draft.Citations {
		if c.ChunkID != "" {
			cited[c.ChunkID] = struct{}{}
		}
	}

	var texts []string
	if len(cited) > 0 {
		for _, cand := range candidates {
			if _, ok := cited[cand.Chunk.ID]; ok {
				texts = append(texts, cand.Chunk.Text)
			}
		}
	}
	if len(texts) == 0 {
		for _, cand := range candidates {
			texts = append(texts, cand.Chunk.Text)
		}
	}
	return texts
}

// claimSupport splits the answer into sentences and returns the
// fraction whose content terms overlap the evidence vocabulary.
func claimSupport(answer string, evidenceTerms map[string]struct{}) float64 {
	claims := splitSentences(answer)
	if len(claims) == 0 {
		return 0
	}

	supported := 0
	for _, claim := range claims {
		terms := contentTerms(claim)
		if len(terms) == 0 {
			supported++
			continue
		}
		hits := 0
		for _, term := range terms {
			if _, ok := evidenceTerms[term]; ok {
				hits++
			}
		}
		if float64(hits)/float64(len(terms)) >= claimSupportRatio {
			supported++
		}
	}

	return float64(supported) / float64(len(claims))
}

// termCoverage returns the fraction of the question's content terms
// present in the evidence vocabulary.
func termCoverage(question string, evidenceTerms map[string]struct{}) float64 {
	terms := contentTerms(question)
	if len(terms) == 0 {
		return 1
	}

	hits := 0
	for _, term := range terms {
		if _, ok := evidenceTerms[term]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

// splitSentences breaks text on sentence-terminal punctuation. Short
// fragments are kept; empty ones are dropped.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			flush()
		}
	}
	flush()

	return sentences
}

// stopwords excluded from content terms. Kept small on purpose; the
// scorer needs overlap on distinctive terms, not full IR preprocessing.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "do": {}, "does": {}, "for": {},
	"from": {}, "has": {}, "have": {}, "how": {}, "in": {}, "is": {},
	"it": {}, "its": {}, "of": {}, "on": {}, "or": {}, "that": {},
	"the": {}, "their": {}, "there": {}, "this": {}, "to": {},
	"was": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "why": {}, "will": {}, "with": {},
}

// contentTerms lowercases, strips punctuation, and drops stopwords and
// single-character tokens.
func contentTerms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

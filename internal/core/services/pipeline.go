package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

// Pipeline states. The pipeline always moves forward except for the
// reflect edge back to retrieval, which is bounded by maxLoops.
type pipelineState int

const (
	stateRetrieve pipelineState = iota
	stateDraft
	stateEvaluate
	stateReflect
	stateFinalize
)

func (s pipelineState) String() string {
	switch s {
	case stateRetrieve:
		return "retrieve"
	case stateDraft:
		return "draft"
	case stateEvaluate:
		return "evaluate"
	case stateReflect:
		return "reflect"
	case stateFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// Confidence penalty applied when the loop budget runs out before the
// threshold is reached.
const exhaustedConfidenceFactor = 0.75

const (
	draftRetryAttempts = 2
	draftRetryBase     = 500 * time.Millisecond
)

// Ensure AnswerPipeline implements the interface.
var _ driving.Answerer = (*AnswerPipeline)(nil)

// AnswerPipeline answers questions through a reflective retrieve, draft
// and evaluate loop. Every question entering the pipeline leaves with an
// answer, a refusal, or an error; the loop cannot run unbounded.
type AnswerPipeline struct {
	retriever driving.Retriever
	generator driven.GenerationService
	evaluator *GroundednessEvaluator

	threshold float64
	maxLoops  int
	initialK  int
}

// NewAnswerPipeline creates a new answer pipeline. threshold is the
// groundedness score at or above which a draft is accepted; maxLoops
// bounds the number of reflect-and-retry passes after the first.
func NewAnswerPipeline(
	retriever driving.Retriever,
	generator driven.GenerationService,
	evaluator *GroundednessEvaluator,
	threshold float64,
	maxLoops int,
	initialK int,
) *AnswerPipeline {
	if evaluator == nil {
		evaluator = NewGroundednessEvaluator()
	}
	return &AnswerPipeline{
		retriever: retriever,
		generator: generator,
		evaluator: evaluator,
		threshold: threshold,
		maxLoops:  maxLoops,
		initialK:  initialK,
	}
}

// run carries everything one question accumulates across the loop.
type pipelineRun struct {
	question string
	filters  domain.Filters

	query string
	k     int
	loop  int

	candidates []domain.Candidate
	seen       map[string]struct{}

	draft     *domain.Draft
	score     float64
	bestDraft *domain.Draft
	bestScore float64

	reason string
}

// Ask answers the question against the ingested corpus. It never loops
// more than maxLoops reflection passes and always terminates with an
// answer or a refusal carrying the reason.
func (p *AnswerPipeline) Ask(ctx context.Context, question string, filters domain.Filters) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	start := time.Now()
	run := &pipelineRun{
		question: question,
		filters:  filters,
		query:    question,
		k:        p.initialK,
		seen:     make(map[string]struct{}),
	}

	state := stateRetrieve
	for state != stateFinalize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Debug("Pipeline state: %s (loop %d)", state, run.loop)

		var err error
		switch state {
		case stateRetrieve:
			state, err = p.retrieve(ctx, run)
		case stateDraft:
			state, err = p.draftAnswer(ctx, run)
		case stateEvaluate:
			state = p.evaluate(run)
		case stateReflect:
			state = p.reflect(ctx, run)
		}
		if err != nil {
			return nil, err
		}
	}

	answer := p.finalize(run)
	answer.LatencyMS = time.Since(start).Milliseconds()
	logger.Info("Answered in %dms (confidence %.2f)", answer.LatencyMS, answer.Confidence)
	return answer, nil
}

// retrieve gathers candidates for the current query, accumulating
// across loops without duplicates. An empty candidate set is a terminal
// outcome, not a retryable condition: with nothing to ground a draft on
// the pipeline refuses immediately instead of burning loop budget.
func (p *AnswerPipeline) retrieve(ctx context.Context, run *pipelineRun) (pipelineState, error) {
	candidates, err := p.retriever.Retrieve(ctx, run.query, run.filters, run.k)
	if err != nil {
		return stateFinalize, fmt.Errorf("retrieve: %w", err)
	}

	for _, c := range candidates {
		if _, ok := run.seen[c.Chunk.ID]; ok {
			continue
		}
		run.seen[c.Chunk.ID] = struct{}{}
		run.candidates = append(run.candidates, c)
	}

	if len(run.candidates) == 0 {
		run.reason = domain.ReasonNoEvidence
		return stateFinalize, nil
	}

	return stateDraft, nil
}

// draftAnswer asks the generator for a cited draft. A transient failure
// is retried; a persistent one degrades to the best draft so far, or to
// a refusal when no draft exists yet.
func (p *AnswerPipeline) draftAnswer(ctx context.Context, run *pipelineRun) (pipelineState, error) {
	contextBlock := formatContext(run.candidates)

	var draft *domain.Draft
	err := withRetry(ctx, draftRetryAttempts, draftRetryBase, func() error {
		var derr error
		draft, derr = p.generator.Draft(ctx, run.question, contextBlock)
		return derr
	})
	if err != nil {
		logger.Warn("Generation failed: %v", err)
		if run.bestDraft != nil {
			return stateFinalize, nil
		}
		run.reason = domain.ReasonGenerationUnavailable
		return stateFinalize, nil
	}

	run.draft = draft
	return stateEvaluate, nil
}

// evaluate scores the draft. Meeting the threshold, including exactly,
// finalizes.
func (p *AnswerPipeline) evaluate(run *pipelineRun) pipelineState {
	run.score = p.evaluator.Score(run.draft, run.candidates, run.question)
	logger.Debug("Groundedness: %.3f (threshold %.3f)", run.score, p.threshold)

	if run.bestDraft == nil || run.score > run.bestScore {
		run.bestDraft = run.draft
		run.bestScore = run.score
	}

	if run.score >= p.threshold {
		return stateFinalize
	}
	return stateReflect
}

// reflect widens the next retrieval pass. The loop budget is checked
// first so the pipeline cannot run unbounded. On the final permitted
// pass the filters are dropped to widen the net; when a generator is
// available the query is also rewritten, with failures ignored.
func (p *AnswerPipeline) reflect(ctx context.Context, run *pipelineRun) pipelineState {
	// Reflect is only ever entered from evaluate, so a scored best
	// draft always exists here.
	if run.loop >= p.maxLoops {
		run.bestScore *= exhaustedConfidenceFactor
		return stateFinalize
	}

	run.loop++
	run.k *= 2

	if run.loop == p.maxLoops && len(run.filters) > 0 {
		logger.Debug("Final pass, dropping filters")
		run.filters = nil
	}

	if p.generator != nil {
		rewritten, err := p.generator.RewriteQuery(ctx, run.query)
		if err != nil {
			logger.Debug("Query rewrite failed, keeping query: %v", err)
		} else if strings.TrimSpace(rewritten) != "" {
			run.query = rewritten
		}
	}

	logger.Debug("Reflected: loop=%d k=%d query=%q", run.loop, run.k, run.query)
	return stateRetrieve
}

// finalize assembles the answer. Citations come from the draft when
// they resolve against retrieved candidates; a draft that cites nothing
// usable falls back to the top candidate so every answer is traceable.
func (p *AnswerPipeline) finalize(run *pipelineRun) *domain.Answer {
	answer := &domain.Answer{ID: uuid.NewString()}

	if run.bestDraft == nil || strings.TrimSpace(run.bestDraft.Answer) == "" {
		reason := run.reason
		if reason == "" && run.bestDraft != nil {
			reason = run.bestDraft.NotFoundReason
		}
		if reason == "" {
			reason = domain.ReasonNoEvidence
		}
		answer.NotFoundReason = reason
		return answer
	}

	answer.Text = run.bestDraft.Answer
	answer.Confidence = run.bestScore
	answer.Citations = p.resolveCitations(run)
	answer.Evidence = evidenceTexts(run.candidates, answer.Citations)
	return answer
}

// resolveCitations keeps draft citations that match retrieved chunks,
// filling in source name and page from the chunk record.
func (p *AnswerPipeline) resolveCitations(run *pipelineRun) []domain.Citation {
	byID := make(map[string]domain.Chunk, len(run.candidates))
	for _, c := range run.candidates {
		byID[c.Chunk.ID] = c.Chunk
	}

	var citations []domain.Citation
	seen := make(map[string]struct{})
	for _, cit := range run.bestDraft.Citations {
		chunk, ok := byID[cit.ChunkID]
		if !ok {
			continue
		}
		if _, dup := seen[cit.ChunkID]; dup {
			continue
		}
		seen[cit.ChunkID] = struct{}{}
		citations = append(citations, domain.Citation{
			DocumentID: chunk.DocumentID,
			ChunkID:    chunk.ID,
			SourceName: chunk.Metadata["source_name"],
			Page:       chunk.Page,
		})
	}

	if len(citations) == 0 && len(run.candidates) > 0 {
		top := topCandidate(run.candidates)
		citations = append(citations, domain.Citation{
			DocumentID: top.Chunk.DocumentID,
			ChunkID:    top.Chunk.ID,
			SourceName: top.Chunk.Metadata["source_name"],
			Page:       top.Chunk.Page,
		})
	}
	return citations
}

// topCandidate returns the highest-scoring candidate.
func topCandidate(candidates []domain.Candidate) domain.Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best
}

// evidenceTexts returns the texts of the cited chunks, in citation order.
func evidenceTexts(candidates []domain.Candidate, citations []domain.Citation) []string {
	byID := make(map[string]string, len(candidates))
	for _, c := range candidates {
		byID[c.Chunk.ID] = c.Chunk.Text
	}

	var texts []string
	for _, cit := range citations {
		if text, ok := byID[cit.ChunkID]; ok {
			texts = append(texts, text)
		}
	}
	return texts
}

// formatContext renders the candidate chunks as the evidence block fed
// to the generator. Chunks are labelled with their ID so the generator
// can cite them, and grouped stably by document then index.
func formatContext(candidates []domain.Candidate) string {
	ordered := make([]domain.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Chunk.DocumentID != ordered[j].Chunk.DocumentID {
			return ordered[i].Chunk.DocumentID < ordered[j].Chunk.DocumentID
		}
		return ordered[i].Chunk.Index < ordered[j].Chunk.Index
	})

	var b strings.Builder
	for _, c := range ordered {
		b.WriteString("[")
		b.WriteString(c.Chunk.ID)
		b.WriteString("] ")
		if name := c.Chunk.Metadata["source_name"]; name != "" {
			b.WriteString(name)
			if c.Chunk.Page > 0 {
				fmt.Fprintf(&b, " p.%d", c.Chunk.Page)
			}
			b.WriteString(": ")
		}
		b.WriteString(c.Chunk.Text)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

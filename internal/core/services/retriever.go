package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

// Ensure HybridRetriever implements the interface.
var _ driving.Retriever = (*HybridRetriever)(nil)

// scoredChunk holds intermediate results before hydration.
type scoredChunk struct {
	chunkID string
	score   float64
	signal  domain.Signal
}

// HybridRetriever merges dense vector search and sparse lexical search
// into one deduplicated, reranked candidate list.
type HybridRetriever struct {
	chunkStore   driven.ChunkStore
	vectorIndex  driven.VectorIndex
	lexicalIndex driven.LexicalIndex
	embedder     driven.EmbeddingService

	kDense       int
	kSparse      int
	budgetTokens int
}

// NewHybridRetriever creates a new hybrid retriever.
// kDense and kSparse are the per-signal candidate counts; budgetTokens
// caps the total tokens of the merged output.
func NewHybridRetriever(
	chunkStore driven.ChunkStore,
	vectorIndex driven.VectorIndex,
	lexicalIndex driven.LexicalIndex,
	embedder driven.EmbeddingService,
	kDense, kSparse, budgetTokens int,
) *HybridRetriever {
	return &HybridRetriever{
		chunkStore:   chunkStore,
		vectorIndex:  vectorIndex,
		lexicalIndex: lexicalIndex,
		embedder:     embedder,
		kDense:       kDense,
		kSparse:      kSparse,
		budgetTokens: budgetTokens,
	}
}

// Retrieve runs both signals, merges and deduplicates by chunk ID,
// applies the long-context reorder, and truncates to the token budget.
// The k parameter caps the merged candidate count; each signal fetches
// at least its configured top-k, widened when k asks for more.
func (r *HybridRetriever) Retrieve(
	ctx context.Context, query string, filters domain.Filters, k int,
) ([]domain.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if k <= 0 {
		k = r.kDense + r.kSparse
	}

	logger.Section("Hybrid Retrieval")
	logger.Debug("Query: %q, filters: %v, k: %d", query, filters, k)

	dense, sparse, err := r.searchBoth(ctx, query, filters, k)
	if err != nil {
		return nil, err
	}
	logger.Debug("Signals: %d dense, %d sparse", len(dense), len(sparse))

	merged := mergeSignals(dense, sparse)
	if len(merged) > k {
		merged = merged[:k]
	}

	candidates, err := r.hydrate(ctx, merged)
	if err != nil {
		return nil, fmt.Errorf("hydrate candidates: %w", err)
	}

	candidates = reorderForLongContext(candidates)
	logger.Info("Retrieved %d candidates", len(candidates))
	return candidates, nil
}

// searchBoth runs dense and sparse search in parallel, degrading to a
// single signal if the other fails.
func (r *HybridRetriever) searchBoth(
	ctx context.Context, query string, filters domain.Filters, k int,
) ([]scoredChunk, []scoredChunk, error) {
	var dense, sparse []scoredChunk
	var denseErr, sparseErr error

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		dense, denseErr = r.denseSearch(ctx, query, filters, max(k, r.kDense))
	}()

	go func() {
		defer wg.Done()
		sparse, sparseErr = r.sparseSearch(ctx, query, filters, max(k, r.kSparse))
	}()

	wg.Wait()

	if denseErr != nil && sparseErr != nil {
		return nil, nil, fmt.Errorf("retrieval: dense=%w, sparse=%w", denseErr, sparseErr)
	}
	if denseErr != nil {
		logger.Warn("Dense search failed, using sparse only: %v", denseErr)
	}
	if sparseErr != nil {
		logger.Warn("Sparse search failed, using dense only: %v", sparseErr)
	}

	return dense, sparse, nil
}

// denseSearch embeds the query and searches the vector index.
func (r *HybridRetriever) denseSearch(
	ctx context.Context, query string, filters domain.Filters, k int,
) ([]scoredChunk, error) {
	if r.vectorIndex == nil || r.embedder == nil {
		return nil, errors.New("dense retrieval unavailable")
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.vectorIndex.Search(ctx, embedding, k, filters)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]scoredChunk, len(hits))
	for i, hit := range hits {
		results[i] = scoredChunk{chunkID: hit.ChunkID, score: hit.Similarity, signal: domain.SignalDense}
	}
	return results, nil
}

// sparseSearch runs ranked keyword search against the lexical index.
func (r *HybridRetriever) sparseSearch(
	ctx context.Context, query string, filters domain.Filters, k int,
) ([]scoredChunk, error) {
	if r.lexicalIndex == nil {
		return nil, errors.New("sparse retrieval unavailable")
	}

	hits, err := r.lexicalIndex.Search(ctx, query, k, filters)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	results := make([]scoredChunk, len(hits))
	for i, hit := range hits {
		results[i] = scoredChunk{chunkID: hit.ChunkID, score: hit.Score, signal: domain.SignalSparse}
	}
	return results, nil
}

// mergeSignals min-max normalises each signal's scores within its own
// candidate set (raw magnitudes are not comparable), merges by chunk ID
// keeping the higher normalised score, tags overlaps as "both", and
// sorts best-first. The output is strictly deduplicated by chunk ID.
func mergeSignals(dense, sparse []scoredChunk) []scoredChunk {
	normalise(dense)
	normalise(sparse)

	byID := make(map[string]scoredChunk, len(dense)+len(sparse))
	for _, sc := range dense {
		byID[sc.chunkID] = sc
	}
	for _, sc := range sparse {
		if existing, ok := byID[sc.chunkID]; ok {
			score := existing.score
			if sc.score > score {
				score = sc.score
			}
			byID[sc.chunkID] = scoredChunk{chunkID: sc.chunkID, score: score, signal: domain.SignalBoth}
			continue
		}
		byID[sc.chunkID] = sc
	}

	merged := make([]scoredChunk, 0, len(byID))
	for _, sc := range byID {
		merged = append(merged, sc)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		// Deterministic order for equal scores
		return merged[i].chunkID < merged[j].chunkID
	})

	return merged
}

// normalise rescales scores to [0,1] within one signal's candidate set.
func normalise(chunks []scoredChunk) {
	if len(chunks) == 0 {
		return
	}

	lo, hi := chunks[0].score, chunks[0].score
	for _, sc := range chunks[1:] {
		if sc.score < lo {
			lo = sc.score
		}
		if sc.score > hi {
			hi = sc.score
		}
	}

	if hi == lo {
		for i := range chunks {
			chunks[i].score = 1
		}
		return
	}

	for i := range chunks {
		chunks[i].score = (chunks[i].score - lo) / (hi - lo)
	}
}

// hydrate loads chunk records for the merged hits, accumulating until
// the token budget is exhausted. Chunks deleted since indexing are
// skipped. The budget is never exceeded even when more hits would fit
// count-wise.
func (r *HybridRetriever) hydrate(ctx context.Context, merged []scoredChunk) ([]domain.Candidate, error) {
	candidates := make([]domain.Candidate, 0, len(merged))
	used := 0

	for _, sc := range merged {
		chunk, err := r.chunkStore.GetChunk(ctx, sc.chunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", sc.chunkID, err)
		}

		// budgetTokens <= 0 means unlimited. The first chunk is always
		// kept so an oversize top hit still yields evidence; after that
		// nothing may push the total past the budget.
		if r.budgetTokens > 0 {
			if len(candidates) > 0 && used+chunk.TokenCount > r.budgetTokens {
				break
			}
			used += chunk.TokenCount
		}

		candidates = append(candidates, domain.Candidate{
			Chunk:  *chunk,
			Score:  sc.score,
			Signal: sc.signal,
		})
	}

	return candidates, nil
}

// reorderForLongContext places the highest-scoring candidates at both
// ends of the sequence and the weakest in the middle. Generation attends
// most reliably to the start and end of a long prompt.
func reorderForLongContext(candidates []domain.Candidate) []domain.Candidate {
	if len(candidates) <= 2 {
		return candidates
	}

	front := make([]domain.Candidate, 0, (len(candidates)+1)/2)
	back := make([]domain.Candidate, 0, len(candidates)/2)
	for i, c := range candidates {
		if i%2 == 0 {
			front = append(front, c)
		} else {
			back = append(back, c)
		}
	}
	for i := len(back) - 1; i >= 0; i-- {
		front = append(front, back[i])
	}
	return front
}

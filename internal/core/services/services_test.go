package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService with
// deterministic hash-derived vectors, counting every embedding call.
type mockEmbeddingService struct {
	mu         sync.Mutex
	embedCalls int
	batchCalls int
	embedErr   error
	batchErr   error
	failTexts  map[string]struct{}

	// dropLastBatchVector truncates every batch reply by one vector,
	// simulating a provider that silently loses an input.
	dropLastBatchVector bool
}

func hashEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()
	vec := make([]float32, 8)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000)/1000 - 0.5
	}
	return vec
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if _, ok := m.failTexts[text]; ok {
		return nil, fmt.Errorf("embed refused for %q", text)
	}
	return hashEmbedding(text), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls++
	m.embedCalls += len(texts)
	m.mu.Unlock()
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		if _, ok := m.failTexts[text]; ok {
			return nil, fmt.Errorf("batch embed refused for %q", text)
		}
		result[i] = hashEmbedding(text)
	}
	if m.dropLastBatchVector && len(result) > 0 {
		result = result[:len(result)-1]
	}
	return result, nil
}

func (m *mockEmbeddingService) Dimensions() int { return 8 }

func (m *mockEmbeddingService) ModelName() string { return "mock-embed" }

func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }

func (m *mockEmbeddingService) Close() error { return nil }

func (m *mockEmbeddingService) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// mockVectorIndex implements driven.VectorIndex over a map, with
// optionally scripted search hits.
type mockVectorIndex struct {
	mu        sync.Mutex
	vectors   map[string][]float32
	metadata  map[string]map[string]string
	hits      []driven.VectorHit
	searchErr error
	hasErr    error
	addErr    error
	addCalls  int
}

func newMockVectorIndex() *mockVectorIndex {
	return &mockVectorIndex{
		vectors:  make(map[string][]float32),
		metadata: make(map[string]map[string]string),
	}
}

func (m *mockVectorIndex) Has(_ context.Context, chunkID string) (bool, error) {
	if m.hasErr != nil {
		return false, m.hasErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.vectors[chunkID]
	return ok, nil
}

func (m *mockVectorIndex) AddIfAbsent(_ context.Context, chunkID string, embedding []float32, metadata map[string]string) (bool, error) {
	if m.addErr != nil {
		return false, m.addErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls++
	if _, ok := m.vectors[chunkID]; ok {
		return false, nil
	}
	m.vectors[chunkID] = embedding
	m.metadata[chunkID] = metadata
	return true, nil
}

func (m *mockVectorIndex) Search(_ context.Context, _ []float32, k int, filters domain.Filters) ([]driven.VectorHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	hits := make([]driven.VectorHit, 0, len(m.hits))
	for _, hit := range m.hits {
		if filters.Match(m.metadata[hit.ChunkID]) {
			hits = append(hits, hit)
		}
	}
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *mockVectorIndex) DeleteByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, meta := range m.metadata {
		if meta["document_id"] == documentID {
			delete(m.vectors, id)
			delete(m.metadata, id)
		}
	}
	return nil
}

func (m *mockVectorIndex) Close() error { return nil }

func (m *mockVectorIndex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vectors)
}

// mockLexicalIndex implements driven.LexicalIndex, recording indexed
// chunks and serving scripted hits.
type mockLexicalIndex struct {
	mu        sync.Mutex
	indexed   map[string]domain.Chunk
	hits      []driven.LexicalHit
	searchErr error
	indexErr  error
}

func newMockLexicalIndex() *mockLexicalIndex {
	return &mockLexicalIndex{indexed: make(map[string]domain.Chunk)}
}

func (m *mockLexicalIndex) Index(_ context.Context, chunk domain.Chunk) error {
	if m.indexErr != nil {
		return m.indexErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexed[chunk.ID] = chunk
	return nil
}

func (m *mockLexicalIndex) Search(_ context.Context, _ string, k int, _ domain.Filters) ([]driven.LexicalHit, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	hits := m.hits
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *mockLexicalIndex) DeleteByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, chunk := range m.indexed {
		if chunk.DocumentID == documentID {
			delete(m.indexed, id)
		}
	}
	return nil
}

func (m *mockLexicalIndex) Close() error { return nil }

func (m *mockLexicalIndex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.indexed)
}

// mockGenerationService implements driven.GenerationService with a
// scripted sequence of drafts. The last draft repeats once the script
// is exhausted.
type mockGenerationService struct {
	mu         sync.Mutex
	drafts     []*domain.Draft
	draftErr   error
	draftCalls int

	rewriteResult string
	rewriteErr    error
	rewriteCalls  int
}

func (m *mockGenerationService) Draft(_ context.Context, _, _ string) (*domain.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draftCalls++
	if m.draftErr != nil {
		return nil, m.draftErr
	}
	if len(m.drafts) == 0 {
		return &domain.Draft{Answer: "scripted answer"}, nil
	}
	idx := m.draftCalls - 1
	if idx >= len(m.drafts) {
		idx = len(m.drafts) - 1
	}
	return m.drafts[idx], nil
}

func (m *mockGenerationService) RewriteQuery(_ context.Context, query string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewriteCalls++
	if m.rewriteErr != nil {
		return "", m.rewriteErr
	}
	if m.rewriteResult != "" {
		return m.rewriteResult, nil
	}
	return query + " expanded", nil
}

func (m *mockGenerationService) ModelName() string { return "mock-gen" }

func (m *mockGenerationService) Ping(_ context.Context) error { return nil }

func (m *mockGenerationService) Close() error { return nil }

// mockRegistry implements driven.NormaliserRegistry by treating every
// document as plain text, one section per form-feed page.
type mockRegistry struct {
	err error
}

func (m *mockRegistry) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	pages := strings.Split(string(raw.Content), "\f")
	result := &driven.NormaliseResult{}
	for i, page := range pages {
		result.Sections = append(result.Sections, driven.Section{Page: i + 1, Text: page})
	}
	return result, nil
}

func (m *mockRegistry) Register(_ driven.Normaliser) {}

// mockRetriever implements driving.Retriever with scripted results,
// recording every call.
type mockRetriever struct {
	mu      sync.Mutex
	results [][]domain.Candidate
	err     error

	queries []string
	filters []domain.Filters
	ks      []int
}

func (m *mockRetriever) Retrieve(_ context.Context, query string, filters domain.Filters, k int) ([]domain.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.queries = append(m.queries, query)
	m.filters = append(m.filters, filters)
	m.ks = append(m.ks, k)

	call := len(m.queries) - 1
	if len(m.results) == 0 {
		return nil, nil
	}
	if call >= len(m.results) {
		call = len(m.results) - 1
	}
	return m.results[call], nil
}

func (m *mockRetriever) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queries)
}

// --- Test helpers ---

func testChunk(docID string, index int, text string) domain.Chunk {
	return domain.Chunk{
		ID:         domain.ChunkID(docID, index, text),
		DocumentID: docID,
		Index:      index,
		Text:       text,
		TokenCount: len(strings.Fields(text)),
		Metadata: map[string]string{
			"document_id": docID,
			"source_name": docID + ".txt",
		},
	}
}

func testCandidate(docID string, index int, text string, score float64) domain.Candidate {
	return domain.Candidate{
		Chunk:  testChunk(docID, index, text),
		Score:  score,
		Signal: domain.SignalDense,
	}
}

package cli

import (
	"context"
	"testing"

	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/config/file"
	indexmem "github.com/custodia-labs/docqa-cli/internal/adapters/driven/index/memory"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/lexical/bm25"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docqa-cli/internal/core/domain"
)

// --- Mock implementations ---

type mockAnswerer struct {
	answer    *domain.Answer
	err       error
	questions []string
	filters   []domain.Filters
}

func (m *mockAnswerer) Ask(_ context.Context, question string, filters domain.Filters) (*domain.Answer, error) {
	m.questions = append(m.questions, question)
	m.filters = append(m.filters, filters)
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

type mockIngestor struct {
	result  *domain.IngestResult
	err     error
	deleted []string
	sources []string
}

func (m *mockIngestor) Ingest(_ context.Context, raw *domain.RawDocument) (*domain.IngestResult, error) {
	m.sources = append(m.sources, raw.SourceName)
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.IngestResult{DocumentID: domain.DocumentID(raw.Content), ChunksCreated: 1}, nil
}

func (m *mockIngestor) IngestAll(ctx context.Context, raws []*domain.RawDocument) ([]*domain.IngestResult, error) {
	results := make([]*domain.IngestResult, 0, len(raws))
	for _, raw := range raws {
		result, err := m.Ingest(ctx, raw)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (m *mockIngestor) DeleteDocument(_ context.Context, documentID string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, documentID)
	return nil
}

// setupTestServices replaces the shared service graph with in-process
// fakes so commands run without touching disk or the network.
func setupTestServices(t *testing.T) (*mockAnswerer, *mockIngestor, func()) {
	t.Helper()

	oldSettingsStore := settingsStore
	oldChunkStore := chunkStore
	oldVectorIndex := vectorIndex
	oldLexicalIndex := lexicalIndex
	oldIngestService := ingestService
	oldAnswerService := answerService
	oldAppSettings := appSettings
	oldInitialised := initialised

	answerer := &mockAnswerer{answer: &domain.Answer{
		ID:         "test-answer",
		Text:       "Gradient descent minimises loss iteratively.",
		Confidence: 0.82,
		Citations: []domain.Citation{
			{DocumentID: "doc1", ChunkID: "chunk1", SourceName: "ml-handbook.txt", Page: 2},
		},
		LatencyMS: 12,
	}}
	ingestor := &mockIngestor{}

	store, err := file.NewSettingsStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating settings store: %v", err)
	}

	settings := domain.DefaultAppSettings()
	settings.Embedding.Provider = domain.AIProviderOllama
	settings.Generation.Provider = domain.AIProviderOllama

	settingsStore = store
	chunkStore = memory.NewChunkStore()
	vectorIndex = indexmem.NewVectorIndex()
	lexicalIndex = bm25.New()
	ingestService = ingestor
	answerService = answerer
	appSettings = settings
	initialised = true

	cleanup := func() {
		settingsStore = oldSettingsStore
		chunkStore = oldChunkStore
		vectorIndex = oldVectorIndex
		lexicalIndex = oldLexicalIndex
		ingestService = oldIngestService
		answerService = oldAnswerService
		appSettings = oldAppSettings
		initialised = oldInitialised
	}

	return answerer, ingestor, cleanup
}

package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	indexmem "github.com/custodia-labs/docqa-cli/internal/adapters/driven/index/memory"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/lexical/bm25"
	"github.com/custodia-labs/docqa-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/normalisers"
	"github.com/custodia-labs/docqa-cli/internal/normalisers/plaintext"
	"github.com/custodia-labs/docqa-cli/internal/postprocessors/chunker"
)

// extractiveGenerator is a deterministic stand-in for an LLM. It answers
// by quoting the context chunks that share content terms with the
// question, citing them; with no matching chunk it refuses, which is
// exactly the behaviour the draft prompt demands of a real model.
type extractiveGenerator struct{}

func (g *extractiveGenerator) Draft(_ context.Context, question, contextBlock string) (*domain.Draft, error) {
	questionTerms := make(map[string]struct{})
	for _, term := range contentTerms(question) {
		questionTerms[term] = struct{}{}
	}

	draft := &domain.Draft{}
	for _, block := range strings.Split(contextBlock, "\n\n") {
		block = strings.TrimSpace(block)
		if !strings.HasPrefix(block, "[") {
			continue
		}
		end := strings.Index(block, "]")
		if end < 0 {
			continue
		}
		chunkID := block[1:end]
		text := strings.TrimSpace(block[end+1:])
		if i := strings.Index(text, ": "); i >= 0 {
			text = text[i+2:]
		}

		matches := false
		for _, term := range contentTerms(text) {
			if _, ok := questionTerms[term]; ok {
				matches = true
				break
			}
		}
		if !matches {
			continue
		}

		draft.Answer += text + " "
		draft.Citations = append(draft.Citations, domain.Citation{ChunkID: chunkID})
		draft.Evidence = append(draft.Evidence, text)
	}

	if draft.Answer == "" {
		return &domain.Draft{NotFoundReason: "no evidence"}, nil
	}
	draft.Answer = strings.TrimSpace(draft.Answer)
	draft.Confidence = 0.9
	return draft, nil
}

func (g *extractiveGenerator) RewriteQuery(_ context.Context, query string) (string, error) {
	return query, nil
}

func (g *extractiveGenerator) ModelName() string { return "extractive" }

func (g *extractiveGenerator) Ping(_ context.Context) error { return nil }

func (g *extractiveGenerator) Close() error { return nil }

// corpus wires the full stack: real chunk store, vector index, lexical
// index, normalisers, chunker, and pipeline, with deterministic
// embeddings and the extractive generator.
type corpus struct {
	ingestor *IngestionCoordinator
	answerer *ResponseCache
	store    *memory.ChunkStore
}

func newCorpus(t *testing.T) *corpus {
	t.Helper()

	registry := normalisers.NewRegistry()
	registry.Register(plaintext.New())

	store := memory.NewChunkStore()
	vectorIndex := indexmem.NewVectorIndex()
	lexicalIndex := bm25.New()
	embedder := &mockEmbeddingService{}
	splitter := chunker.New(chunker.WithChunkSize(60), chunker.WithOverlap(10))

	settings := domain.DefaultAppSettings()
	retriever := NewHybridRetriever(store, vectorIndex, lexicalIndex, embedder,
		settings.RAG.TopKDense, settings.RAG.TopKSparse, settings.RAG.ContextBudgetTokens)
	pipeline := NewAnswerPipeline(retriever, &extractiveGenerator{}, NewGroundednessEvaluator(),
		settings.RAG.ReflectionThreshold, settings.RAG.MaxReflectionLoops, settings.RAG.TopKDense)

	return &corpus{
		ingestor: NewIngestionCoordinator(store, vectorIndex, lexicalIndex, embedder, registry, splitter, nil),
		answerer: NewResponseCache(pipeline, true),
		store:    store,
	}
}

func (c *corpus) ingest(t *testing.T, name, content string) string {
	t.Helper()
	result, err := c.ingestor.Ingest(context.Background(), &domain.RawDocument{
		SourceName: name,
		MIMEType:   "text/plain",
		Content:    []byte(content),
	})
	require.NoError(t, err)
	return result.DocumentID
}

const mlHandbook = `Supervised learning trains a model on labelled examples.
Each labelled example pairs an input with its expected output.
The model adjusts parameters to minimise prediction error.
Unsupervised learning instead finds structure in unlabelled data.`

const cookbook = `Bring a large pot of salted water to a rolling boil.
Add the pasta and stir during the first minute of cooking.
Drain when the pasta is al dente and reserve some cooking water.`

const biologyNotes = `Mitochondria produce most of the cell's chemical energy.
Ribosomes assemble proteins from amino acids.
Photosynthesis in chloroplasts converts light into sugars.`

func TestScenario_QuestionAnsweredWithCitations(t *testing.T) {
	c := newCorpus(t)
	handbookID := c.ingest(t, "ml-handbook.txt", mlHandbook)
	c.ingest(t, "cookbook.txt", cookbook)

	answer, err := c.answerer.Ask(context.Background(), "What is supervised learning?", nil)

	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.True(t, answer.Found())
	assert.Contains(t, strings.ToLower(answer.Text), "labelled examples")
	assert.GreaterOrEqual(t, answer.Confidence, 0.65)
	require.NotEmpty(t, answer.Citations)
	for _, citation := range answer.Citations {
		assert.Equal(t, handbookID, citation.DocumentID)
		assert.Equal(t, "ml-handbook.txt", citation.SourceName)
		assert.NotEmpty(t, citation.ChunkID)
	}
	assert.NotEmpty(t, answer.Evidence)
}

func TestScenario_OffCorpusQuestionIsRefused(t *testing.T) {
	c := newCorpus(t)
	c.ingest(t, "biology.txt", biologyNotes)

	answer, err := c.answerer.Ask(context.Background(), "What is dark matter made of?", nil)

	// Biology notes cannot ground an astrophysics answer. The pipeline
	// must refuse rather than fabricate one.
	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.False(t, answer.Found())
	assert.Equal(t, domain.ReasonNoEvidence, answer.NotFoundReason)
	assert.Empty(t, answer.Text)
	assert.Empty(t, answer.Citations)
}

func TestScenario_ConflictingDocumentsBothCited(t *testing.T) {
	c := newCorpus(t)
	aID := c.ingest(t, "plan-a.txt", "The project deadline is March tenth according to the planning committee.")
	bID := c.ingest(t, "plan-b.txt", "The project deadline is April second according to the steering committee.")

	answer, err := c.answerer.Ask(context.Background(), "When is the project deadline?", nil)

	require.NoError(t, err)
	require.NotNil(t, answer)
	assert.True(t, answer.Found())

	citedDocs := make(map[string]struct{})
	for _, citation := range answer.Citations {
		citedDocs[citation.DocumentID] = struct{}{}
	}
	// Both conflicting sources surface in the citations so the reader
	// can see the disagreement.
	assert.Contains(t, citedDocs, aID)
	assert.Contains(t, citedDocs, bID)
}

func TestScenario_RepeatQuestionServedFromCache(t *testing.T) {
	c := newCorpus(t)
	c.ingest(t, "ml-handbook.txt", mlHandbook)

	first, err := c.answerer.Ask(context.Background(), "What is supervised learning?", nil)
	require.NoError(t, err)

	second, err := c.answerer.Ask(context.Background(), "what is supervised LEARNING", nil)
	require.NoError(t, err)

	assert.Same(t, first, second)
}

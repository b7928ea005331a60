package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

func testDoc() *domain.Document {
	return &domain.Document{
		ID:         domain.DocumentID([]byte("chunker test content")),
		SourceName: "guide.txt",
		Metadata:   map[string]string{"team": "platform"},
	}
}

// sentenceText builds n numbered sentences of w words each.
func sentenceText(n, w int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		for j := 0; j < w; j++ {
			b.WriteString("word ")
		}
		b.WriteString("end.")
		if i < n-1 {
			b.WriteString(" ")
		}
	}
	return b.String()
}

func TestProcess_SingleSmallSection(t *testing.T) {
	p := New(WithChunkSize(50), WithOverlap(10))
	doc := testDoc()

	chunks, err := p.Process(context.Background(), doc, []driven.Section{
		{Title: "Intro", Page: 1, Text: "One short sentence. Another short sentence."},
	})

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "Intro", chunks[0].Section)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, doc.ID, chunks[0].DocumentID)
	assert.Equal(t, domain.ChunkID(doc.ID, 0, chunks[0].Text), chunks[0].ID)
	assert.Equal(t, len(strings.Fields(chunks[0].Text)), chunks[0].TokenCount)
}

func TestProcess_SplitsAtTokenTarget(t *testing.T) {
	p := New(WithChunkSize(30), WithOverlap(0))
	doc := testDoc()

	// 10 sentences of ~11 tokens each cannot fit in one 30-token chunk.
	chunks, err := p.Process(context.Background(), doc, []driven.Section{
		{Text: sentenceText(10, 10)},
	})

	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, chunk.TokenCount, 33, "chunk may exceed target only by one sentence")
	}
}

func TestProcess_OverlapCarriesTrailingSentences(t *testing.T) {
	p := New(WithChunkSize(30), WithOverlap(12))
	doc := testDoc()

	chunks, err := p.Process(context.Background(), doc, []driven.Section{
		{Text: sentenceText(8, 10)},
	})

	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// Each chunk after the first starts with the tail of its predecessor.
	for i := 1; i < len(chunks); i++ {
		firstSentence := strings.SplitAfter(chunks[i].Text, "end.")[0]
		assert.Contains(t, chunks[i-1].Text, strings.TrimSpace(firstSentence))
	}
}

func TestProcess_IndexesAreSequentialAcrossSections(t *testing.T) {
	p := New(WithChunkSize(50), WithOverlap(0))
	doc := testDoc()

	chunks, err := p.Process(context.Background(), doc, []driven.Section{
		{Title: "A", Text: "First section text."},
		{Title: "B", Text: "Second section text."},
	})

	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[1].Index)
	assert.Equal(t, "A", chunks[0].Section)
	assert.Equal(t, "B", chunks[1].Section)
}

func TestProcess_EmptySectionsProduceNoChunks(t *testing.T) {
	p := New()
	doc := testDoc()

	chunks, err := p.Process(context.Background(), doc, []driven.Section{
		{Title: "Empty", Text: "   \n\n  "},
	})

	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestProcess_Deterministic(t *testing.T) {
	p := New(WithChunkSize(30), WithOverlap(8))
	doc := testDoc()
	sections := []driven.Section{{Text: sentenceText(12, 9)}}

	first, err := p.Process(context.Background(), doc, sections)
	require.NoError(t, err)
	second, err := p.Process(context.Background(), doc, sections)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestProcess_MetadataCarriesProvenance(t *testing.T) {
	p := New()
	doc := testDoc()

	chunks, err := p.Process(context.Background(), doc, []driven.Section{
		{Title: "Setup", Text: "Some setup instructions."},
	})

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, doc.ID, chunks[0].Metadata["document_id"])
	assert.Equal(t, "guide.txt", chunks[0].Metadata["source_name"])
	assert.Equal(t, "Setup", chunks[0].Metadata["section"])
	assert.Equal(t, "platform", chunks[0].Metadata["team"])
}

func TestNew_OverlapClampedBelowChunkSize(t *testing.T) {
	p := New(WithChunkSize(20), WithOverlap(40))
	assert.Equal(t, 5, p.overlap)
}

func TestSplitSentences_ParagraphsAreHardBoundaries(t *testing.T) {
	sentences := splitSentences("First one. Second one\n\nThird in new paragraph")
	assert.Equal(t, []string{"First one.", "Second one", "Third in new paragraph"}, sentences)
}

package bm25

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.LexicalIndex = (*Index)(nil)

// BM25 free parameters. Standard Okapi values.
const (
	k1 = 1.2
	b  = 0.75
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// posting records a term's frequency within one chunk.
type posting struct {
	chunkID string
	freq    int
}

// indexedChunk keeps what ranking and filtering need per chunk.
type indexedChunk struct {
	documentID string
	metadata   map[string]string
	length     int
}

// Index is an in-memory inverted index with Okapi BM25 ranking.
// Indexing is idempotent by chunk ID: re-indexing a chunk replaces its
// postings. IDF and average length are computed at query time from the
// live corpus, so scores stay correct as documents come and go.
type Index struct {
	mu          sync.RWMutex
	postings    map[string][]posting
	chunks      map[string]indexedChunk
	totalLength int
	stopwords   map[string]struct{}
}

// New creates an empty BM25 index.
func New() *Index {
	return &Index{
		postings:  make(map[string][]posting),
		chunks:    make(map[string]indexedChunk),
		stopwords: defaultStopwords(),
	}
}

// Index adds or replaces a chunk in the index.
func (ix *Index) Index(_ context.Context, chunk domain.Chunk) error {
	freqs, length := ix.termFrequencies(chunk.Text)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if existing, ok := ix.chunks[chunk.ID]; ok {
		ix.removePostings(chunk.ID)
		ix.totalLength -= existing.length
	}

	ix.chunks[chunk.ID] = indexedChunk{
		documentID: chunk.DocumentID,
		metadata:   chunk.Metadata,
		length:     length,
	}
	ix.totalLength += length

	for term, freq := range freqs {
		ix.postings[term] = append(ix.postings[term], posting{chunkID: chunk.ID, freq: freq})
	}
	return nil
}

// Search ranks chunks against the query with BM25. Filters are applied
// before ranking so k hits are always drawn from the filtered population.
func (ix *Index) Search(_ context.Context, query string, k int, filters domain.Filters) ([]driven.LexicalHit, error) {
	terms := ix.tokenize(query)
	if len(terms) == 0 || k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.chunks)
	if n == 0 {
		return nil, nil
	}
	avgLength := float64(ix.totalLength) / float64(n)

	scores := make(map[string]float64)
	for _, term := range terms {
		postings := ix.postings[term]
		if len(postings) == 0 {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(len(postings))+0.5)/(float64(len(postings))+0.5))
		for _, p := range postings {
			chunk := ix.chunks[p.chunkID]
			if !filters.Match(chunk.metadata) {
				continue
			}
			tf := float64(p.freq)
			norm := tf * (k1 + 1) / (tf + k1*(1-b+b*float64(chunk.length)/avgLength))
			scores[p.chunkID] += idf * norm
		}
	}

	hits := make([]driven.LexicalHit, 0, len(scores))
	for chunkID, score := range scores {
		hits = append(hits, driven.LexicalHit{ChunkID: chunkID, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteByDocument removes every chunk belonging to a document.
func (ix *Index) DeleteByDocument(_ context.Context, documentID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for chunkID, chunk := range ix.chunks {
		if chunk.documentID != documentID {
			continue
		}
		ix.removePostings(chunkID)
		ix.totalLength -= chunk.length
		delete(ix.chunks, chunkID)
	}
	return nil
}

// Close is a no-op for the in-memory index.
func (ix *Index) Close() error {
	return nil
}

// Size returns the number of indexed chunks.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// removePostings drops all of a chunk's postings. Caller holds the lock.
func (ix *Index) removePostings(chunkID string) {
	for term, postings := range ix.postings {
		filtered := postings[:0]
		for _, p := range postings {
			if p.chunkID != chunkID {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			delete(ix.postings, term)
			continue
		}
		ix.postings[term] = filtered
	}
}

// termFrequencies tokenizes text into term counts and the chunk length.
func (ix *Index) termFrequencies(text string) (map[string]int, int) {
	tokens := ix.tokenize(text)
	freqs := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		freqs[tok]++
	}
	return freqs, len(tokens)
}

// tokenize lowercases, extracts word and number tokens, and drops
// stopwords.
func (ix *Index) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if _, ok := ix.stopwords[tok]; ok {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "but", "by", "for",
		"from", "has", "have", "in", "is", "it", "its", "of", "on", "or",
		"that", "the", "their", "there", "this", "to", "was", "were",
		"what", "when", "where", "which", "who", "will", "with",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// entry pairs a stored vector with its filterable metadata.
type entry struct {
	vector   []float32
	metadata map[string]string
}

// VectorIndex is an in-memory brute-force cosine similarity index.
// Exact search, no ANN structure; fine for corpora up to tens of
// thousands of chunks, which covers the single-machine use case.
type VectorIndex struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewVectorIndex creates a new in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{entries: make(map[string]entry)}
}

// Has reports whether a vector exists for the chunk ID.
func (idx *VectorIndex) Has(_ context.Context, chunkID string) (bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.entries[chunkID]
	return ok, nil
}

// AddIfAbsent inserts the vector unless the chunk ID is already present.
// The check and the insert happen under one lock, so concurrent ingests
// of the same content cannot double-insert.
func (idx *VectorIndex) AddIfAbsent(_ context.Context, chunkID string, embedding []float32, metadata map[string]string) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.entries[chunkID]; ok {
		return false, nil
	}

	vector := make([]float32, len(embedding))
	copy(vector, embedding)
	idx.entries[chunkID] = entry{vector: vector, metadata: metadata}
	return true, nil
}

// Search scans every stored vector and returns the k most similar.
// Filters are applied before ranking.
func (idx *VectorIndex) Search(_ context.Context, query []float32, k int, filters domain.Filters) ([]driven.VectorHit, error) {
	if len(query) == 0 || k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	hits := make([]driven.VectorHit, 0, len(idx.entries))
	for id, e := range idx.entries {
		if !filters.Match(e.metadata) {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    id,
			Similarity: cosineSimilarity(query, e.vector),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteByDocument removes every vector whose metadata carries the
// document ID.
func (idx *VectorIndex) DeleteByDocument(_ context.Context, documentID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for id, e := range idx.entries {
		if e.metadata["document_id"] == documentID {
			delete(idx.entries, id)
		}
	}
	return nil
}

// Close is a no-op for the in-memory index.
func (idx *VectorIndex) Close() error {
	return nil
}

// Size returns the number of stored vectors.
func (idx *VectorIndex) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// cosineSimilarity returns the cosine of the angle between a and b,
// mapped to [0,1]. Mismatched dimensions score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return (cos + 1) / 2
}

package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

const defaultTimeout = 15 * time.Second

// Config holds Qdrant connection settings.
type Config struct {
	// URL is the Qdrant base URL, e.g. http://localhost:6333.
	URL string

	// APIKey is optional; sent as the api-key header when set.
	APIKey string

	// Collection is the collection name.
	Collection string

	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// VectorIndex is a minimal REST client to a Qdrant collection with
// cosine distance. Point IDs are derived deterministically from chunk
// IDs, so upserting the same chunk twice stores one point.
type VectorIndex struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// New creates a Qdrant-backed vector index.
func New(cfg Config) *VectorIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "docqa_chunks"
	}
	return &VectorIndex{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates the collection if it does not exist.
func (v *VectorIndex) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrInvalidInput, dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant returns 200 when the collection already exists with the
	// same schema.
	return v.doJSON(ctx, http.MethodPut,
		fmt.Sprintf("%s/collections/%s", v.url, v.collection), body, nil)
}

// pointID maps a chunk ID onto the UUID space Qdrant requires.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// Has reports whether a point exists for the chunk ID.
func (v *VectorIndex) Has(ctx context.Context, chunkID string) (bool, error) {
	body := map[string]any{"ids": []string{pointID(chunkID)}}
	var resp struct {
		Result []struct {
			ID any `json:"id"`
		} `json:"result"`
	}
	err := v.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points", v.url, v.collection), body, &resp)
	if err != nil {
		return false, err
	}
	return len(resp.Result) > 0, nil
}

// AddIfAbsent upserts the vector under the chunk's deterministic point
// ID. Losing a race with a concurrent writer overwrites the point with
// identical content, so the idempotent upsert stands in for a true
// compare-and-set.
func (v *VectorIndex) AddIfAbsent(ctx context.Context, chunkID string, embedding []float32, metadata map[string]string) (bool, error) {
	exists, err := v.Has(ctx, chunkID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	payload := map[string]any{"chunk_id": chunkID}
	for k, val := range metadata {
		payload[k] = val
	}
	body := map[string]any{
		"points": []map[string]any{{
			"id":      pointID(chunkID),
			"vector":  embedding,
			"payload": payload,
		}},
	}
	err = v.doJSON(ctx, http.MethodPut,
		fmt.Sprintf("%s/collections/%s/points?wait=true", v.url, v.collection), body, nil)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Search runs a cosine similarity search, pushing the metadata filters
// down to Qdrant so k hits are drawn from the filtered population.
func (v *VectorIndex) Search(ctx context.Context, query []float32, k int, filters domain.Filters) ([]driven.VectorHit, error) {
	if len(query) == 0 || k <= 0 {
		return nil, nil
	}

	body := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": []string{"chunk_id"},
	}
	if filter := qdrantFilter(filters); filter != nil {
		body["filter"] = filter
	}

	var resp struct {
		Result []struct {
			Score   float64           `json:"score"`
			Payload map[string]string `json:"payload"`
		} `json:"result"`
	}
	err := v.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/search", v.url, v.collection), body, &resp)
	if err != nil {
		return nil, err
	}

	hits := make([]driven.VectorHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunkID := r.Payload["chunk_id"]
		if chunkID == "" {
			continue
		}
		hits = append(hits, driven.VectorHit{ChunkID: chunkID, Similarity: r.Score})
	}
	return hits, nil
}

// DeleteByDocument removes every point whose payload carries the
// document ID.
func (v *VectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": qdrantFilter(domain.Filters{"document_id": documentID}),
	}
	return v.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("%s/collections/%s/points/delete?wait=true", v.url, v.collection), body, nil)
}

// Close is a no-op; the HTTP client holds no persistent connections
// worth tearing down explicitly.
func (v *VectorIndex) Close() error {
	return nil
}

// qdrantFilter converts metadata filters to a Qdrant must-match filter.
func qdrantFilter(filters domain.Filters) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(filters))
	for key, value := range filters {
		must = append(must, map[string]any{
			"key":   key,
			"match": map[string]any{"value": value},
		})
	}
	return map[string]any{"must": must}
}

// doJSON sends a JSON request and decodes the JSON response into out.
func (v *VectorIndex) doJSON(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("api-key", v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s: %s", method, url, resp.Status)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

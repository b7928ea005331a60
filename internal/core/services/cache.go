package services

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driving"
	"github.com/custodia-labs/docqa-cli/internal/logger"
)

// Ensure ResponseCache implements the interface.
var _ driving.Answerer = (*ResponseCache)(nil)

// ResponseCache wraps an Answerer with a normalised-question cache.
// Concurrent asks for the same key are coalesced into one execution of
// the inner pipeline; the others receive the same result. Errors are
// never cached.
type ResponseCache struct {
	inner   driving.Answerer
	enabled bool

	mu      sync.RWMutex
	entries map[string]*domain.Answer
	group   singleflight.Group
}

// NewResponseCache creates a cache in front of inner. When enabled is
// false every call passes straight through.
func NewResponseCache(inner driving.Answerer, enabled bool) *ResponseCache {
	return &ResponseCache{
		inner:   inner,
		enabled: enabled,
		entries: make(map[string]*domain.Answer),
	}
}

// Ask returns a cached answer when one exists for the normalised
// question and filter set, otherwise runs the inner pipeline once and
// stores the result.
func (c *ResponseCache) Ask(ctx context.Context, question string, filters domain.Filters) (*domain.Answer, error) {
	if !c.enabled {
		return c.inner.Ask(ctx, question, filters)
	}

	key := cacheKey(question, filters)

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		logger.Debug("Cache hit for %q", question)
		return cached, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		answer, err := c.inner.Ask(ctx, question, filters)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = answer
		c.mu.Unlock()
		return answer, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Answer), nil
}

// Invalidate drops all cached answers. Called after ingestion changes
// the corpus, since any cached answer may now be stale.
func (c *ResponseCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]*domain.Answer)
	c.mu.Unlock()
}

// cacheKey combines the normalised question with the canonical filter
// encoding. The same semantic question with the same filters always
// maps to the same key.
func cacheKey(question string, filters domain.Filters) string {
	return domain.NormaliseQuestion(question) + "|" + filters.Canonical()
}

package enrich

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

// MemoryCache is the default run-scoped cache: a single map owned by one
// run. It is not safe for concurrent use.
type MemoryCache struct {
	entries map[string]domain.EnrichmentResult
}

// Compile-time interface check.
var _ domain.EnrichmentCache = (*MemoryCache)(nil)

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]domain.EnrichmentResult)}
}

// Get returns the cached result for marketID or domain.ErrNotFound.
func (c *MemoryCache) Get(_ context.Context, marketID string) (domain.EnrichmentResult, error) {
	r, ok := c.entries[marketID]
	if !ok {
		return domain.EnrichmentResult{}, fmt.Errorf("enrich cache: get %s: %w", marketID, domain.ErrNotFound)
	}
	return r, nil
}

// Put stores result under marketID. Entries are write-once.
func (c *MemoryCache) Put(_ context.Context, marketID string, result domain.EnrichmentResult) error {
	if _, ok := c.entries[marketID]; ok {
		return fmt.Errorf("enrich cache: put %s: %w", marketID, domain.ErrAlreadyExists)
	}
	c.entries[marketID] = result
	return nil
}

// Len returns the number of cached entries.
func (c *MemoryCache) Len() int {
	return len(c.entries)
}

package domain

import "context"

// EnrichmentCache maps market IDs to enrichment results for the lifetime of
// a single run. Entries are write-once: Put returns ErrAlreadyExists when the
// key is already set, and Get returns ErrNotFound on a miss.
type EnrichmentCache interface {
	Get(ctx context.Context, marketID string) (EnrichmentResult, error)
	Put(ctx context.Context, marketID string, result EnrichmentResult) error
}

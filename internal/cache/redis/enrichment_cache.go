package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

// DefaultTTL bounds how long an abandoned run's entries survive when Purge
// is never reached.
const DefaultTTL = 6 * time.Hour

const purgeBatch = 500

// EnrichmentCache implements domain.EnrichmentCache for a single run.
//
// Key schema:
//
//	enrich:{runID}:{marketID} - JSON-encoded EnrichmentResult
type EnrichmentCache struct {
	rdb   *redis.Client
	runID string
	ttl   time.Duration
}

// NewEnrichmentCache creates a cache namespaced to runID. A non-positive ttl
// uses DefaultTTL.
func NewEnrichmentCache(c *Client, runID string, ttl time.Duration) *EnrichmentCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &EnrichmentCache{rdb: c.rdb, runID: runID, ttl: ttl}
}

func (ec *EnrichmentCache) key(marketID string) string {
	return "enrich:" + ec.runID + ":" + marketID
}

// Get returns domain.ErrNotFound on a miss.
func (ec *EnrichmentCache) Get(ctx context.Context, marketID string) (domain.EnrichmentResult, error) {
	data, err := ec.rdb.Get(ctx, ec.key(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.EnrichmentResult{}, fmt.Errorf("redis: enrichment %s: %w", marketID, domain.ErrNotFound)
		}
		return domain.EnrichmentResult{}, fmt.Errorf("redis: get enrichment %s: %w", marketID, err)
	}

	var r domain.EnrichmentResult
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.EnrichmentResult{}, fmt.Errorf("redis: unmarshal enrichment %s: %w", marketID, err)
	}
	return r, nil
}

// Put stores r once. A second Put for the same market returns
// domain.ErrAlreadyExists and leaves the first value in place.
func (ec *EnrichmentCache) Put(ctx context.Context, marketID string, r domain.EnrichmentResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("redis: marshal enrichment %s: %w", marketID, err)
	}
	ok, err := ec.rdb.SetNX(ctx, ec.key(marketID), data, ec.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis: put enrichment %s: %w", marketID, err)
	}
	if !ok {
		return fmt.Errorf("redis: enrichment %s: %w", marketID, domain.ErrAlreadyExists)
	}
	return nil
}

// Purge deletes every key of the run and returns how many were removed.
func (ec *EnrichmentCache) Purge(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
		pattern = "enrich:" + ec.runID + ":*"
	)
	for {
		keys, next, err := ec.rdb.Scan(ctx, cursor, pattern, purgeBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("redis: scan run %s: %w", ec.runID, err)
		}
		if len(keys) > 0 {
			n, err := ec.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis: purge run %s: %w", ec.runID, err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

var _ domain.EnrichmentCache = (*EnrichmentCache)(nil)

package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("ENRICHER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ENRICHER_TEST_REDIS_ADDR not set")
	}
	c, err := New(context.Background(), ClientConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestEnrichmentCache_WriteOnce(t *testing.T) {
	ctx := context.Background()
	ec := NewEnrichmentCache(testClient(t), uuid.NewString(), 0)
	t.Cleanup(func() { _, _ = ec.Purge(context.Background()) })

	_, err := ec.Get(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	first := domain.EnrichmentResult{Category: domain.CategoryCrypto, ShortName: "BTC >$100k", Source: domain.SourceLLM}
	require.NoError(t, ec.Put(ctx, "m1", first))

	err = ec.Put(ctx, "m1", domain.EnrichmentResult{Category: domain.CategoryTech, ShortName: "other"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	got, err := ec.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestEnrichmentCache_RunsAreIsolated(t *testing.T) {
	ctx := context.Background()
	c := testClient(t)
	a := NewEnrichmentCache(c, uuid.NewString(), 0)
	b := NewEnrichmentCache(c, uuid.NewString(), 0)
	t.Cleanup(func() {
		_, _ = a.Purge(context.Background())
		_, _ = b.Purge(context.Background())
	})

	require.NoError(t, a.Put(ctx, "m1", domain.EnrichmentResult{Category: domain.CategoryTech, ShortName: "x"}))
	_, err := b.Get(ctx, "m1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEnrichmentCache_Purge(t *testing.T) {
	ctx := context.Background()
	ec := NewEnrichmentCache(testClient(t), uuid.NewString(), 0)

	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, ec.Put(ctx, id, domain.EnrichmentResult{Category: domain.CategoryTech, ShortName: id}))
	}
	n, err := ec.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = ec.Get(ctx, "m2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEnrichmentCache_Key(t *testing.T) {
	ec := &EnrichmentCache{runID: "run-1"}
	assert.Equal(t, "enrich:run-1:0xabc", ec.key("0xabc"))
}

package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}

// echoCompleter answers every market in the payload with a fixed category
// and a name derived from the ID.
type echoCompleter struct {
	calls    int
	payloads [][]map[string]any
}

func (e *echoCompleter) Complete(_ context.Context, system, user string) (string, error) {
	e.calls++
	var rows []map[string]any
	if err := json.Unmarshal([]byte(user), &rows); err != nil {
		return "", err
	}
	e.payloads = append(e.payloads, rows)
	var b strings.Builder
	for _, r := range rows {
		id := r["id"].(string)
		switch {
		case strings.Contains(system, "id,category,shortName"):
			fmt.Fprintf(&b, "%s,culture,Name %s\n", id, id)
		case strings.Contains(system, "id,category"):
			fmt.Fprintf(&b, "%s,culture\n", id)
		default:
			fmt.Fprintf(&b, "%s,Name %s\n", id, id)
		}
	}
	return b.String(), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func lakers(id string) domain.MarketRecord {
	return domain.MarketRecord{ID: id, Question: "Lakers vs. Celtics", Outcomes: []string{"Lakers", "Celtics"}}
}

func vague(id string) domain.MarketRecord {
	return domain.MarketRecord{ID: id, Question: "Will it happen " + id + "?", Outcomes: []string{"Yes", "No"}}
}

func namedOnly(id string) domain.MarketRecord {
	return domain.MarketRecord{ID: id, Question: "Foo Up or Down - October 15", Outcomes: []string{"Up", "Down"}}
}

func categorisedOnly(id string) domain.MarketRecord {
	return domain.MarketRecord{ID: id, Question: "Will Trump win the 2028 presidential election?", Outcomes: []string{"Yes", "No"}}
}

func TestEnrich_FullyDeterministicMakesNoCalls(t *testing.T) {
	mc := &mockCompleter{}
	o := NewOrchestrator(mc, nil, Config{}, testLogger())

	res, rep := o.Enrich(context.Background(), []domain.MarketRecord{lakers("m1")})

	require.Len(t, res, 1)
	assert.Equal(t, domain.EnrichmentResult{Category: domain.CategorySports, ShortName: "LAL win vs BOS", Source: domain.SourceRule}, res["m1"])
	assert.Equal(t, 0, rep.LLMCalls)
	mc.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnrich_BucketsUseNarrowInstructions(t *testing.T) {
	ec := &echoCompleter{}
	o := NewOrchestrator(ec, nil, Config{}, testLogger())

	res, rep := o.Enrich(context.Background(), []domain.MarketRecord{
		namedOnly("c1"), categorisedOnly("s1"), vague("b1"), lakers("d1"),
	})

	assert.Equal(t, 3, ec.calls)
	assert.Equal(t, 1, rep.Buckets[domain.BucketNeedsCategory])
	assert.Equal(t, 1, rep.Buckets[domain.BucketNeedsShortName])
	assert.Equal(t, 1, rep.Buckets[domain.BucketNeedsBoth])
	assert.Equal(t, 1, rep.Buckets[domain.BucketDeterministic])

	assert.Equal(t, domain.EnrichmentResult{Category: domain.CategoryCulture, ShortName: "FOO Up/Down Oct 15", Source: domain.SourceLLM}, res["c1"])
	assert.Equal(t, domain.EnrichmentResult{Category: domain.CategoryGeopolitics, ShortName: "Name s1", Source: domain.SourceLLM}, res["s1"])
	assert.Equal(t, domain.EnrichmentResult{Category: domain.CategoryCulture, ShortName: "Name b1", Source: domain.SourceLLM}, res["b1"])

	// Category payloads omit outcomes; shortname payloads omit slug.
	_, hasOutcomes := ec.payloads[0][0]["outcomes"]
	assert.False(t, hasOutcomes)
	_, hasOutcomes = ec.payloads[1][0]["outcomes"]
	assert.True(t, hasOutcomes)
}

func TestEnrich_BatchesAreBounded(t *testing.T) {
	ec := &echoCompleter{}
	o := NewOrchestrator(ec, nil, Config{BatchSize: 2}, testLogger())
	var markets []domain.MarketRecord
	for i := range 5 {
		markets = append(markets, vague(fmt.Sprintf("v%d", i)))
	}

	res, rep := o.Enrich(context.Background(), markets)

	assert.Equal(t, 3, ec.calls)
	assert.Equal(t, 3, rep.LLMCalls)
	assert.Len(t, res, 5)
	for _, p := range ec.payloads {
		assert.LessOrEqual(t, len(p), 2)
	}
}

func TestEnrich_NetworkFailureFallsBack(t *testing.T) {
	mc := &mockCompleter{}
	mc.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("dial tcp: connection refused"))
	o := NewOrchestrator(mc, nil, Config{}, testLogger())

	res, rep := o.Enrich(context.Background(), []domain.MarketRecord{vague("b1"), categorisedOnly("s1"), namedOnly("c1")})

	require.Len(t, res, 3)
	assert.Equal(t, domain.EnrichmentResult{Category: domain.DefaultCategory, ShortName: "Will it happen b1?", Source: domain.SourceFallback}, res["b1"])
	assert.Equal(t, domain.EnrichmentResult{Category: domain.CategoryGeopolitics, ShortName: "Will Trump win the 2028 presidential election?", Source: domain.SourceFallback}, res["s1"])
	assert.Equal(t, domain.EnrichmentResult{Category: domain.DefaultCategory, ShortName: "FOO Up/Down Oct 15", Source: domain.SourceFallback}, res["c1"])
	assert.Equal(t, 3, rep.LLMFailures)
	assert.Equal(t, 3, rep.Fallbacks)
}

func TestEnrich_PanicContainedToBatch(t *testing.T) {
	calls := 0
	c := completerFunc(func(_ context.Context, _, user string) (string, error) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return "", nil
	})
	o := NewOrchestrator(c, nil, Config{BatchSize: 1}, testLogger())

	res, rep := o.Enrich(context.Background(), []domain.MarketRecord{vague("a"), vague("b")})

	assert.Len(t, res, 2)
	assert.Equal(t, 1, rep.LLMFailures)
	assert.Equal(t, 2, rep.Fallbacks)
}

func TestEnrich_MissingAndFuzzyLines(t *testing.T) {
	ids := []string{"0xaaaaaaaaaaaa01", "0xbbbbbbbbbbbb02", "0xcccccccccccc03"}
	mc := &mockCompleter{}
	mc.On("Complete", mock.Anything, bothInstruction, mock.Anything).
		Return("0xaaaaaaaaaaaa01,crypto,A\n0xbbbbbbbbbbbb0,tech,B\n", nil).Once()
	o := NewOrchestrator(mc, nil, Config{}, testLogger())

	res, rep := o.Enrich(context.Background(), []domain.MarketRecord{vague(ids[0]), vague(ids[1]), vague(ids[2])})

	assert.Equal(t, "A", res[ids[0]].ShortName)
	assert.Equal(t, domain.CategoryTech, res[ids[1]].Category)
	assert.Equal(t, domain.SourceFallback, res[ids[2]].Source)
	assert.Equal(t, 1, rep.FuzzyMatches)
	assert.Equal(t, 1, rep.Fallbacks)
	mc.AssertExpectations(t)
}

func TestEnrich_ExactlyOneResultPerID(t *testing.T) {
	ec := &echoCompleter{}
	o := NewOrchestrator(ec, nil, Config{BatchSize: 3}, testLogger())
	markets := []domain.MarketRecord{
		vague("a"), lakers("b"), vague("a"), namedOnly("c"), categorisedOnly("d"), lakers("b"), vague("e"),
	}

	res, rep := o.Enrich(context.Background(), markets)

	assert.Equal(t, 7, rep.Input)
	assert.Equal(t, 5, rep.Unique)
	assert.Len(t, res, 5)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		r, ok := res[id]
		require.True(t, ok, id)
		assert.True(t, r.Complete(), id)
	}
}

func TestEnrich_CacheServesLaterRuns(t *testing.T) {
	cache := NewMemoryCache()
	ec := &echoCompleter{}
	o := NewOrchestrator(ec, cache, Config{}, testLogger())

	first, _ := o.Enrich(context.Background(), []domain.MarketRecord{vague("a"), lakers("b")})
	second, rep := o.Enrich(context.Background(), []domain.MarketRecord{vague("a")})

	assert.Equal(t, 1, ec.calls)
	assert.Equal(t, 1, cache.Len(), "only llm results are cached")
	assert.Equal(t, 1, rep.Cached)
	assert.Equal(t, first["a"].ShortName, second["a"].ShortName)
	assert.Equal(t, domain.SourceCache, second["a"].Source)
}

func TestEnrich_CacheHitIsNotOverwritten(t *testing.T) {
	cache := NewMemoryCache()
	require.NoError(t, cache.Put(context.Background(), "b", domain.EnrichmentResult{Category: domain.CategorySports, ShortName: "Lakers-Celtics"}))
	o := NewOrchestrator(nil, cache, Config{}, testLogger())

	res, _ := o.Enrich(context.Background(), []domain.MarketRecord{lakers("b")})

	assert.Equal(t, "Lakers-Celtics", res["b"].ShortName)
}

func TestEnrich_CacheHitFillsAbsentField(t *testing.T) {
	cache := NewMemoryCache()
	require.NoError(t, cache.Put(context.Background(), "b", domain.EnrichmentResult{ShortName: "Lakers-Celtics"}))
	o := NewOrchestrator(nil, cache, Config{}, testLogger())

	res, _ := o.Enrich(context.Background(), []domain.MarketRecord{lakers("b")})

	assert.Equal(t, domain.CategorySports, res["b"].Category)
	assert.Equal(t, "Lakers-Celtics", res["b"].ShortName)
}

func TestEnrich_NoCompleterFallsBack(t *testing.T) {
	o := NewOrchestrator(nil, nil, Config{}, testLogger())

	res, rep := o.Enrich(context.Background(), []domain.MarketRecord{vague("a"), lakers("b")})

	assert.Equal(t, domain.SourceFallback, res["a"].Source)
	assert.Equal(t, domain.SourceRule, res["b"].Source)
	assert.Equal(t, 0, rep.LLMCalls)
	assert.Equal(t, 1, rep.Fallbacks)
}

func TestMemoryCache_WriteOnce(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_, err := c.Get(ctx, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, c.Put(ctx, "x", domain.EnrichmentResult{ShortName: "one"}))
	assert.ErrorIs(t, c.Put(ctx, "x", domain.EnrichmentResult{ShortName: "two"}), domain.ErrAlreadyExists)

	got, err := c.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "one", got.ShortName)
}

type completerFunc func(ctx context.Context, system, user string) (string, error)

func (f completerFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

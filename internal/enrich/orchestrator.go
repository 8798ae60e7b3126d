// Package enrich assigns every market exactly one category and short name,
// using the deterministic rules where they suffice and batched LLM calls
// for the rest.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/marketenricher/internal/classify"
	"github.com/alanyoungcy/marketenricher/internal/domain"
)

// DefaultBatchSize bounds the number of markets sent in one LLM request.
const DefaultBatchSize = 40

// Completer sends one instruction plus payload to a language model and
// returns its free-text reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Config holds orchestrator tuning.
type Config struct {
	BatchSize int
}

// Report counts what one Enrich call did.
type Report struct {
	Input             int                   `json:"input"`
	Unique            int                   `json:"unique"`
	Cached            int                   `json:"cached"`
	Deterministic     int                   `json:"deterministic"`
	Buckets           map[domain.Bucket]int `json:"buckets"`
	LLMCalls          int                   `json:"llmCalls"`
	LLMFailures       int                   `json:"llmFailures"`
	LLMResolved       int                   `json:"llmResolved"`
	FuzzyMatches      int                   `json:"fuzzyMatches"`
	Fallbacks         int                   `json:"fallbacks"`
	MalformedLines    int                   `json:"malformedLines"`
	CoercedCategories int                   `json:"coercedCategories"`
}

// Orchestrator routes markets through cache, rules and LLM buckets.
type Orchestrator struct {
	completer Completer
	cache     domain.EnrichmentCache
	batchSize int
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator. A nil completer sends every
// market the rules cannot fully resolve straight to the fallback. A nil
// cache is replaced by a fresh MemoryCache.
func NewOrchestrator(completer Completer, cache domain.EnrichmentCache, cfg Config, logger *slog.Logger) *Orchestrator {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Orchestrator{
		completer: completer,
		cache:     cache,
		batchSize: cfg.BatchSize,
		logger:    logger.With(slog.String("component", "enrich")),
	}
}

// Enrich returns exactly one result per distinct market ID. Duplicate IDs
// collapse to their first occurrence. Failures never drop a market: it
// receives the deterministic fallback instead.
func (o *Orchestrator) Enrich(ctx context.Context, markets []domain.MarketRecord) (map[string]domain.EnrichmentResult, Report) {
	rep := Report{Input: len(markets), Buckets: make(map[domain.Bucket]int)}
	results := make(map[string]domain.EnrichmentResult, len(markets))
	queued := make(map[domain.Bucket][]pending)
	unique := make([]pending, 0, len(markets))
	seen := make(map[string]bool, len(markets))

	for _, m := range markets {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		v := classify.Classify(m)
		unique = append(unique, pending{market: m, verdict: v})

		if r, ok := o.lookup(ctx, m, v); ok {
			results[m.ID] = r
			rep.Cached++
			continue
		}

		b := v.Bucket()
		rep.Buckets[b]++
		if b == domain.BucketDeterministic {
			results[m.ID] = v.Resolved()
			rep.Deterministic++
			continue
		}
		queued[b] = append(queued[b], pending{market: m, verdict: v})
	}
	rep.Unique = len(unique)

	for _, spec := range bucketSpecs {
		o.classifyBucket(ctx, spec, queued[spec.bucket], results, &rep)
	}

	for _, p := range unique {
		if _, ok := results[p.market.ID]; !ok {
			results[p.market.ID] = p.verdict.Fallback(p.market)
			rep.Fallbacks++
		}
	}

	o.logger.Info("enrichment complete",
		slog.Int("input", rep.Input),
		slog.Int("unique", rep.Unique),
		slog.Int("cached", rep.Cached),
		slog.Int("deterministic", rep.Deterministic),
		slog.Int("llm_calls", rep.LLMCalls),
		slog.Int("llm_failures", rep.LLMFailures),
		slog.Int("fuzzy_matches", rep.FuzzyMatches),
		slog.Int("fallbacks", rep.Fallbacks),
	)
	return results, rep
}

// lookup consults the cache. A hit keeps every cached field and only fills
// fields the cached entry lacks from the rule verdict.
func (o *Orchestrator) lookup(ctx context.Context, m domain.MarketRecord, v classify.Verdict) (domain.EnrichmentResult, bool) {
	r, err := o.cache.Get(ctx, m.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			o.logger.Warn("cache lookup failed", slog.String("market_id", m.ID), slog.String("error", err.Error()))
		}
		return domain.EnrichmentResult{}, false
	}
	if !r.HasCategory() && v.HasCategory() {
		r.Category = v.Category
	}
	if !r.HasShortName() && v.HasName {
		r.ShortName = v.ShortName
	}
	if !r.Complete() {
		fb := v.Fallback(m)
		if !r.HasCategory() {
			r.Category = fb.Category
		}
		if !r.HasShortName() {
			r.ShortName = fb.ShortName
		}
	}
	r.Source = domain.SourceCache
	return r, true
}

// classifyBucket sends items to the LLM in sequential batches of at most
// batchSize using the bucket's instruction, layout and merge rule.
func (o *Orchestrator) classifyBucket(ctx context.Context, spec bucketSpec, items []pending, results map[string]domain.EnrichmentResult, rep *Report) {
	if len(items) == 0 {
		return
	}
	for start, idx := 0, 0; start < len(items); start, idx = start+o.batchSize, idx+1 {
		end := min(start+o.batchSize, len(items))
		o.runBatch(ctx, spec, idx, items[start:end], results, rep)
	}
}

func (o *Orchestrator) runBatch(ctx context.Context, spec bucketSpec, idx int, batch []pending, results map[string]domain.EnrichmentResult, rep *Report) {
	log := o.logger.With(slog.String("bucket", string(spec.bucket)), slog.Int("batch", idx))
	ids := make([]string, len(batch))
	byID := make(map[string]pending, len(batch))
	for i, p := range batch {
		ids[i] = p.market.ID
		byID[p.market.ID] = p
	}

	if o.completer == nil {
		o.fallback(batch, results, rep)
		return
	}

	payload, err := spec.payload(batch)
	if err != nil {
		log.Error("encode batch payload", slog.String("error", err.Error()), slog.Any("market_ids", ids))
		o.fallback(batch, results, rep)
		return
	}

	rep.LLMCalls++
	resp, err := o.complete(ctx, spec.instruction, payload)
	if err != nil {
		rep.LLMFailures++
		log.Error("batch classification failed",
			slog.String("error", err.Error()),
			slog.Any("market_ids", ids),
		)
		o.fallback(batch, results, rep)
		return
	}

	rec := Reconcile(resp, ids, spec.layout)
	rep.FuzzyMatches += rec.FuzzyMatches
	rep.MalformedLines += rec.MalformedLines
	rep.CoercedCategories += rec.CoercedCategories
	if rec.MalformedLines > 0 {
		log.Warn("skipped malformed response lines", slog.Int("count", rec.MalformedLines))
	}

	for _, e := range rec.Entries {
		p := byID[e.ID]
		r := spec.merge(p.verdict, e)
		results[e.ID] = r
		rep.LLMResolved++
		if e.Fuzzy {
			log.Debug("fuzzy matched response id", slog.String("market_id", e.ID))
		}
		if err := o.cache.Put(ctx, e.ID, r); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			log.Warn("cache write failed", slog.String("market_id", e.ID), slog.String("error", err.Error()))
		}
	}
	for _, id := range rec.Missing {
		log.Warn("no response line for market", slog.String("market_id", id))
		p := byID[id]
		results[id] = p.verdict.Fallback(p.market)
		rep.Fallbacks++
	}
}

// complete calls the completer and reports a panic as an error.
func (o *Orchestrator) complete(ctx context.Context, system, user string) (resp string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enrich: completer panic: %v", r)
		}
	}()
	return o.completer.Complete(ctx, system, user)
}

func (o *Orchestrator) fallback(batch []pending, results map[string]domain.EnrichmentResult, rep *Report) {
	for _, p := range batch {
		if _, ok := results[p.market.ID]; ok {
			continue
		}
		results[p.market.ID] = p.verdict.Fallback(p.market)
		rep.Fallbacks++
	}
}

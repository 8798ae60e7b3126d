// Package pipeline runs one enrichment pass end to end: collect, filter,
// group, enrich, filter again, export and optionally submit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/marketenricher/internal/domain"
	"github.com/alanyoungcy/marketenricher/internal/enrich"
	"github.com/alanyoungcy/marketenricher/internal/export"
	"github.com/alanyoungcy/marketenricher/internal/filter"
	"github.com/alanyoungcy/marketenricher/internal/metrics"
	"github.com/alanyoungcy/marketenricher/internal/notify"
)

// Mode selects how far a run goes.
type Mode string

const (
	ModeExport   Mode = "export"
	ModeSubmit   Mode = "submit"
	ModeClassify Mode = "classify"
)

// Stage names used in summaries, logs and metrics.
const (
	StageStructural = "stage1"
	StageGroups     = "stage2-groups"
	StageMarkets    = "stage2-markets"
	StageSubmission = "stage3"
)

// CacheFactory returns the enrichment cache for one run and a release func
// that is called once the run ends.
type CacheFactory func(runID string) (domain.EnrichmentCache, func(context.Context) error)

// RunnerConfig holds the inclusion rules and per-run options.
type RunnerConfig struct {
	Mode                 Mode
	MinVolume            float64
	AlwaysInclude        []string
	RestrictedCategories []domain.Category
	BatchSize            int
	PushgatewayURL       string
	MetricsJob           string
}

// RunnerDeps are the collaborators of a Runner. Completer, NewCache,
// Submitter, History and Notifier may be nil.
type RunnerDeps struct {
	Collector *Collector
	Completer enrich.Completer
	NewCache  CacheFactory
	Sinks     []Sink
	Submitter *Submitter
	History   domain.RunStore
	Notifier  *notify.Notifier
}

// RunSummary aggregates everything one run did.
type RunSummary struct {
	RunID      string           `json:"runId"`
	Mode       Mode             `json:"mode"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Collect    CollectStats     `json:"collect"`
	Stages     []StageStats     `json:"stages"`
	Groups     int              `json:"groups"`
	Ungrouped  int              `json:"ungrouped"`
	Collapsed  int              `json:"collapsed"`
	Enrichment enrich.Report    `json:"enrichment"`
	Exported   int              `json:"exported"`
	Submit     SubmitStats      `json:"submit"`
	Document   *export.Document `json:"-"`
}

// StageStats is the filter statistics of one pipeline stage.
type StageStats struct {
	Stage string        `json:"stage"`
	Stats []filter.Stat `json:"stats"`
}

// Runner executes enrichment runs. It is safe to call Run repeatedly; every
// run gets a fresh cache, orchestrator and metrics registry.
type Runner struct {
	cfg       RunnerConfig
	deps      RunnerDeps
	allowlist *filter.Allowlist
	logger    *slog.Logger
	now       func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig, deps RunnerDeps, logger *slog.Logger) *Runner {
	if cfg.Mode == "" {
		cfg.Mode = ModeExport
	}
	if cfg.MetricsJob == "" {
		cfg.MetricsJob = "market_enricher"
	}
	return &Runner{
		cfg:       cfg,
		deps:      deps,
		allowlist: filter.NewAllowlist(cfg.AlwaysInclude),
		logger:    logger.With(slog.String("component", "runner")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one full pass. Only collection, export sink and cancellation
// errors are returned; per-market and per-batch failures are absorbed and
// counted in the summary.
func (r *Runner) Run(ctx context.Context) (RunSummary, error) {
	sum := RunSummary{
		RunID:     uuid.NewString(),
		Mode:      r.cfg.Mode,
		StartedAt: r.now(),
	}
	m := metrics.NewRunMetrics()
	logger := r.logger.With(slog.String("run_id", sum.RunID), slog.String("mode", string(sum.Mode)))
	logger.Info("run starting")

	err := r.run(ctx, &sum, m, logger)
	sum.FinishedAt = r.now()
	m.RunDuration.Observe(sum.FinishedAt.Sub(sum.StartedAt).Seconds())

	if r.cfg.PushgatewayURL != "" {
		if perr := m.Push(ctx, r.cfg.PushgatewayURL, r.cfg.MetricsJob, sum.RunID); perr != nil {
			logger.Warn("metrics push failed", slog.String("error", perr.Error()))
		}
	}

	if err != nil {
		logger.Error("run failed", slog.String("error", err.Error()))
		r.notify(ctx, logger, notify.EventRunFailed, "Enrichment run failed",
			fmt.Sprintf("run %s (%s): %v", sum.RunID, sum.Mode, err))
		return sum, err
	}

	logger.Info("run complete",
		slog.Int("collected", sum.Collect.Collected),
		slog.Int("exported", sum.Exported),
		slog.Int("llm_calls", sum.Enrichment.LLMCalls),
		slog.Int("fallbacks", sum.Enrichment.Fallbacks),
		slog.Int("submitted", sum.Submit.Submitted),
		slog.Duration("elapsed", sum.FinishedAt.Sub(sum.StartedAt)),
	)
	if rep := sum.Enrichment; rep.LLMCalls > 0 && rep.LLMFailures == rep.LLMCalls {
		r.notify(ctx, logger, notify.EventDegraded, "LLM classification unavailable",
			fmt.Sprintf("run %s: all %d batch calls failed, %d markets used the fallback", sum.RunID, rep.LLMCalls, rep.Fallbacks))
	}
	r.notify(ctx, logger, notify.EventRunComplete, "Enrichment run complete", FormatSummary(sum))
	return sum, nil
}

func (r *Runner) run(ctx context.Context, sum *RunSummary, m *metrics.RunMetrics, logger *slog.Logger) error {
	// 1. Collect.
	done := r.step(m, "collect")
	markets, cstats, err := r.deps.Collector.Collect(ctx)
	done()
	sum.Collect = cstats
	m.Collected.Add(float64(cstats.Collected))
	if err != nil {
		return err
	}

	// 2. Structural validity.
	stage1 := filter.Run(markets, filter.BinaryOutcome())
	r.recordStage(sum, m, logger, StageStructural, stage1.Stats)

	// 3. Group by event.
	groups, ungrouped := GroupByEvent(stage1.Output)

	// 4. Inclusion by volume or allowlist.
	groupStage := filter.Run(groups, filter.GroupInclusion(r.cfg.MinVolume, r.allowlist))
	r.recordStage(sum, m, logger, StageGroups, groupStage.Stats)
	marketStage := filter.Run(ungrouped, filter.MarketInclusion(r.cfg.MinVolume, r.allowlist))
	r.recordStage(sum, m, logger, StageMarkets, marketStage.Stats)

	survivors := make([]domain.MarketRecord, 0, len(marketStage.Output))
	for _, g := range groupStage.Output {
		survivors = append(survivors, g.Markets...)
	}
	survivors = append(survivors, marketStage.Output...)

	// 5. Enrich.
	results, rep, err := r.enrich(ctx, sum.RunID, survivors, m)
	sum.Enrichment = rep
	if err != nil {
		return err
	}

	if r.cfg.Mode == ModeClassify {
		logger.Info("classification report",
			slog.Int("unique", rep.Unique),
			slog.Int("deterministic", rep.Deterministic),
			slog.Int("cached", rep.Cached),
			slog.Int("llm_resolved", rep.LLMResolved),
			slog.Int("fuzzy_matches", rep.FuzzyMatches),
			slog.Int("malformed_lines", rep.MalformedLines),
			slog.Int("fallbacks", rep.Fallbacks),
		)
		return nil
	}

	// 6. Category exclusion with allowlist override.
	inclusion := filter.SubmissionInclusion(r.cfg.RestrictedCategories, r.allowlist)
	var (
		enrichedGroups []domain.EnrichedGroup
		stage3Stats    []filter.Stat
	)
	for _, g := range groupStage.Output {
		res := filter.Run(attach(g.Markets, results), inclusion)
		stage3Stats = addStats(stage3Stats, res.Stats)
		enrichedGroups = append(enrichedGroups, domain.EnrichedGroup{
			ID:      g.ID,
			Title:   g.Title,
			Slug:    g.Slug,
			Markets: res.Output,
		})
	}
	ungroupedRes := filter.Run(attach(marketStage.Output, results), inclusion)
	stage3Stats = addStats(stage3Stats, ungroupedRes.Stats)
	r.recordStage(sum, m, logger, StageSubmission, stage3Stats)

	// 7. Singleton collapse.
	before := len(enrichedGroups)
	finalGroups, finalUngrouped := CollapseSingletons(enrichedGroups, ungroupedRes.Output)
	sum.Collapsed = before - len(finalGroups)
	sum.Groups = len(finalGroups)
	sum.Ungrouped = len(finalUngrouped)

	// 8. Export sinks.
	doc := export.Build(finalGroups, finalUngrouped, r.now())
	sum.Document = &doc
	sum.Exported = doc.Metadata.TotalMarkets
	m.Exported.Set(float64(sum.Exported))

	done = r.step(m, "export")
	err = r.writeSinks(ctx, Artifact{RunID: sum.RunID, Document: doc}, logger)
	done()
	if err != nil {
		return err
	}

	// 9. Submission.
	if r.cfg.Mode == ModeSubmit && r.deps.Submitter != nil {
		done = r.step(m, "submit")
		sum.Submit, err = r.deps.Submitter.SubmitAll(ctx, finalGroups, finalUngrouped)
		done()
		m.Submissions.WithLabelValues("submitted").Add(float64(sum.Submit.Submitted))
		m.Submissions.WithLabelValues("skipped").Add(float64(sum.Submit.Skipped))
		m.Submissions.WithLabelValues("failed").Add(float64(sum.Submit.Failed))
		if err != nil {
			return err
		}
	}

	// 10. Run history.
	if r.deps.History != nil {
		if err := r.deps.History.RecordRun(ctx, runRecord(*sum, r.now()), flatten(finalGroups, finalUngrouped)); err != nil {
			logger.Error("recording run history failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (r *Runner) enrich(ctx context.Context, runID string, markets []domain.MarketRecord, m *metrics.RunMetrics) (map[string]domain.EnrichmentResult, enrich.Report, error) {
	var (
		cache   domain.EnrichmentCache
		release func(context.Context) error
	)
	if r.deps.NewCache != nil {
		cache, release = r.deps.NewCache(runID)
	}
	if release != nil {
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("releasing run cache failed",
					slog.String("run_id", runID),
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	done := r.step(m, "enrich")
	orch := enrich.NewOrchestrator(r.deps.Completer, cache, enrich.Config{BatchSize: r.cfg.BatchSize}, r.logger)
	results, rep := orch.Enrich(ctx, markets)
	done()

	for bucket, n := range rep.Buckets {
		m.BucketSize.WithLabelValues(string(bucket)).Set(float64(n))
	}
	m.LLMCalls.Add(float64(rep.LLMCalls))
	m.LLMFailures.Add(float64(rep.LLMFailures))
	m.Fallbacks.Add(float64(rep.Fallbacks))

	if err := ctx.Err(); err != nil {
		return results, rep, fmt.Errorf("pipeline: enrich cancelled: %w", err)
	}
	return results, rep, nil
}

func (r *Runner) writeSinks(ctx context.Context, a Artifact, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range r.deps.Sinks {
		g.Go(func() error {
			if err := s.Write(gctx, a); err != nil {
				return fmt.Errorf("pipeline: sink %s: %w", s.Name(), err)
			}
			logger.Info("artifact written", slog.String("sink", s.Name()))
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) recordStage(sum *RunSummary, m *metrics.RunMetrics, logger *slog.Logger, stage string, stats []filter.Stat) {
	sum.Stages = append(sum.Stages, StageStats{Stage: stage, Stats: stats})
	for _, s := range stats {
		m.StageRemoved.WithLabelValues(stage, s.Name).Add(float64(s.RemovedCount))
		logger.Info("filter stage applied",
			slog.String("stage", stage),
			slog.String("filter", s.Name),
			slog.Int("input", s.InputCount),
			slog.Int("kept", s.KeptCount),
			slog.Int("removed", s.RemovedCount),
		)
	}
}

func (r *Runner) step(m *metrics.RunMetrics, name string) func() {
	start := time.Now()
	return func() {
		m.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

func (r *Runner) notify(ctx context.Context, logger *slog.Logger, event, title, message string) {
	if !r.deps.Notifier.Enabled() {
		return
	}
	if err := r.deps.Notifier.Notify(context.WithoutCancel(ctx), event, title, message); err != nil {
		logger.Warn("notification failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

// attach pairs each market with its enrichment result.
func attach(markets []domain.MarketRecord, results map[string]domain.EnrichmentResult) []domain.EnrichedMarket {
	out := make([]domain.EnrichedMarket, 0, len(markets))
	for _, m := range markets {
		out = append(out, domain.EnrichedMarket{MarketRecord: m, EnrichmentResult: results[m.ID]})
	}
	return out
}

// addStats sums per-filter statistics of repeated runs of the same filters.
func addStats(acc, stats []filter.Stat) []filter.Stat {
	if acc == nil {
		return append([]filter.Stat(nil), stats...)
	}
	for i := range min(len(acc), len(stats)) {
		acc[i].InputCount += stats[i].InputCount
		acc[i].KeptCount += stats[i].KeptCount
		acc[i].RemovedCount += stats[i].RemovedCount
	}
	return acc
}

func flatten(groups []domain.EnrichedGroup, ungrouped []domain.EnrichedMarket) []domain.EnrichedMarket {
	var out []domain.EnrichedMarket
	for _, g := range groups {
		out = append(out, g.Markets...)
	}
	return append(out, ungrouped...)
}

func runRecord(sum RunSummary, finished time.Time) domain.RunRecord {
	return domain.RunRecord{
		ID:            sum.RunID,
		Mode:          string(sum.Mode),
		StartedAt:     sum.StartedAt,
		FinishedAt:    finished,
		Collected:     sum.Collect.Collected,
		Exported:      sum.Exported,
		LLMCalls:      sum.Enrichment.LLMCalls,
		Fallbacks:     sum.Enrichment.Fallbacks,
		Submitted:     sum.Submit.Submitted,
		SkippedDupes:  sum.Submit.Skipped,
		FailedSubmits: sum.Submit.Failed,
	}
}

// FormatSummary renders a short plain-text digest for notifications.
func FormatSummary(sum RunSummary) string {
	msg := fmt.Sprintf("run %s (%s)\ncollected: %d\nexported: %d (%d groups, %d ungrouped)\nllm calls: %d (failed %d)\nfallbacks: %d",
		sum.RunID, sum.Mode,
		sum.Collect.Collected,
		sum.Exported, sum.Groups, sum.Ungrouped,
		sum.Enrichment.LLMCalls, sum.Enrichment.LLMFailures,
		sum.Enrichment.Fallbacks,
	)
	if sum.Mode == ModeSubmit {
		msg += fmt.Sprintf("\nsubmitted: %d, skipped: %d, failed: %d", sum.Submit.Submitted, sum.Submit.Skipped, sum.Submit.Failed)
	}
	return msg
}

// ErrNoSinks is returned by Validate when an exporting run has nowhere to
// write its document.
var ErrNoSinks = errors.New("pipeline: no export sinks configured")

// Validate checks that the runner can do what its mode asks.
func (r *Runner) Validate() error {
	if r.deps.Collector == nil {
		return errors.New("pipeline: collector is required")
	}
	if r.cfg.Mode != ModeClassify && len(r.deps.Sinks) == 0 {
		return ErrNoSinks
	}
	if r.cfg.Mode == ModeSubmit && r.deps.Submitter == nil {
		return errors.New("pipeline: submit mode requires a submitter")
	}
	return nil
}

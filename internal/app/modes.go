package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/marketenricher/internal/pipeline"
)

func runnerMode(mode string) pipeline.Mode {
	switch mode {
	case "submit":
		return pipeline.ModeSubmit
	case "classify":
		return pipeline.ModeClassify
	default:
		return pipeline.ModeExport
	}
}

// OnceMode performs a single run and returns. Classify runs log the
// enrichment report in full since they write nothing else.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies, mode pipeline.Mode) error {
	runner, err := a.newRunner(deps, mode, time.Now())
	if err != nil {
		return err
	}

	sum, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("app: %s run: %w", mode, err)
	}

	if mode == pipeline.ModeClassify {
		for bucket, n := range sum.Enrichment.Buckets {
			a.logger.Info("bucket", slog.String("bucket", string(bucket)), slog.Int("markets", n))
		}
	}
	return nil
}

// ScheduleMode repeats the export run, or the submit run when
// pipeline.schedule_submit is set, on the configured cron expression until
// ctx is cancelled.
func (a *App) ScheduleMode(ctx context.Context, deps *Dependencies) error {
	mode := pipeline.ModeExport
	if a.cfg.Submits() {
		mode = pipeline.ModeSubmit
	}

	// Fail fast on a runner that could never succeed.
	if _, err := a.newRunner(deps, mode, time.Now()); err != nil {
		return err
	}

	sched, err := pipeline.NewScheduler(a.cfg.Pipeline.Schedule, func(ctx context.Context) error {
		runner, err := a.newRunner(deps, mode, time.Now())
		if err != nil {
			return err
		}
		_, err = runner.Run(ctx)
		return err
	}, a.logger)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return sched.Run(ctx)
}

// newRunner builds a runner whose collection window is resolved against now,
// so scheduled runs slide their lookback forward.
func (a *App) newRunner(deps *Dependencies, mode pipeline.Mode, now time.Time) (*pipeline.Runner, error) {
	from, to, err := a.cfg.Window(now)
	if err != nil {
		return nil, fmt.Errorf("app: collection window: %w", err)
	}

	collector := pipeline.NewCollector(deps.Source, pipeline.CollectorConfig{
		PageSize: a.cfg.Source.PageSize,
		From:     from,
		To:       to,
		MaxPages: a.cfg.Source.MaxPages,
	}, a.logger)

	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Mode:                 mode,
		MinVolume:            a.cfg.Pipeline.MinVolume,
		AlwaysInclude:        a.cfg.Pipeline.AlwaysInclude,
		RestrictedCategories: a.cfg.RestrictedCategories(),
		BatchSize:            a.cfg.LLM.BatchSize,
		PushgatewayURL:       a.cfg.Metrics.PushgatewayURL,
		MetricsJob:           a.cfg.Metrics.Job,
	}, pipeline.RunnerDeps{
		Collector: collector,
		Completer: deps.Completer,
		NewCache:  deps.NewCache,
		Sinks:     deps.Sinks,
		Submitter: deps.Submitter,
		History:   deps.History,
		Notifier:  deps.Notifier,
	}, a.logger)

	if err := runner.Validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return runner, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

var enrichmentColumns = []string{
	"run_id", "market_id", "question", "category", "short_name", "source", "event_id", "volume",
}

// RunStore implements domain.RunStore.
type RunStore struct {
	db DB
}

// NewRunStore creates a RunStore on db.
func NewRunStore(db DB) *RunStore {
	return &RunStore{db: db}
}

// RecordRun inserts the run and one enrichment row per market in a single
// transaction.
func (s *RunStore) RecordRun(ctx context.Context, run domain.RunRecord, markets []domain.EnrichedMarket) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin run %s: %w", run.ID, err)
	}
	if err := writeRun(ctx, tx, run, markets); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit run %s: %w", run.ID, err)
	}
	return nil
}

func writeRun(ctx context.Context, tx pgx.Tx, run domain.RunRecord, markets []domain.EnrichedMarket) error {
	const insertRun = `
		INSERT INTO runs (
			id, mode, started_at, finished_at,
			collected, exported, llm_calls, fallbacks,
			submitted, skipped_dupes, failed_submits
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	if _, err := tx.Exec(ctx, insertRun,
		run.ID, run.Mode, run.StartedAt, run.FinishedAt,
		run.Collected, run.Exported, run.LLMCalls, run.Fallbacks,
		run.Submitted, run.SkippedDupes, run.FailedSubmits,
	); err != nil {
		return fmt.Errorf("postgres: insert run %s: %w", run.ID, err)
	}
	if len(markets) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(markets))
	for _, m := range markets {
		rows = append(rows, []any{
			run.ID, m.ID, m.Question, string(m.Category), m.ShortName, string(m.Source), m.EventID, m.Volume,
		})
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"market_enrichments"}, enrichmentColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("postgres: copy enrichments for run %s: %w", run.ID, err)
	}
	if int(n) != len(rows) {
		return fmt.Errorf("postgres: copy enrichments for run %s: wrote %d of %d rows", run.ID, n, len(rows))
	}
	return nil
}

// LatestRun returns the most recently started run, or domain.ErrNotFound.
func (s *RunStore) LatestRun(ctx context.Context) (domain.RunRecord, error) {
	const query = `
		SELECT id::text, mode, started_at, finished_at,
		       collected, exported, llm_calls, fallbacks,
		       submitted, skipped_dupes, failed_submits
		FROM runs
		ORDER BY started_at DESC
		LIMIT 1`

	var r domain.RunRecord
	err := s.db.QueryRow(ctx, query).Scan(
		&r.ID, &r.Mode, &r.StartedAt, &r.FinishedAt,
		&r.Collected, &r.Exported, &r.LLMCalls, &r.Fallbacks,
		&r.Submitted, &r.SkippedDupes, &r.FailedSubmits,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RunRecord{}, fmt.Errorf("postgres: latest run: %w", domain.ErrNotFound)
		}
		return domain.RunRecord{}, fmt.Errorf("postgres: latest run: %w", err)
	}
	return r, nil
}

var _ domain.RunStore = (*RunStore)(nil)

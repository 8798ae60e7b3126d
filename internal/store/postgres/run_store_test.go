package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketenricher/internal/domain"
)

var (
	started  = time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC)
	finished = started.Add(4 * time.Minute)
)

func sampleRun() domain.RunRecord {
	return domain.RunRecord{
		ID:         "6f1c1f0e-8f53-4a51-9d55-3f8e4ad7a001",
		Mode:       "submit",
		StartedAt:  started,
		FinishedAt: finished,
		Collected:  120,
		Exported:   40,
		LLMCalls:   3,
		Fallbacks:  2,
		Submitted:  38,
	}
}

func TestRecordRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	run := sampleRun()
	markets := []domain.EnrichedMarket{
		{
			MarketRecord:     domain.MarketRecord{ID: "m1", Question: "Will BTC hit $100k?", EventID: "e1", Volume: 1000},
			EnrichmentResult: domain.EnrichmentResult{Category: domain.CategoryCrypto, ShortName: "BTC >$100k", Source: domain.SourceRule},
		},
		{
			MarketRecord:     domain.MarketRecord{ID: "m2", Question: "Will X happen?"},
			EnrichmentResult: domain.EnrichmentResult{Category: domain.CategoryCulture, ShortName: "X", Source: domain.SourceLLM},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").
		WithArgs(run.ID, run.Mode, run.StartedAt, run.FinishedAt,
			run.Collected, run.Exported, run.LLMCalls, run.Fallbacks,
			run.Submitted, run.SkippedDupes, run.FailedSubmits).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"market_enrichments"}, enrichmentColumns).WillReturnResult(2)
	mock.ExpectCommit()

	require.NoError(t, NewRunStore(mock).RecordRun(context.Background(), run, markets))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRun_NoMarketsSkipsCopy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, NewRunStore(mock).RecordRun(context.Background(), sampleRun(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRun_RollsBackOnError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("duplicate key")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO runs").WillReturnError(boom)
	mock.ExpectRollback()

	err = NewRunStore(mock).RecordRun(context.Background(), sampleRun(), nil)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestRun(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := sampleRun()
	rows := pgxmock.NewRows([]string{
		"id", "mode", "started_at", "finished_at",
		"collected", "exported", "llm_calls", "fallbacks",
		"submitted", "skipped_dupes", "failed_submits",
	}).AddRow(want.ID, want.Mode, want.StartedAt, want.FinishedAt,
		want.Collected, want.Exported, want.LLMCalls, want.Fallbacks,
		want.Submitted, want.SkippedDupes, want.FailedSubmits)
	mock.ExpectQuery("FROM runs").WillReturnRows(rows)

	got, err := NewRunStore(mock).LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestRun_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM runs").WillReturnError(pgx.ErrNoRows)

	_, err = NewRunStore(mock).LatestRun(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMigrate_FreshDB(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	for _, name := range names {
		mock.ExpectQuery("SELECT EXISTS").WithArgs(name).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mock.ExpectExec("INSERT INTO schema_migrations").WithArgs(name).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectCommit()
	}

	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_AlreadyApplied(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	names, err := migrationNames()
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	for _, name := range names {
		mock.ExpectQuery("SELECT EXISTS").WithArgs(name).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	}

	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/enricher?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "enricher", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: "postgres://explicit", Host: "ignored"}))
}

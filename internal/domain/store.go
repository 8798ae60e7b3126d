package domain

import (
	"context"
	"time"
)

// RunRecord summarises one enrichment run for the history store.
type RunRecord struct {
	ID            string
	Mode          string
	StartedAt     time.Time
	FinishedAt    time.Time
	Collected     int
	Exported      int
	LLMCalls      int
	Fallbacks     int
	Submitted     int
	SkippedDupes  int
	FailedSubmits int
}

// RunStore persists run history and the enrichment chosen for each market.
type RunStore interface {
	RecordRun(ctx context.Context, run RunRecord, markets []EnrichedMarket) error
	LatestRun(ctx context.Context) (RunRecord, error)
}

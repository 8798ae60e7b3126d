package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/marketenricher/internal/domain"
	"github.com/alanyoungcy/marketenricher/internal/platform/admin"
)

// MarketSubmitter posts one market to the downstream registry.
type MarketSubmitter interface {
	Submit(ctx context.Context, p admin.MarketPayload) error
}

// SubmitStats counts submission outcomes.
type SubmitStats struct {
	Submitted int `json:"submitted"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Submitter sends the final records to the admin API one at a time. A
// failed submission never aborts the remaining ones.
type Submitter struct {
	client MarketSubmitter
	logger *slog.Logger
}

// NewSubmitter creates a Submitter.
func NewSubmitter(client MarketSubmitter, logger *slog.Logger) *Submitter {
	return &Submitter{
		client: client,
		logger: logger.With(slog.String("component", "submitter")),
	}
}

// SubmitAll submits grouped members first, then ungrouped records. It only
// returns an error when ctx is cancelled.
func (s *Submitter) SubmitAll(ctx context.Context, groups []domain.EnrichedGroup, ungrouped []domain.EnrichedMarket) (SubmitStats, error) {
	var stats SubmitStats

	for _, g := range groups {
		for _, m := range g.Markets {
			if err := ctx.Err(); err != nil {
				return stats, fmt.Errorf("pipeline: submit cancelled: %w", err)
			}
			s.submit(ctx, admin.PayloadFor(m, g.ID, g.Title), &stats)
		}
	}
	for _, m := range ungrouped {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("pipeline: submit cancelled: %w", err)
		}
		s.submit(ctx, admin.PayloadFor(m, "", ""), &stats)
	}

	s.logger.Info("submission complete",
		slog.Int("submitted", stats.Submitted),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (s *Submitter) submit(ctx context.Context, p admin.MarketPayload, stats *SubmitStats) {
	err := s.client.Submit(ctx, p)
	switch {
	case err == nil:
		stats.Submitted++
	case errors.Is(err, domain.ErrAlreadyExists):
		stats.Skipped++
		s.logger.Info("market already registered",
			slog.String("market_id", p.ID),
			slog.String("stage", "submit"),
		)
	default:
		stats.Failed++
		s.logger.Error("market submission failed",
			slog.String("market_id", p.ID),
			slog.String("stage", "submit"),
			slog.String("error", err.Error()),
		)
	}
}

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/marketenricher/internal/domain"
	"github.com/alanyoungcy/marketenricher/internal/platform/polymarket"
)

// DefaultPageSize is the page size used when CollectorConfig.PageSize is unset.
const DefaultPageSize = 500

// Stop reasons reported in CollectStats.
const (
	StopShortPage = "short_page"
	StopWindowEnd = "window_end"
	StopNoNewIDs  = "no_new_ids"
	StopMaxPages  = "max_pages"
)

// PageFetcher retrieves one page of markets starting at a cursor.
type PageFetcher interface {
	FetchPage(ctx context.Context, cur polymarket.Cursor) ([]domain.MarketRecord, error)
}

// CollectorConfig bounds a collection window.
type CollectorConfig struct {
	PageSize int
	From     time.Time
	To       time.Time // zero means open-ended
	MaxPages int       // zero means unbounded
}

// CollectStats describes one collection pass.
type CollectStats struct {
	Pages      int    `json:"pages"`
	Fetched    int    `json:"fetched"`
	Duplicates int    `json:"duplicates"`
	OutOfRange int    `json:"outOfRange"`
	Collected  int    `json:"collected"`
	StopReason string `json:"stopReason"`
}

// Collector owns the timestamp-cursor pagination loop over the market source.
type Collector struct {
	fetcher PageFetcher
	cfg     CollectorConfig
	logger  *slog.Logger
}

// NewCollector creates a Collector.
func NewCollector(fetcher PageFetcher, cfg CollectorConfig, logger *slog.Logger) *Collector {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &Collector{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "collector")),
	}
}

// Collect pages through the source from cfg.From, advancing the cursor to the
// latest start date seen on each page and deduplicating by market ID. Records
// are returned in first-seen order.
func (c *Collector) Collect(ctx context.Context) ([]domain.MarketRecord, CollectStats, error) {
	var (
		stats  CollectStats
		out    []domain.MarketRecord
		seen   = make(map[string]struct{})
		cursor = polymarket.Cursor{MinTimestamp: c.cfg.From, Limit: c.cfg.PageSize}
	)

	for {
		if err := ctx.Err(); err != nil {
			return out, stats, fmt.Errorf("pipeline: collect cancelled: %w", err)
		}
		if c.cfg.MaxPages > 0 && stats.Pages >= c.cfg.MaxPages {
			stats.StopReason = StopMaxPages
			break
		}

		page, err := c.fetcher.FetchPage(ctx, cursor)
		if err != nil {
			return out, stats, fmt.Errorf("pipeline: fetch page %d at %s: %w",
				stats.Pages, cursor.MinTimestamp.Format(time.RFC3339), err)
		}
		stats.Pages++
		stats.Fetched += len(page)

		fresh := 0
		latest := cursor.MinTimestamp
		for _, m := range page {
			if m.StartDate.After(latest) {
				latest = m.StartDate
			}
			if _, dup := seen[m.ID]; dup {
				stats.Duplicates++
				continue
			}
			seen[m.ID] = struct{}{}
			fresh++
			if !c.cfg.To.IsZero() && m.StartDate.After(c.cfg.To) {
				stats.OutOfRange++
				continue
			}
			out = append(out, m)
		}

		c.logger.Debug("fetched market page",
			slog.Int("page", stats.Pages),
			slog.Int("page_size", len(page)),
			slog.Int("new_ids", fresh),
			slog.Time("cursor", cursor.MinTimestamp),
		)

		switch {
		case len(page) < cursor.Limit:
			stats.StopReason = StopShortPage
		case fresh == 0:
			stats.StopReason = StopNoNewIDs
		case !c.cfg.To.IsZero() && latest.After(c.cfg.To):
			stats.StopReason = StopWindowEnd
		}
		if stats.StopReason != "" {
			break
		}
		cursor.MinTimestamp = latest
	}

	stats.Collected = len(out)
	c.logger.Info("market collection complete",
		slog.Int("pages", stats.Pages),
		slog.Int("fetched", stats.Fetched),
		slog.Int("collected", stats.Collected),
		slog.Int("duplicates", stats.Duplicates),
		slog.String("stop_reason", stats.StopReason),
	)
	return out, stats, nil
}

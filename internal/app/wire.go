package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	s3blob "github.com/alanyoungcy/marketenricher/internal/blob/s3"
	"github.com/alanyoungcy/marketenricher/internal/cache/redis"
	"github.com/alanyoungcy/marketenricher/internal/config"
	"github.com/alanyoungcy/marketenricher/internal/domain"
	"github.com/alanyoungcy/marketenricher/internal/enrich"
	"github.com/alanyoungcy/marketenricher/internal/notify"
	"github.com/alanyoungcy/marketenricher/internal/pipeline"
	"github.com/alanyoungcy/marketenricher/internal/platform/admin"
	"github.com/alanyoungcy/marketenricher/internal/platform/llm"
	"github.com/alanyoungcy/marketenricher/internal/platform/polymarket"
	"github.com/alanyoungcy/marketenricher/internal/resilience"
	"github.com/alanyoungcy/marketenricher/internal/store/postgres"
)

const notifyTimeout = 10 * time.Second

// Dependencies bundles every collaborator a run needs. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Source    pipeline.PageFetcher
	Completer enrich.Completer
	NewCache  pipeline.CacheFactory
	Sinks     []pipeline.Sink
	Submitter *pipeline.Submitter
	History   domain.RunStore
	Notifier  *notify.Notifier
}

// Wire constructs all concrete implementations from the given configuration
// and returns them together with a cleanup function that should be called on
// shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Market source ---
	deps.Source = polymarket.NewGammaClient(polymarket.GammaConfig{
		BaseURL:           cfg.Source.GammaURL,
		Timeout:           cfg.Source.Timeout.Duration,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
		Retry:             retryConfig(cfg.Source.MaxRetries),
	}, logger)

	// --- LLM ---
	// Left nil when disabled; every unresolved market then takes the fallback.
	if cfg.LLM.Enabled {
		deps.Completer = llm.NewClient(llm.ClientConfig{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout.Duration,
			Retry:       retryConfig(cfg.LLM.MaxRetries),
		}, logger)
	}

	// --- Run-scoped enrichment cache ---
	switch strings.ToLower(cfg.Cache.Backend) {
	case "redis":
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.NewCache = redisCacheFactory(redisClient, cfg.Cache.TTL.Duration, logger)
	default:
		deps.NewCache = func(string) (domain.EnrichmentCache, func(context.Context) error) {
			return enrich.NewMemoryCache(), nil
		}
	}

	// --- PostgreSQL run history ---
	if cfg.Store.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Store.DSN,
			Host:     cfg.Store.Host,
			Port:     cfg.Store.Port,
			Database: cfg.Store.Database,
			User:     cfg.Store.User,
			Password: cfg.Store.Password,
			SSLMode:  cfg.Store.SSLMode,
			MaxConns: cfg.Store.PoolMaxConns,
			MinConns: cfg.Store.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Store.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.History = postgres.NewRunStore(pgClient.DB())
	}

	// --- Export sinks ---
	if cfg.Pipeline.OutputPath != "" {
		deps.Sinks = append(deps.Sinks, pipeline.FileSink{Path: cfg.Pipeline.OutputPath})
	}
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			Prefix:         cfg.S3.Prefix,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.Sinks = append(deps.Sinks, pipeline.BlobSink{Writer: s3blob.NewWriter(s3Client)})
	}

	// --- Admin submission ---
	if cfg.Submits() {
		client := admin.NewClient(admin.ClientConfig{
			BaseURL:        cfg.Admin.BaseURL,
			Token:          cfg.Admin.Token,
			Timeout:        cfg.Admin.Timeout.Duration,
			MinDelay:       cfg.Admin.MinDelay.Duration,
			ConflictStatus: cfg.Admin.ConflictStatus,
			Retry:          retryConfig(cfg.Admin.MaxRetries),
		}, logger)
		deps.Submitter = pipeline.NewSubmitter(client, logger)
	}

	// --- Notifications ---
	notifyHTTP := resilience.NewHTTPClient(
		&http.Client{Timeout: notifyTimeout},
		resilience.DefaultRetryConfig(),
		logger.With(slog.String("component", "notify")),
	)
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramAPIURL,
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
			notifyHTTP,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL, notifyHTTP))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// redisCacheFactory namespaces each run's cache by run ID and purges the
// run's keys once it finishes.
func redisCacheFactory(c *redis.Client, ttl time.Duration, logger *slog.Logger) pipeline.CacheFactory {
	return func(runID string) (domain.EnrichmentCache, func(context.Context) error) {
		cache := redis.NewEnrichmentCache(c, runID, ttl)
		release := func(ctx context.Context) error {
			n, err := cache.Purge(ctx)
			if err != nil {
				return err
			}
			logger.Debug("purged run cache", slog.String("run_id", runID), slog.Int("keys", n))
			return nil
		}
		return cache, release
	}
}

// retryConfig applies a configured retry count to the default policy.
// max_retries counts retries, so zero still makes one attempt.
func retryConfig(maxRetries int) resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.MaxAttempts = max(maxRetries, 0) + 1
	return rc
}

// Package config defines the enricher's configuration and its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/marketenricher/internal/domain"
	"github.com/alanyoungcy/marketenricher/internal/filter"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ENRICHER_* environment
// variables.
type Config struct {
	Source   SourceConfig   `toml:"source"`
	LLM      LLMConfig      `toml:"llm"`
	Admin    AdminConfig    `toml:"admin"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Cache    CacheConfig    `toml:"cache"`
	Redis    RedisConfig    `toml:"redis"`
	Store    StoreConfig    `toml:"store"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// SourceConfig configures the Gamma market source and the collection window.
// The window starts at From, or Lookback before now when From is empty.
type SourceConfig struct {
	GammaURL          string   `toml:"gamma_url"`
	PageSize          int      `toml:"page_size"`
	MaxPages          int      `toml:"max_pages"`
	From              string   `toml:"from"`
	To                string   `toml:"to"`
	Lookback          duration `toml:"lookback"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Timeout           duration `toml:"timeout"`
	MaxRetries        int      `toml:"max_retries"`
}

// LLMConfig configures the batch classifier's model.
type LLMConfig struct {
	Enabled     bool     `toml:"enabled"`
	APIKey      string   `toml:"api_key"`
	BaseURL     string   `toml:"base_url"`
	Model       string   `toml:"model"`
	MaxTokens   int64    `toml:"max_tokens"`
	Temperature float64  `toml:"temperature"`
	BatchSize   int      `toml:"batch_size"`
	Timeout     duration `toml:"timeout"`
	MaxRetries  int      `toml:"max_retries"`
}

// AdminConfig configures submission to the downstream registry.
type AdminConfig struct {
	BaseURL        string   `toml:"base_url"`
	Token          string   `toml:"token"`
	Timeout        duration `toml:"timeout"`
	MinDelay       duration `toml:"min_delay"`
	ConflictStatus int      `toml:"conflict_status"`
	MaxRetries     int      `toml:"max_retries"`
}

// PipelineConfig holds the inclusion rules, the output path and the schedule.
type PipelineConfig struct {
	MinVolume            float64  `toml:"min_volume"`
	AlwaysInclude        []string `toml:"always_include"`
	RestrictedCategories []string `toml:"restricted_categories"`
	OutputPath           string   `toml:"output_path"`
	Schedule             string   `toml:"schedule"`
	ScheduleSubmit       bool     `toml:"schedule_submit"`
}

// CacheConfig selects the run-scoped enrichment cache backend.
type CacheConfig struct {
	Backend string   `toml:"backend"`
	TTL     duration `toml:"ttl"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// StoreConfig holds PostgreSQL connection parameters for the run history.
type StoreConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for export uploads.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramAPIURL    string   `toml:"telegram_api_url"`
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MetricsConfig configures the end-of-run pushgateway push.
type MetricsConfig struct {
	PushgatewayURL string `toml:"pushgateway_url"`
	Job            string `toml:"job"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values every deployment
// starts from.
func Defaults() Config {
	return Config{
		Source: SourceConfig{
			GammaURL:          "https://gamma-api.polymarket.com",
			PageSize:          500,
			Lookback:          duration{30 * 24 * time.Hour},
			RequestsPerSecond: 4,
			Timeout:           duration{30 * time.Second},
			MaxRetries:        3,
		},
		LLM: LLMConfig{
			Enabled:    true,
			Model:      "claude-3-5-haiku-latest",
			MaxTokens:  4096,
			BatchSize:  40,
			Timeout:    duration{2 * time.Minute},
			MaxRetries: 3,
		},
		Admin: AdminConfig{
			Timeout:        duration{30 * time.Second},
			MinDelay:       duration{250 * time.Millisecond},
			ConflictStatus: 409,
			MaxRetries:     3,
		},
		Pipeline: PipelineConfig{
			MinVolume:            10000,
			AlwaysInclude:        append([]string(nil), filter.DefaultAlwaysInclude...),
			RestrictedCategories: []string{string(domain.CategorySports)},
			OutputPath:           "out/markets.json",
			Schedule:             "0 */6 * * *",
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     duration{6 * time.Hour},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		Store: StoreConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "enricher",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			RunMigrations: true,
		},
		S3: S3Config{
			Region:         "us-east-1",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			TelegramAPIURL: "https://api.telegram.org",
		},
		Metrics: MetricsConfig{
			Job: "market_enricher",
		},
		Mode:     "export",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"export":   true,
	"submit":   true,
	"classify": true,
	"schedule": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Submits reports whether runs in this mode post to the admin API.
func (c *Config) Submits() bool {
	mode := strings.ToLower(c.Mode)
	return mode == "submit" || (mode == "schedule" && c.Pipeline.ScheduleSubmit)
}

// Window resolves the collection window relative to now.
func (c *Config) Window(now time.Time) (from, to time.Time, err error) {
	from = now.Add(-c.Source.Lookback.Duration)
	if c.Source.From != "" {
		if from, err = time.Parse(time.RFC3339, c.Source.From); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("source.from: %w", err)
		}
	}
	if c.Source.To != "" {
		if to, err = time.Parse(time.RFC3339, c.Source.To); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("source.to: %w", err)
		}
	}
	return from.UTC(), to.UTC(), nil
}

// RestrictedCategories parses Pipeline.RestrictedCategories. Validate
// guarantees every entry is recognised.
func (c *Config) RestrictedCategories() []domain.Category {
	out := make([]domain.Category, 0, len(c.Pipeline.RestrictedCategories))
	for _, s := range c.Pipeline.RestrictedCategories {
		if cat, ok := domain.ParseCategory(s); ok {
			out = append(out, cat)
		}
	}
	return out
}

// Validate checks Config for invalid or missing values and reports every
// problem at once, wrapped in domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: export, submit, classify, schedule)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Source
	if c.Source.GammaURL == "" {
		errs = append(errs, "source: gamma_url must not be empty")
	}
	if c.Source.PageSize < 1 {
		errs = append(errs, "source: page_size must be >= 1")
	}
	if c.Source.MaxPages < 0 {
		errs = append(errs, "source: max_pages must be >= 0")
	}
	if c.Source.RequestsPerSecond < 0 {
		errs = append(errs, "source: requests_per_second must be >= 0")
	}
	if from, to, err := c.Window(time.Now()); err != nil {
		errs = append(errs, "source: "+err.Error())
	} else if !to.IsZero() && !to.After(from) {
		errs = append(errs, "source: to must be after from")
	}

	// LLM
	if c.LLM.Enabled {
		if c.LLM.APIKey == "" {
			errs = append(errs, "llm: api_key is required when llm.enabled is true")
		}
		if c.LLM.Model == "" {
			errs = append(errs, "llm: model must not be empty")
		}
		if c.LLM.MaxTokens < 1 {
			errs = append(errs, "llm: max_tokens must be >= 1")
		}
	}
	if c.LLM.BatchSize < 1 {
		errs = append(errs, "llm: batch_size must be >= 1")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		errs = append(errs, "llm: temperature must be within 0-1")
	}

	// Admin
	if c.Submits() {
		if c.Admin.BaseURL == "" {
			errs = append(errs, "admin: base_url is required for submission")
		}
		if c.Admin.Token == "" {
			errs = append(errs, "admin: token is required for submission")
		}
	}
	if c.Admin.ConflictStatus < 400 || c.Admin.ConflictStatus > 499 {
		errs = append(errs, fmt.Sprintf("admin: conflict_status must be a 4xx status, got %d", c.Admin.ConflictStatus))
	}

	// Pipeline
	if c.Pipeline.MinVolume < 0 {
		errs = append(errs, "pipeline: min_volume must be >= 0")
	}
	for _, s := range c.Pipeline.RestrictedCategories {
		if _, ok := domain.ParseCategory(s); !ok {
			errs = append(errs, fmt.Sprintf("pipeline: unknown restricted category %q", s))
		}
	}
	if strings.ToLower(c.Mode) != "classify" && c.Pipeline.OutputPath == "" {
		errs = append(errs, "pipeline: output_path must not be empty")
	}
	if strings.ToLower(c.Mode) == "schedule" && strings.TrimSpace(c.Pipeline.Schedule) == "" {
		errs = append(errs, "pipeline: schedule is required for schedule mode")
	}

	// Cache
	switch strings.ToLower(c.Cache.Backend) {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when cache.backend is redis")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache: unknown backend %q (valid: memory, redis)", c.Cache.Backend))
	}

	// Store
	if c.Store.Enabled {
		if strings.TrimSpace(c.Store.DSN) == "" {
			if c.Store.Host == "" {
				errs = append(errs, "store: host must not be empty (or set store.dsn)")
			}
			if c.Store.Port <= 0 || c.Store.Port > 65535 {
				errs = append(errs, fmt.Sprintf("store: port must be 1-65535, got %d", c.Store.Port))
			}
			if c.Store.Database == "" {
				errs = append(errs, "store: database must not be empty")
			}
		}
		if c.Store.PoolMaxConns < 1 {
			errs = append(errs, "store: pool_max_conns must be >= 1")
		}
		if c.Store.PoolMinConns > c.Store.PoolMaxConns {
			errs = append(errs, "store: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty when s3.enabled is true")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", domain.ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

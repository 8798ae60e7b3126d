package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over the built-in defaults, loads a .env
// file from the working directory if present, and applies ENRICHER_*
// environment overrides. An empty path skips the file. The returned Config
// has NOT been validated; call Validate after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ENRICHER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). Secrets are expected to arrive this way.
func applyEnvOverrides(cfg *Config) {
	// ── Source ──
	setStr(&cfg.Source.GammaURL, "ENRICHER_SOURCE_GAMMA_URL")
	setInt(&cfg.Source.PageSize, "ENRICHER_SOURCE_PAGE_SIZE")
	setInt(&cfg.Source.MaxPages, "ENRICHER_SOURCE_MAX_PAGES")
	setStr(&cfg.Source.From, "ENRICHER_SOURCE_FROM")
	setStr(&cfg.Source.To, "ENRICHER_SOURCE_TO")
	setDuration(&cfg.Source.Lookback, "ENRICHER_SOURCE_LOOKBACK")
	setFloat64(&cfg.Source.RequestsPerSecond, "ENRICHER_SOURCE_REQUESTS_PER_SECOND")

	// ── LLM ──
	setBool(&cfg.LLM.Enabled, "ENRICHER_LLM_ENABLED")
	setStr(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
	setStr(&cfg.LLM.APIKey, "ENRICHER_LLM_API_KEY") // wins over ANTHROPIC_API_KEY
	setStr(&cfg.LLM.BaseURL, "ENRICHER_LLM_BASE_URL")
	setStr(&cfg.LLM.Model, "ENRICHER_LLM_MODEL")
	setInt64(&cfg.LLM.MaxTokens, "ENRICHER_LLM_MAX_TOKENS")
	setFloat64(&cfg.LLM.Temperature, "ENRICHER_LLM_TEMPERATURE")
	setInt(&cfg.LLM.BatchSize, "ENRICHER_LLM_BATCH_SIZE")

	// ── Admin ──
	setStr(&cfg.Admin.BaseURL, "ENRICHER_ADMIN_BASE_URL")
	setStr(&cfg.Admin.Token, "ENRICHER_ADMIN_TOKEN")
	setDuration(&cfg.Admin.MinDelay, "ENRICHER_ADMIN_MIN_DELAY")
	setInt(&cfg.Admin.ConflictStatus, "ENRICHER_ADMIN_CONFLICT_STATUS")

	// ── Pipeline ──
	setFloat64(&cfg.Pipeline.MinVolume, "ENRICHER_PIPELINE_MIN_VOLUME")
	setStringSlice(&cfg.Pipeline.AlwaysInclude, "ENRICHER_PIPELINE_ALWAYS_INCLUDE")
	setStringSlice(&cfg.Pipeline.RestrictedCategories, "ENRICHER_PIPELINE_RESTRICTED_CATEGORIES")
	setStr(&cfg.Pipeline.OutputPath, "ENRICHER_PIPELINE_OUTPUT_PATH")
	setStr(&cfg.Pipeline.Schedule, "ENRICHER_PIPELINE_SCHEDULE")
	setBool(&cfg.Pipeline.ScheduleSubmit, "ENRICHER_PIPELINE_SCHEDULE_SUBMIT")

	// ── Cache / Redis ──
	setStr(&cfg.Cache.Backend, "ENRICHER_CACHE_BACKEND")
	setDuration(&cfg.Cache.TTL, "ENRICHER_CACHE_TTL")
	setStr(&cfg.Redis.Addr, "ENRICHER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ENRICHER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ENRICHER_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "ENRICHER_REDIS_TLS_ENABLED")

	// ── Store ──
	setBool(&cfg.Store.Enabled, "ENRICHER_STORE_ENABLED")
	setStr(&cfg.Store.DSN, "ENRICHER_STORE_DSN")
	setStr(&cfg.Store.Host, "ENRICHER_STORE_HOST")
	setInt(&cfg.Store.Port, "ENRICHER_STORE_PORT")
	setStr(&cfg.Store.Database, "ENRICHER_STORE_DATABASE")
	setStr(&cfg.Store.User, "ENRICHER_STORE_USER")
	setStr(&cfg.Store.Password, "ENRICHER_STORE_PASSWORD")
	setStr(&cfg.Store.SSLMode, "ENRICHER_STORE_SSL_MODE")
	setBool(&cfg.Store.RunMigrations, "ENRICHER_STORE_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ENRICHER_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ENRICHER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ENRICHER_S3_REGION")
	setStr(&cfg.S3.Bucket, "ENRICHER_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "ENRICHER_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "ENRICHER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ENRICHER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ENRICHER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ENRICHER_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ENRICHER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ENRICHER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ENRICHER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ENRICHER_NOTIFY_EVENTS")

	// ── Metrics ──
	setStr(&cfg.Metrics.PushgatewayURL, "ENRICHER_METRICS_PUSHGATEWAY_URL")

	// ── Top-level ──
	setStr(&cfg.Mode, "ENRICHER_MODE")
	setStr(&cfg.LogLevel, "ENRICHER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

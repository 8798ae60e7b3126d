// Package llm adapts the Anthropic Messages API to the enrich.Completer
// contract.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/alanyoungcy/marketenricher/internal/domain"
	"github.com/alanyoungcy/marketenricher/internal/resilience"
)

// ClientConfig holds the settings for the model client.
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
	Timeout     time.Duration
	Retry       resilience.RetryConfig
}

// Client sends single-turn completions to the Messages API.
type Client struct {
	client sdk.Client
	cfg    ClientConfig
	logger *slog.Logger
}

// NewClient creates a Client. Retries are owned by the shared retry
// primitive, so the SDK's own retry loop is disabled.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		client: sdk.NewClient(opts...),
		cfg:    cfg,
		logger: logger.With(slog.String("component", "llm")),
	}
}

// Complete sends system as the instruction and user as the only user turn,
// and returns the concatenated text of the reply.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.cfg.Model),
		MaxTokens: c.cfg.MaxTokens,
		System:    []sdk.TextBlockParam{{Text: system}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(user))},
	}
	if c.cfg.Temperature > 0 {
		params.Temperature = sdk.Float(c.cfg.Temperature)
	}

	retry := c.cfg.Retry
	retry.ShouldRetry = isRetryable
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(c.logger, "anthropic", "messages.new")
	}

	start := time.Now()
	msg, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*sdk.Message, error) {
		return c.client.Messages.New(ctx, params)
	})
	if err != nil {
		return "", fmt.Errorf("llm: complete: %w", classifyError(err))
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	c.logger.Debug("completion",
		slog.String("model", string(msg.Model)),
		slog.Int64("input_tokens", msg.Usage.InputTokens),
		slog.Int64("output_tokens", msg.Usage.OutputTokens),
		slog.String("stop_reason", string(msg.StopReason)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return b.String(), nil
}

// isRetryable treats API 5xx responses and transport failures as transient.
// Every 4xx response is definitive.
func isRetryable(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return resilience.IsTransientHTTPStatus(apiErr.StatusCode)
	}
	return resilience.IsTransient(err)
}

func classifyError(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}
	return err
}

package resilience

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const maxErrorBody = 4 << 10

// HTTPClient wraps an *http.Client with the retry policy. Transport errors
// and 5xx responses are retried; any other non-2xx response is returned as
// a *StatusError without retrying.
type HTTPClient struct {
	client *http.Client
	retry  RetryConfig
	logger *slog.Logger
}

// NewHTTPClient creates an HTTPClient. A nil client uses http.DefaultClient.
func NewHTTPClient(client *http.Client, retry RetryConfig, logger *slog.Logger) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{client: client, retry: retry, logger: logger}
}

// Do sends the request built by newReq, rebuilding it for each attempt so
// request bodies can be replayed. On success the caller owns the response
// body and must close it.
func (c *HTTPClient) Do(ctx context.Context, service string, newReq func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	cfg := c.retry
	if cfg.OnRetry == nil && c.logger != nil {
		cfg.OnRetry = RetryLogger(c.logger, service, "http")
	}

	return DoVal(ctx, cfg, func(ctx context.Context) (*http.Response, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: build request: %w", service, err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s: %s %s: %w", service, req.Method, req.URL.Path, err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       bytes.TrimSpace(body),
		}
	})
}

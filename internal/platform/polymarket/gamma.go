package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/marketenricher/internal/domain"
	"github.com/alanyoungcy/marketenricher/internal/resilience"
)

// Cursor selects one page of markets: those starting at or after
// MinTimestamp, at most Limit of them, oldest first.
type Cursor struct {
	MinTimestamp time.Time
	Limit        int
}

// GammaClient is the REST client for the Polymarket Gamma API.
type GammaClient struct {
	baseURL string
	http    *resilience.HTTPClient
	limiter *rate.Limiter
	logger  *slog.Logger
}

// GammaConfig configures a GammaClient. BaseURL is the API root, e.g.
// "https://gamma-api.polymarket.com". A zero RequestsPerSecond disables
// client-side rate limiting.
type GammaConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             resilience.RetryConfig
}

// NewGammaClient creates a new Gamma API client.
func NewGammaClient(cfg GammaConfig, logger *slog.Logger) *GammaClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	logger = logger.With(slog.String("component", "gamma"))
	return &GammaClient{
		baseURL: cfg.BaseURL,
		http:    resilience.NewHTTPClient(&http.Client{Timeout: timeout}, cfg.Retry, logger),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// FetchPage returns one page of open markets ordered by start date.
func (g *GammaClient) FetchPage(ctx context.Context, cur Cursor) ([]domain.MarketRecord, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(cur.Limit))
	params.Set("order", "startDate")
	params.Set("ascending", "true")
	params.Set("closed", "false")
	if !cur.MinTimestamp.IsZero() {
		params.Set("start_date_min", cur.MinTimestamp.UTC().Format(time.RFC3339))
	}

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: fetch page: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	markets := make([]domain.MarketRecord, 0, len(apiMarkets))
	for i := range apiMarkets {
		if apiMarkets[i].ID == "" {
			continue
		}
		markets = append(markets, apiMarkets[i].ToDomainMarket())
	}
	return markets, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := g.http.Do(ctx, "gamma", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, checkHTTPStatus(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// checkHTTPStatus maps well-known status codes onto domain sentinels.
func checkHTTPStatus(err error) error {
	var se *resilience.StatusError
	if !errors.As(err, &se) {
		return err
	}
	switch se.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, se.Body)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, se.Body)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, se.Body)
	}
	return fmt.Errorf("gamma API error (status %d): %s", se.StatusCode, se.Body)
}

// Package admin submits enriched markets to the downstream registry.
package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/marketenricher/internal/domain"
	"github.com/alanyoungcy/marketenricher/internal/resilience"
)

// ClientConfig configures the admin API client. ConflictStatus is the
// status the API uses to report an already registered market.
type ClientConfig struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	MinDelay       time.Duration
	ConflictStatus int
	Retry          resilience.RetryConfig
}

// Client posts markets to {BaseURL}/api/markets, one at a time, no faster
// than one call per MinDelay.
type Client struct {
	cfg     ClientConfig
	http    *resilience.HTTPClient
	limiter *rate.Limiter
	logger  *slog.Logger
}

// MarketPayload is the request body for one submission.
type MarketPayload struct {
	ID         string   `json:"id"`
	Question   string   `json:"question"`
	ShortName  string   `json:"shortName"`
	Category   string   `json:"category"`
	Slug       string   `json:"slug,omitempty"`
	Outcomes   []string `json:"outcomes"`
	Volume     float64  `json:"volume"`
	Liquidity  float64  `json:"liquidity"`
	GroupID    string   `json:"groupId,omitempty"`
	GroupTitle string   `json:"groupTitle,omitempty"`
}

// NewClient creates an admin API client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ConflictStatus == 0 {
		cfg.ConflictStatus = http.StatusConflict
	}
	limit := rate.Inf
	if cfg.MinDelay > 0 {
		limit = rate.Every(cfg.MinDelay)
	}
	logger = logger.With(slog.String("component", "admin"))
	return &Client{
		cfg:     cfg,
		http:    resilience.NewHTTPClient(&http.Client{Timeout: cfg.Timeout}, cfg.Retry, logger),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// PayloadFor builds the submission body for m. groupID and groupTitle are
// empty for ungrouped markets.
func PayloadFor(m domain.EnrichedMarket, groupID, groupTitle string) MarketPayload {
	return MarketPayload{
		ID:         m.ID,
		Question:   m.Question,
		ShortName:  m.ShortName,
		Category:   string(m.Category),
		Slug:       m.Slug,
		Outcomes:   m.Outcomes,
		Volume:     m.Volume,
		Liquidity:  m.Liquidity,
		GroupID:    groupID,
		GroupTitle: groupTitle,
	}
}

// Submit upserts one market. It returns an error wrapping
// domain.ErrAlreadyExists when the registry already holds the market.
func (c *Client) Submit(ctx context.Context, p MarketPayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("admin: encode %s: %w", p.ID, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("admin: throttle: %w", err)
	}

	resp, err := c.http.Do(ctx, "admin", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			strings.TrimRight(c.cfg.BaseURL, "/")+"/api/markets", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		return req, nil
	})
	if err != nil {
		return c.mapError(p.ID, err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) mapError(id string, err error) error {
	var se *resilience.StatusError
	if !errors.As(err, &se) {
		return fmt.Errorf("admin: submit %s: %w", id, err)
	}
	switch {
	case se.StatusCode == c.cfg.ConflictStatus:
		return fmt.Errorf("admin: submit %s: %w", id, domain.ErrAlreadyExists)
	case se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden:
		return fmt.Errorf("admin: submit %s: %w: %s", id, domain.ErrUnauthorized, errorMessage(se))
	}
	return fmt.Errorf("admin: submit %s: status %d: %s", id, se.StatusCode, errorMessage(se))
}

// errorMessage extracts the "error" or "message" field of a JSON error body,
// falling back to the status text.
func errorMessage(se *resilience.StatusError) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(se.Body, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if se.Status != "" {
		return se.Status
	}
	return http.StatusText(se.StatusCode)
}

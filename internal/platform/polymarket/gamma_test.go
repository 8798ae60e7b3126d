package polymarket

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/marketenricher/internal/domain"
	"github.com/alanyoungcy/marketenricher/internal/resilience"
)

const pageJSON = `[
  {
    "id": "516710",
    "question": "Lakers vs. Celtics",
    "slug": "nba-lal-bos-2026-01-05",
    "outcomes": "[\"Lakers\", \"Celtics\"]",
    "volume": "125000.5",
    "liquidity": 3400,
    "startDate": "2026-01-04T12:00:00Z",
    "events": [{"id": "ev1", "title": "Lakers vs. Celtics", "slug": "nba-lal-bos", "seriesSlug": "nba"}]
  },
  {
    "id": "516711",
    "question": "Will it happen?",
    "outcomes": ["Yes", "No"],
    "volume": 12,
    "startDate": "2026-01-04T13:00:00Z"
  },
  {"question": "no id"}
]`

func newTestGamma(url string) *GammaClient {
	return NewGammaClient(GammaConfig{
		BaseURL: url,
		Retry:   resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "100", q.Get("limit"))
		assert.Equal(t, "startDate", q.Get("order"))
		assert.Equal(t, "true", q.Get("ascending"))
		assert.Equal(t, "false", q.Get("closed"))
		assert.Equal(t, "2026-01-01T00:00:00Z", q.Get("start_date_min"))
		_, _ = w.Write([]byte(pageJSON))
	}))
	defer ts.Close()

	got, err := newTestGamma(ts.URL).FetchPage(context.Background(), Cursor{
		MinTimestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Limit:        100,
	})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "516710", got[0].ID)
	assert.Equal(t, []string{"Lakers", "Celtics"}, got[0].Outcomes)
	assert.InDelta(t, 125000.5, got[0].Volume, 1e-9)
	assert.InDelta(t, 3400, got[0].Liquidity, 1e-9)
	assert.Equal(t, "ev1", got[0].EventID)
	assert.Equal(t, "nba", got[0].SeriesSlug)
	assert.Equal(t, time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC), got[0].StartDate)
	assert.Equal(t, []string{"Yes", "No"}, got[1].Outcomes)
	assert.Zero(t, got[1].Liquidity)
	assert.False(t, got[1].Grouped())
}

func TestFetchPage_MapsStatusErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := newTestGamma(ts.URL).FetchPage(context.Background(), Cursor{Limit: 10})

	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestFetchPage_RetriesServerErrors(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	got, err := newTestGamma(ts.URL).FetchPage(context.Background(), Cursor{Limit: 10})

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 2, calls)
}

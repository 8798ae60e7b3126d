package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMetricsAreIsolated(t *testing.T) {
	a := NewRunMetrics()
	b := NewRunMetrics()

	a.LLMCalls.Add(3)
	a.StageRemoved.WithLabelValues("stage1", "binary-outcome").Add(2)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.LLMCalls))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.LLMCalls))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.StageRemoved.WithLabelValues("stage1", "binary-outcome")))
}

func TestPushSendsToGateway(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewRunMetrics()
	m.Fallbacks.Add(7)

	require.NoError(t, m.Push(context.Background(), srv.URL, "enricher", "run-1"))
	assert.Equal(t, "/metrics/job/enricher/run_id/run-1", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestPushReportsGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewRunMetrics().Push(context.Background(), srv.URL, "enricher", "run-1")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "metrics: push"))
}

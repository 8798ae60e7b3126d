// Package metrics provides Prometheus metrics for a single enrichment run.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "market_enricher"

// RunMetrics collects the counters of one run on a private registry, so
// consecutive scheduled runs never share state.
type RunMetrics struct {
	registry *prometheus.Registry

	Collected     prometheus.Counter
	StageRemoved  *prometheus.CounterVec
	BucketSize    *prometheus.GaugeVec
	LLMCalls      prometheus.Counter
	LLMFailures   prometheus.Counter
	Fallbacks     prometheus.Counter
	Submissions   *prometheus.CounterVec
	Exported      prometheus.Gauge
	RunDuration   prometheus.Histogram
	StageDuration *prometheus.HistogramVec
}

// NewRunMetrics creates and registers a fresh set of run metrics.
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),

		Collected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "markets_collected_total",
			Help:      "Markets returned by the market source",
		}),
		StageRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "filter_removed_total",
				Help:      "Records removed by each filter",
			},
			[]string{"stage", "filter"},
		),
		BucketSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "bucket_size",
				Help:      "Records per classification bucket",
			},
			[]string{"bucket"},
		),
		LLMCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Batch classification calls",
		}),
		LLMFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_failures_total",
			Help:      "Batch classification calls that failed",
		}),
		Fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Records resolved by the deterministic fallback",
		}),
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Admin submissions by outcome",
			},
			[]string{"outcome"},
		),
		Exported: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "markets_exported",
			Help:      "Markets in the exported document",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a full run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34m
		}),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time per pipeline step",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 15),
			},
			[]string{"step"},
		),
	}

	m.registry.MustRegister(
		m.Collected,
		m.StageRemoved,
		m.BucketSize,
		m.LLMCalls,
		m.LLMFailures,
		m.Fallbacks,
		m.Submissions,
		m.Exported,
		m.RunDuration,
		m.StageDuration,
	)
	return m
}

// Registry returns the run's registry.
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Push sends every metric to a Prometheus pushgateway under the given job,
// grouped by run ID.
func (m *RunMetrics) Push(ctx context.Context, gatewayURL, job, runID string) error {
	err := push.New(gatewayURL, job).
		Gatherer(m.registry).
		Grouping("run_id", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("metrics: push to %s: %w", gatewayURL, err)
	}
	return nil
}

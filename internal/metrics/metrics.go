// Package metrics exposes Prometheus instrumentation for the generation
// pipeline.
package metrics

import (
	"context"
	"time"

	"sitesmith/internal/ai"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts pipeline runs by strategy and outcome.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitesmith_generation_runs_total",
		Help: "Generation runs by strategy and outcome.",
	}, []string{"strategy", "outcome"})

	// FallbacksTotal counts agentic→legacy fallthroughs.
	FallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitesmith_strategy_fallbacks_total",
		Help: "Runs where the agentic strategy fell through to the legacy strategy.",
	})

	// RunDuration observes end-to-end run latency.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitesmith_generation_run_duration_seconds",
		Help:    "End-to-end generation run duration.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	// LLMCallDuration observes individual backend call latency.
	LLMCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sitesmith_llm_call_duration_seconds",
		Help:    "LLM backend call duration by backend class.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"backend"})

	// LLMCallErrors counts failed backend calls.
	LLMCallErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitesmith_llm_call_errors_total",
		Help: "Failed LLM backend calls by backend class.",
	}, []string{"backend"})

	// ActiveStreams gauges currently open progress streams.
	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sitesmith_active_progress_streams",
		Help: "Progress streams currently open.",
	})
)

// instrumentedClient wraps an ai.Client with call metrics.
type instrumentedClient struct {
	inner   ai.Client
	backend string
}

// InstrumentClient returns a client that records call duration and errors
// under the given backend label.
func InstrumentClient(inner ai.Client, backend string) ai.Client {
	return &instrumentedClient{inner: inner, backend: backend}
}

func (c *instrumentedClient) Complete(ctx context.Context, req *ai.ChatRequest) (*ai.ChatResponse, error) {
	start := time.Now()
	resp, err := c.inner.Complete(ctx, req)
	LLMCallDuration.WithLabelValues(c.backend).Observe(time.Since(start).Seconds())
	if err != nil {
		LLMCallErrors.WithLabelValues(c.backend).Inc()
	}
	return resp, err
}

package telemetry

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rcabanilla/gridseer/config"
)

// Telemetry provides monitoring and cost tracking for analysis sessions.
// Every Record method is best-effort and never affects control flow: no
// errors are returned and nothing here may block the loop.
type Telemetry struct {
	config      config.TelemetryConfig
	logger      *log.Logger
	metrics     *Metrics
	costTracker *CostTracker
}

// Metrics holds aggregate counters for the analysis loop
type Metrics struct {
	mu sync.RWMutex

	TotalAnalyses      int64
	SuccessfulAnalyses int64
	FailedAnalyses     int64
	TotalRounds        int64

	ToolCalls  map[string]int64
	ToolErrors map[string]int64

	ModelCalls  map[string]int64
	TokensInput int64
	TokensOut   int64
}

// CostTracker accumulates estimated spend per model
type CostTracker struct {
	mu         sync.RWMutex
	ModelCosts map[string]float64
	TotalCost  float64
}

var (
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridseer_analyses_total",
		Help: "Completed analysis sessions by outcome.",
	}, []string{"outcome"})
	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridseer_analysis_duration_seconds",
		Help:    "Wall time of one analysis session.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})
	analysisRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gridseer_analysis_rounds",
		Help:    "Model round trips per analysis session.",
		Buckets: prometheus.LinearBuckets(0, 1, 11),
	})
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridseer_tool_calls_total",
		Help: "Tool dispatches by tool and outcome.",
	}, []string{"tool", "outcome"})
	toolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gridseer_tool_call_duration_seconds",
		Help:    "Duration of one tool dispatch.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"tool"})
	modelTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridseer_model_tokens_total",
		Help: "Model tokens consumed by direction.",
	}, []string{"model", "direction"})
)

// NewTelemetry creates a new telemetry instance
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	return &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: &Metrics{
			ToolCalls:  make(map[string]int64),
			ToolErrors: make(map[string]int64),
			ModelCalls: make(map[string]int64),
		},
		costTracker: &CostTracker{ModelCosts: make(map[string]float64)},
	}
}

// RecordAnalysis records one finished (or aborted) analysis session.
func (t *Telemetry) RecordAnalysis(duration time.Duration, rounds int, success bool) {
	if t == nil || !t.config.Enabled {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	analysesTotal.WithLabelValues(outcome).Inc()
	analysisDuration.Observe(duration.Seconds())
	analysisRounds.Observe(float64(rounds))

	t.metrics.mu.Lock()
	t.metrics.TotalAnalyses++
	if success {
		t.metrics.SuccessfulAnalyses++
	} else {
		t.metrics.FailedAnalyses++
	}
	t.metrics.TotalRounds += int64(rounds)
	t.metrics.mu.Unlock()
}

// RecordToolCall records one tool dispatch outcome.
func (t *Telemetry) RecordToolCall(tool string, duration time.Duration, isError bool) {
	if t == nil || !t.config.Enabled {
		return
	}
	outcome := "ok"
	if isError {
		outcome = "error"
	}
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())

	t.metrics.mu.Lock()
	t.metrics.ToolCalls[tool]++
	if isError {
		t.metrics.ToolErrors[tool]++
	}
	t.metrics.mu.Unlock()
}

// RecordModelCall records token usage and estimated cost for one model call.
func (t *Telemetry) RecordModelCall(model string, inputTokens, outputTokens int64) {
	if t == nil || !t.config.Enabled {
		return
	}
	modelTokensTotal.WithLabelValues(model, "input").Add(float64(inputTokens))
	modelTokensTotal.WithLabelValues(model, "output").Add(float64(outputTokens))

	t.metrics.mu.Lock()
	t.metrics.ModelCalls[model]++
	t.metrics.TokensInput += inputTokens
	t.metrics.TokensOut += outputTokens
	t.metrics.mu.Unlock()

	if t.config.CostTracking {
		cost := estimateCost(model, inputTokens, outputTokens)
		t.costTracker.mu.Lock()
		t.costTracker.ModelCosts[model] += cost
		t.costTracker.TotalCost += cost
		t.costTracker.mu.Unlock()
	}
}

// GetMetrics returns a snapshot of the aggregate counters.
func (t *Telemetry) GetMetrics() Metrics {
	t.metrics.mu.RLock()
	defer t.metrics.mu.RUnlock()
	snapshot := Metrics{
		TotalAnalyses:      t.metrics.TotalAnalyses,
		SuccessfulAnalyses: t.metrics.SuccessfulAnalyses,
		FailedAnalyses:     t.metrics.FailedAnalyses,
		TotalRounds:        t.metrics.TotalRounds,
		TokensInput:        t.metrics.TokensInput,
		TokensOut:          t.metrics.TokensOut,
		ToolCalls:          make(map[string]int64, len(t.metrics.ToolCalls)),
		ToolErrors:         make(map[string]int64, len(t.metrics.ToolErrors)),
		ModelCalls:         make(map[string]int64, len(t.metrics.ModelCalls)),
	}
	for k, v := range t.metrics.ToolCalls {
		snapshot.ToolCalls[k] = v
	}
	for k, v := range t.metrics.ToolErrors {
		snapshot.ToolErrors[k] = v
	}
	for k, v := range t.metrics.ModelCalls {
		snapshot.ModelCalls[k] = v
	}
	return snapshot
}

// GetCostSummary returns accumulated cost estimates per model.
func (t *Telemetry) GetCostSummary() map[string]float64 {
	t.costTracker.mu.RLock()
	defer t.costTracker.mu.RUnlock()
	out := make(map[string]float64, len(t.costTracker.ModelCosts)+1)
	for k, v := range t.costTracker.ModelCosts {
		out[k] = v
	}
	out["total"] = t.costTracker.TotalCost
	return out
}

// estimateCost prices tokens per million using published Claude rates.
func estimateCost(model string, inputTokens, outputTokens int64) float64 {
	var inPerMillion, outPerMillion float64
	switch {
	case strings.Contains(model, "haiku"):
		inPerMillion, outPerMillion = 0.8, 4.0
	case strings.Contains(model, "opus"):
		inPerMillion, outPerMillion = 15.0, 75.0
	default: // sonnet-class
		inPerMillion, outPerMillion = 3.0, 15.0
	}
	return float64(inputTokens)*inPerMillion/1_000_000 + float64(outputTokens)*outPerMillion/1_000_000
}

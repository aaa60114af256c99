package telemetry

import (
	"testing"
	"time"

	"github.com/rcabanilla/gridseer/config"
)

func TestRecordAnalysisCounters(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: true})
	tele.RecordAnalysis(2*time.Second, 3, true)
	tele.RecordAnalysis(time.Second, 1, false)

	m := tele.GetMetrics()
	if m.TotalAnalyses != 2 || m.SuccessfulAnalyses != 1 || m.FailedAnalyses != 1 {
		t.Fatalf("unexpected counters: %+v", m)
	}
	if m.TotalRounds != 4 {
		t.Fatalf("expected 4 total rounds, got %d", m.TotalRounds)
	}
}

func TestRecordToolCallTracksErrors(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: true})
	tele.RecordToolCall("query_qdrant_db", 100*time.Millisecond, false)
	tele.RecordToolCall("query_qdrant_db", 100*time.Millisecond, true)

	m := tele.GetMetrics()
	if m.ToolCalls["query_qdrant_db"] != 2 {
		t.Fatalf("expected 2 calls, got %d", m.ToolCalls["query_qdrant_db"])
	}
	if m.ToolErrors["query_qdrant_db"] != 1 {
		t.Fatalf("expected 1 error, got %d", m.ToolErrors["query_qdrant_db"])
	}
}

func TestDisabledTelemetryIsInert(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: false})
	tele.RecordAnalysis(time.Second, 2, true)
	tele.RecordToolCall("search_philippines_energy", time.Second, false)
	tele.RecordModelCall("claude-3-5-sonnet-20241022", 100, 50)

	m := tele.GetMetrics()
	if m.TotalAnalyses != 0 || len(m.ToolCalls) != 0 || m.TokensInput != 0 {
		t.Fatalf("disabled telemetry recorded data: %+v", m)
	}
}

func TestNilTelemetryIsSafe(t *testing.T) {
	var tele *Telemetry
	tele.RecordAnalysis(time.Second, 1, true)
	tele.RecordToolCall("x", time.Second, true)
	tele.RecordModelCall("m", 1, 1)
}

func TestCostTrackingByModelClass(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: true, CostTracking: true})
	tele.RecordModelCall("claude-3-5-sonnet-20241022", 1_000_000, 0)
	tele.RecordModelCall("claude-3-5-haiku-20241022", 0, 1_000_000)

	costs := tele.GetCostSummary()
	if costs["claude-3-5-sonnet-20241022"] != 3.0 {
		t.Fatalf("unexpected sonnet cost: %v", costs["claude-3-5-sonnet-20241022"])
	}
	if costs["claude-3-5-haiku-20241022"] != 4.0 {
		t.Fatalf("unexpected haiku cost: %v", costs["claude-3-5-haiku-20241022"])
	}
	if costs["total"] != 7.0 {
		t.Fatalf("unexpected total: %v", costs["total"])
	}
}

package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/rcabanilla/gridseer/config"
	"github.com/rcabanilla/gridseer/internal/agent/telemetry"
)

// scriptedLLM replays a fixed sequence of assistant turns
type scriptedLLM struct {
	turns []ConversationTurn
	err   error
	calls int
}

func (s *scriptedLLM) Generate(ctx context.Context, system string, transcript []ConversationTurn, tools []ToolDescriptor) (ConversationTurn, TokenUsage, error) {
	if s.err != nil {
		return ConversationTurn{}, TokenUsage{}, s.err
	}
	idx := s.calls
	s.calls++
	if idx >= len(s.turns) {
		idx = len(s.turns) - 1
	}
	return s.turns[idx], TokenUsage{InputTokens: 100, OutputTokens: 50}, nil
}

func (s *scriptedLLM) Model() string { return "claude-3-5-sonnet-20241022" }

func textTurn(text string) ConversationTurn {
	return ConversationTurn{Blocks: []ContentBlock{{Type: "text", Text: text}}}
}

func toolTurn(calls ...ToolCall) ConversationTurn {
	turn := ConversationTurn{}
	for i := range calls {
		turn.Blocks = append(turn.Blocks, ContentBlock{Type: "tool_use", ToolCall: &calls[i]})
	}
	return turn
}

func newTestOrchestrator(t *testing.T, llm LLMProvider, searcher WebSearcher, vectors VectorStore, pages PageStore, maxRounds int) *Orchestrator {
	t.Helper()
	cfg := &config.Config{}
	cfg.Agent.MaxRounds = maxRounds
	cfg.Agent.ToolTimeout = time.Second
	cfg.LLM.Timeout = time.Second

	logger := log.New(io.Discard, "", 0)
	tele := telemetry.NewTelemetry(config.TelemetryConfig{})
	registry := DefaultRegistry()
	dispatcher := NewDispatcher(registry, searcher, vectors, pages, logger, tele, time.Second)

	orch, err := NewOrchestrator(cfg, logger, tele, registry, dispatcher, llm)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return orch
}

func TestAnalyzeImmediateTextAnswer(t *testing.T) {
	llm := &scriptedLLM{turns: []ConversationTurn{textTurn("Reserve margins in Luzon remain thin.")}}
	orch := newTestOrchestrator(t, llm, &fakeSearcher{}, &fakeVectors{}, &fakePages{}, 10)

	result, err := orch.Analyze(context.Background(), "state of the Luzon grid?")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Forecast != "Reserve margins in Luzon remain thin." {
		t.Fatalf("forecast not returned verbatim: %q", result.Forecast)
	}
	if result.Rounds != 0 {
		t.Fatalf("no tool round should be counted, got %d", result.Rounds)
	}
	if llm.calls != 1 {
		t.Fatalf("expected a single model call, got %d", llm.calls)
	}
	if result.TokensUsed != 150 {
		t.Fatalf("unexpected token total: %d", result.TokensUsed)
	}
}

func TestAnalyzeToolLoopAggregatesSources(t *testing.T) {
	searcher := &fakeSearcher{docs: []EnergyDocument{
		{Title: "BESS auction", URL: "https://doe.gov.ph/bess", Source: "doe.gov.ph", Snippet: "battery storage in Visayas"},
	}}
	vectors := &fakeVectors{hits: []VectorHit{
		{Title: "Visayas demand study", URL: "https://doe.gov.ph/bess", Source: "doe.gov.ph", Content: "duplicate url"},
		{Title: "WESM spot data", URL: "https://wesm.ph/spot", Source: "wesm.ph", Content: "price series"},
	}}
	llm := &scriptedLLM{turns: []ConversationTurn{
		toolTurn(
			ToolCall{ID: "c1", Name: ToolSearchEnergy, Arguments: map[string]interface{}{"query": "lithium battery siting Visayas"}},
			ToolCall{ID: "c2", Name: ToolQueryVector, Arguments: map[string]interface{}{"query": "Visayas storage"}},
		),
		textTurn("Visayas siting favors Cebu load centers."),
	}}
	orch := newTestOrchestrator(t, llm, searcher, vectors, &fakePages{}, 10)

	result, err := orch.Analyze(context.Background(), "where should batteries go in the Visayas?")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Forecast != "Visayas siting favors Cebu load centers." {
		t.Fatalf("unexpected forecast: %q", result.Forecast)
	}
	if result.Rounds != 1 {
		t.Fatalf("expected 1 tool round, got %d", result.Rounds)
	}
	// search hit and the duplicate-URL vector hit collapse into one source
	if len(result.Sources) != 1 {
		t.Fatalf("expected deduped sources, got %+v", result.Sources)
	}
	if result.Sources[0].URL != "https://doe.gov.ph/bess" || result.Sources[0].Title != "BESS auction" {
		t.Fatalf("first-seen source lost: %+v", result.Sources[0])
	}
}

func TestAnalyzeRoundCapReturnsBestEffort(t *testing.T) {
	// model keeps calling tools forever, after saying something once
	llm := &scriptedLLM{turns: []ConversationTurn{
		ConversationTurn{Blocks: []ContentBlock{
			{Type: "text", Text: "Gathering PSA demand figures."},
			{Type: "tool_use", ToolCall: &ToolCall{ID: "c1", Name: ToolQueryCache, Arguments: map[string]interface{}{"query": "demand"}}},
		}},
		toolTurn(ToolCall{ID: "c2", Name: ToolQueryCache, Arguments: map[string]interface{}{"query": "demand"}}),
	}}
	orch := newTestOrchestrator(t, llm, &fakeSearcher{}, &fakeVectors{}, &fakePages{}, 3)

	result, err := orch.Analyze(context.Background(), "demand outlook?")
	if err != nil {
		t.Fatalf("round cap must not be an error: %v", err)
	}
	if result.Rounds != 3 {
		t.Fatalf("expected exactly 3 rounds, got %d", result.Rounds)
	}
	if result.Forecast != "Gathering PSA demand figures." {
		t.Fatalf("expected last assistant text as best effort, got %q", result.Forecast)
	}
}

func TestAnalyzeRoundCapFallsBackWhenNoText(t *testing.T) {
	llm := &scriptedLLM{turns: []ConversationTurn{
		toolTurn(ToolCall{ID: "c1", Name: ToolQueryVector, Arguments: map[string]interface{}{"query": "x"}}),
	}}
	orch := newTestOrchestrator(t, llm, &fakeSearcher{}, &fakeVectors{}, &fakePages{}, 2)

	result, err := orch.Analyze(context.Background(), "q")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Forecast != "No response generated." {
		t.Fatalf("expected fallback answer, got %q", result.Forecast)
	}
}

func TestAnalyzeContinuesPastToolFailure(t *testing.T) {
	vectors := &fakeVectors{queryErr: errors.New("qdrant down")}
	llm := &scriptedLLM{turns: []ConversationTurn{
		toolTurn(ToolCall{ID: "c1", Name: ToolQueryVector, Arguments: map[string]interface{}{"query": "x"}}),
		textTurn("Proceeding without the vector index."),
	}}
	orch := newTestOrchestrator(t, llm, &fakeSearcher{}, vectors, &fakePages{}, 10)

	result, err := orch.Analyze(context.Background(), "q")
	if err != nil {
		t.Fatalf("tool failure must not abort the session: %v", err)
	}
	if result.Forecast != "Proceeding without the vector index." {
		t.Fatalf("unexpected forecast: %q", result.Forecast)
	}
}

func TestAnalyzeModelFailureAborts(t *testing.T) {
	llm := &scriptedLLM{err: fmt.Errorf("rate limited")}
	orch := newTestOrchestrator(t, llm, &fakeSearcher{}, &fakeVectors{}, &fakePages{}, 10)

	_, err := orch.Analyze(context.Background(), "q")
	if err == nil {
		t.Fatalf("expected error from failing model")
	}
	if !strings.Contains(err.Error(), "model call failed") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAnalyzeEmptyTextGetsFallback(t *testing.T) {
	llm := &scriptedLLM{turns: []ConversationTurn{{Blocks: nil}}}
	orch := newTestOrchestrator(t, llm, &fakeSearcher{}, &fakeVectors{}, &fakePages{}, 10)

	result, err := orch.Analyze(context.Background(), "q")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Forecast != "No response generated." {
		t.Fatalf("expected fallback for empty turn, got %q", result.Forecast)
	}
}

package core

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rcabanilla/gridseer/config"
	"github.com/rcabanilla/gridseer/internal/agent/telemetry"
)

// fallbackAnswer is returned when the model produced no text block at all.
// The caller-facing forecast is never empty.
const fallbackAnswer = "No response generated."

var orchestratorTracer trace.Tracer = otel.Tracer("gridseer/internal/agent/orchestrator")

// Orchestrator drives the analysis loop: send the transcript to the model,
// dispatch any requested tool calls, append results, repeat until the model
// answers in text or the round cap forces best-effort termination.
type Orchestrator struct {
	config     *config.Config
	logger     *log.Logger
	telemetry  *telemetry.Telemetry
	registry   *ToolRegistry
	dispatcher *Dispatcher
	llm        LLMProvider

	maxRounds    int
	modelTimeout time.Duration
}

// NewOrchestrator creates a new orchestrator instance
func NewOrchestrator(cfg *config.Config, logger *log.Logger, tele *telemetry.Telemetry, registry *ToolRegistry, dispatcher *Dispatcher, llm LLMProvider) (*Orchestrator, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	maxRounds := cfg.Agent.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 10
	}
	modelTimeout := cfg.LLM.Timeout
	if modelTimeout <= 0 {
		modelTimeout = 2 * time.Minute
	}
	return &Orchestrator{
		config:       cfg,
		logger:       logger,
		telemetry:    tele,
		registry:     registry,
		dispatcher:   dispatcher,
		llm:          llm,
		maxRounds:    maxRounds,
		modelTimeout: modelTimeout,
	}, nil
}

// LLM exposes the orchestrator's underlying model provider.
func (o *Orchestrator) LLM() LLMProvider { return o.llm }

// Analyze runs one analysis session for a question and returns the forecast
// with its aggregated sources. Tool-level faults never surface from here; the
// only error paths are a failing model call and a broken result correlation.
func (o *Orchestrator) Analyze(ctx context.Context, question string) (AnalysisResult, error) {
	startTime := time.Now()
	sess := NewAnalysisSession(question)

	ctx, span := orchestratorTracer.Start(ctx, "agent.analyze",
		trace.WithAttributes(
			attribute.String("session.id", sess.ID),
			attribute.String("llm.model", o.llm.Model()),
		))
	defer span.End()

	o.logger.Printf("starting analysis %s: %q", sess.ID, question)

	var totalTokens int64
	for {
		if sess.Rounds() >= o.maxRounds {
			// Round cap reached: bound latency and cost, return whatever the
			// model said last. This is a success path, not an error.
			answer := sess.LastAssistantText()
			if answer == "" {
				answer = fallbackAnswer
			}
			o.logger.Printf("analysis %s hit round cap (%d), returning best-effort answer", sess.ID, o.maxRounds)
			span.AddEvent("round_cap_reached", trace.WithAttributes(attribute.Int("rounds", sess.Rounds())))
			span.SetStatus(codes.Ok, "completed")
			o.telemetry.RecordAnalysis(time.Since(startTime), sess.Rounds(), true)
			return o.buildResult(sess, answer, totalTokens, startTime), nil
		}

		modelCtx, cancel := context.WithTimeout(ctx, o.modelTimeout)
		turn, usage, err := o.llm.Generate(modelCtx, systemPrompt, sess.Transcript(), o.registry.Descriptors())
		cancel()
		if err != nil {
			// There is no fallback data source for "the model didn't answer":
			// abort the session and surface the fault to the caller.
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.telemetry.RecordAnalysis(time.Since(startTime), sess.Rounds(), false)
			return AnalysisResult{}, fmt.Errorf("model call failed: %w", err)
		}
		totalTokens += usage.Total()
		o.telemetry.RecordModelCall(o.llm.Model(), usage.InputTokens, usage.OutputTokens)
		sess.AppendAssistant(turn)

		calls := sess.PendingCalls()
		if len(calls) == 0 {
			answer := turn.FirstText()
			if answer == "" {
				answer = fallbackAnswer
			}
			o.logger.Printf("analysis %s completed in %v after %d rounds", sess.ID, time.Since(startTime), sess.Rounds())
			span.SetAttributes(attribute.Int("rounds", sess.Rounds()), attribute.Int64("tokens", totalTokens))
			span.SetStatus(codes.Ok, "completed")
			o.telemetry.RecordAnalysis(time.Since(startTime), sess.Rounds(), true)
			return o.buildResult(sess, answer, totalTokens, startTime), nil
		}

		// Sibling calls in one turn are independent; dispatch them
		// concurrently but keep results in correlation order.
		entries := make([]ToolResultEntry, len(calls))
		var wg sync.WaitGroup
		for i, call := range calls {
			wg.Add(1)
			go func(i int, call ToolCall) {
				defer wg.Done()
				dispatchCtx, dispatchSpan := orchestratorTracer.Start(ctx, "agent.dispatch",
					trace.WithAttributes(attribute.String("tool.name", string(call.Name))))
				result := o.dispatcher.Dispatch(dispatchCtx, sess, call)
				if result.IsError {
					dispatchSpan.SetStatus(codes.Error, "tool reported failure")
				} else {
					dispatchSpan.SetStatus(codes.Ok, "completed")
				}
				dispatchSpan.End()
				entries[i] = ToolResultEntry{CallID: call.ID, Result: result}
			}(i, call)
		}
		wg.Wait()

		if err := sess.AppendToolResults(entries); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.telemetry.RecordAnalysis(time.Since(startTime), sess.Rounds(), false)
			return AnalysisResult{}, err
		}
		sess.IncrementRound()
	}
}

func (o *Orchestrator) buildResult(sess *AnalysisSession, answer string, tokens int64, startTime time.Time) AnalysisResult {
	return AnalysisResult{
		Question:       sess.Question,
		Forecast:       answer,
		Sources:        sess.Sources().Drain(),
		Rounds:         sess.Rounds(),
		TokensUsed:     tokens,
		ModelUsed:      o.llm.Model(),
		ProcessingTime: time.Since(startTime),
		CreatedAt:      time.Now(),
	}
}

package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AnalysisSession is the unit of isolation for one inbound question: its
// transcript, its source aggregator and its round counter. Sessions are
// created per request and never shared or reused.
type AnalysisSession struct {
	ID        string
	Question  string
	CreatedAt time.Time

	transcript []ConversationTurn
	sources    *SourceAggregator
	rounds     int
}

// NewAnalysisSession seeds a session with the user's question as the first
// transcript turn.
func NewAnalysisSession(question string) *AnalysisSession {
	return &AnalysisSession{
		ID:         uuid.New().String(),
		Question:   question,
		CreatedAt:  time.Now(),
		transcript: []ConversationTurn{{Kind: TurnUser, Text: question}},
		sources:    NewSourceAggregator(),
	}
}

// Transcript returns the ordered turns accumulated so far.
func (s *AnalysisSession) Transcript() []ConversationTurn {
	out := make([]ConversationTurn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Sources returns the session's aggregator for dispatches to record into.
func (s *AnalysisSession) Sources() *SourceAggregator { return s.sources }

// Rounds returns the number of completed model<->tool round trips.
func (s *AnalysisSession) Rounds() int { return s.rounds }

// IncrementRound records one completed round trip.
func (s *AnalysisSession) IncrementRound() { s.rounds++ }

// AppendAssistant appends a model turn to the transcript.
func (s *AnalysisSession) AppendAssistant(turn ConversationTurn) {
	turn.Kind = TurnAssistant
	s.transcript = append(s.transcript, turn)
}

// PendingCalls returns the tool calls of the last assistant turn, which the
// next tool-result turn must answer one-for-one.
func (s *AnalysisSession) PendingCalls() []ToolCall {
	if len(s.transcript) == 0 {
		return nil
	}
	last := s.transcript[len(s.transcript)-1]
	if last.Kind != TurnAssistant {
		return nil
	}
	return last.ToolCalls()
}

// AppendToolResults appends one tool-result turn answering the immediately
// preceding assistant turn. A missing or extra correlation id means the loop's
// bookkeeping is broken; that is fatal, not recoverable.
func (s *AnalysisSession) AppendToolResults(entries []ToolResultEntry) error {
	pending := s.PendingCalls()
	if len(entries) != len(pending) {
		return fmt.Errorf("%w: %d results for %d pending calls", ErrCorrelation, len(entries), len(pending))
	}
	byID := make(map[string]struct{}, len(pending))
	for _, call := range pending {
		byID[call.ID] = struct{}{}
	}
	for _, e := range entries {
		if _, ok := byID[e.CallID]; !ok {
			return fmt.Errorf("%w: unexpected correlation id %q", ErrCorrelation, e.CallID)
		}
		delete(byID, e.CallID)
	}
	s.transcript = append(s.transcript, ConversationTurn{Kind: TurnToolResults, Results: entries})
	return nil
}

// LastAssistantText scans the transcript backwards for the most recent
// assistant text block. Used for best-effort termination when the round cap
// is reached.
func (s *AnalysisSession) LastAssistantText() string {
	for i := len(s.transcript) - 1; i >= 0; i-- {
		if s.transcript[i].Kind != TurnAssistant {
			continue
		}
		if text := s.transcript[i].FirstText(); text != "" {
			return text
		}
	}
	return ""
}

// SourceAggregator collects citation records surfaced by tool calls during
// one analysis. It is per-session state; tool dispatches within a round may
// record concurrently, hence the mutex.
type SourceAggregator struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []SourceRecord
}

func NewSourceAggregator() *SourceAggregator {
	return &SourceAggregator{seen: make(map[string]struct{})}
}

// Record inserts a citation keyed by URL. First-seen wins; recording a known
// URL is a no-op.
func (a *SourceAggregator) Record(rec SourceRecord) {
	if rec.URL == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.seen[rec.URL]; ok {
		return
	}
	a.seen[rec.URL] = struct{}{}
	a.order = append(a.order, rec)
}

// Drain returns the accumulated citations in first-seen order. Called once at
// session end to build the caller-facing response.
func (a *SourceAggregator) Drain() []SourceRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]SourceRecord, len(a.order))
	copy(out, a.order)
	return out
}

package core

import (
	"context"
	"errors"
	"time"
)

// ToolName identifies one of the closed set of callable tools. Dispatch
// switches over this type; an unrecognized value is a handled case, never a
// session failure.
type ToolName string

const (
	ToolSearchEnergy ToolName = "search_philippines_energy"
	ToolQueryVector  ToolName = "query_qdrant_db"
	ToolQueryCache   ToolName = "query_cached_pages"
	ToolStoreEnergy  ToolName = "store_energy_data"
)

// ToolDescriptor describes a callable tool to the model
type ToolDescriptor struct {
	Name        ToolName               `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ToolCall is a tool invocation requested by the model. The loop never
// fabricates one; the ID is the model's correlation token.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      ToolName               `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolResult is the uniform envelope every dispatch produces. IsError marks a
// recoverable failure the model is expected to read and route around.
type ToolResult struct {
	Content map[string]interface{} `json:"content"`
	IsError bool                   `json:"is_error"`
}

// ToolResultEntry pairs a result with the call it answers
type ToolResultEntry struct {
	CallID string     `json:"call_id"`
	Result ToolResult `json:"result"`
}

// TurnKind tags the variants of a conversation turn
type TurnKind int

const (
	TurnUser TurnKind = iota
	TurnAssistant
	TurnToolResults
)

// ContentBlock is one element of an assistant turn: text or a tool call
type ContentBlock struct {
	Type     string    `json:"type"` // "text" or "tool_use"
	Text     string    `json:"text,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`
}

// ConversationTurn is one entry in a session transcript. Exactly one of the
// payload fields is meaningful, selected by Kind.
type ConversationTurn struct {
	Kind    TurnKind          `json:"kind"`
	Text    string            `json:"text,omitempty"`    // TurnUser
	Blocks  []ContentBlock    `json:"blocks,omitempty"`  // TurnAssistant
	Results []ToolResultEntry `json:"results,omitempty"` // TurnToolResults
}

// ToolCalls returns the tool invocations requested by an assistant turn, in
// block order.
func (t ConversationTurn) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, b := range t.Blocks {
		if b.Type == "tool_use" && b.ToolCall != nil {
			calls = append(calls, *b.ToolCall)
		}
	}
	return calls
}

// FirstText returns the first text block of an assistant turn, or "".
func (t ConversationTurn) FirstText() string {
	for _, b := range t.Blocks {
		if b.Type == "text" && b.Text != "" {
			return b.Text
		}
	}
	return ""
}

// SourceRecord is a citation surfaced by a tool call during one analysis
type SourceRecord struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Origin string `json:"source"`
}

// EnergyDocument is the unit of data exchanged with the search and storage
// collaborators: a titled page with its origin site and extracted text.
type EnergyDocument struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Source  string `json:"source"`
	Snippet string `json:"snippet,omitempty"`
	Content string `json:"content,omitempty"`
}

// VectorHit is one scored result from the vector collaborator
type VectorHit struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Source  string   `json:"source"`
	Content string   `json:"content"`
	Topics  []string `json:"topics,omitempty"`
	Score   float64  `json:"score"`
}

// AnalysisResult is the final outcome of one analysis session
type AnalysisResult struct {
	Question       string         `json:"question"`
	Forecast       string         `json:"forecast"`
	Sources        []SourceRecord `json:"sources"`
	Rounds         int            `json:"rounds"`
	TokensUsed     int64          `json:"tokens_used"`
	ModelUsed      string         `json:"model_used"`
	ProcessingTime time.Duration  `json:"processing_time"`
	CreatedAt      time.Time      `json:"created_at"`
}

// TokenUsage reports model token consumption for one call
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

func (u TokenUsage) Total() int64 { return u.InputTokens + u.OutputTokens }

// LLMProvider is the model-call contract. Generate sends the full transcript
// plus the live tool set and returns the assistant's turn. A Generate error is
// not recoverable inside the loop.
type LLMProvider interface {
	Generate(ctx context.Context, system string, transcript []ConversationTurn, tools []ToolDescriptor) (ConversationTurn, TokenUsage, error)
	Model() string
}

// WebSearcher is the search collaborator boundary
type WebSearcher interface {
	SearchEnergySites(ctx context.Context, query string) ([]EnergyDocument, error)
}

// VectorStore is the vector-similarity collaborator boundary
type VectorStore interface {
	Query(ctx context.Context, query string) ([]VectorHit, error)
	StoreDocuments(ctx context.Context, docs []EnergyDocument, topics []string) error
}

// PageStore is the relational cache collaborator boundary. InsertPages
// reports a uniqueness violation as ErrPageConflict so callers can retry as
// an upsert without sniffing driver error codes.
type PageStore interface {
	SearchPages(ctx context.Context, query string) ([]EnergyDocument, error)
	InsertPages(ctx context.Context, docs []EnergyDocument) error
	UpsertPages(ctx context.Context, docs []EnergyDocument) error
}

// ErrPageConflict is the declared uniqueness-violation kind for PageStore
// inserts. Conflicts are expected (repeated analyses revisit the same URLs)
// and are not failures.
var ErrPageConflict = errors.New("page already cached")

// ErrCorrelation marks a mismatch between pending tool calls and appended
// results. It means the loop's own bookkeeping is broken and always aborts
// the session.
var ErrCorrelation = errors.New("tool result correlation mismatch")

package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rcabanilla/gridseer/internal/agent/telemetry"
)

// Dispatcher routes tool calls to collaborators and normalizes every outcome
// into a ToolResult. This is the containment boundary: no collaborator fault,
// timeout or panic escapes Dispatch. A failing data source becomes an
// IsError result the model reads, never an aborted session.
type Dispatcher struct {
	registry    *ToolRegistry
	searcher    WebSearcher
	vectors     VectorStore
	pages       PageStore
	logger      *log.Logger
	telemetry   *telemetry.Telemetry
	toolTimeout time.Duration
}

// NewDispatcher wires the dispatcher to its collaborators. toolTimeout bounds
// each collaborator call; zero means 8s.
func NewDispatcher(registry *ToolRegistry, searcher WebSearcher, vectors VectorStore, pages PageStore, logger *log.Logger, tele *telemetry.Telemetry, toolTimeout time.Duration) *Dispatcher {
	if toolTimeout <= 0 {
		toolTimeout = 8 * time.Second
	}
	return &Dispatcher{
		registry:    registry,
		searcher:    searcher,
		vectors:     vectors,
		pages:       pages,
		logger:      logger,
		telemetry:   tele,
		toolTimeout: toolTimeout,
	}
}

// Dispatch executes one tool call for the given session and returns its
// result envelope. Discovered citations are recorded into the session's
// source aggregator as a side effect of successful search-type calls.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *AnalysisSession, call ToolCall) (result ToolResult) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("tool %s panicked: %v", call.Name, r)
			result = errorResult(fmt.Sprintf("tool execution failed: %v", r))
		}
		d.telemetry.RecordToolCall(string(call.Name), time.Since(started), result.IsError)
	}()

	if !d.registry.Known(call.Name) {
		return errorResult(fmt.Sprintf("unknown tool: %s", call.Name))
	}

	ctx, cancel := context.WithTimeout(ctx, d.toolTimeout)
	defer cancel()

	switch call.Name {
	case ToolSearchEnergy:
		return d.dispatchSearch(ctx, sess, call)
	case ToolQueryVector:
		return d.dispatchVectorQuery(ctx, call)
	case ToolQueryCache:
		return d.dispatchCacheQuery(ctx, sess, call)
	case ToolStoreEnergy:
		return d.dispatchStore(ctx, call)
	default:
		// registry and switch disagree; treat like an unknown name
		return errorResult(fmt.Sprintf("unknown tool: %s", call.Name))
	}
}

func (d *Dispatcher) dispatchSearch(ctx context.Context, sess *AnalysisSession, call ToolCall) ToolResult {
	query := stringArg(call.Arguments, "query")
	if !strings.Contains(strings.ToLower(query), "philippines") {
		query = query + " Philippines energy"
	}
	results, err := d.searcher.SearchEnergySites(ctx, query)
	if err != nil {
		return errorResult(fmt.Sprintf("tool execution failed: %v", err))
	}
	for _, r := range results {
		sess.Sources().Record(SourceRecord{Title: r.Title, URL: r.URL, Origin: r.Source})
	}
	return ToolResult{Content: map[string]interface{}{
		"results": results,
		"count":   len(results),
		"query":   query,
	}}
}

func (d *Dispatcher) dispatchVectorQuery(ctx context.Context, call ToolCall) ToolResult {
	hits, err := d.vectors.Query(ctx, stringArg(call.Arguments, "query"))
	if err != nil {
		return errorResult(fmt.Sprintf("tool execution failed: %v", err))
	}
	return ToolResult{Content: map[string]interface{}{
		"results": hits,
		"count":   len(hits),
	}}
}

func (d *Dispatcher) dispatchCacheQuery(ctx context.Context, sess *AnalysisSession, call ToolCall) ToolResult {
	pages, err := d.pages.SearchPages(ctx, stringArg(call.Arguments, "query"))
	if err != nil {
		return errorResult(fmt.Sprintf("tool execution failed: %v", err))
	}
	for _, p := range pages {
		sess.Sources().Record(SourceRecord{Title: p.Title, URL: p.URL, Origin: p.Source})
	}
	return ToolResult{Content: map[string]interface{}{
		"results": pages,
		"count":   len(pages),
	}}
}

func (d *Dispatcher) dispatchStore(ctx context.Context, call ToolCall) ToolResult {
	docs, err := documentsArg(call.Arguments, "data")
	if err != nil {
		return errorResult(fmt.Sprintf("tool execution failed: %v", err))
	}
	topics := stringSliceArg(call.Arguments, "topics")

	if err := d.vectors.StoreDocuments(ctx, docs, topics); err != nil {
		return errorResult(fmt.Sprintf("tool execution failed: %v", err))
	}

	// Conflicts on the relational side are expected when analyses revisit the
	// same URLs: retry as an upsert before surfacing anything.
	if err := d.pages.InsertPages(ctx, docs); err != nil {
		if !errors.Is(err, ErrPageConflict) {
			return errorResult(fmt.Sprintf("tool execution failed: %v", err))
		}
		if err := d.pages.UpsertPages(ctx, docs); err != nil {
			return errorResult(fmt.Sprintf("tool execution failed: %v", err))
		}
	}

	return ToolResult{Content: map[string]interface{}{
		"stored_count": len(docs),
		"message":      "Successfully stored data in both the vector database and cached_pages table",
	}}
}

func errorResult(msg string) ToolResult {
	return ToolResult{Content: map[string]interface{}{"error": msg}, IsError: true}
}

func stringArg(args map[string]interface{}, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceArg(args map[string]interface{}, key string) []string {
	var out []string
	if args == nil {
		return out
	}
	switch v := args[key].(type) {
	case []string:
		return v
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

// documentsArg decodes the model-provided document array through JSON, which
// tolerates both missing optional fields and extra keys.
func documentsArg(args map[string]interface{}, key string) ([]EnergyDocument, error) {
	raw, ok := args[key]
	if !ok {
		return nil, fmt.Errorf("missing %q argument", key)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %q argument: %w", key, err)
	}
	var docs []EnergyDocument
	if err := json.Unmarshal(b, &docs); err != nil {
		return nil, fmt.Errorf("invalid %q argument: %w", key, err)
	}
	for i := range docs {
		if docs[i].Content == "" {
			docs[i].Content = docs[i].Snippet
		}
	}
	return docs, nil
}

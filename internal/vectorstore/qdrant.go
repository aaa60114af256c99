// Package vectorstore implements the vector-similarity collaborator on top of
// Qdrant's REST API.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rcabanilla/gridseer/config"
	"github.com/rcabanilla/gridseer/internal/agent/core"
)

// Embedder turns texts into vectors. Satisfied by provider.NewEmbedder's
// client.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Client talks to a Qdrant instance over HTTP
type Client struct {
	baseURL    string
	apiKey     string
	collection string
	dimensions int
	topK       int
	httpClient *http.Client
	embedder   Embedder
}

// NewClient creates a Qdrant client for the configured collection
func NewClient(cfg config.VectorConfig, embedder Embedder) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("vector.url not configured")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 1536
	}
	return &Client{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimensions: dims,
		topK:       topK,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		embedder:   embedder,
	}, nil
}

// EnsureCollection creates the collection if it does not exist yet
func (c *Client) EnsureCollection(ctx context.Context) error {
	var info struct {
		Status string `json:"status"`
	}
	err := c.do(ctx, "GET", fmt.Sprintf("/collections/%s", c.collection), nil, &info)
	if err == nil {
		return nil
	}

	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     c.dimensions,
			"distance": "Cosine",
		},
	}
	if err := c.do(ctx, "PUT", fmt.Sprintf("/collections/%s", c.collection), body, nil); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", c.collection, err)
	}
	return nil
}

// Query embeds the query text and returns the nearest stored documents
func (c *Client) Query(ctx context.Context, query string) ([]core.VectorHit, error) {
	vecs, err := c.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding returned no vectors")
	}

	body := map[string]interface{}{
		"vector":       vecs[0],
		"limit":        c.topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.do(ctx, "POST", path, body, &resp); err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	hits := make([]core.VectorHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hit := core.VectorHit{Score: r.Score}
		hit.Title, _ = r.Payload["title"].(string)
		hit.URL, _ = r.Payload["url"].(string)
		hit.Source, _ = r.Payload["source"].(string)
		hit.Content, _ = r.Payload["content"].(string)
		if raw, ok := r.Payload["topics"].([]interface{}); ok {
			for _, t := range raw {
				if s, ok := t.(string); ok {
					hit.Topics = append(hit.Topics, s)
				}
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// StoreDocuments embeds the documents and upserts them as points. Point IDs
// are fresh UUIDs; dedup by URL is the relational cache's job.
func (c *Client) StoreDocuments(ctx context.Context, docs []core.EnergyDocument, topics []string) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		text := d.Content
		if text == "" {
			text = d.Snippet
		}
		texts[i] = fmt.Sprintf("%s\n%s", d.Title, text)
	}
	vecs, err := c.embedder.CreateEmbedding(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("embedding count mismatch: got %d for %d documents", len(vecs), len(docs))
	}

	now := time.Now().UTC().Format(time.RFC3339)
	points := make([]map[string]interface{}, len(docs))
	for i, d := range docs {
		content := d.Content
		if content == "" {
			content = d.Snippet
		}
		points[i] = map[string]interface{}{
			"id":     uuid.New().String(),
			"vector": vecs[i],
			"payload": map[string]interface{}{
				"url":       d.URL,
				"title":     d.Title,
				"content":   content,
				"source":    d.Source,
				"timestamp": now,
				"topics":    topics,
			},
		}
	}

	body := map[string]interface{}{"points": points}
	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	if err := c.do(ctx, "PUT", path, body, nil); err != nil {
		return fmt.Errorf("failed to store points: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("qdrant returned status %d: %s", resp.StatusCode, string(data))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

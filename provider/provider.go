package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rcabanilla/gridseer/config"
	openai_provider "github.com/rcabanilla/gridseer/provider/openai"
)

// Embedder turns texts into vectors for the vector-store collaborator
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewEmbedder creates the embedding client from configuration.
func NewEmbedder(cfg config.EmbeddingConfig) (Embedder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm.embedding.api_key not set")
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return openai_provider.NewClient(cfg.APIKey, model, timeout), nil
}

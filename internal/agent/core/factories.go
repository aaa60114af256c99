package core

import (
	"fmt"

	"github.com/rcabanilla/gridseer/config"
)

// NewLLMProvider creates the model provider selected by configuration.
func NewLLMProvider(cfg config.LLMConfig) (LLMProvider, error) {
	switch cfg.Provider {
	case "", "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm.api_key not configured")
		}
		return NewAnthropicProvider(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider type: %s", cfg.Provider)
	}
}

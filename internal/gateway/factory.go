package gateway

import (
	"context"
	"fmt"
	"time"

	"concierge/internal/config"
)

// NewClientFromConfig builds the provider client named in the config.
// "openai" and "zai" share the OpenAI-compatible wire format; "gemini"
// uses the official GenAI SDK.
func NewClientFromConfig(ctx context.Context, cfg config.LLMConfig) (LLMClient, error) {
	timeout := 120 * time.Second
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid llm.timeout %q: %w", cfg.Timeout, err)
		}
		timeout = d
	}

	switch cfg.Provider {
	case "openai", "zai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: timeout,
		}), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown llm provider %q (want openai, zai, or gemini)", cfg.Provider)
	}
}

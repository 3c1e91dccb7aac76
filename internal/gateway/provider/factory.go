package provider

import (
	"fmt"
	"strings"

	"okxagent/internal/config"
)

// NewFromConfig builds the configured model provider. Every supported
// provider speaks the OpenAI chat completions protocol.
func NewFromConfig(cfg config.LLMConfig) (ModelProvider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "deepseek", "openai", "qwen", "openai-compatible":
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	id := strings.TrimSpace(cfg.Provider)
	if id == "" {
		id = "llm"
	}
	return NewOpenAIProvider(Config{
		ID:          fmt.Sprintf("%s:%s", id, cfg.Model),
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout(),
		MaxRetries:  cfg.MaxRetries,
		JSONMode:    cfg.JSONMode,
		Vision:      cfg.Vision,
	})
}

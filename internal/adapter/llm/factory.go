package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Provider names accepted by NewLLMClient.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// Options configures NewLLMClient.
type Options struct {
	Provider string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// NewLLMClient creates an LLM client for the configured provider.
func NewLLMClient(ctx context.Context, opts Options) (LLMClient, error) {
	switch opts.Provider {
	case ProviderMock:
		slog.Warn("using mock LLM client")
		return NewMockClient(), nil
	case ProviderAnthropic:
		return NewAnthropicClient(opts.BaseURL, opts.APIKey, opts.Timeout), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, opts.BaseURL, opts.APIKey, opts.Timeout)
	case ProviderOpenAI, "":
		return NewClient(opts.BaseURL, opts.APIKey, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", opts.Provider)
	}
}

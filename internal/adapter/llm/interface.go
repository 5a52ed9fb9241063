// Package llm provides an abstraction over hosted LLM chat APIs.
package llm

import "context"

// LLMClient defines the interface for LLM API operations.
type LLMClient interface {
	// CreateChatCompletion sends a chat completion request and returns the
	// model's next message, which carries either text or tool calls.
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// Ensure implementations satisfy LLMClient.
var (
	_ LLMClient = (*Client)(nil)
	_ LLMClient = (*AnthropicClient)(nil)
	_ LLMClient = (*GeminiClient)(nil)
	_ LLMClient = (*MockClient)(nil)
)

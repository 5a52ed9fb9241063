package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MockClient is a mock implementation of LLMClient. Scripted responses are
// returned in order; once exhausted, it answers with a canned reply that
// echoes the last user message.
type MockClient struct {
	mu        sync.Mutex
	responses []*ChatMessage
	errs      []error
	requests  []*ChatCompletionRequest
}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Reply queues a final text reply.
func (m *MockClient) Reply(text string) *MockClient {
	return m.push(&ChatMessage{Role: "assistant", Content: text}, nil)
}

// CallTool queues a response requesting one tool call with the given arguments.
func (m *MockClient) CallTool(name string, args interface{}) *MockClient {
	data, _ := json.Marshal(args)
	m.mu.Lock()
	id := fmt.Sprintf("call_%d", len(m.responses)+1)
	m.mu.Unlock()
	return m.push(&ChatMessage{
		Role: "assistant",
		ToolCalls: []ToolCall{{
			ID:       id,
			Type:     "function",
			Function: ToolCallFunction{Name: name, Arguments: string(data)},
		}},
	}, nil)
}

// Respond queues an arbitrary assistant message.
func (m *MockClient) Respond(msg *ChatMessage) *MockClient {
	return m.push(msg, nil)
}

// Fail queues an error.
func (m *MockClient) Fail(err error) *MockClient {
	return m.push(nil, err)
}

func (m *MockClient) push(msg *ChatMessage, err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, msg)
	m.errs = append(m.errs, err)
	return m
}

// Requests returns copies of the requests received so far.
func (m *MockClient) Requests() []*ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ChatCompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// CreateChatCompletion returns the next scripted response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshot := *req
	snapshot.Messages = append([]ChatMessage(nil), req.Messages...)

	m.mu.Lock()
	m.requests = append(m.requests, &snapshot)
	var msg *ChatMessage
	var err error
	if len(m.responses) > 0 {
		msg, err = m.responses[0], m.errs[0]
		m.responses, m.errs = m.responses[1:], m.errs[1:]
	} else {
		msg = &ChatMessage{Role: "assistant", Content: generateMockResponse(req)}
	}
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	finish := FinishStop
	if len(msg.ToolCalls) > 0 {
		finish = FinishToolCalls
	}
	return singleChoice(fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()), req.Model, msg, finish, &Usage{
		PromptTokens:     estimateTokens(req),
		CompletionTokens: len(msg.Content) / 4,
		TotalTokens:      estimateTokens(req) + len(msg.Content)/4,
	}), nil
}

// generateMockResponse generates a mock response based on the request.
func generateMockResponse(req *ChatCompletionRequest) string {
	var lastUserMessage string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUserMessage = req.Messages[i].Content
			break
		}
	}

	if lastUserMessage == "" {
		return "[MOCK] This is a mock response from the LLM client."
	}

	return fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(lastUserMessage, 100))
}

func estimateTokens(req *ChatCompletionRequest) int {
	total := 0
	for _, msg := range req.Messages {
		total += len(msg.Content) / 4
	}
	return total
}

func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

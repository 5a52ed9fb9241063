package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicClient implements LLMClient using the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient creates a client with an explicit API key. An empty
// baseURL keeps the SDK default.
func NewAnthropicClient(baseURL, apiKey string, timeout time.Duration) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...)}
}

// CreateChatCompletion translates the request to a Messages call.
func (c *AnthropicClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	params, err := buildAnthropicParams(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic chat: %w", err)
	}
	return parseAnthropicMessage(msg, req.Model), nil
}

func buildAnthropicParams(req *ChatCompletionRequest) (anthropic.MessageNewParams, error) {
	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	// Tool results that follow one assistant turn are sent back as a single user message.
	var pendingResults []anthropic.ContentBlockParamUnion
	flush := func() {
		if len(pendingResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case "tool":
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false))
		case "assistant":
			flush()
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				input := json.RawMessage(tc.Function.Arguments)
				if !json.Valid(input) {
					input = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		default:
			flush()
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	flush()

	maxTokens := int64(defaultAnthropicMaxTokens)
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = int64(*req.MaxTokens)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: maxTokens,
		System:    system,
	}
	if req.Temperature != nil {
		params.Temperature = param.NewOpt(*req.Temperature)
	}

	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolUnionParam, 0, len(req.Tools))
		for _, t := range req.Tools {
			schema, err := toSchemaMap(t.Function.Parameters)
			if err != nil {
				return params, fmt.Errorf("anthropic: tool %s schema: %w", t.Function.Name, err)
			}
			inputSchema := anthropic.ToolInputSchemaParam{Properties: schema["properties"]}
			if required, ok := schema["required"].([]interface{}); ok {
				for _, r := range required {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
			tools = append(tools, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{
					Name:        t.Function.Name,
					Description: param.NewOpt(t.Function.Description),
					InputSchema: inputSchema,
				},
			})
		}
		params.Tools = tools
	}
	return params, nil
}

func parseAnthropicMessage(msg *anthropic.Message, model string) *ChatCompletionResponse {
	out := &ChatMessage{Role: "assistant"}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			args := string(block.Input)
			if args == "" {
				args = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:       block.ID,
				Type:     "function",
				Function: ToolCallFunction{Name: block.Name, Arguments: args},
			})
		default:
			slog.Debug("anthropic: ignoring content block", "type", block.Type)
		}
	}

	finish := FinishStop
	switch msg.StopReason {
	case anthropic.StopReasonToolUse:
		finish = FinishToolCalls
	case anthropic.StopReasonMaxTokens:
		finish = FinishLength
	}

	return singleChoice(msg.ID, model, out, finish, &Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	})
}

// toSchemaMap normalizes a JSON schema value into a generic map.
func toSchemaMap(v interface{}) (map[string]interface{}, error) {
	if v == nil {
		return map[string]interface{}{"type": "object"}, nil
	}
	if m, ok := v.(map[string]interface{}); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

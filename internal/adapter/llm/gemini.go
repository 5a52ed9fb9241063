package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GeminiClient implements LLMClient using the Gemini API.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a Gemini API client. An empty baseURL keeps the SDK default.
func NewGeminiClient(ctx context.Context, baseURL, apiKey string, timeout time.Duration) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
			Timeout: &timeout,
		},
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// CreateChatCompletion translates the request to a GenerateContent call.
func (c *GeminiClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	contents, config, err := buildGeminiRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return parseGeminiResponse(resp, req.Model)
}

func buildGeminiRequest(req *ChatCompletionRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	config := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		config.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens != nil {
		config.MaxOutputTokens = int32(*req.MaxTokens)
	}

	// Function responses must name the function; recover it from the call id.
	callNames := make(map[string]string)
	var contents []*genai.Content
	var systemParts []*genai.Part

	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			systemParts = append(systemParts, &genai.Part{Text: m.Content})
		case "assistant":
			content := &genai.Content{Role: genai.RoleModel}
			if m.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				args := map[string]any{}
				if tc.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
						return nil, nil, fmt.Errorf("gemini: tool call %s arguments: %w", tc.ID, err)
					}
				}
				callNames[tc.ID] = tc.Function.Name
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Function.Name, Args: args},
				})
			}
			if len(content.Parts) > 0 {
				contents = append(contents, content)
			}
		case "tool":
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     callNames[m.ToolCallID],
				Response: map[string]any{"output": m.Content},
			}}
			// Consecutive function responses share one user turn.
			if n := len(contents); n > 0 && contents[n-1].Role == genai.RoleUser && isFunctionResponse(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	if len(systemParts) > 0 {
		config.SystemInstruction = &genai.Content{Parts: systemParts}
	}

	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Function.Name,
				Description:          t.Function.Description,
				ParametersJsonSchema: t.Function.Parameters,
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return contents, config, nil
}

func isFunctionResponse(c *genai.Content) bool {
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return len(c.Parts) > 0
}

func parseGeminiResponse(resp *genai.GenerateContentResponse, model string) (*ChatCompletionResponse, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}
	cand := resp.Candidates[0]
	out := &ChatMessage{Role: "assistant"}
	for i, p := range cand.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			args, err := json.Marshal(p.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("gemini: marshal function args: %w", err)
			}
			id := p.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", i)
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:       id,
				Type:     "function",
				Function: ToolCallFunction{Name: p.FunctionCall.Name, Arguments: string(args)},
			})
		case p.Text != "" && !p.Thought:
			out.Content += p.Text
		}
	}

	finish := FinishStop
	if len(out.ToolCalls) > 0 {
		finish = FinishToolCalls
	} else if cand.FinishReason == genai.FinishReasonMaxTokens {
		finish = FinishLength
	}

	var usage *Usage
	if u := resp.UsageMetadata; u != nil {
		usage = &Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return singleChoice(resp.ResponseID, model, out, finish, usage), nil
}

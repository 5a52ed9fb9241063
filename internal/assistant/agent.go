// Package assistant implements the property assistant's tool-calling loop.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/estatehub/internal/adapter/llm"
	"github.com/xiaot623/estatehub/internal/telemetry"
	"github.com/xiaot623/estatehub/internal/tools"
)

// SystemPrompt is the instruction sent ahead of every conversation.
const SystemPrompt = `You are a smart real estate assistant.

Rules:

1. Remember the previous conversation.
2. When the user asks about facilities or amenities without naming a property, use the property discussed most recently.
3. Answer clearly.
4. Be short and helpful.`

const maxParallelTools = 4

// Config tunes model calls and the loop bound.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	MaxTurns    int
	// ToolTimeout bounds each tool execution; zero means no bound.
	ToolTimeout time.Duration
}

// Agent runs one assistant turn at a time per session.
type Agent struct {
	llm     llm.LLMClient
	tools   *tools.Registry
	memory  *Memory
	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// New creates an Agent. A nil logger uses slog.Default.
func New(client llm.LLMClient, registry *tools.Registry, memory *Memory, cfg Config, logger *slog.Logger, metrics *telemetry.Metrics) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 6
	}
	return &Agent{
		llm:     client,
		tools:   registry,
		memory:  memory,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Run sends message within the session and returns the model's final reply.
// The session history only changes when the turn completes successfully.
func (a *Agent) Run(ctx context.Context, sessionID, message string) (string, error) {
	if sessionID == "" {
		return "", errors.New("assistant: session id is required")
	}
	unlock := a.memory.Lock(sessionID)
	defer unlock()

	history := a.memory.History(sessionID)
	turn := []llm.ChatMessage{{Role: "user", Content: message}}
	defs := a.tools.Definitions()
	log := a.logger.With("session_id", sessionID)

	for round := 0; round <= a.cfg.MaxTurns; round++ {
		req := a.buildRequest(history, turn, defs)

		start := time.Now()
		resp, err := a.llm.CreateChatCompletion(ctx, req)
		a.metrics.ObserveLLM(time.Since(start))
		if err != nil {
			log.Error("model call failed", "round", round, "error", err)
			return "", fmt.Errorf("model call failed: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
			return "", errors.New("model returned no message")
		}

		msg := *resp.Choices[0].Message
		msg.Role = "assistant"
		for i := range msg.ToolCalls {
			if msg.ToolCalls[i].ID == "" {
				msg.ToolCalls[i].ID = fmt.Sprintf("call_%d_%d", round, i)
			}
			msg.ToolCalls[i].Type = "function"
		}
		turn = append(turn, msg)
		log.Debug("model call", "round", round, "duration_ms", time.Since(start).Milliseconds(), "tool_calls", len(msg.ToolCalls))

		if len(msg.ToolCalls) == 0 {
			a.memory.Commit(sessionID, turn)
			return msg.Content, nil
		}
		if round == a.cfg.MaxTurns {
			break
		}
		turn = append(turn, a.runTools(ctx, log, msg.ToolCalls)...)
	}
	return "", fmt.Errorf("assistant: exceeded %d tool rounds", a.cfg.MaxTurns)
}

func (a *Agent) buildRequest(history, turn []llm.ChatMessage, defs []llm.Tool) *llm.ChatCompletionRequest {
	messages := make([]llm.ChatMessage, 0, 1+len(history)+len(turn))
	messages = append(messages, llm.ChatMessage{Role: "system", Content: SystemPrompt})
	messages = append(messages, history...)
	messages = append(messages, turn...)

	temperature := a.cfg.Temperature
	req := &llm.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Messages:    messages,
		Temperature: &temperature,
		Tools:       defs,
	}
	if a.cfg.MaxTokens > 0 {
		maxTokens := a.cfg.MaxTokens
		req.MaxTokens = &maxTokens
	}
	return req
}

// runTools executes the requested calls concurrently and returns their
// results in request order. Failures become "error: ..." results.
func (a *Agent) runTools(ctx context.Context, log *slog.Logger, calls []llm.ToolCall) []llm.ChatMessage {
	results := make([]llm.ChatMessage, len(calls))
	var g errgroup.Group
	g.SetLimit(maxParallelTools)
	for i, call := range calls {
		g.Go(func() error {
			toolCtx := ctx
			if a.cfg.ToolTimeout > 0 {
				var cancel context.CancelFunc
				toolCtx, cancel = context.WithTimeout(ctx, a.cfg.ToolTimeout)
				defer cancel()
			}
			out, err := a.tools.Execute(toolCtx, call.Function.Name, json.RawMessage(call.Function.Arguments))
			outcome := telemetry.OutcomeOK
			if err != nil {
				outcome = telemetry.OutcomeError
				log.Warn("tool call failed", "tool", call.Function.Name, "error", err)
				out = "error: " + err.Error()
			}
			a.metrics.ToolCall(call.Function.Name, outcome)
			results[i] = llm.ChatMessage{
				Role:       "tool",
				Name:       call.Function.Name,
				ToolCallID: call.ID,
				Content:    out,
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

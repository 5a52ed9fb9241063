// Package tools provides the typed tool registry used by the assistant.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/xiaot623/estatehub/internal/adapter/llm"
)

// Tool is a named capability with a JSON schema derived from its argument type.
type Tool struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema

	resolved *jsonschema.Resolved
	run      func(ctx context.Context, args json.RawMessage) (string, error)
}

// NewTool builds a tool whose input schema is inferred from In. Arguments are
// validated against the schema before being decoded into In.
func NewTool[In any](name, description string, fn func(ctx context.Context, in In) (string, error)) (*Tool, error) {
	if name == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	if fn == nil {
		return nil, fmt.Errorf("executor is required")
	}
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("failed to infer schema for %s: %w", name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema for %s: %w", name, err)
	}

	t := &Tool{Name: name, Description: description, Schema: schema, resolved: resolved}
	t.run = func(ctx context.Context, args json.RawMessage) (string, error) {
		instance := map[string]any{}
		if len(args) > 0 && string(args) != "null" {
			if err := json.Unmarshal(args, &instance); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
		}
		if err := t.resolved.Validate(instance); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		var in In
		data, err := json.Marshal(instance)
		if err != nil {
			return "", err
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		return fn(ctx, in)
	}
	return t, nil
}

// Registry stores tools keyed by name, preserving registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool.
func (r *Registry) Register(t *Tool) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool already registered for %s", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Definitions returns the tool definitions advertised to the model.
func (r *Registry) Definitions() []llm.Tool {
	tools := r.Tools()
	defs := make([]llm.Tool, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llm.FunctionTool(t.Name, t.Description, t.Schema))
	}
	return defs
}

// Execute runs the named tool with raw JSON arguments.
func (r *Registry) Execute(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	if toolName == "" {
		return "", fmt.Errorf("tool name is required")
	}
	r.mu.RLock()
	t := r.tools[toolName]
	r.mu.RUnlock()
	if t == nil {
		return "", fmt.Errorf("unknown tool %s", toolName)
	}
	return t.run(ctx, args)
}

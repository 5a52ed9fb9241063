// Package policy evaluates chat access decisions with OPA.
package policy

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/xiaot623/estatehub/internal/domain"
)

// DefaultPolicy is the built-in chat access policy.
//
//go:embed chat_access.rego
var DefaultPolicy string

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allow  bool
	Reason string
}

// Input describes a room-scoped action to authorize.
type Input struct {
	Action  domain.Action
	UserID  string
	Room    *domain.Room
	Message *domain.Message
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.chat_access.decision"),
		rego.Module("chat_access.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Authorize evaluates the policy for in. A missing decision denies.
func (e *Engine) Authorize(ctx context.Context, in Input) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(toInput(in)))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Allow: false, Reason: "no decision"}, nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{Allow: false, Reason: "unexpected return type"}, nil
	}
	allow, _ := obj["allow"].(bool)
	reason, _ := obj["reason"].(string)
	return Decision{Allow: allow, Reason: reason}, nil
}

func toInput(in Input) map[string]interface{} {
	m := map[string]interface{}{
		"action":  string(in.Action),
		"user_id": in.UserID,
	}
	if in.Room != nil {
		m["room"] = map[string]interface{}{
			"room_id":   in.Room.RoomID,
			"buyer_id":  in.Room.BuyerID,
			"seller_id": in.Room.SellerID,
		}
	}
	if in.Message != nil {
		m["message"] = map[string]interface{}{
			"message_id": in.Message.MessageID,
			"sender_id":  in.Message.SenderID,
		}
	}
	return m
}

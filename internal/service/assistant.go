package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xiaot623/estatehub/internal/domain"
	"github.com/xiaot623/estatehub/internal/telemetry"
)

// AskResult is the assistant reply and the session it belongs to.
type AskResult struct {
	Reply     string
	SessionID string
}

// NewSessionID returns a fresh assistant session key.
func NewSessionID() string {
	return "sess_" + uuid.New().String()
}

// Ask runs one assistant turn. Without a session id a new session is started
// and its id returned so the caller can continue the conversation.
func (s *Service) Ask(ctx context.Context, message, sessionID string) (*AskResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidArgument)
	}
	if sessionID == "" {
		sessionID = NewSessionID()
	}

	reply, err := s.assistant.Run(ctx, sessionID, message)
	if err != nil {
		s.metrics.AssistantRequest(telemetry.OutcomeError)
		return &AskResult{SessionID: sessionID}, err
	}
	s.metrics.AssistantRequest(telemetry.OutcomeOK)
	return &AskResult{Reply: reply, SessionID: sessionID}, nil
}

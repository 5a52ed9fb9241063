// Package service implements the assistant and chat relay operations.
package service

import (
	"log/slog"

	"github.com/xiaot623/estatehub/internal/assistant"
	"github.com/xiaot623/estatehub/internal/policy"
	"github.com/xiaot623/estatehub/internal/repository"
	"github.com/xiaot623/estatehub/internal/telemetry"
)

// Publisher delivers a payload to the live subscribers of a channel.
type Publisher interface {
	Publish(channel string, v interface{}) error
}

// channelCloser is implemented by publishers that can drop a channel's subscriptions.
type channelCloser interface {
	CloseChannel(channel string)
}

// subscriberChecker is implemented by publishers that know their subscribers.
type subscriberChecker interface {
	HasSubscribers(channel string) bool
}

type Service struct {
	store        repository.ChatStore
	assistant    *assistant.Agent
	policyEngine *policy.Engine
	publisher    Publisher
	logger       *slog.Logger
	metrics      *telemetry.Metrics
}

func New(store repository.ChatStore, agent *assistant.Agent, policyEngine *policy.Engine, publisher Publisher, logger *slog.Logger, metrics *telemetry.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		assistant:    agent,
		policyEngine: policyEngine,
		publisher:    publisher,
		logger:       logger,
		metrics:      metrics,
	}
}

package assistant

import (
	"sync"

	"github.com/xiaot623/estatehub/internal/adapter/llm"
)

// Memory keeps per-session conversation history in process memory.
// Each session is capped to a sliding window of turns.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*session
	limit    int
}

type session struct {
	turn    sync.Mutex // held for the duration of one assistant turn
	history []llm.ChatMessage
}

// NewMemory creates a memory store keeping at most limit turns per session.
func NewMemory(limit int) *Memory {
	return &Memory{
		sessions: make(map[string]*session),
		limit:    limit,
	}
}

func (m *Memory) get(key string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		s = &session{}
		m.sessions[key] = s
	}
	return s
}

// Lock acquires the turn lock for a session and returns its release function.
func (m *Memory) Lock(key string) (unlock func()) {
	s := m.get(key)
	s.turn.Lock()
	return s.turn.Unlock
}

// History returns a copy of the session history.
func (m *Memory) History(key string) []llm.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil
	}
	out := make([]llm.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

// Commit appends a completed turn to the session and trims it to the window.
func (m *Memory) Commit(key string, turns []llm.ChatMessage) {
	s := m.get(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	s.history = trimWindow(append(s.history, turns...), m.limit)
}

// Len returns the number of stored turns for a session.
func (m *Memory) Len(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return len(s.history)
	}
	return 0
}

// trimWindow keeps the newest limit turns, starting at a user turn so that
// no tool result is left without its call. A newest turn longer than limit
// is kept whole.
func trimWindow(history []llm.ChatMessage, limit int) []llm.ChatMessage {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	start := len(history) - limit
	for start < len(history) && history[start].Role != "user" {
		start++
	}
	if start == len(history) {
		start = len(history) - limit
		for start > 0 && history[start].Role != "user" {
			start--
		}
	}
	out := make([]llm.ChatMessage, len(history)-start)
	copy(out, history[start:])
	return out
}

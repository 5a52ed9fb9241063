package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("room created", "room_id", "room_1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "room created", entry["msg"])
	assert.Equal(t, "room_1", entry["room_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.AssistantRequest(OutcomeOK)
	m.AssistantRequest(OutcomeError)
	m.AssistantRequest(OutcomeOK)
	m.ToolCall("search_listings", OutcomeOK)
	m.ChatMessage(OutcomeOK)
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.Broadcast(OutcomeOK)
	m.ObserveLLM(150 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.assistantRequests.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("search_listings", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.relayConnections))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "estatehub_chat_messages_total")
	assert.Contains(t, rec.Body.String(), "estatehub_assistant_llm_duration_seconds")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AssistantRequest(OutcomeOK)
		m.Broadcast(OutcomeError)
		m.ConnectionOpened()
	})
}

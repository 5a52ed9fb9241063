package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the Prometheus collectors for estatehub.
type Metrics struct {
	registry *prometheus.Registry

	assistantRequests *prometheus.CounterVec
	llmDuration       prometheus.Histogram
	toolCalls         *prometheus.CounterVec
	chatMessages      *prometheus.CounterVec
	relayConnections  prometheus.Gauge
	relayBroadcasts   *prometheus.CounterVec
}

// NewMetrics creates a Metrics collector on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		assistantRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estatehub_assistant_requests_total",
			Help: "Assistant requests by outcome.",
		}, []string{"outcome"}),
		llmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "estatehub_assistant_llm_duration_seconds",
			Help:    "Latency of model calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estatehub_assistant_tool_calls_total",
			Help: "Tool calls by tool and outcome.",
		}, []string{"tool", "outcome"}),
		chatMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estatehub_chat_messages_total",
			Help: "Chat message sends by outcome.",
		}, []string{"outcome"}),
		relayConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "estatehub_relay_connections",
			Help: "Open relay connections.",
		}),
		relayBroadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estatehub_relay_broadcasts_total",
			Help: "Relay broadcasts by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.assistantRequests,
		m.llmDuration,
		m.toolCalls,
		m.chatMessages,
		m.relayConnections,
		m.relayBroadcasts,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler serving the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AssistantRequest(outcome string) {
	if m == nil {
		return
	}
	m.assistantRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLLM(d time.Duration) {
	if m == nil {
		return
	}
	m.llmDuration.Observe(d.Seconds())
}

func (m *Metrics) ToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) ChatMessage(outcome string) {
	if m == nil {
		return
	}
	m.chatMessages.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.relayConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.relayConnections.Dec()
}

func (m *Metrics) Broadcast(outcome string) {
	if m == nil {
		return
	}
	m.relayBroadcasts.WithLabelValues(outcome).Inc()
}

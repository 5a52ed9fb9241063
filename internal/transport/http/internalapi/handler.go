// Package internalapi provides HTTP handlers for internal estatehub APIs.
// These APIs are only reachable from inside the deployment.
package internalapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/estatehub/internal/domain"
	"github.com/xiaot623/estatehub/internal/hub"
	"github.com/xiaot623/estatehub/internal/service"
	"github.com/xiaot623/estatehub/internal/telemetry"
)

// Handler handles internal HTTP requests.
type Handler struct {
	service *service.Service
	hub     *hub.Hub
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewHandler creates a new internal API handler.
func NewHandler(service *service.Service, h *hub.Hub, metrics *telemetry.Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		hub:     h,
		metrics: metrics,
		logger:  logger,
	}
}

// RegisterRoutes registers internal routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))
	}
	e.POST("/internal/publish", h.Publish)
}

// Health handles health check requests.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"connections": h.hub.GetConnectionCount(),
	})
}

// Publish pushes an event to every live subscriber of a channel.
// POST /internal/publish
func (h *Handler) Publish(c echo.Context) error {
	var req domain.PublishRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Channel == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "channel is required"})
	}
	if req.Event == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "event is required"})
	}

	// Add timestamp if not present
	if _, ok := req.Event["ts"]; !ok {
		req.Event["ts"] = time.Now().UnixMilli()
	}

	delivered, err := h.service.Publish(req.Channel, req.Event)
	if err != nil {
		h.logger.Error("failed to publish event", "channel", req.Channel, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to publish event"})
	}

	h.logger.Debug("event published", "channel", req.Channel, "type", req.Event["type"], "delivered", delivered)
	return c.JSON(http.StatusOK, domain.PublishResponse{OK: true, Delivered: delivered})
}

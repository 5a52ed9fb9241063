// Package v1 provides the public HTTP handlers.
package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/estatehub/internal/domain"
	"github.com/xiaot623/estatehub/internal/service"
)

// UserIDHeader carries the caller identity set by the upstream auth gateway.
const UserIDHeader = "X-User-ID"

const userIDKey = "user_id"

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers public routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Assistant
	e.POST("/chat", h.Ask)
	e.POST("/v1/assistant/chat", h.Ask)

	// Chat rooms
	rooms := e.Group("/v1/chat/rooms", h.RequireUser)
	rooms.POST("", h.StartRoom)
	rooms.GET("", h.ListRooms)
	rooms.GET("/:room_id", h.GetRoom)
	rooms.DELETE("/:room_id", h.DeleteRoom)
	rooms.GET("/:room_id/messages", h.GetMessages)
	rooms.POST("/:room_id/messages", h.SendMessage)
	rooms.DELETE("/:room_id/messages/:message_id", h.DeleteMessage)

	e.GET("/health", h.Health)
}

// RequireUser rejects requests without a caller identity.
func (h *Handler) RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := c.Request().Header.Get(UserIDHeader)
		if userID == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing " + UserIDHeader + " header"})
		}
		c.Set(userIDKey, userID)
		return next(c)
	}
}

func currentUser(c echo.Context) string {
	userID, _ := c.Get(userIDKey).(string)
	return userID
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// writeError maps service errors to HTTP statuses.
func (h *Handler) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrMessageNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

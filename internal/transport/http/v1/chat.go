package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/estatehub/internal/domain"
)

// StartRoom opens the caller's room with a seller.
// POST /v1/chat/rooms
func (h *Handler) StartRoom(c echo.Context) error {
	var req domain.StartRoomRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	room, err := h.service.StartRoom(c.Request().Context(), currentUser(c), req)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

// ListRooms lists the caller's rooms.
// GET /v1/chat/rooms
func (h *Handler) ListRooms(c echo.Context) error {
	rooms, err := h.service.ListRooms(c.Request().Context(), currentUser(c))
	if err != nil {
		return h.writeError(c, err)
	}
	if rooms == nil {
		rooms = []domain.Room{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"rooms": rooms,
	})
}

// GetRoom returns a room with its history.
// GET /v1/chat/rooms/:room_id
func (h *Handler) GetRoom(c echo.Context) error {
	room, err := h.service.GetRoom(c.Request().Context(), currentUser(c), c.Param("room_id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, room)
}

// GetMessages returns a room's history.
// GET /v1/chat/rooms/:room_id/messages
func (h *Handler) GetMessages(c echo.Context) error {
	messages, err := h.service.GetMessages(c.Request().Context(), currentUser(c), c.Param("room_id"))
	if err != nil {
		return h.writeError(c, err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
	})
}

// SendMessage appends a message to a room and relays it.
// POST /v1/chat/rooms/:room_id/messages
func (h *Handler) SendMessage(c echo.Context) error {
	var req domain.SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.SendMessage(c.Request().Context(), currentUser(c), c.Param("room_id"), req.Text)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// DeleteRoom removes a room and its history.
// DELETE /v1/chat/rooms/:room_id
func (h *Handler) DeleteRoom(c echo.Context) error {
	if err := h.service.DeleteRoom(c.Request().Context(), currentUser(c), c.Param("room_id")); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// DeleteMessage removes one of the caller's messages.
// DELETE /v1/chat/rooms/:room_id/messages/:message_id
func (h *Handler) DeleteMessage(c echo.Context) error {
	err := h.service.DeleteMessage(c.Request().Context(), currentUser(c), c.Param("room_id"), c.Param("message_id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

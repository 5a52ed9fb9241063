package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/estatehub/internal/domain"
)

// AIErrorReply is returned in place of a reply when the model call fails.
const AIErrorReply = "AI error"

// Ask runs one assistant turn.
// POST /chat, POST /v1/assistant/chat
func (h *Handler) Ask(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.AskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	res, err := h.service.Ask(ctx, req.Message, req.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		h.logger.Error("assistant request failed", "session_id", res.SessionID, "error", err)
		return c.JSON(http.StatusOK, domain.AskResponse{Reply: AIErrorReply, SessionID: res.SessionID})
	}

	return c.JSON(http.StatusOK, domain.AskResponse{
		Reply:     res.Reply,
		SessionID: res.SessionID,
	})
}

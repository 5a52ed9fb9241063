// Package ws provides the WebSocket relay for live chat rooms.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/estatehub/internal/config"
	"github.com/xiaot623/estatehub/internal/domain"
	"github.com/xiaot623/estatehub/internal/hub"
	"github.com/xiaot623/estatehub/internal/protocol"
	"github.com/xiaot623/estatehub/internal/service"
)

const sendTimeout = 30 * time.Second

// Server handles WebSocket connections.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	service  *service.Service
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// client is the per-socket state owned by the read pump.
type client struct {
	conn   *hub.Connection
	userID string
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, svc *service.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		hub:     h,
		service: svc,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return cfg.ClientURL == "*" || origin == "" || origin == cfg.ClientURL
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "error", err)
		return nil
	}

	conn := s.hub.NewConnection(ws, "")
	if !s.hub.Register(conn) {
		ws.Close()
		return nil
	}
	ws.SetReadLimit(s.cfg.WSMaxMessageSize)

	go s.writePump(conn)
	go s.readPump(&client{conn: conn})

	return nil
}

// readPump reads frames from the socket and handles them in order.
func (s *Server) readPump(cl *client) {
	conn := cl.conn
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout()))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout()))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket read error", "conn_id", conn.ID, "error", err)
			}
			break
		}
		s.handleMessage(cl, message)
	}
}

// writePump drains the connection's send buffer and keeps it alive with pings.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.WSPingInterval())
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout()))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Debug("failed to write message", "conn_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout()))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming frames to their handlers.
func (s *Server) handleMessage(cl *client, data []byte) {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(cl, base, protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	if base.Type != protocol.TypeHello && cl.userID == "" {
		s.sendError(cl, base, protocol.ErrorCodeHelloRequired, "must send hello first")
		return
	}

	switch base.Type {
	case protocol.TypeHello:
		s.handleHello(cl, data)
	case protocol.TypeJoinRoom:
		s.handleJoinRoom(cl, base)
	case protocol.TypeLeaveRoom:
		s.handleLeaveRoom(cl, base)
	case protocol.TypeSendMessage:
		s.handleSendMessage(cl, data)
	default:
		s.sendError(cl, base, protocol.ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

func (s *Server) handleHello(cl *client, data []byte) {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(cl, protocol.BaseMessage{}, protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return
	}
	if cl.userID != "" {
		s.sendError(cl, msg.BaseMessage, protocol.ErrorCodeInvalidMessage, "hello already completed")
		return
	}
	if s.cfg.RelayAPIKey != "" && msg.APIKey != s.cfg.RelayAPIKey {
		s.sendError(cl, msg.BaseMessage, protocol.ErrorCodeUnauthorized, "invalid api_key")
		return
	}
	if msg.UserID == "" {
		s.sendError(cl, msg.BaseMessage, protocol.ErrorCodeInvalidMessage, "user_id is required")
		return
	}
	cl.userID = msg.UserID

	s.hub.SendJSONToConnection(cl.conn, protocol.HelloAckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeHelloAck,
			Ts:        time.Now().UnixMilli(),
			RequestID: msg.RequestID,
		},
		ConnectionID: cl.conn.ID,
		UserID:       cl.userID,
	})
	s.logger.Debug("hello handshake completed", "conn_id", cl.conn.ID, "user_id", cl.userID)
}

func (s *Server) handleJoinRoom(cl *client, base protocol.BaseMessage) {
	if base.RoomID == "" {
		s.sendError(cl, base, protocol.ErrorCodeInvalidMessage, "room_id is required")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := s.service.AuthorizeJoin(ctx, cl.userID, base.RoomID); err != nil {
		s.sendServiceError(cl, base, err)
		return
	}
	s.hub.Join(cl.conn, base.RoomID)
	s.reply(cl, protocol.TypeJoined, base)
}

func (s *Server) handleLeaveRoom(cl *client, base protocol.BaseMessage) {
	if base.RoomID == "" {
		s.sendError(cl, base, protocol.ErrorCodeInvalidMessage, "room_id is required")
		return
	}
	s.hub.Leave(cl.conn, base.RoomID)
	s.reply(cl, protocol.TypeLeft, base)
}

// handleSendMessage persists and relays a message. A sender that has not
// joined the room still receives its own message.
func (s *Server) handleSendMessage(cl *client, data []byte) {
	var msg protocol.SendMessageMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(cl, protocol.BaseMessage{}, protocol.ErrorCodeInvalidMessage, "invalid send_message message")
		return
	}
	if msg.RoomID == "" {
		s.sendError(cl, msg.BaseMessage, protocol.ErrorCodeInvalidMessage, "room_id is required")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	resp, err := s.service.SendMessage(ctx, cl.userID, msg.RoomID, msg.Text)
	if err != nil {
		s.sendServiceError(cl, msg.BaseMessage, err)
		return
	}
	if !s.hub.Subscribed(cl.conn, msg.RoomID) {
		s.hub.SendJSONToConnection(cl.conn, protocol.ChatMessage{
			BaseMessage: protocol.BaseMessage{
				Type:      protocol.TypeMessage,
				Ts:        time.Now().UnixMilli(),
				RequestID: msg.RequestID,
				RoomID:    msg.RoomID,
			},
			Message: resp.Message,
		})
	}
}

func (s *Server) reply(cl *client, msgType string, base protocol.BaseMessage) {
	s.hub.SendJSONToConnection(cl.conn, protocol.RoomMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      msgType,
			Ts:        time.Now().UnixMilli(),
			RequestID: base.RequestID,
			RoomID:    base.RoomID,
		},
	})
}

func (s *Server) sendServiceError(cl *client, base protocol.BaseMessage, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrMessageNotFound):
		s.sendError(cl, base, protocol.ErrorCodeNotFound, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		s.sendError(cl, base, protocol.ErrorCodeForbidden, err.Error())
	case errors.Is(err, domain.ErrInvalidArgument):
		s.sendError(cl, base, protocol.ErrorCodeInvalidMessage, err.Error())
	default:
		s.logger.Error("relay request failed", "type", base.Type, "room_id", base.RoomID, "error", err)
		s.sendError(cl, base, protocol.ErrorCodeInternalError, "internal error")
	}
}

// sendError sends an error frame to the connection.
func (s *Server) sendError(cl *client, base protocol.BaseMessage, code, message string) {
	s.hub.SendJSONToConnection(cl.conn, protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: base.RequestID,
			RoomID:    base.RoomID,
		},
		Code:    code,
		Message: message,
	})
}

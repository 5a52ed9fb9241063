// Package protocol defines the WebSocket message protocol between relay clients and the server.
package protocol

import "github.com/xiaot623/estatehub/internal/domain"

// Message types from client to server
const (
	TypeHello       = "hello"
	TypeJoinRoom    = "join_room"
	TypeLeaveRoom   = "leave_room"
	TypeSendMessage = "send_message"
)

// Message types from server to client
const (
	TypeHelloAck = "hello_ack"
	TypeJoined   = "joined"
	TypeLeft     = "left"
	TypeMessage  = "message"
	TypeError    = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	RoomID    string `json:"room_id,omitempty"`
}

// HelloMessage is sent by the client to identify itself.
type HelloMessage struct {
	BaseMessage
	UserID string `json:"user_id"`
	APIKey string `json:"api_key,omitempty"`
}

// HelloAckMessage is sent after a successful hello.
type HelloAckMessage struct {
	BaseMessage
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id"`
}

// RoomMessage is used for join_room, leave_room, joined and left.
type RoomMessage struct {
	BaseMessage
}

// SendMessageMessage asks the server to persist and relay a chat message.
type SendMessageMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ChatMessage carries a stored message to room subscribers.
type ChatMessage struct {
	BaseMessage
	Message *domain.Message `json:"message"`
}

// ErrorMessage is sent when a client frame cannot be served.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeUnauthorized   = "unauthorized"
	ErrorCodeHelloRequired  = "hello_required"
	ErrorCodeForbidden      = "forbidden"
	ErrorCodeNotFound       = "not_found"
	ErrorCodeInternalError  = "internal_error"
)

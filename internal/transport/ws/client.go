package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/estatehub/internal/protocol"
)

// Client is a relay client speaking the room protocol.
type Client struct {
	conn   *websocket.Conn
	UserID string
}

// Dial connects to a relay endpoint such as ws://localhost:8080/ws.
func Dial(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// Hello identifies the client and waits for hello_ack.
func (c *Client) Hello(userID, apiKey string) error {
	msg := protocol.HelloMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeHello, Ts: time.Now().UnixMilli()},
		UserID:      userID,
		APIKey:      apiKey,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	if base.Type == protocol.TypeError {
		var errMsg protocol.ErrorMessage
		json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}
	if base.Type != protocol.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", base.Type)
	}

	c.UserID = userID
	return nil
}

// Join subscribes to a room. The joined or error reply arrives via Next.
func (c *Client) Join(roomID string) error {
	return c.conn.WriteJSON(protocol.RoomMessage{
		BaseMessage: protocol.BaseMessage{
			Type:   protocol.TypeJoinRoom,
			Ts:     time.Now().UnixMilli(),
			RoomID: roomID,
		},
	})
}

// Send posts a message to a room.
func (c *Client) Send(roomID, text string) error {
	return c.conn.WriteJSON(protocol.SendMessageMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeSendMessage,
			Ts:        time.Now().UnixMilli(),
			RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
			RoomID:    roomID,
		},
		Text: text,
	})
}

// Next blocks for the next server frame and returns its type and raw payload.
func (c *Client) Next() (string, []byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return "", nil, err
	}
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return "", data, fmt.Errorf("unmarshal frame: %w", err)
	}
	return base.Type, data, nil
}

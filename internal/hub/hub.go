// Package hub provides channel fan-out for live relay connections.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/xiaot623/estatehub/internal/telemetry"
)

const sendBufferSize = 256

// Connection represents a single live client connection.
type Connection struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	channels map[string]bool // guarded by Hub.mu
	closed   bool            // guarded by Hub.mu
	mu       sync.Mutex
}

// Hub routes payloads published on a channel to every subscribed connection.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Channels maps a channel name (a room id) to its subscribed connection IDs
	channels map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *ChannelMessage
	done       chan struct{}

	logger  *slog.Logger
	metrics *telemetry.Metrics
	mu      sync.RWMutex
}

// ChannelMessage is a payload addressed to a channel.
type ChannelMessage struct {
	Channel string
	Data    []byte
}

// ErrBufferFull is returned when a send buffer cannot take another payload.
var ErrBufferFull = errors.New("send buffer full")

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger, metrics *telemetry.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		connections: make(map[string]*Connection),
		channels:    make(map[string]map[string]bool),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		broadcast:   make(chan *ChannelMessage, sendBufferSize),
		done:        make(chan struct{}),
		logger:      logger,
		metrics:     metrics,
	}
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, conn := range h.connections {
				delete(h.connections, id)
				conn.closed = true
				close(conn.Send)
			}
			h.channels = make(map[string]map[string]bool)
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			h.mu.Unlock()
			h.metrics.ConnectionOpened()
			h.logger.Debug("connection registered", "conn_id", conn.ID, "user_id", conn.UserID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				for channel := range conn.channels {
					h.leaveLocked(conn, channel)
				}
				conn.closed = true
				close(conn.Send)
				h.metrics.ConnectionClosed()
			}
			h.mu.Unlock()
			h.logger.Debug("connection unregistered", "conn_id", conn.ID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for connID := range h.channels[msg.Channel] {
				conn, exists := h.connections[connID]
				if !exists {
					continue
				}
				select {
				case conn.Send <- msg.Data:
				default:
					// Buffer full, drop the connection
					h.logger.Warn("connection buffer full, closing", "conn_id", connID)
					h.metrics.Broadcast("dropped")
					go h.Unregister(conn)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NewConnection creates a new connection for an upgraded socket.
func (h *Hub) NewConnection(ws *websocket.Conn, userID string) *Connection {
	return &Connection{
		ID:       uuid.New().String(),
		UserID:   userID,
		Conn:     ws,
		Send:     make(chan []byte, sendBufferSize),
		channels: make(map[string]bool),
	}
}

// Register registers a connection with the hub. It returns false once the hub has stopped.
func (h *Hub) Register(conn *Connection) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.done:
		return false
	}
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Join subscribes a connection to a channel.
func (h *Hub) Join(conn *Connection, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn.closed {
		return
	}
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[string]bool)
	}
	h.channels[channel][conn.ID] = true
	conn.channels[channel] = true
}

// Leave unsubscribes a connection from a channel.
func (h *Hub) Leave(conn *Connection, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(conn, channel)
}

func (h *Hub) leaveLocked(conn *Connection, channel string) {
	delete(conn.channels, channel)
	if subs := h.channels[channel]; subs != nil {
		delete(subs, conn.ID)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}

// CloseChannel unsubscribes every connection from a channel.
func (h *Hub) CloseChannel(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID := range h.channels[channel] {
		if conn, ok := h.connections[connID]; ok {
			delete(conn.channels, channel)
		}
	}
	delete(h.channels, channel)
}

// Broadcast queues data for every subscriber of a channel without blocking.
func (h *Hub) Broadcast(channel string, data []byte) error {
	select {
	case h.broadcast <- &ChannelMessage{Channel: channel, Data: data}:
		return nil
	default:
		return ErrBufferFull
	}
}

// Publish marshals v as JSON and broadcasts it on channel.
func (h *Hub) Publish(channel string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.Broadcast(channel, data)
}

// ErrConnectionClosed is returned when sending to an unregistered connection.
var ErrConnectionClosed = errors.New("connection closed")

// SendJSONToConnection sends a JSON message to a specific connection.
func (h *Hub) SendJSONToConnection(conn *Connection, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if conn.closed {
		return ErrConnectionClosed
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// GetConnectionCount returns the number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Subscribed reports whether conn has joined channel.
func (h *Hub) Subscribed(conn *Connection, channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return conn.channels[channel]
}

// HasSubscribers reports whether a channel has any subscribed connection.
func (h *Hub) HasSubscribers(channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel]) > 0
}

// WriteMessage writes a message to the socket with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// SetReadDeadline sets the read deadline for the connection.
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(t)
}

// Close closes the socket.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

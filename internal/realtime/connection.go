package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 16
)

// Connection wraps a websocket with a buffered outbound channel so event
// dispatch never blocks on a slow client. The associated user identity is
// fixed at handshake time and never changes.
type Connection struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan Event

	closeOnce sync.Once
	done      chan struct{}

	logger *zap.Logger
}

// NewConnection wraps an upgraded websocket for the authenticated user.
func NewConnection(conn *websocket.Conn, userID string, logger *zap.Logger) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connection{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan Event, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// ID returns the unique connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// UserID returns the identity bound at handshake.
func (c *Connection) UserID() string {
	return c.userID
}

// Send queues an event for delivery. It reports false when the connection
// is closed or its buffer is full; the event is dropped in both cases.
func (c *Connection) Send(event Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- event:
		return true
	default:
		c.logger.Warn("dropping realtime event, send buffer full",
			zap.String("user_id", c.userID),
			zap.String("event", event.Event))
		return false
	}
}

// Close terminates the connection once; safe to call from any goroutine.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// WritePump drains the send channel onto the socket and keeps the
// connection alive with pings. Runs in its own goroutine until Close.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// ReadEvent blocks for the next client event. The caller loops until an
// error signals disconnection.
func (c *Connection) ReadEvent() (ClientEvent, error) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var event ClientEvent
	if err := c.conn.ReadJSON(&event); err != nil {
		return ClientEvent{}, err
	}
	return event, nil
}

package ws

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait is the deadline for a single outbound write.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before the read
	// side gives up on it. pingPeriod must be shorter so a ping goes out
	// before the deadline expires.
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is one live WebSocket connection, bound to exactly one user.
// A user with several devices has several Clients in the same room.
//
// The connection is owned by its two pumps: the gateway's read loop is
// the only reader, WritePump the only writer. Everyone else talks to the
// client through TrySend, which enqueues onto the buffered outbound
// channel and never blocks.
type Client struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time

	conn   *websocket.Conn
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	send   chan Event
}

func NewClient(conn *websocket.Conn, userID uuid.UUID, sendBuffer int, logger *zap.Logger) *Client {
	return &Client{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: time.Now(),
		conn:      conn,
		logger:    logger,
		send:      make(chan Event, sendBuffer),
	}
}

// TrySend enqueues an outbound event without blocking. It returns false
// when the client is closed or its buffer is full; the hub treats a full
// buffer as a dead connection and evicts it.
func (c *Client) TrySend(evt Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- evt:
		return true
	default:
		return false
	}
}

// Close marks the client closed and closes its outbound channel, which
// stops WritePump. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Outbound exposes the send queue read side. WritePump drains it in
// production; tests read it directly.
func (c *Client) Outbound() <-chan Event {
	return c.send
}

// PrepareRead configures the read side: frame size limit, initial read
// deadline, and the pong handler that pushes the deadline forward.
func (c *Client) PrepareRead(maxMessageSize int64) {
	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("set read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// ReadEvent blocks for the next inbound frame and decodes the envelope.
// A malformed frame returns an error wrapping ErrMalformedEvent; the
// caller skips those. Any other error means the transport is gone.
func (c *Client) ReadEvent() (*Event, error) {
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return DecodeEvent(raw)
}

// WritePump drains the outbound queue onto the socket and keeps the
// connection alive with pings. It exits when the queue is closed (hub
// eviction or leave) or a write fails, closing the underlying socket
// either way. Run it in its own goroutine, one per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Queue closed: say goodbye properly.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				c.logger.Debug("write event",
					zap.String("conn_id", c.ID.String()),
					zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// IsExpectedClose reports whether a read error is a normal disconnect
// rather than something worth logging loudly.
func IsExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure)
}

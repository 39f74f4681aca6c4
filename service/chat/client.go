package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harbor-im/harbor/logger"
)

const writeDeadline = 5 * time.Second

// Conn is the subset of *websocket.Conn the gateway relies on. Narrowing the
// surface keeps handshake and delivery logic testable without a live socket.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one live transport session. Exactly one writer goroutine
// (WritePump) consumes Send; everything else enqueues through Enqueue and
// never touches the socket directly.
type Client struct {
	ConnID      string
	UserID      string // set after authentication
	DisplayName string
	CreatedAt   time.Time

	conn         Conn
	Send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	pingInterval time.Duration
}

func NewClient(connID string, conn Conn, sendQueueSize int, pingInterval time.Duration) *Client {
	return &Client{
		ConnID:       connID,
		CreatedAt:    time.Now(),
		conn:         conn,
		Send:         make(chan []byte, sendQueueSize),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
	}
}

// Enqueue queues a frame for delivery. Non-blocking: a slow or closed client
// drops frames rather than stalling the sender's goroutine.
func (c *Client) Enqueue(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- data:
		return true
	default:
		logger.Debugf("[client] send queue full, drop frame conn=%s user=%s", c.ConnID, c.UserID)
		return false
	}
}

// WritePump owns all writes to the socket: queued frames plus keepalive
// pings. On Close it flushes whatever is already queued, then closes the
// socket, so a courtesy signal enqueued just before Close still goes out.
func (c *Client) WritePump() {
	var ticker *time.Ticker
	var ping <-chan time.Time
	if c.pingInterval > 0 {
		ticker = time.NewTicker(c.pingInterval)
		ping = ticker.C
		defer ticker.Stop()
	}
	defer func() { _ = c.conn.Close() }()

	for {
		select {
		case data := <-c.Send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			c.flush()
			return
		}
	}
}

func (c *Client) flush() {
	for {
		select {
		case data := <-c.Send:
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// WriteNow writes synchronously, bypassing the queue. Only valid before
// WritePump has started (the handshake phase).
func (c *Client) WriteNow(data []byte) error {
	return c.write(websocket.TextMessage, data)
}

// Close stops the writer after a final flush and closes the socket.
// Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Package websocket adapts a gorilla websocket connection to the hub's
// non-blocking Conn: frames are queued on a bounded channel and written by
// a dedicated goroutine, which also keeps the connection alive with pings.
package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	nanoid "github.com/jaevor/go-nanoid"
	"go.uber.org/zap"

	"realtime-chat/internal/hub"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultSendBuffer     = 256
	defaultMaxMessageSize = 8192
)

var newConnID = func() func() string {
	gen, err := nanoid.Standard(21)
	if err != nil {
		panic(err)
	}
	return gen
}()

type Options struct {
	SendBuffer     int
	MaxMessageSize int64
}

// Client is one upgraded websocket connection.
type Client struct {
	id             string
	conn           *websocket.Conn
	logger         *zap.Logger
	maxMessageSize int64

	mu     sync.RWMutex
	send   chan []byte
	closed bool

	done chan struct{}
}

func NewClient(conn *websocket.Conn, opts Options, logger *zap.Logger) *Client {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	id := newConnID()
	return &Client{
		id:             id,
		conn:           conn,
		logger:         logger.With(zap.String("connId", id)),
		maxMessageSize: opts.MaxMessageSize,
		send:           make(chan []byte, opts.SendBuffer),
		done:           make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues frame without blocking.
func (c *Client) Send(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return hub.ErrClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return hub.ErrBackpressure
	}
}

// Close stops accepting frames. Already queued frames are still written,
// then the connection is closed by WritePump.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return nil
}

// Done is closed once the underlying connection is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// ReadPump delivers every inbound text frame to handle, in order, until the
// connection fails or is closed. It must run on a single goroutine.
func (c *Client) ReadPump(handle func(frame []byte)) {
	c.conn.SetReadLimit(c.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		handle(frame)
	}
}

// WritePump writes queued frames and pings until Close is called or a write
// fails. It owns closing the underlying connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		close(c.done)
		// refuse further frames after a failed write
		_ = c.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

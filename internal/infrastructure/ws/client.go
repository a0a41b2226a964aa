package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/votehub/internal/infrastructure/logging"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

type ClientConfig struct {
	MaxMessageBytes int64
	SendBuffer      int
}

type Client struct {
	ID string

	conn            *connWrapper
	send            chan []byte
	maxMessageBytes int64
	logger          logging.Logger

	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, id string, cfg ClientConfig, logger logging.Logger) *Client {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	return &Client{
		ID:              id,
		conn:            newConnWrapper(conn),
		send:            make(chan []byte, cfg.SendBuffer),
		maxMessageBytes: cfg.MaxMessageBytes,
		logger:          logger,
	}
}

// Send queues data without blocking. It reports false when the buffer is
// full or the client is gone.
func (c *Client) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend ends the write pump once queued data is flushed.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump hands every inbound frame to handle until the peer goes away.
// Commands from one connection are handled in arrival order.
func (c *Client) ReadPump(ctx context.Context, handle func(ctx context.Context, raw []byte)) {
	defer func() {
		_ = c.conn.Close()
	}()

	if c.maxMessageBytes > 0 {
		c.conn.conn.SetReadLimit(c.maxMessageBytes)
	}
	_ = c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.conn.SetPongHandler(func(string) error {
		return c.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn(logging.Session, logging.Connection, "websocket read error", map[logging.ExtraKey]any{
					logging.ClientID:     c.ID,
					logging.ErrorMessage: err.Error(),
				})
			}
			return
		}
		handle(ctx, raw)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteClose(time.Now().Add(writeWait))
				return
			}
			if err := c.conn.WriteText(data, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug(logging.Session, logging.Connection, "websocket write error", map[logging.ExtraKey]any{
					logging.ClientID:     c.ID,
					logging.ErrorMessage: err.Error(),
				})
				return
			}

		case <-ticker.C:
			if err := c.conn.WritePing(time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

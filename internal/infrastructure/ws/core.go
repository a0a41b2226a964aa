package ws

import (
	"context"
	"encoding/json"

	"github.com/hilthontt/votehub/internal/domain"
	"github.com/hilthontt/votehub/internal/infrastructure/logging"
	"github.com/hilthontt/votehub/internal/infrastructure/metrics"
)

const defaultBroadcastQueue = 256

// Core is the broadcast gateway. Group fan-out runs on a single goroutine
// fed by a queue, so events for one room reach clients in the order they
// were enqueued.
type Core struct {
	roomMgr   *RoomManager
	broadcast chan *WSMessage
	done      chan struct{}
	logger    logging.Logger
	metrics   *metrics.Metrics
}

func NewCore(logger logging.Logger, m *metrics.Metrics, queueSize int) *Core {
	if queueSize <= 0 {
		queueSize = defaultBroadcastQueue
	}
	return &Core{
		roomMgr:   NewRoomManager(),
		broadcast: make(chan *WSMessage, queueSize),
		done:      make(chan struct{}),
		logger:    logger,
		metrics:   m,
	}
}

// Run fans queued events out until ctx is cancelled.
func (c *Core) Run(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case msg := <-c.broadcast:
			c.fanOut(msg)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Core) fanOut(msg *WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error(logging.Session, logging.Broadcast, "failed to marshal event", map[logging.ExtraKey]any{
			logging.EventType:    msg.Type,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	_, dropped := c.roomMgr.BroadcastToRoom(msg.RoomCode, data)
	c.metrics.Broadcast(msg.Type)

	for _, id := range dropped {
		c.metrics.Dropped(msg.Type)
		c.logger.Warn(logging.Session, logging.Broadcast, "client buffer full, dropping event", map[logging.ExtraKey]any{
			logging.ClientID:  id,
			logging.RoomCode:  msg.RoomCode,
			logging.EventType: msg.Type,
		})
	}
}

func (c *Core) enqueue(msg *WSMessage) {
	select {
	case c.broadcast <- msg:
	case <-c.done:
	}
}

func (c *Core) Register(cl *Client) {
	c.roomMgr.AddClient(cl)
	c.metrics.ConnectionOpened()
}

func (c *Core) Unregister(cl *Client) {
	c.roomMgr.RemoveClient(cl)
	c.metrics.ConnectionClosed()
}

// Subscribe puts the client in roomCode's broadcast group, leaving any
// previous group. It returns the previous room code.
func (c *Core) Subscribe(cl *Client, roomCode string) (string, error) {
	return c.roomMgr.Subscribe(cl, roomCode)
}

func (c *Core) Unsubscribe(cl *Client) string {
	return c.roomMgr.Unsubscribe(cl)
}

// SendTo delivers a targeted event to one client only.
func (c *Core) SendTo(cl *Client, msg *WSMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error(logging.Session, logging.Broadcast, "failed to marshal event", map[logging.ExtraKey]any{
			logging.EventType:    msg.Type,
			logging.ErrorMessage: err.Error(),
		})
		return false
	}

	if !cl.Send(data) {
		c.metrics.Dropped(msg.Type)
		return false
	}
	return true
}

func (c *Core) BroadcastRoomState(room *domain.Room) {
	c.enqueue(NewRoomState(room))
}

func (c *Core) BroadcastMessage(roomCode string, msg domain.ChatMessage) {
	c.enqueue(NewMessageReceived(roomCode, msg))
}

func (c *Core) ClientCount() int {
	return c.roomMgr.ClientCount()
}

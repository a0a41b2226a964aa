package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/votehub/internal/domain"
	"github.com/hilthontt/votehub/internal/infrastructure/ws"
)

var ErrClosed = errors.New("connection closed")

// Event is a decoded server event with its payload left raw.
type Event struct {
	Type     string          `json:"type"`
	RoomCode string          `json:"roomCode"`
	Data     json.RawMessage `json:"data"`
}

// Room decodes a room.state payload.
func (e Event) Room() (*domain.Room, error) {
	if e.Type != ws.RoomStateEvent {
		return nil, fmt.Errorf("event %s carries no room", e.Type)
	}
	var room domain.Room
	if err := json.Unmarshal(e.Data, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// Err returns the server error carried by an error event, or nil.
func (e Event) Err() error {
	if e.Type != ws.ErrorEvent {
		return nil
	}
	var payload ws.ErrorPayload
	if err := json.Unmarshal(e.Data, &payload); err != nil {
		return fmt.Errorf("server error")
	}
	return &ServerError{Code: payload.Code, Message: payload.Message}
}

type ServerError struct {
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return e.Code + ": " + e.Message
}

// Client is a thin command/event connection to a room server.
type Client struct {
	conn    *websocket.Conn
	events  chan Event
	done    chan struct{}
	closing chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func Dial(ctx context.Context, url string, header http.Header) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		var ev Event
		if err := c.conn.ReadJSON(&ev); err != nil {
			return
		}
		select {
		case c.events <- ev:
		case <-c.closing:
			return
		}
	}
}

func (c *Client) send(commandType string, data any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(map[string]any{"type": commandType, "data": data})
}

// Next returns the next event from the server.
func (c *Client) Next(ctx context.Context) (Event, error) {
	select {
	case ev, ok := <-c.events:
		if !ok {
			return Event{}, ErrClosed
		}
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// WaitFor skips events until match accepts one. Error events fail the wait.
func (c *Client) WaitFor(ctx context.Context, match func(Event) bool) (Event, error) {
	for {
		ev, err := c.Next(ctx)
		if err != nil {
			return Event{}, err
		}
		if err := ev.Err(); err != nil {
			return ev, err
		}
		if match(ev) {
			return ev, nil
		}
	}
}

func OfType(eventType string) func(Event) bool {
	return func(ev Event) bool { return ev.Type == eventType }
}

// CreateRoom asks the server for a new room and returns its code and
// creator token.
func (c *Client) CreateRoom(ctx context.Context, creatorName, topic string, timerSeconds int) (ws.RoomCreatedPayload, error) {
	err := c.send(ws.CreateRoomCommand, ws.CreateRoomData{
		CreatorName:  creatorName,
		Topic:        topic,
		TimerSeconds: timerSeconds,
	})
	if err != nil {
		return ws.RoomCreatedPayload{}, err
	}

	ev, err := c.WaitFor(ctx, OfType(ws.RoomCreatedEvent))
	if err != nil {
		return ws.RoomCreatedPayload{}, err
	}

	var created ws.RoomCreatedPayload
	err = json.Unmarshal(ev.Data, &created)
	return created, err
}

// Join binds the connection to a room and returns the first snapshot.
func (c *Client) Join(ctx context.Context, roomCode, userName, creatorToken string) (*domain.Room, error) {
	err := c.send(ws.JoinRoomCommand, ws.JoinRoomData{
		RoomCode:     roomCode,
		UserName:     userName,
		CreatorToken: creatorToken,
	})
	if err != nil {
		return nil, err
	}

	ev, err := c.WaitFor(ctx, func(ev Event) bool {
		return ev.Type == ws.RoomStateEvent || ev.Type == ws.RoomNotFoundEvent
	})
	if err != nil {
		return nil, err
	}
	if ev.Type == ws.RoomNotFoundEvent {
		return nil, domain.ErrRoomNotFound
	}
	return ev.Room()
}

func (c *Client) Vote(optionName string) error {
	return c.send(ws.CastVoteCommand, ws.VoteData{OptionName: optionName})
}

func (c *Client) Unvote(optionName string) error {
	return c.send(ws.RetractVoteCommand, ws.VoteData{OptionName: optionName})
}

func (c *Client) AddOption(name string) error {
	return c.send(ws.AddOptionCommand, ws.AddOptionData{Name: name})
}

func (c *Client) StopVoting() error {
	return c.send(ws.StopVotingCommand, nil)
}

func (c *Client) Reset() error {
	return c.send(ws.ResetRoomCommand, nil)
}

func (c *Client) SendText(message string) error {
	return c.send(ws.SendMessageCommand, ws.SendMessageData{Message: message, MessageType: domain.MessageText})
}

// WaitForRoom returns the first room.state whose room satisfies match.
func (c *Client) WaitForRoom(ctx context.Context, match func(*domain.Room) bool) (*domain.Room, error) {
	var room *domain.Room
	_, err := c.WaitFor(ctx, func(ev Event) bool {
		if ev.Type != ws.RoomStateEvent {
			return false
		}
		r, err := ev.Room()
		if err != nil || !match(r) {
			return false
		}
		room = r
		return true
	})
	return room, err
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)

		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		err = c.conn.Close()
		<-c.done
	})
	return err
}

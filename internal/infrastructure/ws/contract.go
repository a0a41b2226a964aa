package ws

import (
	"encoding/json"

	"github.com/hilthontt/votehub/internal/domain"
)

// WSMessage is the envelope of every server event.
type WSMessage struct {
	Type     string `json:"type"`
	RoomCode string `json:"roomCode,omitempty"`
	Data     any    `json:"data,omitempty"`
}

// Command is the envelope of every client command.
type Command struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Retry   bool   `json:"retry,omitempty"`
}

type RoomCreatedPayload struct {
	RoomCode     string `json:"roomCode"`
	CreatorToken string `json:"creatorToken"`
}

type CreateRoomData struct {
	CreatorName  string `json:"creatorName"`
	Topic        string `json:"topic"`
	TimerSeconds int    `json:"timerSeconds"`
}

type JoinRoomData struct {
	RoomCode     string `json:"roomCode"`
	UserName     string `json:"userName"`
	CreatorToken string `json:"creatorToken,omitempty"`
}

type VoteData struct {
	OptionName string `json:"optionName"`
}

type AddOptionData struct {
	Name string `json:"name"`
}

type SendMessageData struct {
	Message     string             `json:"message"`
	MessageType domain.MessageType `json:"messageType"`
}

func NewRoomState(room *domain.Room) *WSMessage {
	return &WSMessage{
		Type:     RoomStateEvent,
		RoomCode: room.Code,
		Data:     room,
	}
}

func NewMessageReceived(roomCode string, msg domain.ChatMessage) *WSMessage {
	return &WSMessage{
		Type:     MessageReceivedEvent,
		RoomCode: roomCode,
		Data:     msg,
	}
}

func NewRoomNotFound(roomCode string) *WSMessage {
	return &WSMessage{
		Type:     RoomNotFoundEvent,
		RoomCode: roomCode,
	}
}

func NewRoomCreated(roomCode, creatorToken string) *WSMessage {
	return &WSMessage{
		Type:     RoomCreatedEvent,
		RoomCode: roomCode,
		Data: RoomCreatedPayload{
			RoomCode:     roomCode,
			CreatorToken: creatorToken,
		},
	}
}

func NewError(roomCode, code, message string) *WSMessage {
	return &WSMessage{
		Type:     ErrorEvent,
		RoomCode: roomCode,
		Data: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}

func NewRateLimited(roomCode string) *WSMessage {
	return &WSMessage{
		Type:     ErrorEvent,
		RoomCode: roomCode,
		Data: ErrorPayload{
			Code:    CodeRateLimited,
			Message: "too many commands, slow down",
			Retry:   true,
		},
	}
}

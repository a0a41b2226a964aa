package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessages bounds a room's chat history; the oldest message goes first.
const MaxMessages = 50

type MessageType string

const (
	MessageText  MessageType = "Text"
	MessageImage MessageType = "Image"
	MessageAudio MessageType = "Audio"
)

func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageAudio:
		return true
	}
	return false
}

type ChatMessage struct {
	ID        string      `json:"id"`
	UserName  string      `json:"userName"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type"`
}

func NewChatMessage(userName, payload string, messageType MessageType, now time.Time) ChatMessage {
	return ChatMessage{
		ID:        uuid.NewString(),
		UserName:  userName,
		Message:   payload,
		Timestamp: now.UTC(),
		Type:      messageType,
	}
}

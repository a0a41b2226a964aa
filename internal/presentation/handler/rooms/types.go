package rooms

import (
	"time"

	"github.com/hilthontt/votehub/internal/domain"
)

type createRoomRequest struct {
	CreatorName  string `json:"creatorName" example:"Ana"`
	Topic        string `json:"topic" example:"Lunch spot"`
	TimerSeconds int    `json:"timerSeconds" example:"60"`
}

type createRoomResponse struct {
	RoomCode     string       `json:"roomCode" example:"K7QXM"`
	CreatorToken string       `json:"creatorToken"`
	Room         *domain.Room `json:"room"`
}

type roomResponse struct {
	Room      *domain.Room `json:"room"`
	IsCreator bool         `json:"isCreator"`
}

type auditEntryResponse struct {
	EventType string         `json:"eventType" example:"room_created"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type auditResponse struct {
	RoomCode string               `json:"roomCode"`
	Entries  []auditEntryResponse `json:"entries"`
}

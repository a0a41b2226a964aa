package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RoomEventType string

const (
	EventRoomCreated   RoomEventType = "room_created"
	EventMemberJoined  RoomEventType = "member_joined"
	EventVotingStopped RoomEventType = "voting_stopped"
)

type RoomAuditLog struct {
	ID        string         `bson:"_id" json:"id"`
	RoomCode  string         `bson:"room_code" json:"roomCode"`
	EventType RoomEventType  `bson:"event_type" json:"eventType"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
	Metadata  map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

type RoomAuditRepository interface {
	Log(ctx context.Context, log *RoomAuditLog) error
	GetByRoomCode(ctx context.Context, roomCode string, limit int) ([]RoomAuditLog, error)
	GetByEventType(ctx context.Context, eventType RoomEventType, from, to time.Time) ([]RoomAuditLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) error
	EnsureIndexes(ctx context.Context) error
}

func NewRoomCreatedLog(roomCode, topic string, timerSeconds int) *RoomAuditLog {
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		RoomCode:  roomCode,
		EventType: EventRoomCreated,
		Timestamp: time.Now(),
		Metadata: map[string]any{
			"topic":         topic,
			"timer_seconds": timerSeconds,
		},
	}
}

func NewMemberJoinedLog(roomCode, userName string, memberCount int) *RoomAuditLog {
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		RoomCode:  roomCode,
		EventType: EventMemberJoined,
		Timestamp: time.Now(),
		Metadata: map[string]any{
			"user_name":    userName,
			"member_count": memberCount,
		},
	}
}

func NewVotingStoppedLog(roomCode, winner string, optionCount int) *RoomAuditLog {
	return &RoomAuditLog{
		ID:        uuid.NewString(),
		RoomCode:  roomCode,
		EventType: EventVotingStopped,
		Timestamp: time.Now(),
		Metadata: map[string]any{
			"winner":       winner,
			"option_count": optionCount,
		},
	}
}

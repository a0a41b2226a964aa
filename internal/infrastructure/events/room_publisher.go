package events

import (
	"context"
	"encoding/json"

	"github.com/hilthontt/votehub/internal/domain"
	"github.com/hilthontt/votehub/internal/infrastructure/contracts"
	"github.com/hilthontt/votehub/internal/infrastructure/messaging"
)

type messagePublisher interface {
	PublishMessage(ctx context.Context, routingKey string, message contracts.AmqpMessage) error
}

type RoomPublisher struct {
	rabbitmq messagePublisher
}

func NewRoomPublisher(rabbitmq messagePublisher) *RoomPublisher {
	return &RoomPublisher{
		rabbitmq: rabbitmq,
	}
}

func (p *RoomPublisher) publish(ctx context.Context, routingKey string, payload messaging.RoomEventData) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.rabbitmq.PublishMessage(ctx, routingKey, contracts.AmqpMessage{
		RoomCode: payload.RoomCode,
		Data:     data,
	})
}

func (p *RoomPublisher) PublishRoomCreated(ctx context.Context, room *domain.Room) error {
	return p.publish(ctx, contracts.EventRoomCreated, messaging.RoomEventData{
		RoomCode:     room.Code,
		Topic:        room.Topic,
		UserName:     room.CreatorName,
		TimerSeconds: room.TimerSeconds,
		MemberCount:  len(room.Users),
	})
}

func (p *RoomPublisher) PublishMemberJoined(ctx context.Context, room *domain.Room, userName string) error {
	return p.publish(ctx, contracts.EventMemberJoined, messaging.RoomEventData{
		RoomCode:    room.Code,
		UserName:    userName,
		MemberCount: len(room.Users),
	})
}

func (p *RoomPublisher) PublishVotingStopped(ctx context.Context, room *domain.Room) error {
	return p.publish(ctx, contracts.EventVotingStopped, messaging.RoomEventData{
		RoomCode:    room.Code,
		Winner:      room.Winner,
		OptionCount: len(room.Options),
	})
}

// NopPublisher is used when event publishing is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishRoomCreated(context.Context, *domain.Room) error { return nil }

func (NopPublisher) PublishMemberJoined(context.Context, *domain.Room, string) error { return nil }

func (NopPublisher) PublishVotingStopped(context.Context, *domain.Room) error { return nil }

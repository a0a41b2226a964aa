package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hilthontt/votehub/internal/domain"
	"github.com/hilthontt/votehub/internal/infrastructure/contracts"
	"github.com/hilthontt/votehub/internal/infrastructure/logging"
	"github.com/hilthontt/votehub/internal/infrastructure/messaging"
	"github.com/rabbitmq/amqp091-go"
)

// RoomConsumer turns lifecycle events into audit log entries.
type RoomConsumer struct {
	rabbitmq *messaging.RabbitMQ
	audit    domain.RoomAuditRepository
	logger   logging.Logger
}

func NewRoomConsumer(rabbitmq *messaging.RabbitMQ, audit domain.RoomAuditRepository, logger logging.Logger) *RoomConsumer {
	return &RoomConsumer{
		rabbitmq: rabbitmq,
		audit:    audit,
		logger:   logger,
	}
}

func (c *RoomConsumer) Listen(ctx context.Context) error {
	return c.rabbitmq.ConsumeMessages(ctx, messaging.RoomsQueue, func(ctx context.Context, msg amqp091.Delivery) error {
		return c.Handle(ctx, msg.RoutingKey, msg.Body)
	})
}

func (c *RoomConsumer) Handle(ctx context.Context, routingKey string, body []byte) error {
	var message contracts.AmqpMessage
	if err := json.Unmarshal(body, &message); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}

	var payload messaging.RoomEventData
	if err := json.Unmarshal(message.Data, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	var entry *domain.RoomAuditLog
	switch routingKey {
	case contracts.EventRoomCreated:
		entry = domain.NewRoomCreatedLog(payload.RoomCode, payload.Topic, payload.TimerSeconds)
	case contracts.EventMemberJoined:
		entry = domain.NewMemberJoinedLog(payload.RoomCode, payload.UserName, payload.MemberCount)
	case contracts.EventVotingStopped:
		entry = domain.NewVotingStoppedLog(payload.RoomCode, payload.Winner, payload.OptionCount)
	default:
		c.logger.Warn(logging.RabbitMQ, logging.Consume, "ignoring unknown routing key", map[logging.ExtraKey]any{
			logging.EventType: routingKey,
		})
		return nil
	}

	if err := c.audit.Log(ctx, entry); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}

	c.logger.Debug(logging.MongoDB, logging.Consume, "audit log written", map[logging.ExtraKey]any{
		logging.EventType: routingKey,
		logging.RoomCode:  payload.RoomCode,
	})
	return nil
}

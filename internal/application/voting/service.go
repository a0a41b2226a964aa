package voting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hilthontt/votehub/internal/domain"
	"github.com/hilthontt/votehub/internal/infrastructure/logging"
	"github.com/hilthontt/votehub/internal/infrastructure/metrics"
	"github.com/hilthontt/votehub/internal/infrastructure/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxCodeAttempts = 10

var ErrCodeSpaceExhausted = errors.New("could not allocate a free room code")

// Broadcaster fans room events out to subscribed connections. Rooms passed
// in are snapshots owned by the callee.
type Broadcaster interface {
	BroadcastRoomState(room *domain.Room)
	BroadcastMessage(roomCode string, msg domain.ChatMessage)
}

type EventPublisher interface {
	PublishRoomCreated(ctx context.Context, room *domain.Room) error
	PublishMemberJoined(ctx context.Context, room *domain.Room, userName string) error
	PublishVotingStopped(ctx context.Context, room *domain.Room) error
}

type Config struct {
	MaxOptions      int
	MaxTimerSeconds int
	MaxAudioBytes   int
}

// Service applies every room mutation under the room's lock and hands the
// resulting broadcast to the gateway before the lock is released, so each
// room's events leave in mutation order.
type Service struct {
	rooms       domain.RoomRepository
	broadcaster Broadcaster
	publisher   EventPublisher
	logger      logging.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	timers      *timerSet
	cfg         Config
	now         func() time.Time
	timerUnit   time.Duration
}

func NewService(
	rooms domain.RoomRepository,
	broadcaster Broadcaster,
	publisher EventPublisher,
	logger logging.Logger,
	m *metrics.Metrics,
	cfg Config,
) *Service {
	s := &Service{
		rooms:       rooms,
		broadcaster: broadcaster,
		publisher:   publisher,
		logger:      logger,
		metrics:     m,
		tracer:      tracing.GetTracer("votehub/voting"),
		timers:      newTimerSet(),
		cfg:         cfg,
		now:         time.Now,
		timerUnit:   time.Second,
	}

	rooms.OnEvict(s.handleEviction)
	return s
}

func (s *Service) handleEviction(code string) {
	s.timers.cancel(code)
	s.metrics.RoomEvicted()
	s.metrics.SetRooms(s.rooms.Count())
	s.logger.Info(logging.Room, logging.Eviction, "room evicted", map[logging.ExtraKey]any{
		logging.RoomCode: code,
	})
}

func (s *Service) startSpan(ctx context.Context, name, code string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "voting."+name, trace.WithAttributes(
		attribute.String("room.code", code),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// mutate runs fn under the room lock. When fn reports a change the version is
// bumped and the new state is broadcast.
func (s *Service) mutate(ctx context.Context, name, code string, fn func(room *domain.Room) bool) (changed bool, err error) {
	ctx, span := s.startSpan(ctx, name, code)
	defer func() {
		span.SetAttributes(attribute.Bool("room.changed", changed))
		endSpan(span, err)
	}()

	err = s.rooms.Update(ctx, code, func(room *domain.Room) error {
		if !fn(room) {
			return nil
		}
		changed = true
		s.broadcastStateLocked(room)
		return nil
	})
	return changed, err
}

func (s *Service) broadcastStateLocked(room *domain.Room) {
	room.Version++
	s.broadcaster.BroadcastRoomState(room.Clone())
}

func (s *Service) clampTimer(seconds int) int {
	if seconds < 0 {
		return 0
	}
	if s.cfg.MaxTimerSeconds > 0 && seconds > s.cfg.MaxTimerSeconds {
		return s.cfg.MaxTimerSeconds
	}
	return seconds
}

// CreateRoom registers a new room with the creator as its only user and
// returns its code together with the secret proving creator rights.
func (s *Service) CreateRoom(ctx context.Context, creatorName, topic string, timerSeconds int) (code, creatorToken string, err error) {
	ctx, span := s.tracer.Start(ctx, "voting.create_room")
	defer func() { endSpan(span, err) }()

	timerSeconds = s.clampTimer(timerSeconds)

	var room *domain.Room
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		room, err = domain.NewRoom(creatorName, topic, timerSeconds, s.now())
		if err != nil {
			return "", "", err
		}
		if timerSeconds > 0 {
			endsAt := s.now().Add(time.Duration(timerSeconds) * s.timerUnit).UTC()
			room.VotingEndsAt = &endsAt
		}

		err = s.rooms.Create(ctx, room)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrRoomAlreadyExists) {
			return "", "", fmt.Errorf("register room: %w", err)
		}
	}
	if err != nil {
		return "", "", ErrCodeSpaceExhausted
	}

	code = room.Code
	span.SetAttributes(attribute.String("room.code", code), attribute.Int("room.timer_seconds", timerSeconds))

	if timerSeconds > 0 {
		s.armTimer(code, time.Duration(timerSeconds)*s.timerUnit)
	}

	s.metrics.SetRooms(s.rooms.Count())
	s.logger.Info(logging.Room, logging.Create, "room created", map[logging.ExtraKey]any{
		logging.RoomCode: code,
		logging.UserName: room.CreatorName,
	})

	if err := s.publisher.PublishRoomCreated(ctx, room.Clone()); err != nil {
		s.logPublishError(code, "room.created", err)
	}

	return code, room.CreatorToken, nil
}

// JoinRoom adds userName to the room if absent and broadcasts the full state
// in every case, so the joiner always receives a snapshot.
func (s *Service) JoinRoom(ctx context.Context, code, userName string) (err error) {
	ctx, span := s.startSpan(ctx, "join_room", code)
	defer func() { endSpan(span, err) }()

	name, err := domain.NormalizeUserName(userName)
	if err != nil {
		return err
	}

	var (
		added    bool
		snapshot *domain.Room
	)
	err = s.rooms.Update(ctx, code, func(room *domain.Room) error {
		added = room.AddUser(name)
		s.broadcastStateLocked(room)
		if added {
			snapshot = room.Clone()
		}
		return nil
	})
	if err != nil {
		return err
	}

	if added {
		s.logger.Info(logging.Room, logging.Join, "user joined", map[logging.ExtraKey]any{
			logging.RoomCode: snapshot.Code,
			logging.UserName: name,
		})
		if err := s.publisher.PublishMemberJoined(ctx, snapshot, name); err != nil {
			s.logPublishError(snapshot.Code, "member.joined", err)
		}
	}
	return nil
}

func (s *Service) Vote(ctx context.Context, code, optionName, userName string) error {
	_, err := s.mutate(ctx, "vote", code, func(room *domain.Room) bool {
		return room.Vote(optionName, userName)
	})
	return err
}

func (s *Service) Unvote(ctx context.Context, code, optionName, userName string) error {
	_, err := s.mutate(ctx, "unvote", code, func(room *domain.Room) bool {
		return room.Unvote(optionName, userName)
	})
	return err
}

func (s *Service) AddOption(ctx context.Context, code, name string) error {
	_, err := s.mutate(ctx, "add_option", code, func(room *domain.Room) bool {
		if s.cfg.MaxOptions > 0 && len(room.Options) >= s.cfg.MaxOptions {
			return false
		}
		return room.AddOption(name)
	})
	return err
}

// StopVoting closes the vote and settles the winner. It is idempotent, so a
// timer racing a manual stop cannot apply twice.
func (s *Service) StopVoting(ctx context.Context, code string) error {
	_, err := s.stopVoting(ctx, code, false)
	return err
}

// stopVoting with onlyIfDeadline leaves rooms alone whose deadline was
// cleared by a reset, even if the timer already fired.
func (s *Service) stopVoting(ctx context.Context, code string, onlyIfDeadline bool) (bool, error) {
	var snapshot *domain.Room
	changed, err := s.mutate(ctx, "stop_voting", code, func(room *domain.Room) bool {
		if onlyIfDeadline && room.VotingEndsAt == nil {
			return false
		}
		if !room.StopVoting() {
			return false
		}
		snapshot = room.Clone()
		return true
	})
	s.timers.cancel(domain.NormalizeRoomCode(code))
	if err != nil || !changed {
		return false, err
	}

	s.logger.Info(logging.Voting, logging.Mutation, "voting stopped", map[logging.ExtraKey]any{
		logging.RoomCode: snapshot.Code,
		"winner":         snapshot.Winner,
	})
	if err := s.publisher.PublishVotingStopped(ctx, snapshot); err != nil {
		s.logPublishError(snapshot.Code, "voting.stopped", err)
	}
	return true, nil
}

func (s *Service) Typing(ctx context.Context, code, userName string) error {
	_, err := s.mutate(ctx, "typing", code, func(room *domain.Room) bool {
		return room.StartTyping(userName)
	})
	return err
}

func (s *Service) StopTyping(ctx context.Context, code, userName string) error {
	_, err := s.mutate(ctx, "stop_typing", code, func(room *domain.Room) bool {
		return room.StopTyping(userName)
	})
	return err
}

// Leave clears what a departing connection leaves behind. The user stays in
// the users list.
func (s *Service) Leave(ctx context.Context, code, userName string) error {
	_, err := s.mutate(ctx, "leave", code, func(room *domain.Room) bool {
		return room.StopTyping(userName)
	})
	return err
}

// SendMessage appends a chat message and emits it as an incremental event.
// Blank or malformed payloads are dropped without error.
func (s *Service) SendMessage(ctx context.Context, code, userName, payload string, messageType domain.MessageType) (err error) {
	ctx, span := s.startSpan(ctx, "send_message", code)
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(payload) == "" || !messageType.Valid() {
		return nil
	}
	if messageType != domain.MessageText {
		payload = strings.TrimSpace(payload)
	}
	if err := s.checkPayload(payload, messageType); err != nil {
		s.logger.Debug(logging.Voting, logging.Mutation, "dropping chat payload", map[logging.ExtraKey]any{
			logging.RoomCode:     code,
			logging.UserName:     userName,
			logging.ErrorMessage: err.Error(),
		})
		return nil
	}

	span.SetAttributes(attribute.String("message.type", string(messageType)))

	return s.rooms.Update(ctx, code, func(room *domain.Room) error {
		msg := domain.NewChatMessage(userName, payload, messageType, s.now())
		room.AppendMessage(msg)
		room.Version++
		s.broadcaster.BroadcastMessage(room.Code, msg)

		if room.StopTyping(userName) {
			s.broadcastStateLocked(room)
		}
		return nil
	})
}

// ResetRoom cancels the room's pending auto-stop and clears its deadline.
func (s *Service) ResetRoom(ctx context.Context, code string) error {
	_, err := s.mutate(ctx, "reset_room", code, func(room *domain.Room) bool {
		s.timers.cancel(room.Code)
		if room.VotingEndsAt == nil {
			return false
		}
		room.VotingEndsAt = nil
		return true
	})
	return err
}

// Snapshot returns a read-only copy of the room.
func (s *Service) Snapshot(ctx context.Context, code string) (*domain.Room, error) {
	return s.rooms.GetByCode(ctx, code)
}

func (s *Service) IsCreator(ctx context.Context, code, token string) (bool, error) {
	room, err := s.rooms.GetByCode(ctx, code)
	if err != nil {
		return false, err
	}
	return room.IsCreatorToken(token), nil
}

func (s *Service) RoomCount() int {
	return s.rooms.Count()
}

// Close stops every pending timer. Rooms stay readable.
func (s *Service) Close() {
	s.timers.stopAll()
}

func (s *Service) armTimer(code string, d time.Duration) {
	s.timers.arm(code, d, func() { s.timerElapsed(code) })
}

func (s *Service) timerElapsed(code string) {
	changed, err := s.stopVoting(context.Background(), code, true)
	if err != nil {
		s.logger.Warn(logging.Voting, logging.Timer, "timer fired for missing room", map[logging.ExtraKey]any{
			logging.RoomCode:     code,
			logging.ErrorMessage: err.Error(),
		})
		return
	}
	if changed {
		s.metrics.TimerFired()
		s.logger.Info(logging.Voting, logging.Timer, "voting timer elapsed", map[logging.ExtraKey]any{
			logging.RoomCode: code,
		})
	}
}

func (s *Service) logPublishError(code, event string, err error) {
	s.logger.Error(logging.RabbitMQ, logging.Publish, "failed to publish room event", map[logging.ExtraKey]any{
		logging.RoomCode:     code,
		logging.EventType:    event,
		logging.ErrorMessage: err.Error(),
	})
}

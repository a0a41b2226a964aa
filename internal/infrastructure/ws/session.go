package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hilthontt/votehub/internal/domain"
	"github.com/hilthontt/votehub/internal/infrastructure/logging"
	"github.com/hilthontt/votehub/internal/infrastructure/metrics"
)

// RoomService is the room state machine as seen by a connection.
type RoomService interface {
	CreateRoom(ctx context.Context, creatorName, topic string, timerSeconds int) (code, creatorToken string, err error)
	JoinRoom(ctx context.Context, code, userName string) error
	Vote(ctx context.Context, code, optionName, userName string) error
	Unvote(ctx context.Context, code, optionName, userName string) error
	AddOption(ctx context.Context, code, name string) error
	StopVoting(ctx context.Context, code string) error
	Typing(ctx context.Context, code, userName string) error
	StopTyping(ctx context.Context, code, userName string) error
	SendMessage(ctx context.Context, code, userName, payload string, messageType domain.MessageType) error
	Leave(ctx context.Context, code, userName string) error
	ResetRoom(ctx context.Context, code string) error
	IsCreator(ctx context.Context, code, token string) (bool, error)
}

type CommandLimiter interface {
	Allow(sourceKey string) bool
	Forget(sourceKey string)
}

// CreationLimiter bounds how many rooms one source may create per window.
type CreationLimiter interface {
	Allow(sourceKey string) (bool, time.Duration)
}

// Session binds one connection to at most one (room, user) pair and turns
// its commands into room service calls.
type Session struct {
	client   *Client
	core     *Core
	rooms    RoomService
	limiter  CommandLimiter
	creation CreationLimiter
	source   string
	logger   logging.Logger
	metrics  *metrics.Metrics

	roomCode string
	userName string
	// room code -> creator token held by this connection
	creatorTokens map[string]string
}

type SessionOptions struct {
	Limiter         CommandLimiter
	CreationLimiter CreationLimiter
	// Source identifies the remote peer for the creation quota.
	Source  string
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

func NewSession(client *Client, core *Core, rooms RoomService, opts SessionOptions) *Session {
	return &Session{
		client:        client,
		core:          core,
		rooms:         rooms,
		limiter:       opts.Limiter,
		creation:      opts.CreationLimiter,
		source:        opts.Source,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		creatorTokens: make(map[string]string),
	}
}

// RememberCreatorToken records a token presented out of band (a cookie set
// at room creation). It is verified against the room on every use.
func (s *Session) RememberCreatorToken(roomCode, token string) {
	if roomCode == "" || token == "" {
		return
	}
	s.creatorTokens[domain.NormalizeRoomCode(roomCode)] = token
}

func (s *Session) RoomCode() string { return s.roomCode }

func (s *Session) UserName() string { return s.userName }

func (s *Session) joined() bool { return s.roomCode != "" }

func (s *Session) reply(msg *WSMessage) {
	s.core.SendTo(s.client, msg)
}

func (s *Session) replyError(code, message string) {
	s.reply(NewError(s.roomCode, code, message))
}

// Handle decodes and executes one inbound frame.
func (s *Session) Handle(ctx context.Context, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Type == "" {
		s.metrics.Command("invalid", "bad_request")
		s.replyError(CodeBadRequest, "malformed command")
		return
	}

	if s.limiter != nil && !s.limiter.Allow(s.client.ID) {
		s.metrics.Command(cmd.Type, "rate_limited")
		s.reply(NewRateLimited(s.roomCode))
		return
	}

	outcome := s.dispatch(ctx, cmd)
	s.metrics.Command(cmd.Type, outcome)
}

func (s *Session) dispatch(ctx context.Context, cmd Command) string {
	switch cmd.Type {
	case CreateRoomCommand:
		return s.createRoom(ctx, cmd.Data)
	case JoinRoomCommand:
		return s.joinRoom(ctx, cmd.Data)
	}

	switch cmd.Type {
	case CastVoteCommand, RetractVoteCommand, AddOptionCommand, StopVotingCommand,
		StartTypingCommand, StopTypingCommand, SendMessageCommand, ResetRoomCommand:
	default:
		s.replyError(CodeUnknown, "unknown command "+cmd.Type)
		return "unknown"
	}

	if !s.joined() {
		s.replyError(CodeNotJoined, "join a room first")
		return "not_joined"
	}

	var err error
	switch cmd.Type {
	case CastVoteCommand, RetractVoteCommand:
		var data VoteData
		if !s.decode(cmd.Data, &data) {
			return "bad_request"
		}
		if cmd.Type == CastVoteCommand {
			err = s.rooms.Vote(ctx, s.roomCode, data.OptionName, s.userName)
		} else {
			err = s.rooms.Unvote(ctx, s.roomCode, data.OptionName, s.userName)
		}

	case AddOptionCommand:
		var data AddOptionData
		if !s.decode(cmd.Data, &data) {
			return "bad_request"
		}
		err = s.rooms.AddOption(ctx, s.roomCode, data.Name)

	case StopVotingCommand, ResetRoomCommand:
		if !s.isCreator(ctx) {
			s.replyError(CodeForbidden, domain.ErrNotCreator.Error())
			return "forbidden"
		}
		if cmd.Type == StopVotingCommand {
			err = s.rooms.StopVoting(ctx, s.roomCode)
		} else {
			err = s.rooms.ResetRoom(ctx, s.roomCode)
		}

	case StartTypingCommand:
		err = s.rooms.Typing(ctx, s.roomCode, s.userName)

	case StopTypingCommand:
		err = s.rooms.StopTyping(ctx, s.roomCode, s.userName)

	case SendMessageCommand:
		var data SendMessageData
		if !s.decode(cmd.Data, &data) {
			return "bad_request"
		}
		if data.MessageType == "" {
			data.MessageType = domain.MessageText
		}
		err = s.rooms.SendMessage(ctx, s.roomCode, s.userName, data.Message, data.MessageType)
	}

	return s.handleError(cmd.Type, err)
}

func (s *Session) decode(data json.RawMessage, v any) bool {
	if len(data) == 0 {
		s.replyError(CodeBadRequest, "missing command data")
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.replyError(CodeBadRequest, "malformed command data")
		return false
	}
	return true
}

func (s *Session) handleError(commandType string, err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrRoomNotFound):
		// The room vanished under us (eviction); drop the binding.
		code := s.roomCode
		s.core.Unsubscribe(s.client)
		s.roomCode, s.userName = "", ""
		s.reply(NewRoomNotFound(code))
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		s.replyError(CodeInvalidInput, err.Error())
		return "invalid"
	default:
		s.logger.Error(logging.Session, logging.Command, "command failed", map[logging.ExtraKey]any{
			logging.ClientID:     s.client.ID,
			logging.RoomCode:     s.roomCode,
			logging.EventType:    commandType,
			logging.ErrorMessage: err.Error(),
		})
		s.replyError(CodeInternal, "command failed")
		return "error"
	}
}

func (s *Session) isCreator(ctx context.Context) bool {
	token, ok := s.creatorTokens[s.roomCode]
	if !ok {
		return false
	}
	isCreator, err := s.rooms.IsCreator(ctx, s.roomCode, token)
	return err == nil && isCreator
}

func (s *Session) createRoom(ctx context.Context, raw json.RawMessage) string {
	var data CreateRoomData
	if !s.decode(raw, &data) {
		return "bad_request"
	}

	if s.creation != nil {
		if ok, _ := s.creation.Allow(s.source); !ok {
			s.reply(NewRateLimited(s.roomCode))
			return "rate_limited"
		}
	}

	code, token, err := s.rooms.CreateRoom(ctx, data.CreatorName, data.Topic, data.TimerSeconds)
	if err != nil {
		return s.handleError(CreateRoomCommand, err)
	}

	s.creatorTokens[code] = token
	s.reply(NewRoomCreated(code, token))
	return "ok"
}

// joinRoom subscribes before joining so the join broadcast reaches the
// joining connection too.
func (s *Session) joinRoom(ctx context.Context, raw json.RawMessage) string {
	var data JoinRoomData
	if !s.decode(raw, &data) {
		return "bad_request"
	}

	code := domain.NormalizeRoomCode(data.RoomCode)
	userName, err := domain.NormalizeUserName(data.UserName)
	if err != nil {
		s.replyError(CodeInvalidInput, err.Error())
		return "invalid"
	}

	previousCode, previousUser := s.roomCode, s.userName

	if _, err := s.core.Subscribe(s.client, code); err != nil {
		s.replyError(CodeInternal, "connection is closing")
		return "error"
	}

	if err := s.rooms.JoinRoom(ctx, code, userName); err != nil {
		s.restoreSubscription(previousCode)
		if errors.Is(err, domain.ErrRoomNotFound) {
			s.reply(NewRoomNotFound(code))
			return "not_found"
		}
		return s.handleError(JoinRoomCommand, err)
	}

	if previousCode != "" && (previousCode != code || previousUser != userName) {
		if err := s.rooms.Leave(ctx, previousCode, previousUser); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
			s.logger.Warn(logging.Session, logging.Leave, "failed to leave previous room", map[logging.ExtraKey]any{
				logging.RoomCode:     previousCode,
				logging.ErrorMessage: err.Error(),
			})
		}
	}

	s.roomCode, s.userName = code, userName

	if data.CreatorToken != "" {
		if ok, err := s.rooms.IsCreator(ctx, code, data.CreatorToken); err == nil && ok {
			s.creatorTokens[code] = data.CreatorToken
		}
	}

	s.logger.Debug(logging.Session, logging.Join, "session joined room", map[logging.ExtraKey]any{
		logging.ClientID: s.client.ID,
		logging.RoomCode: code,
		logging.UserName: userName,
	})
	return "ok"
}

func (s *Session) restoreSubscription(previousCode string) {
	if previousCode == "" {
		s.core.Unsubscribe(s.client)
		return
	}
	_, _ = s.core.Subscribe(s.client, previousCode)
}

// Close releases what the connection held in its room.
func (s *Session) Close(ctx context.Context) {
	if s.limiter != nil {
		s.limiter.Forget(s.client.ID)
	}

	if !s.joined() {
		return
	}
	if err := s.rooms.Leave(ctx, s.roomCode, s.userName); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		s.logger.Warn(logging.Session, logging.Leave, "failed to clean up after disconnect", map[logging.ExtraKey]any{
			logging.ClientID:     s.client.ID,
			logging.RoomCode:     s.roomCode,
			logging.ErrorMessage: err.Error(),
		})
	}
}

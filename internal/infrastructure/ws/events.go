package ws

// Server events
const (
	RoomStateEvent       = "room.state"
	MessageReceivedEvent = "message.received"
	RoomNotFoundEvent    = "room.not_found"
	RoomCreatedEvent     = "room.created"
	ErrorEvent           = "error"
)

// Client commands
const (
	CreateRoomCommand  = "room.create"
	JoinRoomCommand    = "room.join"
	CastVoteCommand    = "vote.cast"
	RetractVoteCommand = "vote.retract"
	AddOptionCommand   = "option.add"
	StopVotingCommand  = "voting.stop"
	StartTypingCommand = "typing.start"
	StopTypingCommand  = "typing.stop"
	SendMessageCommand = "message.send"
	ResetRoomCommand   = "room.reset"
)

// Error codes carried in ErrorPayload.Code
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeInvalidInput = "INVALID_INPUT"
	CodeNotJoined    = "NOT_JOINED"
	CodeForbidden    = "FORBIDDEN"
	CodeRateLimited  = "RATE_LIMITED"
	CodeUnknown      = "UNKNOWN_COMMAND"
	CodeInternal     = "INTERNAL"
)

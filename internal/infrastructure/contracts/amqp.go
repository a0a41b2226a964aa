package contracts

// AmqpMessage is the envelope published on the lifecycle exchange.
type AmqpMessage struct {
	RoomCode string `json:"roomCode"`
	Data     []byte `json:"data"`
}

// Routing keys
const (
	EventRoomCreated   = "room.created"
	EventMemberJoined  = "member.joined"
	EventVotingStopped = "voting.stopped"
)

var RoomEvents = []string{
	EventRoomCreated,
	EventMemberJoined,
	EventVotingStopped,
}

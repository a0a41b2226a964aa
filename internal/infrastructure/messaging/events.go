package messaging

const (
	RoomsQueue      = "votehub.rooms"
	DeadLetterQueue = "votehub.dead_letter"
)

// RoomEventData is the payload inside contracts.AmqpMessage.Data.
type RoomEventData struct {
	RoomCode     string `json:"roomCode"`
	Topic        string `json:"topic,omitempty"`
	UserName     string `json:"userName,omitempty"`
	Winner       string `json:"winner,omitempty"`
	TimerSeconds int    `json:"timerSeconds,omitempty"`
	MemberCount  int    `json:"memberCount,omitempty"`
	OptionCount  int    `json:"optionCount,omitempty"`
}

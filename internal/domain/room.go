package domain

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoomCodeLength = 5

	DefaultTopic  = "Votación General"
	NoVotesWinner = "Nadie (Sin votos)"
	tiePrefix     = "Empate: "

	// Uppercase alphanumerics without the look-alikes I, O, 0 and 1.
	roomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var charsetLen = big.NewInt(int64(len(roomCodeChars)))

type Room struct {
	Code           string        `json:"roomCode"`
	Topic          string        `json:"topic"`
	CreatorName    string        `json:"creatorName"`
	CreatorToken   string        `json:"-"`
	IsVotingActive bool          `json:"isVotingActive"`
	Winner         string        `json:"winner"`
	TimerSeconds   int           `json:"timerSeconds"`
	VotingEndsAt   *time.Time    `json:"votingEndsAt,omitempty"`
	Options        []Option      `json:"options"`
	Users          []string      `json:"users"`
	TypingUsers    []string      `json:"typingUsers"`
	Messages       []ChatMessage `json:"messages"`
	Version        uint64        `json:"version"`
	CreatedAt      time.Time     `json:"createdAt"`
}

type RoomRepository interface {
	Create(ctx context.Context, room *Room) error
	// GetByCode returns a detached copy of the room.
	GetByCode(ctx context.Context, code string) (*Room, error)
	// Update runs fn while holding the room's lock. fn receives the live room
	// and must not retain it.
	Update(ctx context.Context, code string, fn func(room *Room) error) error
	Delete(ctx context.Context, code string) error
	Count() int
	// OnEvict registers a callback invoked with the code of every room the
	// repository drops on its own (idle expiry, capacity).
	OnEvict(fn func(code string))
}

// NewRoom builds an active room with the creator as its only user.
// timerSeconds must already be clamped by the caller.
func NewRoom(creatorName, topic string, timerSeconds int, now time.Time) (*Room, error) {
	name, err := NormalizeUserName(creatorName)
	if err != nil {
		return nil, err
	}

	normalizedTopic, err := normalizeTopic(topic)
	if err != nil {
		return nil, err
	}

	code, err := GenerateRoomCode()
	if err != nil {
		return nil, err
	}

	if timerSeconds < 0 {
		timerSeconds = 0
	}

	return &Room{
		Code:           code,
		Topic:          normalizedTopic,
		CreatorName:    name,
		CreatorToken:   uuid.NewString(),
		IsVotingActive: true,
		TimerSeconds:   timerSeconds,
		Options:        []Option{},
		Users:          []string{name},
		TypingUsers:    []string{},
		Messages:       []ChatMessage{},
		CreatedAt:      now.UTC(),
	}, nil
}

func GenerateRoomCode() (string, error) {
	var sb strings.Builder
	sb.Grow(RoomCodeLength)

	for i := 0; i < RoomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", err
		}
		sb.WriteByte(roomCodeChars[n.Int64()])
	}

	return sb.String(), nil
}

// NormalizeRoomCode makes user-typed codes comparable with stored ones.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// AddUser appends a user once; it reports whether the list changed.
func (r *Room) AddUser(userName string) bool {
	if slices.Contains(r.Users, userName) {
		return false
	}
	r.Users = append(r.Users, userName)
	return true
}

func (r *Room) HasUser(userName string) bool {
	return slices.Contains(r.Users, userName)
}

// FindOption matches the exact option name.
func (r *Room) FindOption(name string) *Option {
	for i := range r.Options {
		if r.Options[i].Name == name {
			return &r.Options[i]
		}
	}
	return nil
}

func (r *Room) hasOptionNamed(name string) bool {
	return slices.ContainsFunc(r.Options, func(o Option) bool {
		return strings.EqualFold(o.Name, name)
	})
}

// AddOption appends a zero-vote option. Blank names, closed voting and
// case-insensitive duplicates are ignored.
func (r *Room) AddOption(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || !r.IsVotingActive || r.hasOptionNamed(name) {
		return false
	}
	r.Options = append(r.Options, newOption(name))
	return true
}

func (r *Room) Vote(optionName, userName string) bool {
	if !r.IsVotingActive {
		return false
	}
	option := r.FindOption(optionName)
	if option == nil {
		return false
	}
	return option.addVoter(userName)
}

func (r *Room) Unvote(optionName, userName string) bool {
	if !r.IsVotingActive {
		return false
	}
	option := r.FindOption(optionName)
	if option == nil {
		return false
	}
	return option.removeVoter(userName)
}

// StopVoting closes the vote and settles the winner. A room that is already
// closed keeps its winner and reports no change.
func (r *Room) StopVoting() bool {
	if !r.IsVotingActive {
		return false
	}
	r.IsVotingActive = false
	r.VotingEndsAt = nil
	r.Winner = ComputeWinner(r.Options)
	return true
}

// ComputeWinner returns the top option's name, a tie label listing every
// top option in stored order, or the no-votes sentinel.
func ComputeWinner(options []Option) string {
	maxVotes := 0
	for _, o := range options {
		maxVotes = max(maxVotes, len(o.Voters))
	}
	if maxVotes == 0 {
		return NoVotesWinner
	}

	var winners []string
	for _, o := range options {
		if len(o.Voters) == maxVotes {
			winners = append(winners, o.Name)
		}
	}

	if len(winners) > 1 {
		return tiePrefix + strings.Join(winners, ", ")
	}
	return winners[0]
}

func (r *Room) StartTyping(userName string) bool {
	if slices.Contains(r.TypingUsers, userName) {
		return false
	}
	r.TypingUsers = append(r.TypingUsers, userName)
	return true
}

func (r *Room) StopTyping(userName string) bool {
	idx := slices.Index(r.TypingUsers, userName)
	if idx == -1 {
		return false
	}
	r.TypingUsers = slices.Delete(r.TypingUsers, idx, idx+1)
	return true
}

// AppendMessage stores msg and drops the oldest messages beyond MaxMessages.
func (r *Room) AppendMessage(msg ChatMessage) {
	r.Messages = append(r.Messages, msg)
	if excess := len(r.Messages) - MaxMessages; excess > 0 {
		r.Messages = slices.Clone(r.Messages[excess:])
	}
}

func (r *Room) IsCreatorToken(token string) bool {
	return token != "" && subtle.ConstantTimeCompare([]byte(r.CreatorToken), []byte(token)) == 1
}

// Clone returns a deep copy safe to hand to other goroutines.
func (r *Room) Clone() *Room {
	cpy := *r

	cpy.Options = make([]Option, len(r.Options))
	for i, o := range r.Options {
		cpy.Options[i] = Option{
			Name:   o.Name,
			Votes:  o.Votes,
			Voters: slices.Clone(o.Voters),
		}
	}
	cpy.Users = slices.Clone(r.Users)
	cpy.TypingUsers = slices.Clone(r.TypingUsers)
	cpy.Messages = slices.Clone(r.Messages)

	if r.VotingEndsAt != nil {
		endsAt := *r.VotingEndsAt
		cpy.VotingEndsAt = &endsAt
	}

	return &cpy
}

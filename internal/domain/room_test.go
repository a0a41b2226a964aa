package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func newTestRoom(t *testing.T) *Room {
	t.Helper()
	room, err := NewRoom("Ana", "Lunch", 0, time.Now())
	if err != nil {
		t.Fatalf("NewRoom() error = %v", err)
	}
	return room
}

func TestNewRoom(t *testing.T) {
	room, err := NewRoom("  Ana ", "", -5, time.Now())
	if err != nil {
		t.Fatalf("NewRoom() error = %v", err)
	}

	if len(room.Code) != RoomCodeLength {
		t.Errorf("code %q has length %d", room.Code, len(room.Code))
	}
	if room.Code != strings.ToUpper(room.Code) {
		t.Errorf("code %q is not upper case", room.Code)
	}
	if room.Topic != DefaultTopic {
		t.Errorf("Topic = %q, want %q", room.Topic, DefaultTopic)
	}
	if room.CreatorName != "Ana" {
		t.Errorf("CreatorName = %q", room.CreatorName)
	}
	if !room.IsVotingActive {
		t.Error("voting should start active")
	}
	if room.TimerSeconds != 0 {
		t.Errorf("TimerSeconds = %d, want 0", room.TimerSeconds)
	}
	if len(room.Users) != 1 || room.Users[0] != "Ana" {
		t.Errorf("Users = %v", room.Users)
	}
	if room.CreatorToken == "" {
		t.Error("creator token not issued")
	}
}

func TestNewRoomRejectsBlankCreator(t *testing.T) {
	_, err := NewRoom("   ", "x", 0, time.Now())
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestGenerateRoomCodeCharset(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateRoomCode()
		if err != nil {
			t.Fatal(err)
		}
		for _, c := range code {
			if !strings.ContainsRune(roomCodeChars, c) {
				t.Fatalf("code %q contains %q", code, c)
			}
		}
	}
}

func TestNormalizeRoomCode(t *testing.T) {
	if got := NormalizeRoomCode("  ab3de "); got != "AB3DE" {
		t.Errorf("NormalizeRoomCode() = %q", got)
	}
}

func TestAddUserIsIdempotent(t *testing.T) {
	room := newTestRoom(t)
	if !room.AddUser("Ben") {
		t.Error("first join should change users")
	}
	if room.AddUser("Ben") {
		t.Error("second join should not change users")
	}
	if len(room.Users) != 2 {
		t.Errorf("Users = %v", room.Users)
	}
}

func TestVoteKeepsCountInSync(t *testing.T) {
	room := newTestRoom(t)
	room.AddOption("Pizza")

	if !room.Vote("Pizza", "Ana") {
		t.Fatal("vote should apply")
	}
	if room.Vote("Pizza", "Ana") {
		t.Error("re-vote should be a no-op")
	}
	if room.Vote("Sushi", "Ana") {
		t.Error("vote for unknown option should be a no-op")
	}

	opt := room.FindOption("Pizza")
	if opt.Votes != 1 || len(opt.Voters) != 1 {
		t.Errorf("option = %+v", opt)
	}

	if room.Unvote("Pizza", "Ben") {
		t.Error("unvote by non-voter should be a no-op")
	}
	if !room.Unvote("Pizza", "Ana") {
		t.Error("unvote should apply")
	}
	if opt.Votes != 0 || len(opt.Voters) != 0 {
		t.Errorf("option after unvote = %+v", opt)
	}
}

func TestMultiOptionVoting(t *testing.T) {
	room := newTestRoom(t)
	room.AddOption("Pizza")
	room.AddOption("Sushi")

	room.Vote("Pizza", "Ana")
	room.Vote("Sushi", "Ana")

	for _, o := range room.Options {
		if o.Votes != 1 {
			t.Errorf("%s votes = %d, want 1", o.Name, o.Votes)
		}
	}
}

func TestAddOption(t *testing.T) {
	room := newTestRoom(t)

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"new", "Pizza", true},
		{"case-insensitive duplicate", "pizza", false},
		{"trimmed duplicate", "  PIZZA ", false},
		{"blank", "   ", false},
		{"another", " Sushi ", true},
	}
	for _, tt := range tests {
		if got := room.AddOption(tt.in); got != tt.want {
			t.Errorf("%s: AddOption(%q) = %v, want %v", tt.name, tt.in, got, tt.want)
		}
	}

	if len(room.Options) != 2 || room.Options[1].Name != "Sushi" {
		t.Errorf("Options = %+v", room.Options)
	}
}

func TestComputeWinner(t *testing.T) {
	opt := func(name string, voters int) Option {
		o := newOption(name)
		for i := 0; i < voters; i++ {
			o.addVoter(fmt.Sprintf("u%d", i))
		}
		return o
	}

	tests := []struct {
		name    string
		options []Option
		want    string
	}{
		{"no options", nil, NoVotesWinner},
		{"no votes", []Option{opt("A", 0), opt("B", 0)}, NoVotesWinner},
		{"single winner", []Option{opt("A", 1), opt("B", 2)}, "B"},
		{"tie in stored order", []Option{opt("A", 3), opt("B", 3), opt("C", 1)}, "Empate: A, B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeWinner(tt.options); got != tt.want {
				t.Errorf("ComputeWinner() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStopVotingFreezesRoom(t *testing.T) {
	room := newTestRoom(t)
	room.AddOption("Pizza")
	room.Vote("Pizza", "Ana")

	if !room.StopVoting() {
		t.Fatal("first stop should apply")
	}
	if room.Winner != "Pizza" {
		t.Errorf("Winner = %q", room.Winner)
	}
	if room.StopVoting() {
		t.Error("second stop should be a no-op")
	}

	if room.Vote("Pizza", "Ben") || room.Unvote("Pizza", "Ana") || room.AddOption("Tacos") {
		t.Error("mutations after stop should be no-ops")
	}
	if room.FindOption("Pizza").Votes != 1 {
		t.Error("votes changed after stop")
	}
}

func TestTyping(t *testing.T) {
	room := newTestRoom(t)
	if !room.StartTyping("Ana") || room.StartTyping("Ana") {
		t.Error("StartTyping should change once")
	}
	if !room.StopTyping("Ana") || room.StopTyping("Ana") {
		t.Error("StopTyping should change once")
	}
}

func TestAppendMessageEvictsOldest(t *testing.T) {
	room := newTestRoom(t)
	now := time.Now()
	for i := 0; i < MaxMessages+5; i++ {
		room.AppendMessage(NewChatMessage("Ana", fmt.Sprintf("m%d", i), MessageText, now))
	}

	if len(room.Messages) != MaxMessages {
		t.Fatalf("len(Messages) = %d", len(room.Messages))
	}
	if room.Messages[0].Message != "m5" {
		t.Errorf("oldest kept = %q, want m5", room.Messages[0].Message)
	}
	if last := room.Messages[MaxMessages-1].Message; last != fmt.Sprintf("m%d", MaxMessages+4) {
		t.Errorf("newest = %q", last)
	}
}

func TestCloneIsDeep(t *testing.T) {
	room := newTestRoom(t)
	room.AddOption("Pizza")
	room.Vote("Pizza", "Ana")
	endsAt := time.Now()
	room.VotingEndsAt = &endsAt

	cpy := room.Clone()
	cpy.Options[0].Voters[0] = "Mallory"
	cpy.Users = append(cpy.Users, "Mallory")
	*cpy.VotingEndsAt = endsAt.Add(time.Hour)

	if room.Options[0].Voters[0] != "Ana" {
		t.Error("clone shares voters")
	}
	if len(room.Users) != 1 {
		t.Error("clone shares users")
	}
	if !room.VotingEndsAt.Equal(endsAt) {
		t.Error("clone shares deadline")
	}
}

func TestIsCreatorToken(t *testing.T) {
	room := newTestRoom(t)
	if !room.IsCreatorToken(room.CreatorToken) {
		t.Error("own token rejected")
	}
	if room.IsCreatorToken("") || room.IsCreatorToken("nope") {
		t.Error("foreign token accepted")
	}
}

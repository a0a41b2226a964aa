package voting

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hilthontt/votehub/internal/domain"
	"github.com/hilthontt/votehub/internal/infrastructure/logging"
	"github.com/hilthontt/votehub/internal/infrastructure/repository"
)

type recordedEvent struct {
	kind string
	room *domain.Room
	msg  domain.ChatMessage
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *fakeBroadcaster) BroadcastRoomState(room *domain.Room) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{kind: "state", room: room})
}

func (b *fakeBroadcaster) BroadcastMessage(_ string, msg domain.ChatMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{kind: "message", msg: msg})
}

func (b *fakeBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func (b *fakeBroadcaster) last() recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}

type fakePublisher struct {
	mu      sync.Mutex
	created int
	joined  []string
	stopped []string
}

func (p *fakePublisher) PublishRoomCreated(context.Context, *domain.Room) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created++
	return nil
}

func (p *fakePublisher) PublishMemberJoined(_ context.Context, _ *domain.Room, userName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joined = append(p.joined, userName)
	return nil
}

func (p *fakePublisher) PublishVotingStopped(_ context.Context, room *domain.Room) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = append(p.stopped, room.Winner)
	return nil
}

func (p *fakePublisher) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stopped)
}

type fixture struct {
	svc       *Service
	broadcast *fakeBroadcaster
	publisher *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		broadcast: &fakeBroadcaster{},
		publisher: &fakePublisher{},
	}
	f.svc = NewService(
		repository.NewRoomRepository(0, 0),
		f.broadcast,
		f.publisher,
		logging.NewNop(),
		nil,
		Config{MaxOptions: 3, MaxTimerSeconds: 60, MaxAudioBytes: 16},
	)
	t.Cleanup(f.svc.Close)
	return f
}

func (f *fixture) createRoom(t *testing.T) string {
	t.Helper()
	code, token, err := f.svc.CreateRoom(context.Background(), "Ana", "Lunch", 0)
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if token == "" {
		t.Fatal("CreateRoom() returned no creator token")
	}
	return code
}

func (f *fixture) snapshot(t *testing.T, code string) *domain.Room {
	t.Helper()
	room, err := f.svc.Snapshot(context.Background(), code)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	return room
}

func TestCreateRoom(t *testing.T) {
	f := newFixture(t)
	code := f.createRoom(t)

	room := f.snapshot(t, code)
	if room.CreatorName != "Ana" || !room.IsVotingActive || len(room.Users) != 1 {
		t.Errorf("room = %+v", room)
	}
	if f.publisher.created != 1 {
		t.Errorf("room.created published %d times", f.publisher.created)
	}
	if f.broadcast.count() != 0 {
		t.Error("creation should not broadcast")
	}
}

func TestCreateRoomRejectsBlankCreator(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.CreateRoom(context.Background(), "  ", "", 0)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("error = %v", err)
	}
	if f.svc.RoomCount() != 0 {
		t.Error("room registered despite invalid input")
	}
}

func TestJoinRoomAlwaysBroadcasts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	code := f.createRoom(t)

	if err := f.svc.JoinRoom(ctx, strings.ToLower(code), "Ben"); err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}
	if err := f.svc.JoinRoom(ctx, code, "Ben"); err != nil {
		t.Fatalf("second JoinRoom() error = %v", err)
	}

	if f.broadcast.count() != 2 {
		t.Errorf("broadcasts = %d, want 2", f.broadcast.count())
	}
	if users := f.broadcast.last().room.Users; len(users) != 2 {
		t.Errorf("users = %v", users)
	}
	if len(f.publisher.joined) != 1 {
		t.Errorf("member.joined published %d times", len(f.publisher.joined))
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	f := newFixture(t)
	err := f.svc.JoinRoom(context.Background(), "ZZZZZ", "Ben")
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("error = %v", err)
	}
	if f.broadcast.count() != 0 {
		t.Error("not-found must not broadcast")
	}
}

func TestVotingFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	code := f.createRoom(t)

	_ = f.svc.AddOption(ctx, code, "Pizza")
	_ = f.svc.AddOption(ctx, code, "pizza")
	_ = f.svc.AddOption(ctx, code, "Sushi")
	_ = f.svc.Vote(ctx, code, "Pizza", "Ana")
	_ = f.svc.Vote(ctx, code, "Pizza", "Ana")
	_ = f.svc.Vote(ctx, code, "Tacos", "Ana")
	_ = f.svc.Unvote(ctx, code, "Sushi", "Ana")

	// two options added, one vote applied
	if got := f.broadcast.count(); got != 3 {
		t.Errorf("broadcasts = %d, want 3", got)
	}

	room := f.snapshot(t, code)
	if len(room.Options) != 2 {
		t.Fatalf("options = %+v", room.Options)
	}
	if room.Options[0].Votes != 1 || room.Options[1].Votes != 0 {
		t.Errorf("options = %+v", room.Options)
	}
	if room.Version != 3 {
		t.Errorf("Version = %d, want 3", room.Version)
	}
}

func TestAddOptionRespectsLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	code := f.createRoom(t)

	for i := 0; i < 5; i++ {
		_ = f.svc.AddOption(ctx, code, fmt.Sprintf("opt%d", i))
	}
	if n := len(f.snapshot(t, code).Options); n != 3 {
		t.Errorf("options = %d, want limit 3", n)
	}
}

func TestStopVoting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	code := f.createRoom(t)

	_ = f.svc.AddOption(ctx, code, "A")
	_ = f.svc.AddOption(ctx, code, "B")
	_ = f.svc.Vote(ctx, code, "A", "Ana")
	_ = f.svc.Vote(ctx, code, "B", "Ben")

	if err := f.svc.StopVoting(ctx, code); err != nil {
		t.Fatalf("StopVoting() error = %v", err)
	}
	before := f.broadcast.count()

	room := f.snapshot(t, code)
	if room.IsVotingActive || room.Winner != "Empate: A, B" {
		t.Errorf("room after stop = active %v winner %q", room.IsVotingActive, room.Winner)
	}

	_ = f.svc.StopVoting(ctx, code)
	_ = f.svc.Vote(ctx, code, "A", "Cleo")
	_ = f.svc.Unvote(ctx, code, "A", "Ana")
	_ = f.svc.AddOption(ctx, code, "C")

	if f.broadcast.count() != before {
		t.Error("mutations after stop should not broadcast")
	}
	if f.publisher.stopCount() != 1 {
		t.Errorf("voting.stopped published %d times", f.publisher.stopCount())
	}
}

func TestTypingBroadcastsOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	code := f.createRoom(t)

	_ = f.svc.Typing(ctx, code, "Ana")
	_ = f.svc.Typing(ctx, code, "Ana")
	_ = f.svc.StopTyping(ctx, code, "Ana")
	_ = f.svc.StopTyping(ctx, code, "Ana")

	if got := f.broadcast.count(); got != 2 {
		t.Errorf("broadcasts = %d, want 2", got)
	}
}

func TestLeaveClearsTypingOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	code := f.createRoom(t)

	_ = f.svc.JoinRoom(ctx, code, "Ben")
	_ = f.svc.Typing(ctx, code, "Ben")
	_ = f.svc.Leave(ctx, code, "Ben")

	room := f.snapshot(t, code)
	if len(room.TypingUsers) != 0 {
		t.Errorf("typing = %v", room.TypingUsers)
	}
	if len(room.Users) != 2 {
		t.Errorf("users = %v", room.Users)
	}
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	code := f.createRoom(t)

	_ = f.svc.Typing(ctx, code, "Ana")
	before := f.broadcast.count()

	if err := f.svc.SendMessage(ctx, code, "Ana", "hola", domain.MessageText); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	f.broadcast.mu.Lock()
	sent := f.broadcast.events[before:]
	f.broadcast.mu.Unlock()

	if len(sent) != 2 || sent[0].kind != "message" || sent[1].kind != "state" {
		t.Fatalf("events = %+v", sent)
	}
	if sent[0].msg.Message != "hola" || sent[0].msg.ID == "" {
		t.Errorf("message = %+v", sent[0].msg)
	}
	if len(sent[1].room.TypingUsers) != 0 {
		t.Error("sender still typing")
	}
}

func TestSendMessageDropsInvalidPayloads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	code := f.createRoom(t)

	small := base64.StdEncoding.EncodeToString([]byte("tiny"))
	big := base64.StdEncoding.EncodeToString(make([]byte, 64))

	tests := []struct {
		name    string
		payload string
		kind    domain.MessageType
		stored  bool
	}{
		{"blank", "   ", domain.MessageText, false},
		{"unknown type", "hi", domain.MessageType("Video"), false},
		{"image url", "https://example.com/cat.png", domain.MessageImage, true},
		{"image not url", "cat.png", domain.MessageImage, false},
		{"audio base64", small, domain.MessageAudio, true},
		{"audio data url", "data:audio/webm;base64," + small, domain.MessageAudio, true},
		{"audio wrong mime", "data:image/png;base64," + small, domain.MessageAudio, false},
		{"audio garbage", "***", domain.MessageAudio, false},
		{"audio too large", big, domain.MessageAudio, false},
	}

	stored := 0
	for _, tt := range tests {
		if err := f.svc.SendMessage(ctx, code, "Ana", tt.payload, tt.kind); err != nil {
			t.Fatalf("%s: error = %v", tt.name, err)
		}
		if tt.stored {
			stored++
		}
		if got := len(f.snapshot(t, code).Messages); got != stored {
			t.Errorf("%s: messages = %d, want %d", tt.name, got, stored)
		}
	}
}

func TestSendMessageUnknownRoom(t *testing.T) {
	f := newFixture(t)
	err := f.svc.SendMessage(context.Background(), "ZZZZZ", "Ana", "hi", domain.MessageText)
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("error = %v", err)
	}
}

func TestConcurrentVotesKeepInvariant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	code := f.createRoom(t)
	_ = f.svc.AddOption(ctx, code, "Pizza")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user%d", i)
			_ = f.svc.Vote(ctx, code, "Pizza", user)
			if i%2 == 0 {
				_ = f.svc.Unvote(ctx, code, "Pizza", user)
			}
		}(i)
	}
	wg.Wait()

	opt := f.snapshot(t, code).FindOption("Pizza")
	if opt.Votes != len(opt.Voters) || opt.Votes != 25 {
		t.Errorf("votes = %d voters = %d", opt.Votes, len(opt.Voters))
	}
}

func TestBroadcastVersionsAreOrdered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	code := f.createRoom(t)
	_ = f.svc.AddOption(ctx, code, "Pizza")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = f.svc.Vote(ctx, code, "Pizza", fmt.Sprintf("user%d", i))
		}(i)
	}
	wg.Wait()

	f.broadcast.mu.Lock()
	defer f.broadcast.mu.Unlock()
	var prev uint64
	for _, ev := range f.broadcast.events {
		if ev.room.Version <= prev {
			t.Fatalf("version %d after %d", ev.room.Version, prev)
		}
		prev = ev.room.Version
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestTimerStopsVotingOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.timerUnit = 10 * time.Millisecond

	code, _, err := f.svc.CreateRoom(ctx, "Ana", "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if f.snapshot(t, code).VotingEndsAt == nil {
		t.Error("deadline not set")
	}

	waitFor(t, func() bool { return f.publisher.stopCount() == 1 })

	room := f.snapshot(t, code)
	if room.IsVotingActive || room.Winner != domain.NoVotesWinner {
		t.Errorf("room after timer = active %v winner %q", room.IsVotingActive, room.Winner)
	}
	if room.VotingEndsAt != nil {
		t.Error("deadline not cleared")
	}

	_ = f.svc.StopVoting(ctx, code)
	if f.publisher.stopCount() != 1 {
		t.Error("voting stopped twice")
	}
}

func TestTimerIsClamped(t *testing.T) {
	f := newFixture(t)
	code, _, _ := f.svc.CreateRoom(context.Background(), "Ana", "", 10_000)
	if got := f.snapshot(t, code).TimerSeconds; got != 60 {
		t.Errorf("TimerSeconds = %d, want 60", got)
	}
	code, _, _ = f.svc.CreateRoom(context.Background(), "Ana", "", -3)
	if got := f.snapshot(t, code).TimerSeconds; got != 0 {
		t.Errorf("TimerSeconds = %d, want 0", got)
	}
}

func TestResetCancelsTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.timerUnit = 50 * time.Millisecond

	code, _, _ := f.svc.CreateRoom(ctx, "Ana", "", 1)
	if err := f.svc.ResetRoom(ctx, code); err != nil {
		t.Fatalf("ResetRoom() error = %v", err)
	}
	if f.svc.timers.pending(code) {
		t.Error("timer still pending")
	}

	time.Sleep(150 * time.Millisecond)
	room := f.snapshot(t, code)
	if !room.IsVotingActive {
		t.Error("cancelled timer stopped voting")
	}
	if room.VotingEndsAt != nil {
		t.Error("deadline not cleared")
	}
	if f.broadcast.count() != 1 {
		t.Errorf("broadcasts = %d, want 1", f.broadcast.count())
	}
}

func TestTimerFiringAfterResetIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.timerUnit = time.Hour

	code, _, _ := f.svc.CreateRoom(ctx, "Ana", "", 1)
	if err := f.svc.ResetRoom(ctx, code); err != nil {
		t.Fatalf("ResetRoom() error = %v", err)
	}

	// The callback may already be running when the reset cancels the timer.
	f.svc.timerElapsed(code)

	room := f.snapshot(t, code)
	if !room.IsVotingActive || room.Winner != "" {
		t.Errorf("room after late timer = active %v winner %q", room.IsVotingActive, room.Winner)
	}
	if f.publisher.stopCount() != 0 {
		t.Error("late timer published voting.stopped")
	}
}

func TestManualStopCancelsTimer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.timerUnit = time.Hour

	code, _, _ := f.svc.CreateRoom(ctx, "Ana", "", 1)
	_ = f.svc.StopVoting(ctx, code)
	if f.svc.timers.pending(code) {
		t.Error("timer still pending after manual stop")
	}
}

func TestIsCreator(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	code, token, _ := f.svc.CreateRoom(ctx, "Ana", "", 0)

	if ok, err := f.svc.IsCreator(ctx, code, token); err != nil || !ok {
		t.Errorf("IsCreator(own token) = %v, %v", ok, err)
	}
	if ok, _ := f.svc.IsCreator(ctx, code, "forged"); ok {
		t.Error("forged token accepted")
	}
	if _, err := f.svc.IsCreator(ctx, "ZZZZZ", token); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("missing room error = %v", err)
	}
}

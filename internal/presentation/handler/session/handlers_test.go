package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hilthontt/votehub/internal/application/voting"
	"github.com/hilthontt/votehub/internal/domain"
	"github.com/hilthontt/votehub/internal/infrastructure/events"
	"github.com/hilthontt/votehub/internal/infrastructure/logging"
	"github.com/hilthontt/votehub/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/votehub/internal/infrastructure/repository"
	"github.com/hilthontt/votehub/internal/infrastructure/ws"
	"github.com/hilthontt/votehub/internal/presentation/utils"
)

type event struct {
	Type     string          `json:"type"`
	RoomCode string          `json:"roomCode"`
	Data     json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, limiter ws.CommandLimiter) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	core := ws.NewCore(logging.NewNop(), nil, 64)
	go core.Run(ctx)

	svc := voting.NewService(
		repository.NewRoomRepository(0, 0),
		core,
		events.NopPublisher{},
		logging.NewNop(),
		nil,
		voting.Config{MaxOptions: 10, MaxTimerSeconds: 3600, MaxAudioBytes: 1024},
	)
	t.Cleanup(svc.Close)

	h := NewHandler(core, svc, Options{
		Client:  ws.ClientConfig{MaxMessageBytes: 1 << 16, SendBuffer: 32},
		Limiter: limiter,
		Logger:  logging.NewNop(),
	})

	srv := httptest.NewServer(http.HandlerFunc(h.ConnectHandler))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, commandType string, data any) {
	t.Helper()
	payload := map[string]any{"type": commandType}
	if data != nil {
		payload["data"] = data
	}
	if err := conn.WriteJSON(payload); err != nil {
		t.Fatalf("write %s: %v", commandType, err)
	}
}

// readUntil returns the first event that satisfies match, skipping others.
func readUntil(t *testing.T, conn *websocket.Conn, match func(event) bool) event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var ev event
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(ev) {
			return ev
		}
	}
}

func ofType(eventType string) func(event) bool {
	return func(ev event) bool { return ev.Type == eventType }
}

func roomState(t *testing.T, conn *websocket.Conn, match func(domain.Room) bool) domain.Room {
	t.Helper()
	var room domain.Room
	readUntil(t, conn, func(ev event) bool {
		if ev.Type != ws.RoomStateEvent {
			return false
		}
		room = domain.Room{}
		if err := json.Unmarshal(ev.Data, &room); err != nil {
			t.Fatalf("decode room: %v", err)
		}
		return match(room)
	})
	return room
}

func errorCode(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	ev := readUntil(t, conn, ofType(ws.ErrorEvent))
	var payload ws.ErrorPayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return payload.Code
}

func createRoom(t *testing.T, conn *websocket.Conn, creator string) ws.RoomCreatedPayload {
	t.Helper()
	send(t, conn, ws.CreateRoomCommand, ws.CreateRoomData{CreatorName: creator, Topic: "Lunch"})
	ev := readUntil(t, conn, ofType(ws.RoomCreatedEvent))
	var created ws.RoomCreatedPayload
	if err := json.Unmarshal(ev.Data, &created); err != nil {
		t.Fatalf("decode room.created: %v", err)
	}
	if len(created.RoomCode) != domain.RoomCodeLength || created.CreatorToken == "" {
		t.Fatalf("room.created = %+v", created)
	}
	return created
}

func anyRoom(domain.Room) bool { return true }

func TestCreateThenJoinBroadcastsState(t *testing.T) {
	srv := newTestServer(t, nil)
	ana := dial(t, srv, nil)
	ben := dial(t, srv, nil)

	created := createRoom(t, ana, "Ana")

	send(t, ana, ws.JoinRoomCommand, ws.JoinRoomData{RoomCode: created.RoomCode, UserName: "Ana", CreatorToken: created.CreatorToken})
	room := roomState(t, ana, anyRoom)
	if room.Topic != "Lunch" || !room.IsVotingActive || !slices.Equal(room.Users, []string{"Ana"}) {
		t.Fatalf("state after creator join = %+v", room)
	}

	// Codes are case-insensitive on input.
	send(t, ben, ws.JoinRoomCommand, ws.JoinRoomData{RoomCode: strings.ToLower(created.RoomCode), UserName: "Ben"})
	for _, conn := range []*websocket.Conn{ana, ben} {
		room := roomState(t, conn, func(r domain.Room) bool { return len(r.Users) == 2 })
		if !slices.Equal(room.Users, []string{"Ana", "Ben"}) {
			t.Errorf("users = %v", room.Users)
		}
	}

	send(t, ben, ws.AddOptionCommand, ws.AddOptionData{Name: "Tacos"})
	send(t, ben, ws.CastVoteCommand, ws.VoteData{OptionName: "Tacos"})
	room = roomState(t, ana, func(r domain.Room) bool {
		return len(r.Options) == 1 && r.Options[0].Votes == 1
	})
	if !slices.Equal(room.Options[0].Voters, []string{"Ben"}) {
		t.Errorf("voters = %v", room.Options[0].Voters)
	}

	send(t, ana, ws.SendMessageCommand, ws.SendMessageData{Message: "hola", MessageType: domain.MessageText})
	ev := readUntil(t, ben, ofType(ws.MessageReceivedEvent))
	var msg domain.ChatMessage
	if err := json.Unmarshal(ev.Data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.UserName != "Ana" || msg.Message != "hola" {
		t.Errorf("message = %+v", msg)
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	srv := newTestServer(t, nil)
	conn := dial(t, srv, nil)

	send(t, conn, ws.JoinRoomCommand, ws.JoinRoomData{RoomCode: "ZZZZZ", UserName: "Ana"})
	ev := readUntil(t, conn, ofType(ws.RoomNotFoundEvent))
	if ev.RoomCode != "ZZZZZ" {
		t.Errorf("roomCode = %q", ev.RoomCode)
	}

	// Still unbound afterwards.
	send(t, conn, ws.StartTypingCommand, nil)
	if code := errorCode(t, conn); code != ws.CodeNotJoined {
		t.Errorf("error code = %q, want %q", code, ws.CodeNotJoined)
	}
}

func TestCommandErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	conn := dial(t, srv, nil)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if code := errorCode(t, conn); code != ws.CodeBadRequest {
		t.Errorf("malformed frame code = %q", code)
	}

	send(t, conn, "room.explode", nil)
	if code := errorCode(t, conn); code != ws.CodeUnknown {
		t.Errorf("unknown command code = %q", code)
	}

	send(t, conn, ws.CastVoteCommand, ws.VoteData{OptionName: "Tacos"})
	if code := errorCode(t, conn); code != ws.CodeNotJoined {
		t.Errorf("vote before join code = %q", code)
	}

	send(t, conn, ws.CreateRoomCommand, ws.CreateRoomData{CreatorName: "   "})
	if code := errorCode(t, conn); code != ws.CodeInvalidInput {
		t.Errorf("blank creator code = %q", code)
	}
}

func TestOnlyCreatorStopsVoting(t *testing.T) {
	srv := newTestServer(t, nil)
	ana := dial(t, srv, nil)
	ben := dial(t, srv, nil)

	created := createRoom(t, ana, "Ana")
	send(t, ana, ws.JoinRoomCommand, ws.JoinRoomData{RoomCode: created.RoomCode, UserName: "Ana"})
	roomState(t, ana, anyRoom)
	send(t, ben, ws.JoinRoomCommand, ws.JoinRoomData{RoomCode: created.RoomCode, UserName: "Ben"})
	roomState(t, ben, anyRoom)

	send(t, ben, ws.StopVotingCommand, nil)
	if code := errorCode(t, ben); code != ws.CodeForbidden {
		t.Fatalf("non-creator stop code = %q", code)
	}

	send(t, ana, ws.StopVotingCommand, nil)
	room := roomState(t, ben, func(r domain.Room) bool { return !r.IsVotingActive })
	if room.Winner != domain.NoVotesWinner {
		t.Errorf("winner = %q", room.Winner)
	}
}

func TestCreatorCookieGrantsCreatorRights(t *testing.T) {
	srv := newTestServer(t, nil)
	ana := dial(t, srv, nil)
	created := createRoom(t, ana, "Ana")

	cookie := &http.Cookie{
		Name:  utils.CookieCreatorPrefix + created.RoomCode,
		Value: base64.RawURLEncoding.EncodeToString([]byte(created.CreatorToken)),
	}
	header := http.Header{"Cookie": []string{cookie.String()}}

	browser := dial(t, srv, header)
	send(t, browser, ws.JoinRoomCommand, ws.JoinRoomData{RoomCode: created.RoomCode, UserName: "Ana"})
	roomState(t, browser, anyRoom)

	send(t, browser, ws.StopVotingCommand, nil)
	roomState(t, browser, func(r domain.Room) bool { return !r.IsVotingActive })
}

func TestCommandsAreRateLimited(t *testing.T) {
	limiter, err := ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1, MaxBurst: 2})
	if err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, limiter)
	conn := dial(t, srv, nil)

	for i := 0; i < 2; i++ {
		send(t, conn, ws.StartTypingCommand, nil)
		if code := errorCode(t, conn); code != ws.CodeNotJoined {
			t.Fatalf("command %d code = %q", i, code)
		}
	}

	send(t, conn, ws.StartTypingCommand, nil)
	if code := errorCode(t, conn); code != ws.CodeRateLimited {
		t.Errorf("third command code = %q, want %q", code, ws.CodeRateLimited)
	}
}

func TestDisconnectClearsTyping(t *testing.T) {
	srv := newTestServer(t, nil)
	ana := dial(t, srv, nil)
	ben := dial(t, srv, nil)

	created := createRoom(t, ana, "Ana")
	send(t, ana, ws.JoinRoomCommand, ws.JoinRoomData{RoomCode: created.RoomCode, UserName: "Ana"})
	roomState(t, ana, anyRoom)
	send(t, ben, ws.JoinRoomCommand, ws.JoinRoomData{RoomCode: created.RoomCode, UserName: "Ben"})
	roomState(t, ana, func(r domain.Room) bool { return len(r.Users) == 2 })

	send(t, ben, ws.StartTypingCommand, nil)
	roomState(t, ana, func(r domain.Room) bool { return slices.Contains(r.TypingUsers, "Ben") })

	_ = ben.Close()

	room := roomState(t, ana, func(r domain.Room) bool { return len(r.TypingUsers) == 0 })
	if !slices.Contains(room.Users, "Ben") {
		t.Errorf("users = %v, departed users stay listed", room.Users)
	}
}

func TestMessageTypeDefaultsToText(t *testing.T) {
	srv := newTestServer(t, nil)
	ana := dial(t, srv, nil)

	created := createRoom(t, ana, "Ana")
	send(t, ana, ws.JoinRoomCommand, ws.JoinRoomData{RoomCode: created.RoomCode, UserName: "Ana"})
	roomState(t, ana, anyRoom)

	send(t, ana, ws.SendMessageCommand, map[string]string{"message": "hola"})
	ev := readUntil(t, ana, ofType(ws.MessageReceivedEvent))
	var msg domain.ChatMessage
	if err := json.Unmarshal(ev.Data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.Type != domain.MessageText || msg.Message != "hola" {
		t.Errorf("message = %+v, want a text message", msg)
	}
}

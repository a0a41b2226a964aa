package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hilthontt/votehub/internal/application/voting"
	"github.com/hilthontt/votehub/internal/domain"
	"github.com/hilthontt/votehub/internal/infrastructure/events"
	"github.com/hilthontt/votehub/internal/infrastructure/logging"
	"github.com/hilthontt/votehub/internal/infrastructure/repository"
	"github.com/hilthontt/votehub/internal/infrastructure/ws"
	"github.com/hilthontt/votehub/internal/presentation/handler/session"
)

func startServer(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	core := ws.NewCore(logging.NewNop(), nil, 64)
	go core.Run(ctx)

	svc := voting.NewService(repository.NewRoomRepository(0, 0), core, events.NopPublisher{}, logging.NewNop(), nil, voting.Config{MaxOptions: 5})
	t.Cleanup(svc.Close)

	h := session.NewHandler(core, svc, session.Options{Logger: logging.NewNop()})
	srv := httptest.NewServer(http.HandlerFunc(h.ConnectHandler))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, ctx context.Context, url string) *Client {
	t.Helper()
	c, err := Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestVotingRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := startServer(t)

	host := dial(t, ctx, url)
	created, err := host.CreateRoom(ctx, "Ana", "Lunch", 0)
	if err != nil {
		t.Fatal(err)
	}

	room, err := host.Join(ctx, created.RoomCode, "Ana", created.CreatorToken)
	if err != nil {
		t.Fatal(err)
	}
	if room.Code != created.RoomCode || room.Topic != "Lunch" {
		t.Fatalf("room = %+v", room)
	}

	guest := dial(t, ctx, url)
	if _, err := guest.Join(ctx, created.RoomCode, "Ben", ""); err != nil {
		t.Fatal(err)
	}

	if err := host.AddOption("Tacos"); err != nil {
		t.Fatal(err)
	}
	if err := host.AddOption("Sushi"); err != nil {
		t.Fatal(err)
	}

	// Commands from different connections are not ordered against each
	// other; vote only once the guest has seen the option.
	_, err = guest.WaitForRoom(ctx, func(r *domain.Room) bool {
		return r.FindOption("Sushi") != nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := guest.Vote("Sushi"); err != nil {
		t.Fatal(err)
	}

	room, err = host.WaitForRoom(ctx, func(r *domain.Room) bool {
		opt := r.FindOption("Sushi")
		return opt != nil && opt.Votes == 1
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := guest.StopVoting(); err != nil {
		t.Fatal(err)
	}
	_, err = guest.WaitFor(ctx, func(Event) bool { return false })
	var serverErr *ServerError
	if !errors.As(err, &serverErr) || serverErr.Code != ws.CodeForbidden {
		t.Fatalf("guest stop error = %v", err)
	}

	if err := host.StopVoting(); err != nil {
		t.Fatal(err)
	}
	room, err = host.WaitForRoom(ctx, func(r *domain.Room) bool { return !r.IsVotingActive })
	if err != nil {
		t.Fatal(err)
	}
	if room.Winner != "Sushi" {
		t.Errorf("winner = %q, want Sushi", room.Winner)
	}
}

func TestJoinMissingRoom(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dial(t, ctx, startServer(t))
	if _, err := c.Join(ctx, "ZZZZZ", "Ana", ""); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("Join() error = %v, want ErrRoomNotFound", err)
	}
}

func TestNextAfterClose(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := dial(t, ctx, startServer(t))
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Next(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Next() after Close error = %v", err)
	}
}

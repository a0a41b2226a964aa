package session

import (
	"context"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/votehub/internal/infrastructure/logging"
	"github.com/hilthontt/votehub/internal/infrastructure/metrics"
	"github.com/hilthontt/votehub/internal/infrastructure/ws"
	"github.com/hilthontt/votehub/internal/presentation/utils"
)

type SourceKeyer interface {
	GetSourceKey(r *http.Request) string
}

type Options struct {
	Client          ws.ClientConfig
	Limiter         ws.CommandLimiter
	CreationLimiter ws.CreationLimiter
	Sourcer         SourceKeyer
	// AllowedOrigins empty or containing "*" accepts any origin.
	AllowedOrigins []string
	Logger         logging.Logger
	Metrics        *metrics.Metrics
}

type Handler struct {
	core     *ws.Core
	rooms    ws.RoomService
	opts     Options
	upgrader websocket.Upgrader
}

func NewHandler(core *ws.Core, rooms ws.RoomService, opts Options) *Handler {
	h := &Handler{
		core:  core,
		rooms: rooms,
		opts:  opts,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 || slices.Contains(h.opts.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, origin)
}

// ConnectHandler godoc
// @Summary      Open a room session over WebSocket
// @Description  Upgrades the connection. The client then sends room.create or room.join followed by room commands and receives room.state, message.received and error events
// @Tags         session
// @Success      101 "Switching Protocols - WebSocket connection established"
// @Failure      400 "Bad request - not a websocket handshake"
// @Failure      403 "Origin not allowed"
// @Router       /ws [get]
func (h *Handler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.opts.Logger.Debug(logging.Session, logging.Connection, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.ClientIp:     r.RemoteAddr,
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	source := r.RemoteAddr
	if h.opts.Sourcer != nil {
		source = h.opts.Sourcer.GetSourceKey(r)
	}

	client := ws.NewClient(conn, uuid.NewString(), h.opts.Client, h.opts.Logger)
	h.core.Register(client)

	sess := ws.NewSession(client, h.core, h.rooms, ws.SessionOptions{
		Limiter:         h.opts.Limiter,
		CreationLimiter: h.opts.CreationLimiter,
		Source:          source,
		Logger:          h.opts.Logger,
		Metrics:         h.opts.Metrics,
	})
	for code, token := range utils.CreatorTokens(r) {
		sess.RememberCreatorToken(code, token)
	}

	h.opts.Logger.Debug(logging.Session, logging.Connection, "client connected", map[logging.ExtraKey]any{
		logging.ClientID: client.ID,
		logging.ClientIp: source,
	})

	go client.WritePump()

	// The connection outlives any request-scoped deadline.
	ctx := context.WithoutCancel(r.Context())
	client.ReadPump(ctx, sess.Handle)

	h.core.Unregister(client)
	sess.Close(ctx)

	h.opts.Logger.Debug(logging.Session, logging.Connection, "client disconnected", map[logging.ExtraKey]any{
		logging.ClientID: client.ID,
		logging.RoomCode: sess.RoomCode(),
	})
}

package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hilthontt/votehub/internal/infrastructure/json"
)

type RoomCounter interface {
	RoomCount() int
}

type ConnectionCounter interface {
	ClientCount() int
}

type Handler struct {
	rooms       RoomCounter
	connections ConnectionCounter
	startTime   time.Time
	healthy     atomic.Bool
}

func NewHandler(rooms RoomCounter, connections ConnectionCounter) *Handler {
	h := &Handler{
		rooms:       rooms,
		connections: connections,
		startTime:   time.Now(),
	}
	h.healthy.Store(true)
	return h
}

// MarkUnhealthy makes readiness probes fail, used while draining.
func (h *Handler) MarkUnhealthy() {
	h.healthy.Store(false)
}

// GetHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API with uptime, live room count and open connections
// @Tags         health
// @Produce      json
// @Success      200 {object} healthResponse "Service is healthy"
// @Failure      503 {object} healthResponse "Service is shutting down"
// @Router       /health [get]
// @Router       /healthz [get]
// @Router       /ready [get]
// @Router       /live [get]
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.rooms != nil {
		resp.Rooms = h.rooms.RoomCount()
	}
	if h.connections != nil {
		resp.Connections = h.connections.ClientCount()
	}

	if !h.healthy.Load() {
		resp.Status = "unhealthy"
		_ = json.Write(w, http.StatusServiceUnavailable, resp)
		return
	}

	_ = json.Write(w, http.StatusOK, resp)
}

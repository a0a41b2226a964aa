package rooms

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hilthontt/votehub/internal/application/voting"
	"github.com/hilthontt/votehub/internal/domain"
	"github.com/hilthontt/votehub/internal/infrastructure/json"
	"github.com/hilthontt/votehub/internal/infrastructure/logging"
	"github.com/hilthontt/votehub/internal/presentation/utils"
)

const auditPageSize = 100

type RoomService interface {
	CreateRoom(ctx context.Context, creatorName, topic string, timerSeconds int) (code, creatorToken string, err error)
	Snapshot(ctx context.Context, code string) (*domain.Room, error)
	IsCreator(ctx context.Context, code, token string) (bool, error)
}

type CreationLimiter interface {
	Allow(sourceKey string) (bool, time.Duration)
}

type SourceKeyer interface {
	GetSourceKey(r *http.Request) string
}

type Handler struct {
	rooms    RoomService
	creation CreationLimiter
	sourcer  SourceKeyer
	audit    domain.RoomAuditRepository
	logger   logging.Logger
}

// NewHandler builds the room REST handlers. audit may be nil when the audit
// trail is disabled.
func NewHandler(
	rooms RoomService,
	creation CreationLimiter,
	sourcer SourceKeyer,
	audit domain.RoomAuditRepository,
	logger logging.Logger,
) *Handler {
	return &Handler{
		rooms:    rooms,
		creation: creation,
		sourcer:  sourcer,
		audit:    audit,
		logger:   logger,
	}
}

// CreateRoomHandler godoc
// @Summary      Create a voting room
// @Description  Creates a room in the voting phase and returns its code together with the creator token
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        request body createRoomRequest true "Room creation parameters"
// @Success      201 {object} createRoomResponse "Room created successfully"
// @Failure      400 {object} json.ErrorResponse "Bad request - validation error"
// @Failure      429 {object} json.ErrorResponse "Too many rooms created from this source"
// @Failure      503 {object} json.ErrorResponse "No free room code could be found"
// @Router       /rooms [post]
func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteBadRequestError(w, "invalid request body")
		return
	}

	if h.creation != nil {
		source := h.sourcer.GetSourceKey(r)
		if ok, retryAfter := h.creation.Allow(source); !ok {
			h.logger.Warn(logging.Room, logging.RateLimiting, "room creation quota exceeded", map[logging.ExtraKey]any{
				logging.ClientIp: source,
			})
			json.WriteRateLimitError(w, int(math.Ceil(retryAfter.Seconds())))
			return
		}
	}

	code, token, err := h.rooms.CreateRoom(r.Context(), req.CreatorName, req.Topic, req.TimerSeconds)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			json.WriteValidationError(w, err)
		case errors.Is(err, voting.ErrCodeSpaceExhausted):
			json.WriteError(w, http.StatusServiceUnavailable, err, "no room code available, try again later")
		default:
			h.logger.Error(logging.Room, logging.Create, "failed to create room", map[logging.ExtraKey]any{
				logging.ErrorMessage: err.Error(),
			})
			json.WriteInternalError(w, err)
		}
		return
	}

	// A nil snapshot only happens if the room was evicted right away.
	room, _ := h.rooms.Snapshot(r.Context(), code)

	utils.SetCreatorCookie(w, r, code, token)
	w.Header().Set("Location", "/api/rooms/"+code)

	_ = json.Write(w, http.StatusCreated, createRoomResponse{
		RoomCode:     code,
		CreatorToken: token,
		Room:         room,
	})
}

// GetRoomHandler godoc
// @Summary      Get a room snapshot
// @Description  Returns the current state of the room. isCreator reflects the creator cookie, if any
// @Tags         rooms
// @Produce      json
// @Param        code path string true "Room code"
// @Success      200 {object} roomResponse "Room snapshot"
// @Failure      404 {object} json.ErrorResponse "Room not found"
// @Router       /rooms/{code} [get]
func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	code := domain.NormalizeRoomCode(chi.URLParam(r, "code"))

	room, err := h.rooms.Snapshot(r.Context(), code)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			json.WriteNotFoundError(w, "room not found")
			return
		}
		json.WriteInternalError(w, err)
		return
	}

	isCreator := false
	if token := utils.GetCreatorToken(r, code); token != "" {
		isCreator, _ = h.rooms.IsCreator(r.Context(), code, token)
	}

	_ = json.Write(w, http.StatusOK, roomResponse{Room: room, IsCreator: isCreator})
}

// GetRoomAuditHandler godoc
// @Summary      Get a room's audit trail
// @Description  Returns the most recent lifecycle events recorded for the room code
// @Tags         rooms
// @Produce      json
// @Param        code path string true "Room code"
// @Param        limit query int false "Maximum number of entries (default 100)"
// @Success      200 {object} auditResponse "Audit entries, newest first"
// @Failure      404 {object} json.ErrorResponse "Audit trail disabled"
// @Router       /rooms/{code}/audit [get]
func (h *Handler) GetRoomAuditHandler(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		json.WriteNotFoundError(w, "audit trail is disabled")
		return
	}

	code := domain.NormalizeRoomCode(chi.URLParam(r, "code"))

	limit := auditPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			json.WriteBadRequestError(w, "limit must be a positive integer")
			return
		}
		limit = min(n, auditPageSize)
	}

	logs, err := h.audit.GetByRoomCode(r.Context(), code, limit)
	if err != nil {
		h.logger.Error(logging.MongoDB, logging.ExternalService, "failed to read audit trail", map[logging.ExtraKey]any{
			logging.RoomCode:     code,
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err)
		return
	}

	entries := make([]auditEntryResponse, 0, len(logs))
	for _, l := range logs {
		entries = append(entries, auditEntryResponse{
			EventType: string(l.EventType),
			Timestamp: l.Timestamp,
			Metadata:  l.Metadata,
		})
	}

	_ = json.Write(w, http.StatusOK, auditResponse{RoomCode: code, Entries: entries})
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/services/display"
	"github.com/upb/andon-board/utils"
	"go.uber.org/zap"
)

// UnassignedBoard is the {id} that selects the general maintenance board
const UnassignedBoard = "unassigned"

// AnnouncementRequest carries the state returned by the previous poll
type AnnouncementRequest struct {
	State display.State `json:"state"`
}

// DivisionQueue returns the open calls waiting on a board
type DivisionQueue interface {
	GetDivisionCalls(ctx context.Context, tenantID uuid.UUID, route models.DivisionRoute) ([]*models.Call, error)
}

// AnnouncementPlanner decides which queued calls to announce
type AnnouncementPlanner interface {
	Plan(state display.State, queue []*models.Call, now time.Time) display.Plan
}

// BoardHandler serves the division TV boards
type BoardHandler struct {
	queue   DivisionQueue
	planner AnnouncementPlanner
	logger  *zap.Logger
	now     func() time.Time
}

// NewBoardHandler creates a new BoardHandler
func NewBoardHandler(queue DivisionQueue, planner AnnouncementPlanner, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		queue:   queue,
		planner: planner,
		logger:  logger,
		now:     time.Now,
	}
}

// HandleDivisionCalls handles GET /api/v1/t/{slug}/divisions/{id}/calls
func (h *BoardHandler) HandleDivisionCalls(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	route, err := parseRoute(chi.URLParam(r, "id"))
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	queue, err := h.queue.GetDivisionCalls(r.Context(), tenant.ID, route)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, queue, h.logger)
}

// HandleAnnouncements handles POST /api/v1/t/{slug}/divisions/{id}/announcements.
// The client posts the state it received last time and gets back the calls
// to announce now with the state for its next poll.
func (h *BoardHandler) HandleAnnouncements(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	route, err := parseRoute(chi.URLParam(r, "id"))
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	var req AnnouncementRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	queue, err := h.queue.GetDivisionCalls(r.Context(), tenant.ID, route)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, h.planner.Plan(req.State, queue, h.now()), h.logger)
}

func parseRoute(raw string) (models.DivisionRoute, error) {
	if raw == UnassignedBoard {
		return models.Unassigned(), nil
	}
	id, err := utils.ParseUUID(raw, "id")
	if err != nil {
		return models.DivisionRoute{}, utils.NewFieldError("id", "id must be a division UUID or \"unassigned\"")
	}
	return models.AssignedTo(id, ""), nil
}

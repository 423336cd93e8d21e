package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/andon-board/middleware"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/services"
	"github.com/upb/andon-board/services/calls"
	"github.com/upb/andon-board/services/views"
	"github.com/upb/andon-board/utils"
	"go.uber.org/zap"
)

// CreateCallRequest is the body of POST /api/v1/t/{slug}/calls
type CreateCallRequest struct {
	MachineID  string `json:"machine_id" validate:"required"`
	DivisionID string `json:"division_id,omitempty"`
}

// ResolveCallRequest is the body of POST /api/v1/t/{slug}/calls/{id}/resolve
type ResolveCallRequest struct {
	Content string `json:"content" validate:"max=10000"`
}

// CallService defines the call lifecycle operations used over HTTP
type CallService interface {
	CreateCall(ctx context.Context, tenantID, machineID uuid.UUID, divisionID *uuid.UUID) (*calls.CreateCallResult, error)
	RespondToCall(ctx context.Context, tenantID, callID, responderID uuid.UUID) (*models.Call, error)
	ResolveCall(ctx context.Context, tenantID, callID uuid.UUID, content string, resolverID uuid.UUID) (*models.Call, error)
	GetCall(ctx context.Context, tenantID, callID uuid.UUID) (*models.Call, error)
}

// CallLister lists call history
type CallLister interface {
	ListCalls(ctx context.Context, tenantID uuid.UUID, q views.CallQuery) ([]*models.Call, error)
}

// CallEventReader reads the call-event trail
type CallEventReader interface {
	ListCallEvents(ctx context.Context, tenantID, callID uuid.UUID) ([]*models.CallEvent, error)
	ListTenantEvents(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.CallEvent, error)
}

// CallHandler handles call lifecycle and history requests
type CallHandler struct {
	calls  CallService
	lister CallLister
	events CallEventReader
	loc    *time.Location
	logger *zap.Logger
}

// NewCallHandler creates a new CallHandler. Dates in query strings are read in loc.
func NewCallHandler(callSvc CallService, lister CallLister, events CallEventReader, loc *time.Location, logger *zap.Logger) *CallHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CallHandler{
		calls:  callSvc,
		lister: lister,
		events: events,
		loc:    loc,
		logger: logger,
	}
}

// HandleCreate handles POST /api/v1/t/{slug}/calls. A new call is 201; a scan
// of a machine that already has an open call is 200 with outcome "duplicate".
func (h *CallHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateCallRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	machineID, err := utils.ParseUUID(req.MachineID, "machine_id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	divisionID, err := utils.ParseOptionalUUID(req.DivisionID, "division_id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.calls.CreateCall(r.Context(), tenant.ID, machineID, divisionID)
	if err != nil {
		if services.IsInternalError(err) {
			h.writeCreateFailed(w, r, err)
			return
		}
		HandleServiceError(w, r, err, h.logger)
		return
	}

	if result.Outcome == calls.OutcomeDuplicate {
		writeOK(w, r, result, h.logger)
		return
	}
	writeCreated(w, r, result, h.logger)
}

// writeCreateFailed renders an infrastructure failure as the "error" outcome
func (h *CallHandler) writeCreateFailed(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestIDFromContext(r.Context())
	h.logger.Error("create call failed",
		zap.String("request_id", requestID),
		zap.Error(err))
	_ = utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse{
		Error:     "internal_error",
		Message:   "Internal server error",
		Details:   map[string]interface{}{"outcome": "error"},
		RequestID: requestID,
	})
}

// HandleList handles GET /api/v1/t/{slug}/calls
func (h *CallHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	q, err := h.parseCallQuery(r)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.lister.ListCalls(r.Context(), tenant.ID, q)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, result, h.logger)
}

func (h *CallHandler) parseCallQuery(r *http.Request) (views.CallQuery, error) {
	query := r.URL.Query()
	q := views.CallQuery{
		Status: models.CallStatus(query.Get("status")),
		Period: models.Period(query.Get("period")),
	}

	var err error
	if q.LocationID, err = utils.ParseOptionalUUID(query.Get("location_id"), "location_id"); err != nil {
		return q, err
	}
	if q.DivisionID, err = utils.ParseOptionalUUID(query.Get("division_id"), "division_id"); err != nil {
		return q, err
	}
	if q.Date, err = utils.ParseDate(query.Get("date"), "date", h.loc); err != nil {
		return q, err
	}
	if q.From, err = utils.ParseTimestamp(query.Get("from"), "from", h.loc); err != nil {
		return q, err
	}
	if q.To, err = utils.ParseTimestamp(query.Get("to"), "to", h.loc); err != nil {
		return q, err
	}
	if raw := query.Get("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit < 1 {
			return q, utils.NewFieldError("limit", "limit must be a positive integer")
		}
		q.Limit = limit
	}
	return q, nil
}

// HandleGet handles GET /api/v1/t/{slug}/calls/{id}
func (h *CallHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tenant, callID, ok := h.callTarget(w, r)
	if !ok {
		return
	}

	call, err := h.calls.GetCall(r.Context(), tenant.ID, callID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, call, h.logger)
}

// HandleRespond handles POST /api/v1/t/{slug}/calls/{id}/respond
func (h *CallHandler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	tenant, callID, ok := h.callTarget(w, r)
	if !ok {
		return
	}
	principal, ok := principalFromRequest(w, r)
	if !ok {
		return
	}

	call, err := h.calls.RespondToCall(r.Context(), tenant.ID, callID, principal.UserID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, call, h.logger)
}

// HandleResolve handles POST /api/v1/t/{slug}/calls/{id}/resolve
func (h *CallHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	tenant, callID, ok := h.callTarget(w, r)
	if !ok {
		return
	}
	principal, ok := principalFromRequest(w, r)
	if !ok {
		return
	}

	var req ResolveCallRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	call, err := h.calls.ResolveCall(r.Context(), tenant.ID, callID, req.Content, principal.UserID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, call, h.logger)
}

// HandleCallEvents handles GET /api/v1/t/{slug}/calls/{id}/events
func (h *CallHandler) HandleCallEvents(w http.ResponseWriter, r *http.Request) {
	tenant, callID, ok := h.callTarget(w, r)
	if !ok {
		return
	}

	// 404 for calls outside the tenant rather than an empty trail
	if _, err := h.calls.GetCall(r.Context(), tenant.ID, callID); err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	events, err := h.events.ListCallEvents(r.Context(), tenant.ID, callID)
	if err != nil {
		HandleServiceError(w, r, services.WrapInternal("failed to list call events", err), h.logger)
		return
	}
	writeOK(w, r, events, h.logger)
}

// HandleTenantEvents handles GET /api/v1/t/{slug}/events?limit=&offset=
func (h *CallHandler) HandleTenantEvents(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}

	limit, err := intParam(r, "limit")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	events, err := h.events.ListTenantEvents(r.Context(), tenant.ID, limit, offset)
	if err != nil {
		HandleServiceError(w, r, services.WrapInternal("failed to list events", err), h.logger)
		return
	}
	writeOK(w, r, events, h.logger)
}

func (h *CallHandler) callTarget(w http.ResponseWriter, r *http.Request) (*models.Tenant, uuid.UUID, bool) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return nil, uuid.Nil, false
	}
	callID, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return nil, uuid.Nil, false
	}
	return tenant, callID, true
}

// intParam reads a non-negative integer query parameter; absent is zero
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, utils.NewFieldError(name, name+" must be a non-negative integer")
	}
	return v, nil
}

package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/services/views"
	"go.uber.org/zap"
)

// ReferenceReader reads the tenant's reference data and dashboard tallies
type ReferenceReader interface {
	GetLocations(ctx context.Context, tenantID uuid.UUID) ([]*models.Location, error)
	GetDivisions(ctx context.Context, tenantID uuid.UUID) ([]*models.Division, error)
	GetMachines(ctx context.Context, tenantID uuid.UUID) ([]*models.Machine, error)
	GetMachineByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.Machine, error)
	GetDashboardStats(ctx context.Context, tenantID uuid.UUID) (*views.DashboardStats, error)
}

// ReferenceHandler serves locations, divisions, machines and the dashboard
type ReferenceHandler struct {
	views  ReferenceReader
	logger *zap.Logger
}

// NewReferenceHandler creates a new ReferenceHandler
func NewReferenceHandler(reader ReferenceReader, logger *zap.Logger) *ReferenceHandler {
	return &ReferenceHandler{
		views:  reader,
		logger: logger,
	}
}

// HandleLocations handles GET /api/v1/t/{slug}/locations
func (h *ReferenceHandler) HandleLocations(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	locations, err := h.views.GetLocations(r.Context(), tenant.ID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, locations, h.logger)
}

// HandleDivisions handles GET /api/v1/t/{slug}/divisions
func (h *ReferenceHandler) HandleDivisions(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	divisions, err := h.views.GetDivisions(r.Context(), tenant.ID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, divisions, h.logger)
}

// HandleMachines handles GET /api/v1/t/{slug}/machines
func (h *ReferenceHandler) HandleMachines(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	machines, err := h.views.GetMachines(r.Context(), tenant.ID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, machines, h.logger)
}

// HandleMachineByCode handles GET /api/v1/t/{slug}/machines/by-code/{code}
func (h *ReferenceHandler) HandleMachineByCode(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	machine, err := h.views.GetMachineByCode(r.Context(), tenant.ID, chi.URLParam(r, "code"))
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, machine, h.logger)
}

// HandleDashboardStats handles GET /api/v1/t/{slug}/dashboard/stats
func (h *ReferenceHandler) HandleDashboardStats(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	stats, err := h.views.GetDashboardStats(r.Context(), tenant.ID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, stats, h.logger)
}

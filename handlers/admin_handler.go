package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/services/admin"
	"github.com/upb/andon-board/utils"
	"go.uber.org/zap"
)

// NameRequest is the body for resources that only carry a name
type NameRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// AdminService defines the admin writes used over HTTP
type AdminService interface {
	CreateLocation(ctx context.Context, tenantID uuid.UUID, name string) (*models.Location, error)
	CreateMachine(ctx context.Context, tenantID, actorID uuid.UUID, in admin.CreateMachineInput) (*models.Machine, error)
	CreateDivision(ctx context.Context, tenantID uuid.UUID, name string) (*models.Division, error)
	CreateUser(ctx context.Context, tenantID, actorID uuid.UUID, in admin.CreateUserInput) (*models.User, error)
	ListUsers(ctx context.Context, tenantID uuid.UUID) ([]*models.User, error)
}

// AdminHandler handles reference data and staff management. All routes
// require the ADMIN role.
type AdminHandler struct {
	admin  AdminService
	logger *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(svc AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		admin:  svc,
		logger: logger,
	}
}

// HandleCreateLocation handles POST /api/v1/t/{slug}/locations
func (h *AdminHandler) HandleCreateLocation(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	var req NameRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	location, err := h.admin.CreateLocation(r.Context(), tenant.ID, req.Name)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeCreated(w, r, location, h.logger)
}

// HandleCreateMachine handles POST /api/v1/t/{slug}/machines
func (h *AdminHandler) HandleCreateMachine(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	principal, ok := principalFromRequest(w, r)
	if !ok {
		return
	}
	var req admin.CreateMachineInput
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	machine, err := h.admin.CreateMachine(r.Context(), tenant.ID, principal.UserID, req)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeCreated(w, r, machine, h.logger)
}

// HandleCreateDivision handles POST /api/v1/t/{slug}/divisions
func (h *AdminHandler) HandleCreateDivision(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	var req NameRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	division, err := h.admin.CreateDivision(r.Context(), tenant.ID, req.Name)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeCreated(w, r, division, h.logger)
}

// HandleCreateUser handles POST /api/v1/t/{slug}/users
func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	principal, ok := principalFromRequest(w, r)
	if !ok {
		return
	}
	var req admin.CreateUserInput
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	user, err := h.admin.CreateUser(r.Context(), tenant.ID, principal.UserID, req)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeCreated(w, r, user, h.logger)
}

// HandleListUsers handles GET /api/v1/t/{slug}/users
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	users, err := h.admin.ListUsers(r.Context(), tenant.ID)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}
	writeOK(w, r, users, h.logger)
}

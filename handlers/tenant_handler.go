package handlers

import (
	"context"
	"net/http"

	"github.com/upb/andon-board/services/tenants"
	"github.com/upb/andon-board/utils"
	"go.uber.org/zap"
)

// TenantService defines the tenant directory operations used over HTTP
type TenantService interface {
	RegisterTenant(ctx context.Context, reg tenants.Registration) (*tenants.Registered, error)
}

// TenantHandler handles tenant registration and lookup
type TenantHandler struct {
	tenants TenantService
	logger  *zap.Logger
}

// NewTenantHandler creates a new TenantHandler
func NewTenantHandler(tenants TenantService, logger *zap.Logger) *TenantHandler {
	return &TenantHandler{
		tenants: tenants,
		logger:  logger,
	}
}

// HandleRegister handles POST /api/v1/tenants
func (h *TenantHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req tenants.Registration
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	registered, err := h.tenants.RegisterTenant(r.Context(), req)
	if err != nil {
		HandleServiceError(w, r, err, h.logger)
		return
	}

	writeCreated(w, r, registered, h.logger)
}

// HandleGetTenant handles GET /api/v1/t/{slug}
func (h *TenantHandler) HandleGetTenant(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromRequest(w, r, h.logger)
	if !ok {
		return
	}
	writeOK(w, r, tenant, h.logger)
}

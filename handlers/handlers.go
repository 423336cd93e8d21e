// Package handlers adapts HTTP requests to the board's services. Handlers
// stay thin: decode, call one service method, encode.
package handlers

import (
	"net/http"

	"github.com/upb/andon-board/middleware"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/services/auth"
	"github.com/upb/andon-board/utils"
	"go.uber.org/zap"
)

// tenantFromRequest returns the tenant stored by the tenant middleware. A
// missing tenant means the route was wired without it.
func tenantFromRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*models.Tenant, bool) {
	tenant := middleware.GetTenantFromContext(r.Context())
	if tenant == nil {
		requestID := middleware.GetRequestIDFromContext(r.Context())
		logger.Error("tenant missing from request context",
			zap.String("request_id", requestID),
			zap.String("path", r.URL.Path))
		_ = utils.WriteInternalServerError(w, requestID)
		return nil, false
	}
	return tenant, true
}

// principalFromRequest returns the authenticated staff member
func principalFromRequest(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	principal := middleware.GetPrincipalFromContext(r.Context())
	if principal == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return nil, false
	}
	return principal, true
}

// writeOK writes data and logs a failed write
func writeOK(w http.ResponseWriter, r *http.Request, data interface{}, logger *zap.Logger) {
	if err := utils.WriteOK(w, data); err != nil {
		logger.Error("failed to write response",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
	}
}

// writeCreated writes a 201 and logs a failed write
func writeCreated(w http.ResponseWriter, r *http.Request, data interface{}, logger *zap.Logger) {
	if err := utils.WriteCreated(w, data); err != nil {
		logger.Error("failed to write response",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
	}
}

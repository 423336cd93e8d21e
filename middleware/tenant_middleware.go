package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/services"
	"github.com/upb/andon-board/utils"
	"go.uber.org/zap"
)

// SlugParam is the URL parameter that names the tenant
const SlugParam = "slug"

// TenantResolver looks a tenant up by its slug
type TenantResolver interface {
	ResolveTenant(ctx context.Context, slug string) (*models.Tenant, error)
}

// TenantMiddleware resolves {slug} before any tenant-scoped handler runs
type TenantMiddleware struct {
	resolver TenantResolver
	logger   *zap.Logger
}

// NewTenantMiddleware creates a new TenantMiddleware
func NewTenantMiddleware(resolver TenantResolver, logger *zap.Logger) *TenantMiddleware {
	return &TenantMiddleware{
		resolver: resolver,
		logger:   logger,
	}
}

// ResolveTenant stores the tenant named by {slug} in the request context.
// An unknown slug ends the request with 404.
func (m *TenantMiddleware) ResolveTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)
		slug := chi.URLParam(r, SlugParam)

		tenant, err := m.resolver.ResolveTenant(ctx, slug)
		if err != nil {
			if services.IsNotFoundError(err) {
				_ = utils.WriteNotFound(w, "Tenant not found")
				return
			}
			m.logger.Error("failed to resolve tenant",
				zap.String("request_id", requestID),
				zap.String("slug", slug),
				zap.Error(err))
			_ = utils.WriteInternalServerError(w, requestID)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithTenant(ctx, tenant)))
	})
}

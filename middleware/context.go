package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/services/auth"
)

// Context key type to avoid collisions
type contextKey string

const (
	// TenantKey is the context key for the tenant resolved from the URL slug
	TenantKey contextKey = "tenant"

	// PrincipalKey is the context key for the authenticated staff member
	PrincipalKey contextKey = "principal"
)

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetTenantFromContext retrieves the tenant from context
func GetTenantFromContext(ctx context.Context) *models.Tenant {
	if val := ctx.Value(TenantKey); val != nil {
		if tenant, ok := val.(*models.Tenant); ok {
			return tenant
		}
	}
	return nil
}

// WithTenant adds a tenant to the context
func WithTenant(ctx context.Context, tenant *models.Tenant) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}

// GetPrincipalFromContext retrieves the authenticated principal from context
func GetPrincipalFromContext(ctx context.Context) *auth.Principal {
	if val := ctx.Value(PrincipalKey); val != nil {
		if principal, ok := val.(*auth.Principal); ok {
			return principal
		}
	}
	return nil
}

// WithPrincipal adds a principal to the context
func WithPrincipal(ctx context.Context, principal *auth.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

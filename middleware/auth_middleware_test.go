package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/services/auth"
	"go.uber.org/zap"
)

// MockTokenValidator is a mock implementation of TokenValidator
type MockTokenValidator struct {
	mock.Mock
}

func (m *MockTokenValidator) ValidateToken(ctx context.Context, token string) (*auth.Principal, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Principal), args.Error(1)
}

func okHandler(t *testing.T, check func(r *http.Request)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	logger := zap.NewNop()
	principal := &auth.Principal{UserID: uuid.New(), TenantID: uuid.New(), Role: models.RoleTeam}

	t.Run("bearer token allows request", func(t *testing.T) {
		validator := new(MockTokenValidator)
		mw := NewAuthMiddleware(validator, logger)
		validator.On("ValidateToken", mock.Anything, "valid-token").Return(principal, nil)

		handler := mw.RequireAuth(okHandler(t, func(r *http.Request) {
			assert.Equal(t, principal, GetPrincipalFromContext(r.Context()))
		}))
		req := httptest.NewRequest(http.MethodGet, "/calls", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		validator.AssertExpectations(t)
	})

	t.Run("cookie token allows request", func(t *testing.T) {
		validator := new(MockTokenValidator)
		mw := NewAuthMiddleware(validator, logger)
		validator.On("ValidateToken", mock.Anything, "cookie-token").Return(principal, nil)

		req := httptest.NewRequest(http.MethodGet, "/calls", nil)
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})
		w := httptest.NewRecorder()

		mw.RequireAuth(okHandler(t, nil)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("header takes precedence over cookie", func(t *testing.T) {
		validator := new(MockTokenValidator)
		mw := NewAuthMiddleware(validator, logger)
		validator.On("ValidateToken", mock.Anything, "header-token").Return(principal, nil)

		req := httptest.NewRequest(http.MethodGet, "/calls", nil)
		req.Header.Set("Authorization", "Bearer header-token")
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: "cookie-token"})
		w := httptest.NewRecorder()

		mw.RequireAuth(okHandler(t, nil)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		validator.AssertExpectations(t)
	})

	t.Run("missing token returns 401", func(t *testing.T) {
		validator := new(MockTokenValidator)
		mw := NewAuthMiddleware(validator, logger)

		req := httptest.NewRequest(http.MethodGet, "/calls", nil)
		w := httptest.NewRecorder()

		mw.RequireAuth(okHandler(t, nil)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		validator.AssertNotCalled(t, "ValidateToken", mock.Anything, mock.Anything)
	})

	t.Run("non-bearer scheme returns 401", func(t *testing.T) {
		validator := new(MockTokenValidator)
		mw := NewAuthMiddleware(validator, logger)

		req := httptest.NewRequest(http.MethodGet, "/calls", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()

		mw.RequireAuth(okHandler(t, nil)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token returns 401", func(t *testing.T) {
		validator := new(MockTokenValidator)
		mw := NewAuthMiddleware(validator, logger)
		validator.On("ValidateToken", mock.Anything, "expired").Return(nil, errors.New("token is expired"))

		req := httptest.NewRequest(http.MethodGet, "/calls", nil)
		req.Header.Set("Authorization", "Bearer expired")
		w := httptest.NewRecorder()

		mw.RequireAuth(okHandler(t, nil)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid or expired token")
	})
}

func TestRequireTenantMatch(t *testing.T) {
	logger := zap.NewNop()
	mw := NewAuthMiddleware(new(MockTokenValidator), logger)
	tenant := models.NewTenant("Acme", "acme")

	tests := []struct {
		name       string
		principal  *auth.Principal
		tenant     *models.Tenant
		wantStatus int
	}{
		{"same tenant", &auth.Principal{TenantID: tenant.ID}, tenant, http.StatusOK},
		{"other tenant", &auth.Principal{TenantID: uuid.New()}, tenant, http.StatusForbidden},
		{"no principal", nil, tenant, http.StatusUnauthorized},
		{"no tenant", &auth.Principal{TenantID: tenant.ID}, nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.principal != nil {
				ctx = WithPrincipal(ctx, tt.principal)
			}
			if tt.tenant != nil {
				ctx = WithTenant(ctx, tt.tenant)
			}
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
			w := httptest.NewRecorder()

			mw.RequireTenantMatch(okHandler(t, nil)).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	mw := NewAuthMiddleware(new(MockTokenValidator), zap.NewNop())
	adminOnly := mw.RequireRole(models.RoleAdmin)

	t.Run("admin passes", func(t *testing.T) {
		ctx := WithPrincipal(context.Background(), &auth.Principal{Role: models.RoleAdmin})
		w := httptest.NewRecorder()

		adminOnly(okHandler(t, nil)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("team member is forbidden", func(t *testing.T) {
		ctx := WithPrincipal(context.Background(), &auth.Principal{Role: models.RoleTeam})
		w := httptest.NewRecorder()

		adminOnly(okHandler(t, nil)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		w := httptest.NewRecorder()

		adminOnly(okHandler(t, nil)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

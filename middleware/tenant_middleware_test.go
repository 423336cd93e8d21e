package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/andon-board/internal/observability"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/services"
	"go.uber.org/zap"
)

type MockTenantResolver struct {
	mock.Mock
}

func (m *MockTenantResolver) ResolveTenant(ctx context.Context, slug string) (*models.Tenant, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func tenantRouter(resolver TenantResolver, next http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.With(NewTenantMiddleware(resolver, zap.NewNop()).ResolveTenant).
		Get("/t/{slug}/calls", next.ServeHTTP)
	return r
}

func TestResolveTenant(t *testing.T) {
	tenant := models.NewTenant("Acme Plant", "acme")

	t.Run("known slug reaches handler", func(t *testing.T) {
		resolver := new(MockTenantResolver)
		resolver.On("ResolveTenant", mock.Anything, "acme").Return(tenant, nil)
		var seen *models.Tenant

		router := tenantRouter(resolver, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetTenantFromContext(r.Context())
		}))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t/acme/calls", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenant, seen)
	})

	t.Run("unknown slug short-circuits with 404", func(t *testing.T) {
		resolver := new(MockTenantResolver)
		resolver.On("ResolveTenant", mock.Anything, "nope").Return(nil, services.ErrTenantNotFound)
		called := false

		router := tenantRouter(resolver, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t/nope/calls", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.False(t, called)
	})

	t.Run("store failure is a 500 with request id", func(t *testing.T) {
		resolver := new(MockTenantResolver)
		resolver.On("ResolveTenant", mock.Anything, "acme").
			Return(nil, services.WrapInternal("failed to load tenant", errors.New("connection refused")))

		router := tenantRouter(resolver, http.NotFoundHandler())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t/acme/calls", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
		assert.Contains(t, w.Body.String(), `"request_id"`)
	})
}

func TestRequestLogger_RecordsRoutePattern(t *testing.T) {
	metrics := observability.NewMetrics()
	r := chi.NewRouter()
	r.Use(RequestLogger(zap.NewNop(), metrics))
	r.Get("/t/{slug}/calls/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/t/acme/calls/42", nil))
	require.Equal(t, http.StatusTeapot, w.Code)

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() != "andon_http_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["route"] == "/t/{slug}/calls/{id}" && labels["status"] == "418" {
				found = true
			}
		}
	}
	assert.True(t, found)
}

package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/upb/andon-board/middleware"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/services/admin"
	"github.com/upb/andon-board/services/analytics"
	"github.com/upb/andon-board/services/auth"
	"github.com/upb/andon-board/services/calls"
	"github.com/upb/andon-board/services/display"
	"github.com/upb/andon-board/services/tenants"
	"github.com/upb/andon-board/services/views"
)

// newRequest builds a request carrying the tenant, an optional principal and
// chi URL params, as the router would after its middleware ran.
func newRequest(method, target, body string, tenant *models.Tenant, principal *auth.Principal, params map[string]string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	r := httptest.NewRequest(method, target, reader)

	ctx := r.Context()
	if tenant != nil {
		ctx = middleware.WithTenant(ctx, tenant)
	}
	if principal != nil {
		ctx = middleware.WithPrincipal(ctx, principal)
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

type MockCallService struct {
	mock.Mock
}

func (m *MockCallService) CreateCall(ctx context.Context, tenantID, machineID uuid.UUID, divisionID *uuid.UUID) (*calls.CreateCallResult, error) {
	args := m.Called(ctx, tenantID, machineID, divisionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*calls.CreateCallResult), args.Error(1)
}

func (m *MockCallService) RespondToCall(ctx context.Context, tenantID, callID, responderID uuid.UUID) (*models.Call, error) {
	args := m.Called(ctx, tenantID, callID, responderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Call), args.Error(1)
}

func (m *MockCallService) ResolveCall(ctx context.Context, tenantID, callID uuid.UUID, content string, resolverID uuid.UUID) (*models.Call, error) {
	args := m.Called(ctx, tenantID, callID, content, resolverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Call), args.Error(1)
}

func (m *MockCallService) GetCall(ctx context.Context, tenantID, callID uuid.UUID) (*models.Call, error) {
	args := m.Called(ctx, tenantID, callID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Call), args.Error(1)
}

type MockViews struct {
	mock.Mock
}

func (m *MockViews) ListCalls(ctx context.Context, tenantID uuid.UUID, q views.CallQuery) ([]*models.Call, error) {
	args := m.Called(ctx, tenantID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Call), args.Error(1)
}

func (m *MockViews) GetDivisionCalls(ctx context.Context, tenantID uuid.UUID, route models.DivisionRoute) ([]*models.Call, error) {
	args := m.Called(ctx, tenantID, route)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Call), args.Error(1)
}

func (m *MockViews) GetLocations(ctx context.Context, tenantID uuid.UUID) ([]*models.Location, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Location), args.Error(1)
}

func (m *MockViews) GetDivisions(ctx context.Context, tenantID uuid.UUID) ([]*models.Division, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Division), args.Error(1)
}

func (m *MockViews) GetMachines(ctx context.Context, tenantID uuid.UUID) ([]*models.Machine, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Machine), args.Error(1)
}

func (m *MockViews) GetMachineByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.Machine, error) {
	args := m.Called(ctx, tenantID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Machine), args.Error(1)
}

func (m *MockViews) GetDashboardStats(ctx context.Context, tenantID uuid.UUID) (*views.DashboardStats, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*views.DashboardStats), args.Error(1)
}

type MockEventReader struct {
	mock.Mock
}

func (m *MockEventReader) ListCallEvents(ctx context.Context, tenantID, callID uuid.UUID) ([]*models.CallEvent, error) {
	args := m.Called(ctx, tenantID, callID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CallEvent), args.Error(1)
}

func (m *MockEventReader) ListTenantEvents(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.CallEvent, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CallEvent), args.Error(1)
}

type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) Plan(state display.State, queue []*models.Call, now time.Time) display.Plan {
	args := m.Called(state, queue, now)
	return args.Get(0).(display.Plan)
}

type MockTenantService struct {
	mock.Mock
}

func (m *MockTenantService) RegisterTenant(ctx context.Context, reg tenants.Registration) (*tenants.Registered, error) {
	args := m.Called(ctx, reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tenants.Registered), args.Error(1)
}

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Session), args.Error(1)
}

type MockAdminService struct {
	mock.Mock
}

func (m *MockAdminService) CreateLocation(ctx context.Context, tenantID uuid.UUID, name string) (*models.Location, error) {
	args := m.Called(ctx, tenantID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Location), args.Error(1)
}

func (m *MockAdminService) CreateMachine(ctx context.Context, tenantID, actorID uuid.UUID, in admin.CreateMachineInput) (*models.Machine, error) {
	args := m.Called(ctx, tenantID, actorID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Machine), args.Error(1)
}

func (m *MockAdminService) CreateDivision(ctx context.Context, tenantID uuid.UUID, name string) (*models.Division, error) {
	args := m.Called(ctx, tenantID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Division), args.Error(1)
}

func (m *MockAdminService) CreateUser(ctx context.Context, tenantID, actorID uuid.UUID, in admin.CreateUserInput) (*models.User, error) {
	args := m.Called(ctx, tenantID, actorID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockAdminService) ListUsers(ctx context.Context, tenantID uuid.UUID) ([]*models.User, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

type MockAnalytics struct {
	mock.Mock
}

func (m *MockAnalytics) GetDailyCallStats(ctx context.Context, tenantID uuid.UUID) ([]analytics.HourBucket, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]analytics.HourBucket), args.Error(1)
}

func (m *MockAnalytics) GetAnalyticsStats(ctx context.Context, tenantID uuid.UUID) (*analytics.Summary, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.Summary), args.Error(1)
}

func (m *MockAnalytics) GetHourlyDowntime(ctx context.Context, tenantID uuid.UUID) ([]analytics.DowntimeBucket, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]analytics.DowntimeBucket), args.Error(1)
}

func (m *MockAnalytics) GetMachineReports(ctx context.Context, tenantID uuid.UUID, period models.Period) ([]analytics.MachineReport, error) {
	args := m.Called(ctx, tenantID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]analytics.MachineReport), args.Error(1)
}

func (m *MockAnalytics) GetLocationReports(ctx context.Context, tenantID uuid.UUID, period models.Period) ([]analytics.LocationReport, error) {
	args := m.Called(ctx, tenantID, period)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]analytics.LocationReport), args.Error(1)
}

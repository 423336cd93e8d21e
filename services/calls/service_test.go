package calls

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/andon-board/internal/observability"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/repositories"
	"github.com/upb/andon-board/repositories/mocks"
	"github.com/upb/andon-board/services"
	"github.com/upb/andon-board/services/notify"
	"go.uber.org/zap"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, msg notify.Message) {
	m.Called(ctx, msg)
}

type MockEventRecorder struct {
	mock.Mock
}

func (m *MockEventRecorder) CallCreated(ctx context.Context, call *models.Call) {
	m.Called(ctx, call)
}

func (m *MockEventRecorder) DuplicateScan(ctx context.Context, existing *models.Call) {
	m.Called(ctx, existing)
}

func (m *MockEventRecorder) CallResponded(ctx context.Context, call *models.Call, responderID uuid.UUID) {
	m.Called(ctx, call, responderID)
}

func (m *MockEventRecorder) CallResolved(ctx context.Context, call *models.Call, resolverID uuid.UUID) {
	m.Called(ctx, call, resolverID)
}

type txKey struct{}

type fixture struct {
	repos    *mocks.Repositories
	txMgr    *mocks.TransactionManager
	notifier *MockNotifier
	events   *MockEventRecorder
	metrics  *observability.Metrics
	service  *Service
	now      time.Time
	tenantID uuid.UUID
	machine  *models.Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repos:    mocks.NewRepositories(),
		txMgr:    new(mocks.TransactionManager),
		notifier: new(MockNotifier),
		events:   new(MockEventRecorder),
		metrics:  observability.NewMetrics(),
		now:      time.Date(2024, 5, 6, 9, 15, 0, 0, time.UTC),
		tenantID: uuid.New(),
	}
	f.machine = models.NewMachine(f.tenantID, uuid.New(), "Press 1", "PR-01")
	f.machine.LocationName = "Line A"
	f.service = NewService(f.repos.Bundle(), f.txMgr, f.notifier, notify.NewFormatter(time.UTC), f.events, f.metrics, zap.NewNop())
	f.service.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.repos.Calls.AssertExpectations(t)
	f.repos.Machines.AssertExpectations(t)
	f.repos.Divisions.AssertExpectations(t)
	f.repos.Users.AssertExpectations(t)
	f.repos.Reports.AssertExpectations(t)
	f.txMgr.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func (f *fixture) openCall(status models.CallStatus) *models.Call {
	call := models.NewCall(f.tenantID, f.machine.ID, models.Unassigned(), f.now.Add(-30*time.Minute))
	call.Number = 11
	call.Status = status
	call.MachineName = f.machine.Name
	call.LocationName = f.machine.LocationName
	if status == models.CallStatusInProgress {
		responded := f.now.Add(-20 * time.Minute)
		responder := uuid.New()
		call.RespondedAt = &responded
		call.ResponderID = &responder
	}
	return call
}

func TestCreateCall_Created(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	txCtx := context.WithValue(ctx, txKey{}, "tx")

	f.repos.Machines.On("GetByID", ctx, f.tenantID, f.machine.ID).Return(f.machine, nil)
	f.repos.Calls.On("FindOpenByMachine", ctx, f.tenantID, f.machine.ID).Return(nil, repositories.ErrNotFound)
	tx := mocks.ExpectTransaction(f.txMgr, txCtx, true)
	f.repos.Calls.On("NextNumber", txCtx, f.tenantID).Return(int64(12), nil)
	f.repos.Calls.On("Create", txCtx, mock.MatchedBy(func(c *models.Call) bool {
		return c.Number == 12 && c.Status == models.CallStatusActive && !c.Route.IsAssigned() && c.CreatedAt.Equal(f.now)
	})).Return(nil)
	f.events.On("CallCreated", ctx, mock.Anything).Once()
	f.notifier.On("Notify", ctx, mock.MatchedBy(func(msg notify.Message) bool {
		return msg.TenantID == f.tenantID && msg.CallID != nil &&
			strings.Contains(msg.Text, "New call #12") &&
			strings.Contains(msg.Text, "Division: Maintenance") &&
			strings.Contains(msg.Text, "Location: Line A")
	})).Once()

	result, err := f.service.CreateCall(ctx, f.tenantID, f.machine.ID, nil)

	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, result.Outcome)
	assert.Equal(t, int64(12), result.Call.Number)
	assert.Equal(t, "PR-01", result.Call.MachineCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CallsCreated.WithLabelValues("created")))
	tx.AssertExpectations(t)
	f.assertExpectations(t)
}

func TestCreateCall_RoutesToDivision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	division := models.NewDivision(f.tenantID, "Electrical")

	f.repos.Machines.On("GetByID", ctx, f.tenantID, f.machine.ID).Return(f.machine, nil)
	f.repos.Divisions.On("GetByID", ctx, f.tenantID, division.ID).Return(division, nil)
	f.repos.Calls.On("FindOpenByMachine", ctx, f.tenantID, f.machine.ID).Return(nil, repositories.ErrNotFound)
	mocks.ExpectTransaction(f.txMgr, ctx, true)
	f.repos.Calls.On("NextNumber", ctx, f.tenantID).Return(int64(1), nil)
	f.repos.Calls.On("Create", ctx, mock.Anything).Return(nil)
	f.events.On("CallCreated", ctx, mock.Anything)
	f.notifier.On("Notify", ctx, mock.MatchedBy(func(msg notify.Message) bool {
		return strings.Contains(msg.Text, "Division: Electrical")
	}))

	result, err := f.service.CreateCall(ctx, f.tenantID, f.machine.ID, &division.ID)

	require.NoError(t, err)
	id, assigned := result.Call.Route.DivisionID()
	assert.True(t, assigned)
	assert.Equal(t, division.ID, id)
	f.assertExpectations(t)
}

func TestCreateCall_DuplicateDoesNotWriteOrNotify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing := f.openCall(models.CallStatusInProgress)

	f.repos.Machines.On("GetByID", ctx, f.tenantID, f.machine.ID).Return(f.machine, nil)
	f.repos.Calls.On("FindOpenByMachine", ctx, f.tenantID, f.machine.ID).Return(existing, nil)
	f.events.On("DuplicateScan", ctx, existing).Once()

	result, err := f.service.CreateCall(ctx, f.tenantID, f.machine.ID, nil)

	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, result.Outcome)
	assert.Same(t, existing, result.Call)
	f.repos.Calls.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CallsCreated.WithLabelValues("duplicate")))
	f.assertExpectations(t)
}

func TestCreateCall_LostRaceReportsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	winner := f.openCall(models.CallStatusActive)
	conflict := &repositories.ConflictError{Constraint: "calls_one_open_per_machine", Field: "machine_id", Err: errors.New("23505")}

	f.repos.Machines.On("GetByID", ctx, f.tenantID, f.machine.ID).Return(f.machine, nil)
	f.repos.Calls.On("FindOpenByMachine", ctx, f.tenantID, f.machine.ID).Return(nil, repositories.ErrNotFound).Once()
	mocks.ExpectTransaction(f.txMgr, ctx, false)
	f.repos.Calls.On("NextNumber", ctx, f.tenantID).Return(int64(13), nil)
	f.repos.Calls.On("Create", ctx, mock.Anything).Return(conflict)
	f.repos.Calls.On("FindOpenByMachine", ctx, f.tenantID, f.machine.ID).Return(winner, nil).Once()
	f.events.On("DuplicateScan", ctx, winner).Once()

	result, err := f.service.CreateCall(ctx, f.tenantID, f.machine.ID, nil)

	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, result.Outcome)
	assert.Equal(t, winner.ID, result.Call.ID)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestCreateCall_Errors(t *testing.T) {
	t.Run("unknown machine", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		f.repos.Machines.On("GetByID", ctx, f.tenantID, f.machine.ID).Return(nil, repositories.ErrNotFound)

		_, err := f.service.CreateCall(ctx, f.tenantID, f.machine.ID, nil)

		assert.ErrorIs(t, err, services.ErrMachineNotFound)
	})

	t.Run("division from another tenant", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		divisionID := uuid.New()
		f.repos.Machines.On("GetByID", ctx, f.tenantID, f.machine.ID).Return(f.machine, nil)
		f.repos.Divisions.On("GetByID", ctx, f.tenantID, divisionID).Return(nil, repositories.ErrNotFound)

		_, err := f.service.CreateCall(ctx, f.tenantID, f.machine.ID, &divisionID)

		assert.ErrorIs(t, err, services.ErrDivisionNotFound)
	})

	t.Run("store failure is internal and counted", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		f.repos.Machines.On("GetByID", ctx, f.tenantID, f.machine.ID).Return(f.machine, nil)
		f.repos.Calls.On("FindOpenByMachine", ctx, f.tenantID, f.machine.ID).Return(nil, repositories.ErrNotFound)
		mocks.ExpectTransaction(f.txMgr, ctx, false)
		f.repos.Calls.On("NextNumber", ctx, f.tenantID).Return(int64(0), errors.New("connection reset"))

		_, err := f.service.CreateCall(ctx, f.tenantID, f.machine.ID, nil)

		assert.True(t, services.IsInternalError(err))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CallsCreated.WithLabelValues("error")))
		f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	})
}

func TestRespondToCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	call := f.openCall(models.CallStatusActive)
	responder := models.NewUser(f.tenantID, "Budi", "budi@example.com", "h", models.RoleTeam, nil)

	f.repos.Calls.On("GetByID", ctx, f.tenantID, call.ID).Return(call, nil)
	f.repos.Users.On("GetByID", ctx, f.tenantID, responder.ID).Return(responder, nil)
	f.repos.Calls.On("MarkResponded", ctx, f.tenantID, call.ID, responder.ID, f.now).Return(nil)
	f.events.On("CallResponded", ctx, call, responder.ID).Once()
	f.notifier.On("Notify", ctx, mock.MatchedBy(func(msg notify.Message) bool {
		return strings.Contains(msg.Text, "Responder: Budi") && *msg.CallID == call.ID
	})).Once()

	updated, err := f.service.RespondToCall(ctx, f.tenantID, call.ID, responder.ID)

	require.NoError(t, err)
	assert.Equal(t, models.CallStatusInProgress, updated.Status)
	assert.Equal(t, f.now, *updated.RespondedAt)
	assert.Equal(t, responder.ID, *updated.ResponderID)
	f.assertExpectations(t)
}

func TestRespondToCall_RejectsNonActive(t *testing.T) {
	for _, status := range []models.CallStatus{models.CallStatusInProgress, models.CallStatusResolved} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			call := f.openCall(status)
			f.repos.Calls.On("GetByID", ctx, f.tenantID, call.ID).Return(call, nil)

			_, err := f.service.RespondToCall(ctx, f.tenantID, call.ID, uuid.New())

			assert.ErrorIs(t, err, services.ErrInvalidTransition)
			assert.Equal(t, string(status), services.GetErrorDetails(err)["status"])
			f.repos.Calls.AssertNotCalled(t, "MarkResponded", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
		})
	}
}

func TestRespondToCall_LostRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	call := f.openCall(models.CallStatusActive)
	responder := models.NewUser(f.tenantID, "Budi", "budi@example.com", "h", models.RoleTeam, nil)

	f.repos.Calls.On("GetByID", ctx, f.tenantID, call.ID).Return(call, nil)
	f.repos.Users.On("GetByID", ctx, f.tenantID, responder.ID).Return(responder, nil)
	f.repos.Calls.On("MarkResponded", ctx, f.tenantID, call.ID, responder.ID, f.now).Return(repositories.ErrConflict)

	_, err := f.service.RespondToCall(ctx, f.tenantID, call.ID, responder.ID)

	assert.ErrorIs(t, err, services.ErrConcurrentUpdate)
	assert.True(t, services.IsConflictError(err))
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestRespondToCall_UnknownCallOrUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	missing := uuid.New()
	f.repos.Calls.On("GetByID", ctx, f.tenantID, missing).Return(nil, repositories.ErrNotFound)

	_, err := f.service.RespondToCall(ctx, f.tenantID, missing, uuid.New())
	assert.ErrorIs(t, err, services.ErrCallNotFound)

	call := f.openCall(models.CallStatusActive)
	stranger := uuid.New()
	f.repos.Calls.On("GetByID", ctx, f.tenantID, call.ID).Return(call, nil)
	f.repos.Users.On("GetByID", ctx, f.tenantID, stranger).Return(nil, repositories.ErrNotFound)

	_, err = f.service.RespondToCall(ctx, f.tenantID, call.ID, stranger)
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestResolveCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	call := f.openCall(models.CallStatusInProgress)
	originalResponder := *call.ResponderID
	resolver := models.NewUser(f.tenantID, "Sari", "sari@example.com", "h", models.RoleTeam, nil)

	f.repos.Calls.On("GetByID", ctx, f.tenantID, call.ID).Return(call, nil)
	f.repos.Users.On("GetByID", ctx, f.tenantID, resolver.ID).Return(resolver, nil)
	mocks.ExpectTransaction(f.txMgr, ctx, true)
	f.repos.Calls.On("MarkResolved", ctx, f.tenantID, call.ID, resolver.ID, f.now).Return(nil)
	f.repos.Reports.On("Create", ctx, mock.MatchedBy(func(r *models.Report) bool {
		return r.CallID == call.ID && r.Content == "replaced belt"
	})).Return(nil)
	f.events.On("CallResolved", ctx, call, resolver.ID).Once()
	f.notifier.On("Notify", ctx, mock.MatchedBy(func(msg notify.Message) bool {
		return strings.Contains(msg.Text, "Report: replaced belt")
	})).Once()

	resolved, err := f.service.ResolveCall(ctx, f.tenantID, call.ID, "  replaced belt \n", resolver.ID)

	require.NoError(t, err)
	assert.Equal(t, models.CallStatusResolved, resolved.Status)
	assert.Equal(t, resolver.ID, *resolved.ResolverID)
	assert.Equal(t, originalResponder, *resolved.ResponderID)
	require.NotNil(t, resolved.Report)
	assert.Equal(t, "replaced belt", resolved.Report.Content)
	assert.Equal(t, 1, testutil.CollectAndCount(f.metrics.ResolutionDuration))
	f.assertExpectations(t)
}

func TestResolveCall_FromActiveBackfillsResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	call := f.openCall(models.CallStatusActive)
	resolver := models.NewUser(f.tenantID, "Sari", "sari@example.com", "h", models.RoleTeam, nil)

	f.repos.Calls.On("GetByID", ctx, f.tenantID, call.ID).Return(call, nil)
	f.repos.Users.On("GetByID", ctx, f.tenantID, resolver.ID).Return(resolver, nil)
	mocks.ExpectTransaction(f.txMgr, ctx, true)
	f.repos.Calls.On("MarkResolved", ctx, f.tenantID, call.ID, resolver.ID, f.now).Return(nil)
	f.repos.Reports.On("Create", ctx, mock.Anything).Return(nil)
	f.events.On("CallResolved", ctx, mock.Anything, resolver.ID)
	f.notifier.On("Notify", ctx, mock.Anything)

	resolved, err := f.service.ResolveCall(ctx, f.tenantID, call.ID, "reset breaker", resolver.ID)

	require.NoError(t, err)
	require.NotNil(t, resolved.RespondedAt)
	assert.Equal(t, f.now, *resolved.RespondedAt)
	assert.Equal(t, resolver.ID, *resolved.ResponderID)
	d, ok := resolved.ResponseDuration()
	assert.True(t, ok)
	assert.Zero(t, d)
}

func TestResolveCall_EmptyReportRejectedBeforeAnyRead(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.ResolveCall(context.Background(), f.tenantID, uuid.New(), "   ", uuid.New())

	assert.ErrorIs(t, err, services.ErrEmptyReport)
	assert.True(t, services.IsValidationError(err))
	f.repos.Calls.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolveCall_AlreadyResolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	call := f.openCall(models.CallStatusResolved)
	f.repos.Calls.On("GetByID", ctx, f.tenantID, call.ID).Return(call, nil)

	_, err := f.service.ResolveCall(ctx, f.tenantID, call.ID, "again", uuid.New())

	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CallTransitions.WithLabelValues("resolve", "rejected")))
}

func TestResolveCall_ReportFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	call := f.openCall(models.CallStatusInProgress)
	resolver := models.NewUser(f.tenantID, "Sari", "sari@example.com", "h", models.RoleTeam, nil)

	f.repos.Calls.On("GetByID", ctx, f.tenantID, call.ID).Return(call, nil)
	f.repos.Users.On("GetByID", ctx, f.tenantID, resolver.ID).Return(resolver, nil)
	tx := mocks.ExpectTransaction(f.txMgr, ctx, false)
	f.repos.Calls.On("MarkResolved", ctx, f.tenantID, call.ID, resolver.ID, f.now).Return(nil)
	f.repos.Reports.On("Create", ctx, mock.Anything).Return(errors.New("disk full"))

	_, err := f.service.ResolveCall(ctx, f.tenantID, call.ID, "replaced belt", resolver.ID)

	assert.True(t, services.IsInternalError(err))
	tx.AssertExpectations(t)
	tx.AssertNotCalled(t, "Commit")
	assert.Equal(t, models.CallStatusInProgress, call.Status)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	f.events.AssertNotCalled(t, "CallResolved", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("resolved call carries report", func(t *testing.T) {
		call := f.openCall(models.CallStatusResolved)
		report := models.NewReport(call.ID, "fixed", f.now)
		f.repos.Calls.On("GetByID", ctx, f.tenantID, call.ID).Return(call, nil)
		f.repos.Reports.On("GetByCallID", ctx, call.ID).Return(report, nil)

		got, err := f.service.GetCall(ctx, f.tenantID, call.ID)

		require.NoError(t, err)
		assert.Equal(t, report, got.Report)
	})

	t.Run("open call has no report", func(t *testing.T) {
		call := f.openCall(models.CallStatusActive)
		f.repos.Calls.On("GetByID", ctx, f.tenantID, call.ID).Return(call, nil)
		f.repos.Reports.On("GetByCallID", ctx, call.ID).Return(nil, repositories.ErrNotFound)

		got, err := f.service.GetCall(ctx, f.tenantID, call.ID)

		require.NoError(t, err)
		assert.Nil(t, got.Report)
	})

	t.Run("call of another tenant", func(t *testing.T) {
		other := uuid.New()
		f.repos.Calls.On("GetByID", ctx, f.tenantID, other).Return(nil, repositories.ErrNotFound)

		_, err := f.service.GetCall(ctx, f.tenantID, other)

		assert.ErrorIs(t, err, services.ErrCallNotFound)
	})
}

package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/repositories"
	"go.uber.org/zap"
)

var callColumnNames = []string{
	"id", "number", "tenant_id", "machine_id", "target_division_id", "division_name",
	"status", "created_at", "responded_at", "resolved_at",
	"responder_id", "responder_name", "resolver_id", "resolver_name",
	"machine_name", "machine_code", "location_id", "location_name",
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return WrapDB(sqlDB, zap.NewNop()), mock
}

func TestCallRepository_NextNumber(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCallRepository(db, zap.NewNop())
	tenantID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO call_sequences")).
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"next_number"}).AddRow(int64(42)))

	next, err := repo.NextNumber(context.Background(), tenantID)

	require.NoError(t, err)
	assert.Equal(t, int64(42), next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallRepository_Create(t *testing.T) {
	tenantID := uuid.New()
	machineID := uuid.New()

	t.Run("unassigned call stores null division", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCallRepository(db, zap.NewNop())
		call := models.NewCall(tenantID, machineID, models.Unassigned(), time.Now())
		call.Number = 1

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO calls")).
			WithArgs(call.ID, int64(1), tenantID, machineID, nil, "ACTIVE", call.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(context.Background(), call))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second open call for machine is a conflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCallRepository(db, zap.NewNop())
		call := models.NewCall(tenantID, machineID, models.Unassigned(), time.Now())

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO calls")).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "calls_one_open_per_machine"})

		err := repo.Create(context.Background(), call)

		require.Error(t, err)
		assert.True(t, errors.Is(err, repositories.ErrConflict))
		assert.Equal(t, "machine_id", repositories.ConflictField(err))
	})
}

func TestCallRepository_GetByID(t *testing.T) {
	tenantID := uuid.New()
	callID := uuid.New()

	t.Run("scans joined fields and division route", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCallRepository(db, zap.NewNop())
		divisionID := uuid.New()
		responderID := uuid.New()
		created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
		responded := created.Add(3 * time.Minute)

		rows := sqlmock.NewRows(callColumnNames).AddRow(
			callID.String(), int64(7), tenantID.String(), uuid.New().String(), divisionID.String(), "Electrical",
			"IN_PROGRESS", created, responded, nil,
			responderID.String(), "Sari", nil, nil,
			"Press 1", "PR-01", uuid.New().String(), "Line A",
		)
		mock.ExpectQuery(regexp.QuoteMeta("FROM calls c")).
			WithArgs(tenantID, callID).
			WillReturnRows(rows)

		call, err := repo.GetByID(context.Background(), tenantID, callID)

		require.NoError(t, err)
		assert.Equal(t, int64(7), call.Number)
		assert.Equal(t, models.CallStatusInProgress, call.Status)
		assert.Equal(t, "Electrical", call.Route.Label())
		got, ok := call.Route.DivisionID()
		assert.True(t, ok)
		assert.Equal(t, divisionID, got)
		require.NotNil(t, call.RespondedAt)
		assert.Equal(t, responded, *call.RespondedAt)
		assert.Nil(t, call.ResolvedAt)
		assert.Equal(t, "Sari", call.ResponderName)
		assert.Nil(t, call.ResolverID)
		assert.Equal(t, "Line A", call.LocationName)
	})

	t.Run("missing call in tenant is not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCallRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("FROM calls c")).
			WithArgs(tenantID, callID).
			WillReturnRows(sqlmock.NewRows(callColumnNames))

		_, err := repo.GetByID(context.Background(), tenantID, callID)

		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestCallRepository_Transitions(t *testing.T) {
	tenantID := uuid.New()
	callID := uuid.New()
	actorID := uuid.New()
	at := time.Now()

	t.Run("respond only matches active calls", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCallRepository(db, zap.NewNop())

		mock.ExpectExec(regexp.QuoteMeta("WHERE tenant_id = $1 AND id = $2 AND status = 'ACTIVE'")).
			WithArgs(tenantID, callID, at, actorID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.MarkResponded(context.Background(), tenantID, callID, actorID, at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("respond on a call that moved on is a conflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCallRepository(db, zap.NewNop())

		mock.ExpectExec(regexp.QuoteMeta("UPDATE calls")).
			WithArgs(tenantID, callID, at, actorID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkResponded(context.Background(), tenantID, callID, actorID, at)

		assert.ErrorIs(t, err, repositories.ErrConflict)
	})

	t.Run("resolve backfills responder and records resolver", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewCallRepository(db, zap.NewNop())

		mock.ExpectExec(regexp.QuoteMeta("resolver_id = $4")).
			WithArgs(tenantID, callID, at, actorID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.MarkResolved(context.Background(), tenantID, callID, actorID, at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestResolveRollsBackWhenReportInsertFails(t *testing.T) {
	db, mock := newMockDB(t)
	logger := zap.NewNop()
	tm := NewTransactionManager(db, logger)
	calls := NewCallRepository(db, logger)
	reports := NewReportRepository(db, logger)

	tenantID := uuid.New()
	callID := uuid.New()
	resolverID := uuid.New()
	at := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE calls")).
		WithArgs(tenantID, callID, at, resolverID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reports")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := tm.InTransaction(context.Background(), func(ctx context.Context, tx repositories.Transaction) error {
		if err := calls.MarkResolved(ctx, tenantID, callID, resolverID, at); err != nil {
			return err
		}
		return reports.Create(ctx, models.NewReport(callID, "replaced bearing", at))
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create report")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildCallListQuery(t *testing.T) {
	tenantID := uuid.New()
	locationID := uuid.New()
	divisionID := uuid.New()
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	t.Run("tenant is always the first argument", func(t *testing.T) {
		query, args := buildCallListQuery(tenantID, repositories.CallFilter{})

		require.Len(t, args, 1)
		assert.Equal(t, tenantID, args[0])
		assert.Contains(t, query, "WHERE c.tenant_id = $1")
		assert.Contains(t, query, "ORDER BY c.created_at DESC")
	})

	t.Run("conjunction of all predicates", func(t *testing.T) {
		query, args := buildCallListQuery(tenantID, repositories.CallFilter{
			Statuses:    []models.CallStatus{models.CallStatusActive, models.CallStatusInProgress},
			LocationID:  &locationID,
			DivisionID:  &divisionID,
			CreatedFrom: &from,
			CreatedTo:   &to,
			Limit:       50,
		})

		assert.Contains(t, query, "c.status = ANY($2)")
		assert.Contains(t, query, "m.location_id = $3")
		assert.Contains(t, query, "c.target_division_id = $4")
		assert.Contains(t, query, "c.created_at >= $5")
		assert.Contains(t, query, "c.created_at < $6")
		assert.Contains(t, query, "LIMIT $7")
		assert.Len(t, args, 7)
		assert.Equal(t, tenantID, args[0])
	})

	t.Run("queue order for unassigned board", func(t *testing.T) {
		query, args := buildCallListQuery(tenantID, repositories.CallFilter{
			Unassigned: true,
			DivisionID: &divisionID,
			Order:      repositories.OldestFirst,
		})

		assert.Contains(t, query, "c.target_division_id IS NULL")
		assert.NotContains(t, query, "c.target_division_id = $")
		assert.Contains(t, query, "ORDER BY c.created_at ASC")
		assert.Len(t, args, 1)
	})
}

func TestCallRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCallRepository(db, zap.NewNop())
	tenantID := uuid.New()
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(callColumnNames).
		AddRow(uuid.New().String(), int64(2), tenantID.String(), uuid.New().String(), nil, nil,
			"ACTIVE", created.Add(time.Hour), nil, nil, nil, nil, nil, nil,
			"Lathe", "LT-01", uuid.New().String(), "Line B").
		AddRow(uuid.New().String(), int64(1), tenantID.String(), uuid.New().String(), nil, nil,
			"ACTIVE", created, nil, nil, nil, nil, nil, nil,
			"Press", "PR-01", uuid.New().String(), "Line A")

	mock.ExpectQuery(regexp.QuoteMeta("FROM calls c")).
		WithArgs(tenantID, sqlmock.AnyArg()).
		WillReturnRows(rows)

	calls, err := repo.List(context.Background(), tenantID, repositories.CallFilter{
		Statuses: []models.CallStatus{models.CallStatusActive},
	})

	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, int64(2), calls[0].Number)
	assert.False(t, calls[0].Route.IsAssigned())
	assert.Equal(t, "Maintenance", calls[0].Route.Label())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCallRepository_Counts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCallRepository(db, zap.NewNop())
	tenantID := uuid.New()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER")).
		WithArgs(tenantID, start, end).
		WillReturnRows(sqlmock.NewRows([]string{"a", "b", "c", "d"}).AddRow(3, 1, 5, 9))

	counts, err := repo.Counts(context.Background(), tenantID, start, end)

	require.NoError(t, err)
	assert.Equal(t, &repositories.CallCounts{Active: 3, InProgress: 1, ResolvedToday: 5, CreatedToday: 9}, counts)
}

package ratelimit

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	lockQuery   = regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")
	countQuery  = regexp.QuoteMeta("SELECT COUNT(*), MIN(occurred_at)")
	insertQuery = regexp.QuoteMeta("INSERT INTO rate_limit_events")
)

func expectLock(mock sqlmock.Sqlmock, scopeKey string) {
	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs(scopeKey).WillReturnResult(sqlmock.NewResult(0, 0))
}

func newTestService(t *testing.T, now time.Time) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	service := NewService(db, zap.NewNop())
	service.now = func() time.Time { return now }
	return service, mock
}

func countRows(count int, oldest interface{}) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count", "min"}).AddRow(count, oldest)
}

func TestService_Allow(t *testing.T) {
	now := time.Date(2024, 5, 6, 8, 30, 0, 0, time.UTC)
	rule := Rule{Scope: "scan", PerMinute: 5, PerHour: 20}

	t.Run("no limits skips the database", func(t *testing.T) {
		service, mock := newTestService(t, now)

		result, err := service.Allow(context.Background(), Rule{Scope: "scan"}, "10.0.0.1")

		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("under both limits records the attempt", func(t *testing.T) {
		service, mock := newTestService(t, now)
		expectLock(mock, "scan:10.0.0.1")
		mock.ExpectQuery(countQuery).
			WithArgs("scan:10.0.0.1", now.Add(-time.Minute)).
			WillReturnRows(countRows(2, now.Add(-30*time.Second)))
		mock.ExpectQuery(countQuery).
			WithArgs("scan:10.0.0.1", now.Add(-time.Hour)).
			WillReturnRows(countRows(18, now.Add(-50*time.Minute)))
		mock.ExpectExec(insertQuery).
			WithArgs("scan:10.0.0.1", now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := service.Allow(context.Background(), rule, "10.0.0.1")

		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 1, result.Remaining)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("full minute window rejects without recording", func(t *testing.T) {
		service, mock := newTestService(t, now)
		oldest := now.Add(-40 * time.Second)
		expectLock(mock, "scan:10.0.0.1")
		mock.ExpectQuery(countQuery).
			WithArgs("scan:10.0.0.1", now.Add(-time.Minute)).
			WillReturnRows(countRows(5, oldest))
		mock.ExpectRollback()

		result, err := service.Allow(context.Background(), rule, "10.0.0.1")

		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, WindowMinute, result.Window)
		assert.Equal(t, oldest.Add(time.Minute), result.ResetAt)
		assert.Contains(t, result.Reason, "5 requests per minute")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("full hour window rejects", func(t *testing.T) {
		service, mock := newTestService(t, now)
		expectLock(mock, "scan:10.0.0.1")
		mock.ExpectQuery(countQuery).WillReturnRows(countRows(0, nil))
		mock.ExpectQuery(countQuery).WillReturnRows(countRows(20, now.Add(-59*time.Minute)))
		mock.ExpectRollback()

		result, err := service.Allow(context.Background(), rule, "10.0.0.1")

		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, WindowHour, result.Window)
		assert.Equal(t, now.Add(time.Minute), result.ResetAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("disabled window is not queried", func(t *testing.T) {
		service, mock := newTestService(t, now)
		expectLock(mock, "login:acme:10.0.0.1")
		mock.ExpectQuery(countQuery).
			WithArgs("login:acme:10.0.0.1", now.Add(-time.Hour)).
			WillReturnRows(countRows(0, nil))
		mock.ExpectExec(insertQuery).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		result, err := service.Allow(context.Background(), Rule{Scope: "login", PerHour: 3}, "acme:10.0.0.1")

		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 2, result.Remaining)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query failure is returned", func(t *testing.T) {
		service, mock := newTestService(t, now)
		expectLock(mock, "scan:10.0.0.1")
		mock.ExpectQuery(countQuery).WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		result, err := service.Allow(context.Background(), rule, "10.0.0.1")

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "minute window")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock failure is returned", func(t *testing.T) {
		service, mock := newTestService(t, now)
		mock.ExpectBegin()
		mock.ExpectExec(lockQuery).WillReturnError(errors.New("lock timeout"))
		mock.ExpectRollback()

		result, err := service.Allow(context.Background(), rule, "10.0.0.1")

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "lock rate limit key")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestService_CleanupOldEvents(t *testing.T) {
	now := time.Date(2024, 5, 6, 8, 30, 0, 0, time.UTC)
	service, mock := newTestService(t, now)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rate_limit_events")).
		WithArgs(now.Add(-2 * time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 7))

	rows, err := service.CleanupOldEvents(context.Background(), 2*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, int64(7), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_StartCleanupWorkerStopsWithContext(t *testing.T) {
	service, _ := newTestService(t, time.Now())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		service.StartCleanupWorker(ctx, time.Hour, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup worker did not stop")
	}
}

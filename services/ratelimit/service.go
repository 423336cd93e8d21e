package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Window is the length of a sliding limit window
type Window string

const (
	WindowMinute Window = "minute"
	WindowHour   Window = "hour"
)

func (w Window) duration() time.Duration {
	if w == WindowHour {
		return time.Hour
	}
	return time.Minute
}

// Rule caps the requests of one endpoint scope per caller. A zero limit
// disables that window.
type Rule struct {
	Scope     string
	PerMinute int
	PerHour   int
}

// Result is the outcome of Allow
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Window    Window
	Reason    string
}

// Service is a sliding window rate limiter backed by PostgreSQL, so every
// API replica shares the same counters.
type Service struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a new rate limit Service
func NewService(db *sql.DB, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Allow checks every window of rule for key. An allowed attempt is recorded;
// a rejected one is not. Check and record run in one transaction holding an
// advisory lock on the scope key, so concurrent attempts for one caller are
// counted one after another.
func (s *Service) Allow(ctx context.Context, rule Rule, key string) (*Result, error) {
	if rule.PerMinute <= 0 && rule.PerHour <= 0 {
		return &Result{Allowed: true, Remaining: -1}, nil
	}

	scopeKey := rule.Scope + ":" + key
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin rate limit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, scopeKey); err != nil {
		return nil, fmt.Errorf("failed to lock rate limit key: %w", err)
	}

	remaining := -1
	for _, w := range []struct {
		window Window
		limit  int
	}{
		{WindowMinute, rule.PerMinute},
		{WindowHour, rule.PerHour},
	} {
		if w.limit <= 0 {
			continue
		}
		left, resetAt, err := checkWindow(ctx, tx, scopeKey, w.window, now, w.limit)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s window: %w", w.window, err)
		}
		if left <= 0 {
			return &Result{
				Allowed: false,
				ResetAt: resetAt,
				Window:  w.window,
				Reason:  fmt.Sprintf("exceeded %d requests per %s", w.limit, w.window),
			}, nil
		}
		if remaining < 0 || left < remaining {
			remaining = left
		}
	}

	if err := recordEvent(ctx, tx, scopeKey, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rate limit event: %w", err)
	}
	return &Result{Allowed: true, Remaining: remaining - 1}, nil
}

// checkWindow returns how many requests are still allowed in the window
// ending at now and when the oldest counted request leaves it.
func checkWindow(ctx context.Context, tx *sql.Tx, scopeKey string, window Window, now time.Time, limit int) (int, time.Time, error) {
	query := `
		SELECT COUNT(*), MIN(occurred_at)
		FROM rate_limit_events
		WHERE scope_key = $1
		  AND occurred_at > $2
	`

	var count int
	var oldest sql.NullTime
	if err := tx.QueryRowContext(ctx, query, scopeKey, now.Add(-window.duration())).Scan(&count, &oldest); err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to query rate limit: %w", err)
	}

	resetAt := now.Add(window.duration())
	if oldest.Valid {
		resetAt = oldest.Time.Add(window.duration())
	}
	return limit - count, resetAt, nil
}

func recordEvent(ctx context.Context, tx *sql.Tx, scopeKey string, at time.Time) error {
	query := `
		INSERT INTO rate_limit_events (scope_key, occurred_at)
		VALUES ($1, $2)
	`

	if _, err := tx.ExecContext(ctx, query, scopeKey, at); err != nil {
		return fmt.Errorf("failed to insert rate limit event: %w", err)
	}
	return nil
}

// CleanupOldEvents deletes events older than olderThan
func (s *Service) CleanupOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)

	result, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup rate limit events: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	s.logger.Debug("cleaned up rate limit events",
		zap.Int64("rows_deleted", rows),
		zap.Time("cutoff", cutoff))
	return rows, nil
}

// StartCleanupWorker deletes expired events every interval until ctx is done.
// It blocks, so run it in its own goroutine.
func (s *Service) StartCleanupWorker(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("started rate limit cleanup worker",
		zap.Duration("interval", interval),
		zap.Duration("retention", retention))

	for {
		select {
		case <-ticker.C:
			if _, err := s.CleanupOldEvents(ctx, retention); err != nil {
				s.logger.Error("failed to cleanup rate limit events", zap.Error(err))
			}
		case <-ctx.Done():
			s.logger.Info("stopping rate limit cleanup worker")
			return
		}
	}
}

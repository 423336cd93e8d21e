package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/repositories"
	"go.uber.org/zap"
)

// ReportRepository implements the repositories.ReportRepository interface
type ReportRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *DB, logger *zap.Logger) repositories.ReportRepository {
	return &ReportRepository{db: db, logger: logger}
}

// Create inserts a resolution report
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (id, call_id, content, created_at)
		VALUES ($1, $2, $3, $4)
	`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, report.ID, report.CallID, report.Content, report.CreatedAt); err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	r.logger.Debug("report created", zap.String("call_id", report.CallID.String()))
	return nil
}

// GetByCallID returns the latest report for a call
func (r *ReportRepository) GetByCallID(ctx context.Context, callID uuid.UUID) (*models.Report, error) {
	query := `
		SELECT id, call_id, content, created_at
		FROM reports
		WHERE call_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	executor := GetExecutor(ctx, r.db)
	report := &models.Report{}
	err := executor.QueryRowContext(ctx, query, callID).Scan(
		&report.ID,
		&report.CallID,
		&report.Content,
		&report.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

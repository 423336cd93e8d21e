package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/repositories"
	"go.uber.org/zap"
)

// CallEventRepository implements the repositories.CallEventRepository interface
type CallEventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCallEventRepository creates a new call event repository
func NewCallEventRepository(db *DB, logger *zap.Logger) repositories.CallEventRepository {
	return &CallEventRepository{
		db:     db,
		logger: logger,
	}
}

const callEventColumns = `id, tenant_id, call_id, actor_id, action, resource_type, resource_id, details, request_id, occurred_at`

// Insert appends an event to the trail
func (r *CallEventRepository) Insert(ctx context.Context, event *models.CallEvent) error {
	query := `
		INSERT INTO call_events (` + callEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var details interface{}
	if len(event.Details) > 0 {
		details = []byte(event.Details)
	}

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		event.ID,
		event.TenantID,
		event.CallID,
		event.ActorID,
		event.Action,
		event.ResourceType,
		event.ResourceID,
		details,
		event.RequestID,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert call event: %w", err)
	}

	r.logger.Debug("call event inserted", zap.String("id", event.ID.String()), zap.String("action", string(event.Action)))
	return nil
}

// ListByCall returns a call's events in the order they happened
func (r *CallEventRepository) ListByCall(ctx context.Context, tenantID, callID uuid.UUID) ([]*models.CallEvent, error) {
	query := `
		SELECT ` + callEventColumns + `
		FROM call_events
		WHERE tenant_id = $1 AND call_id = $2
		ORDER BY occurred_at ASC
	`
	return r.query(ctx, query, tenantID, callID)
}

// ListByTenant returns a tenant's most recent events with pagination
func (r *CallEventRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.CallEvent, error) {
	query := `
		SELECT ` + callEventColumns + `
		FROM call_events
		WHERE tenant_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.query(ctx, query, tenantID, limit, offset)
}

func (r *CallEventRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.CallEvent, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query call events: %w", err)
	}
	defer rows.Close()

	events := []*models.CallEvent{}
	for rows.Next() {
		event := &models.CallEvent{}
		var (
			callID     uuid.NullUUID
			actorID    uuid.NullUUID
			resourceID uuid.NullUUID
			details    []byte
			requestID  sql.NullString
		)
		if err := rows.Scan(
			&event.ID,
			&event.TenantID,
			&callID,
			&actorID,
			&event.Action,
			&event.ResourceType,
			&resourceID,
			&details,
			&requestID,
			&event.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan call event: %w", err)
		}
		if callID.Valid {
			event.CallID = &callID.UUID
		}
		if actorID.Valid {
			event.ActorID = &actorID.UUID
		}
		if resourceID.Valid {
			event.ResourceID = &resourceID.UUID
		}
		event.Details = details
		event.RequestID = requestID.String
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating call events: %w", err)
	}
	return events, nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/repositories"
	"go.uber.org/zap"
)

// CallRepository implements the repositories.CallRepository interface
type CallRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCallRepository creates a new call repository
func NewCallRepository(db *DB, logger *zap.Logger) repositories.CallRepository {
	return &CallRepository{
		db:     db,
		logger: logger,
	}
}

// callSelect joins the display fields every call view needs. $1 is always the tenant.
const callSelect = `
		SELECT c.id, c.number, c.tenant_id, c.machine_id, c.target_division_id, d.name,
		       c.status, c.created_at, c.responded_at, c.resolved_at,
		       c.responder_id, ru.name, c.resolver_id, su.name,
		       m.name, m.code, m.location_id, l.name
		FROM calls c
		JOIN machines m ON m.id = c.machine_id AND m.tenant_id = c.tenant_id
		JOIN locations l ON l.id = m.location_id
		LEFT JOIN divisions d ON d.id = c.target_division_id
		LEFT JOIN users ru ON ru.id = c.responder_id
		LEFT JOIN users su ON su.id = c.resolver_id
		WHERE c.tenant_id = $1`

// NextNumber allocates the next per-tenant ticket number
func (r *CallRepository) NextNumber(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	query := `
		INSERT INTO call_sequences (tenant_id, next_number)
		VALUES ($1, 1)
		ON CONFLICT (tenant_id)
		DO UPDATE SET next_number = call_sequences.next_number + 1
		RETURNING next_number
	`

	var next int64
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, query, tenantID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to allocate call number: %w", err)
	}
	return next, nil
}

// Create inserts an ACTIVE call
func (r *CallRepository) Create(ctx context.Context, call *models.Call) error {
	query := `
		INSERT INTO calls (id, number, tenant_id, machine_id, target_division_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		call.ID,
		call.Number,
		call.TenantID,
		call.MachineID,
		call.Route.IDPtr(),
		call.Status,
		call.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create call: %w", mapWriteError(err))
	}

	r.logger.Debug("call created",
		zap.String("id", call.ID.String()),
		zap.Int64("number", call.Number),
		zap.String("machine_id", call.MachineID.String()))
	return nil
}

// GetByID retrieves a call within a tenant
func (r *CallRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Call, error) {
	query := callSelect + ` AND c.id = $2`

	executor := GetExecutor(ctx, r.db)
	call, err := scanCall(executor.QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return call, nil
}

// FindOpenByMachine returns the machine's non-resolved call
func (r *CallRepository) FindOpenByMachine(ctx context.Context, tenantID, machineID uuid.UUID) (*models.Call, error) {
	query := callSelect + ` AND c.machine_id = $2 AND c.status <> 'RESOLVED'
		ORDER BY c.created_at DESC
		LIMIT 1`

	executor := GetExecutor(ctx, r.db)
	call, err := scanCall(executor.QueryRowContext(ctx, query, tenantID, machineID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find open call: %w", err)
	}
	return call, nil
}

// MarkResponded moves an ACTIVE call to IN_PROGRESS
func (r *CallRepository) MarkResponded(ctx context.Context, tenantID, id, responderID uuid.UUID, at time.Time) error {
	query := `
		UPDATE calls
		SET status = 'IN_PROGRESS',
		    responded_at = $3,
		    responder_id = $4
		WHERE tenant_id = $1 AND id = $2 AND status = 'ACTIVE'
	`
	return r.execTransition(ctx, "respond", query, tenantID, id, at, responderID)
}

// MarkResolved moves an open call to RESOLVED. A call resolved straight from
// ACTIVE also gets respondedAt and responder so respondedAt stays set for every
// non-ACTIVE call.
func (r *CallRepository) MarkResolved(ctx context.Context, tenantID, id, resolverID uuid.UUID, at time.Time) error {
	query := `
		UPDATE calls
		SET status = 'RESOLVED',
		    resolved_at = $3,
		    resolver_id = $4,
		    responded_at = COALESCE(responded_at, $3),
		    responder_id = COALESCE(responder_id, $4)
		WHERE tenant_id = $1 AND id = $2 AND status IN ('ACTIVE', 'IN_PROGRESS')
	`
	return r.execTransition(ctx, "resolve", query, tenantID, id, at, resolverID)
}

func (r *CallRepository) execTransition(ctx context.Context, action, query string, tenantID, id uuid.UUID, at time.Time, actorID uuid.UUID) error {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, tenantID, id, at, actorID)
	if err != nil {
		return fmt.Errorf("failed to %s call: %w", action, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("call %s is not in a state that allows %s: %w", id, action, repositories.ErrConflict)
	}

	r.logger.Debug("call transitioned",
		zap.String("id", id.String()),
		zap.String("action", action))
	return nil
}

// List returns a tenant's calls matching filter
func (r *CallRepository) List(ctx context.Context, tenantID uuid.UUID, filter repositories.CallFilter) ([]*models.Call, error) {
	query, args := buildCallListQuery(tenantID, filter)

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	defer rows.Close()

	calls := []*models.Call{}
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating calls: %w", err)
	}
	return calls, nil
}

func buildCallListQuery(tenantID uuid.UUID, filter repositories.CallFilter) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(callSelect)
	args := []interface{}{tenantID}

	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		sb.WriteString(" AND c.status = ANY(" + next(pq.Array(statuses)) + ")")
	}
	if filter.MachineID != nil {
		sb.WriteString(" AND c.machine_id = " + next(*filter.MachineID))
	}
	if filter.LocationID != nil {
		sb.WriteString(" AND m.location_id = " + next(*filter.LocationID))
	}
	if filter.Unassigned {
		sb.WriteString(" AND c.target_division_id IS NULL")
	} else if filter.DivisionID != nil {
		sb.WriteString(" AND c.target_division_id = " + next(*filter.DivisionID))
	}
	if filter.CreatedFrom != nil {
		sb.WriteString(" AND c.created_at >= " + next(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		sb.WriteString(" AND c.created_at < " + next(*filter.CreatedTo))
	}

	if filter.Order == repositories.OldestFirst {
		sb.WriteString(" ORDER BY c.created_at ASC, c.number ASC")
	} else {
		sb.WriteString(" ORDER BY c.created_at DESC, c.number DESC")
	}
	if filter.Limit > 0 {
		sb.WriteString(" LIMIT " + next(filter.Limit))
	}

	return sb.String(), args
}

// Counts returns the dashboard tallies for the given day
func (r *CallRepository) Counts(ctx context.Context, tenantID uuid.UUID, dayStart, dayEnd time.Time) (*repositories.CallCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'ACTIVE'),
			COUNT(*) FILTER (WHERE status = 'IN_PROGRESS'),
			COUNT(*) FILTER (WHERE status = 'RESOLVED' AND resolved_at >= $2 AND resolved_at < $3),
			COUNT(*) FILTER (WHERE created_at >= $2 AND created_at < $3)
		FROM calls
		WHERE tenant_id = $1
	`

	counts := &repositories.CallCounts{}
	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query, tenantID, dayStart, dayEnd).Scan(
		&counts.Active,
		&counts.InProgress,
		&counts.ResolvedToday,
		&counts.CreatedToday,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count calls: %w", err)
	}
	return counts, nil
}

func scanCall(row rowScanner) (*models.Call, error) {
	call := &models.Call{}
	var (
		divisionID    uuid.NullUUID
		divisionName  sql.NullString
		respondedAt   sql.NullTime
		resolvedAt    sql.NullTime
		responderID   uuid.NullUUID
		responderName sql.NullString
		resolverID    uuid.NullUUID
		resolverName  sql.NullString
	)

	err := row.Scan(
		&call.ID,
		&call.Number,
		&call.TenantID,
		&call.MachineID,
		&divisionID,
		&divisionName,
		&call.Status,
		&call.CreatedAt,
		&respondedAt,
		&resolvedAt,
		&responderID,
		&responderName,
		&resolverID,
		&resolverName,
		&call.MachineName,
		&call.MachineCode,
		&call.LocationID,
		&call.LocationName,
	)
	if err != nil {
		return nil, err
	}

	if divisionID.Valid {
		call.Route = models.AssignedTo(divisionID.UUID, divisionName.String)
	} else {
		call.Route = models.Unassigned()
	}
	if respondedAt.Valid {
		call.RespondedAt = &respondedAt.Time
	}
	if resolvedAt.Valid {
		call.ResolvedAt = &resolvedAt.Time
	}
	if responderID.Valid {
		call.ResponderID = &responderID.UUID
		call.ResponderName = responderName.String
	}
	if resolverID.Valid {
		call.ResolverID = &resolverID.UUID
		call.ResolverName = resolverName.String
	}
	return call, nil
}

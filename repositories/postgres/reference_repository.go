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

// LocationRepository implements the repositories.LocationRepository interface
type LocationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *DB, logger *zap.Logger) repositories.LocationRepository {
	return &LocationRepository{db: db, logger: logger}
}

// Create creates a new location
func (r *LocationRepository) Create(ctx context.Context, location *models.Location) error {
	query := `
		INSERT INTO locations (id, tenant_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, location.ID, location.TenantID, location.Name, location.CreatedAt); err != nil {
		return fmt.Errorf("failed to create location: %w", mapWriteError(err))
	}

	r.logger.Debug("location created",
		zap.String("id", location.ID.String()),
		zap.String("tenant_id", location.TenantID.String()))
	return nil
}

// GetByID retrieves a location within a tenant
func (r *LocationRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Location, error) {
	query := `
		SELECT id, tenant_id, name, created_at
		FROM locations
		WHERE tenant_id = $1 AND id = $2
	`

	executor := GetExecutor(ctx, r.db)
	location := &models.Location{}
	err := executor.QueryRowContext(ctx, query, tenantID, id).Scan(
		&location.ID,
		&location.TenantID,
		&location.Name,
		&location.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return location, nil
}

// ListByTenant lists a tenant's locations by name
func (r *LocationRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Location, error) {
	query := `
		SELECT id, tenant_id, name, created_at
		FROM locations
		WHERE tenant_id = $1
		ORDER BY name ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	locations := []*models.Location{}
	for rows.Next() {
		location := &models.Location{}
		if err := rows.Scan(&location.ID, &location.TenantID, &location.Name, &location.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, location)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locations: %w", err)
	}
	return locations, nil
}

// MachineRepository implements the repositories.MachineRepository interface
type MachineRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMachineRepository creates a new machine repository
func NewMachineRepository(db *DB, logger *zap.Logger) repositories.MachineRepository {
	return &MachineRepository{db: db, logger: logger}
}

const machineColumns = `m.id, m.tenant_id, m.location_id, l.name, m.name, m.code, m.created_at`

// Create creates a new machine. The composite foreign key rejects a location
// from another tenant.
func (r *MachineRepository) Create(ctx context.Context, machine *models.Machine) error {
	query := `
		INSERT INTO machines (id, tenant_id, location_id, name, code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		machine.ID,
		machine.TenantID,
		machine.LocationID,
		machine.Name,
		machine.Code,
		machine.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create machine: %w", mapWriteError(err))
	}

	r.logger.Debug("machine created",
		zap.String("id", machine.ID.String()),
		zap.String("code", machine.Code))
	return nil
}

// GetByID retrieves a machine within a tenant
func (r *MachineRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Machine, error) {
	query := `
		SELECT ` + machineColumns + `
		FROM machines m
		JOIN locations l ON l.id = m.location_id
		WHERE m.tenant_id = $1 AND m.id = $2
	`
	return r.getOne(ctx, query, tenantID, id)
}

// GetByCode retrieves a machine by its QR code within a tenant
func (r *MachineRepository) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.Machine, error) {
	query := `
		SELECT ` + machineColumns + `
		FROM machines m
		JOIN locations l ON l.id = m.location_id
		WHERE m.tenant_id = $1 AND m.code = $2
	`
	return r.getOne(ctx, query, tenantID, code)
}

func (r *MachineRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.Machine, error) {
	executor := GetExecutor(ctx, r.db)
	machine := &models.Machine{}
	err := executor.QueryRowContext(ctx, query, args...).Scan(
		&machine.ID,
		&machine.TenantID,
		&machine.LocationID,
		&machine.LocationName,
		&machine.Name,
		&machine.Code,
		&machine.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get machine: %w", err)
	}
	return machine, nil
}

// ListByTenant lists a tenant's machines grouped by location
func (r *MachineRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Machine, error) {
	query := `
		SELECT ` + machineColumns + `
		FROM machines m
		JOIN locations l ON l.id = m.location_id
		WHERE m.tenant_id = $1
		ORDER BY l.name ASC, m.name ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	defer rows.Close()

	machines := []*models.Machine{}
	for rows.Next() {
		machine := &models.Machine{}
		if err := rows.Scan(
			&machine.ID,
			&machine.TenantID,
			&machine.LocationID,
			&machine.LocationName,
			&machine.Name,
			&machine.Code,
			&machine.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan machine: %w", err)
		}
		machines = append(machines, machine)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating machines: %w", err)
	}
	return machines, nil
}

// CountByTenant counts a tenant's machines
func (r *MachineRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM machines WHERE tenant_id = $1`

	var count int
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, query, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count machines: %w", err)
	}
	return count, nil
}

// DivisionRepository implements the repositories.DivisionRepository interface
type DivisionRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDivisionRepository creates a new division repository
func NewDivisionRepository(db *DB, logger *zap.Logger) repositories.DivisionRepository {
	return &DivisionRepository{db: db, logger: logger}
}

// Create creates a new division
func (r *DivisionRepository) Create(ctx context.Context, division *models.Division) error {
	query := `
		INSERT INTO divisions (id, tenant_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, division.ID, division.TenantID, division.Name, division.CreatedAt); err != nil {
		return fmt.Errorf("failed to create division: %w", mapWriteError(err))
	}

	r.logger.Debug("division created", zap.String("id", division.ID.String()), zap.String("name", division.Name))
	return nil
}

// GetByID retrieves a division within a tenant
func (r *DivisionRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Division, error) {
	query := `
		SELECT id, tenant_id, name, created_at
		FROM divisions
		WHERE tenant_id = $1 AND id = $2
	`

	executor := GetExecutor(ctx, r.db)
	division := &models.Division{}
	err := executor.QueryRowContext(ctx, query, tenantID, id).Scan(
		&division.ID,
		&division.TenantID,
		&division.Name,
		&division.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get division: %w", err)
	}
	return division, nil
}

// ListByTenant lists a tenant's divisions by name
func (r *DivisionRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Division, error) {
	query := `
		SELECT id, tenant_id, name, created_at
		FROM divisions
		WHERE tenant_id = $1
		ORDER BY name ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list divisions: %w", err)
	}
	defer rows.Close()

	divisions := []*models.Division{}
	for rows.Next() {
		division := &models.Division{}
		if err := rows.Scan(&division.ID, &division.TenantID, &division.Name, &division.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan division: %w", err)
		}
		divisions = append(divisions, division)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating divisions: %w", err)
	}
	return divisions, nil
}

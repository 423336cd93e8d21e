package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upb/andon-board/models"
)

var (
	// ErrNotFound is returned when no row matches the tenant-scoped lookup.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write violates a uniqueness rule or a
	// conditional update matched no row in the expected state.
	ErrConflict = errors.New("record conflicts with existing data")
)

// ConflictError carries the column a unique violation was raised on.
type ConflictError struct {
	Constraint string
	Field      string
	Err        error
}

func (e *ConflictError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("conflict on %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("conflict on %s: %v", e.Constraint, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConflict) hold for every ConflictError.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ConflictField returns the conflicting field if err is a ConflictError.
func ConflictField(err error) string {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Field
	}
	return ""
}

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction. The returned Transaction's Context
	// carries the transaction so repositories called with it join it.
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error

	// Context returns the context bound to this transaction
	Context() context.Context
}

// TenantRepository handles tenant data operations
type TenantRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
}

// LocationRepository handles location data operations
type LocationRepository interface {
	Create(ctx context.Context, location *models.Location) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Location, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Location, error)
}

// MachineRepository handles machine data operations
type MachineRepository interface {
	Create(ctx context.Context, machine *models.Machine) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Machine, error)

	// GetByCode resolves a scanned QR code within the tenant
	GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.Machine, error)

	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Machine, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// DivisionRepository handles division data operations
type DivisionRepository interface {
	Create(ctx context.Context, division *models.Division) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Division, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Division, error)
}

// UserRepository handles user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.User, error)

	// GetByEmail is not tenant scoped; email is globally unique and used at login
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.User, error)
}

// SortOrder controls call listing order.
type SortOrder int

const (
	// NewestFirst is history order.
	NewestFirst SortOrder = iota
	// OldestFirst is queue order for live boards.
	OldestFirst
)

// CallFilter is a conjunction of optional predicates over a tenant's calls.
type CallFilter struct {
	Statuses    []models.CallStatus
	MachineID   *uuid.UUID
	LocationID  *uuid.UUID
	DivisionID  *uuid.UUID
	Unassigned  bool // only calls with no target division
	CreatedFrom *time.Time
	CreatedTo   *time.Time // exclusive
	Order       SortOrder
	Limit       int
}

// CallCounts are the dashboard tallies for a tenant.
type CallCounts struct {
	Active        int `json:"active_calls"`
	InProgress    int `json:"in_progress_calls"`
	ResolvedToday int `json:"resolved_today"`
	CreatedToday  int `json:"calls_today"`
}

// CallRepository handles call data operations
type CallRepository interface {
	// NextNumber allocates the next ticket number for the tenant
	NextNumber(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// Create inserts an ACTIVE call. A second open call for the same machine
	// fails with a ConflictError on field machine_id.
	Create(ctx context.Context, call *models.Call) error

	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Call, error)

	// FindOpenByMachine returns the machine's non-resolved call or ErrNotFound
	FindOpenByMachine(ctx context.Context, tenantID, machineID uuid.UUID) (*models.Call, error)

	// MarkResponded moves an ACTIVE call to IN_PROGRESS. Returns ErrConflict
	// if the call is no longer ACTIVE.
	MarkResponded(ctx context.Context, tenantID, id, responderID uuid.UUID, at time.Time) error

	// MarkResolved moves an open call to RESOLVED and records the resolver.
	// Returns ErrConflict if the call is already resolved.
	MarkResolved(ctx context.Context, tenantID, id, resolverID uuid.UUID, at time.Time) error

	List(ctx context.Context, tenantID uuid.UUID, filter CallFilter) ([]*models.Call, error)
	Counts(ctx context.Context, tenantID uuid.UUID, dayStart, dayEnd time.Time) (*CallCounts, error)
}

// ReportRepository handles resolution reports
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByCallID(ctx context.Context, callID uuid.UUID) (*models.Report, error)
}

// CallEventRepository handles the audit trail
type CallEventRepository interface {
	Insert(ctx context.Context, event *models.CallEvent) error
	ListByCall(ctx context.Context, tenantID, callID uuid.UUID) ([]*models.CallEvent, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.CallEvent, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Tenants    TenantRepository
	Locations  LocationRepository
	Machines   MachineRepository
	Divisions  DivisionRepository
	Users      UserRepository
	Calls      CallRepository
	Reports    ReportRepository
	CallEvents CallEventRepository
}

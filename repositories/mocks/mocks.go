// Package mocks provides testify mocks of the repository interfaces for
// service tests.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/repositories"
)

// TransactionManager is a mock implementation of repositories.TransactionManager
type TransactionManager struct {
	mock.Mock
}

func (m *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(repositories.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}

// Transaction is a mock implementation of repositories.Transaction
type Transaction struct {
	mock.Mock
}

func (m *Transaction) Commit() error {
	return m.Called().Error(0)
}

func (m *Transaction) Rollback() error {
	return m.Called().Error(0)
}

func (m *Transaction) Context() context.Context {
	return m.Called().Get(0).(context.Context)
}

// ExpectTransaction wires a transaction that hands out ctx and commits or
// rolls back as told.
func ExpectTransaction(txMgr *TransactionManager, ctx context.Context, commit bool) *Transaction {
	tx := new(Transaction)
	txMgr.On("Begin", mock.Anything).Return(tx, nil).Once()
	tx.On("Context").Return(ctx)
	if commit {
		tx.On("Commit").Return(nil).Once()
	} else {
		tx.On("Rollback").Return(nil).Once()
	}
	return tx
}

// TenantRepository is a mock implementation of repositories.TenantRepository
type TenantRepository struct {
	mock.Mock
}

func (m *TenantRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	return m.Called(ctx, tenant).Error(0)
}

func (m *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	args := m.Called(ctx, id)
	if t := args.Get(0); t != nil {
		return t.(*models.Tenant), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TenantRepository) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	args := m.Called(ctx, slug)
	if t := args.Get(0); t != nil {
		return t.(*models.Tenant), args.Error(1)
	}
	return nil, args.Error(1)
}

// LocationRepository is a mock implementation of repositories.LocationRepository
type LocationRepository struct {
	mock.Mock
}

func (m *LocationRepository) Create(ctx context.Context, location *models.Location) error {
	return m.Called(ctx, location).Error(0)
}

func (m *LocationRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Location, error) {
	args := m.Called(ctx, tenantID, id)
	if l := args.Get(0); l != nil {
		return l.(*models.Location), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *LocationRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Location, error) {
	args := m.Called(ctx, tenantID)
	if l := args.Get(0); l != nil {
		return l.([]*models.Location), args.Error(1)
	}
	return nil, args.Error(1)
}

// MachineRepository is a mock implementation of repositories.MachineRepository
type MachineRepository struct {
	mock.Mock
}

func (m *MachineRepository) Create(ctx context.Context, machine *models.Machine) error {
	return m.Called(ctx, machine).Error(0)
}

func (m *MachineRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Machine, error) {
	args := m.Called(ctx, tenantID, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Machine), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MachineRepository) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.Machine, error) {
	args := m.Called(ctx, tenantID, code)
	if v := args.Get(0); v != nil {
		return v.(*models.Machine), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MachineRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Machine, error) {
	args := m.Called(ctx, tenantID)
	if v := args.Get(0); v != nil {
		return v.([]*models.Machine), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MachineRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	args := m.Called(ctx, tenantID)
	return args.Int(0), args.Error(1)
}

// DivisionRepository is a mock implementation of repositories.DivisionRepository
type DivisionRepository struct {
	mock.Mock
}

func (m *DivisionRepository) Create(ctx context.Context, division *models.Division) error {
	return m.Called(ctx, division).Error(0)
}

func (m *DivisionRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Division, error) {
	args := m.Called(ctx, tenantID, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Division), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DivisionRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.Division, error) {
	args := m.Called(ctx, tenantID)
	if v := args.Get(0); v != nil {
		return v.([]*models.Division), args.Error(1)
	}
	return nil, args.Error(1)
}

// UserRepository is a mock implementation of repositories.UserRepository
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, tenantID, id)
	if v := args.Get(0); v != nil {
		return v.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if v := args.Get(0); v != nil {
		return v.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *UserRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.User, error) {
	args := m.Called(ctx, tenantID)
	if v := args.Get(0); v != nil {
		return v.([]*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

// CallRepository is a mock implementation of repositories.CallRepository
type CallRepository struct {
	mock.Mock
}

func (m *CallRepository) NextNumber(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *CallRepository) Create(ctx context.Context, call *models.Call) error {
	return m.Called(ctx, call).Error(0)
}

func (m *CallRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Call, error) {
	args := m.Called(ctx, tenantID, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Call), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CallRepository) FindOpenByMachine(ctx context.Context, tenantID, machineID uuid.UUID) (*models.Call, error) {
	args := m.Called(ctx, tenantID, machineID)
	if v := args.Get(0); v != nil {
		return v.(*models.Call), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CallRepository) MarkResponded(ctx context.Context, tenantID, id, responderID uuid.UUID, at time.Time) error {
	return m.Called(ctx, tenantID, id, responderID, at).Error(0)
}

func (m *CallRepository) MarkResolved(ctx context.Context, tenantID, id, resolverID uuid.UUID, at time.Time) error {
	return m.Called(ctx, tenantID, id, resolverID, at).Error(0)
}

func (m *CallRepository) List(ctx context.Context, tenantID uuid.UUID, filter repositories.CallFilter) ([]*models.Call, error) {
	args := m.Called(ctx, tenantID, filter)
	if v := args.Get(0); v != nil {
		return v.([]*models.Call), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CallRepository) Counts(ctx context.Context, tenantID uuid.UUID, dayStart, dayEnd time.Time) (*repositories.CallCounts, error) {
	args := m.Called(ctx, tenantID, dayStart, dayEnd)
	if v := args.Get(0); v != nil {
		return v.(*repositories.CallCounts), args.Error(1)
	}
	return nil, args.Error(1)
}

// ReportRepository is a mock implementation of repositories.ReportRepository
type ReportRepository struct {
	mock.Mock
}

func (m *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	return m.Called(ctx, report).Error(0)
}

func (m *ReportRepository) GetByCallID(ctx context.Context, callID uuid.UUID) (*models.Report, error) {
	args := m.Called(ctx, callID)
	if v := args.Get(0); v != nil {
		return v.(*models.Report), args.Error(1)
	}
	return nil, args.Error(1)
}

// CallEventRepository is a mock implementation of repositories.CallEventRepository
type CallEventRepository struct {
	mock.Mock
}

func (m *CallEventRepository) Insert(ctx context.Context, event *models.CallEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *CallEventRepository) ListByCall(ctx context.Context, tenantID, callID uuid.UUID) ([]*models.CallEvent, error) {
	args := m.Called(ctx, tenantID, callID)
	if v := args.Get(0); v != nil {
		return v.([]*models.CallEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *CallEventRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.CallEvent, error) {
	args := m.Called(ctx, tenantID, limit, offset)
	if v := args.Get(0); v != nil {
		return v.([]*models.CallEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

// Repositories bundles a fresh mock for every repository
type Repositories struct {
	Tenants   *TenantRepository
	Locations *LocationRepository
	Machines  *MachineRepository
	Divisions *DivisionRepository
	Users     *UserRepository
	Calls     *CallRepository
	Reports   *ReportRepository
	Events    *CallEventRepository
}

// NewRepositories creates an empty mock for every repository
func NewRepositories() *Repositories {
	return &Repositories{
		Tenants:   new(TenantRepository),
		Locations: new(LocationRepository),
		Machines:  new(MachineRepository),
		Divisions: new(DivisionRepository),
		Users:     new(UserRepository),
		Calls:     new(CallRepository),
		Reports:   new(ReportRepository),
		Events:    new(CallEventRepository),
	}
}

// Bundle exposes the mocks as a repositories.Repositories
func (r *Repositories) Bundle() *repositories.Repositories {
	return &repositories.Repositories{
		Tenants:    r.Tenants,
		Locations:  r.Locations,
		Machines:   r.Machines,
		Divisions:  r.Divisions,
		Users:      r.Users,
		Calls:      r.Calls,
		Reports:    r.Reports,
		CallEvents: r.Events,
	}
}

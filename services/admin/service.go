// Package admin manages a tenant's reference data and staff accounts.
package admin

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/repositories"
	"github.com/upb/andon-board/services"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength applies to staff accounts created by an admin
const MinPasswordLength = 8

// EventRecorder receives admin writes for the call trail
type EventRecorder interface {
	MachineCreated(ctx context.Context, machine *models.Machine, actorID uuid.UUID)
	UserCreated(ctx context.Context, user *models.User, actorID *uuid.UUID)
}

// CreateMachineInput is the input of CreateMachine
type CreateMachineInput struct {
	LocationID uuid.UUID `json:"location_id" validate:"required"`
	Name       string    `json:"name" validate:"required,max=200"`
	Code       string    `json:"code" validate:"required,max=100"`
}

// CreateUserInput is the input of CreateUser
type CreateUserInput struct {
	Name       string          `json:"name" validate:"required,max=200"`
	Email      string          `json:"email" validate:"required,email"`
	Password   string          `json:"password" validate:"required,min=8"`
	Role       models.UserRole `json:"role" validate:"required"`
	DivisionID *uuid.UUID      `json:"division_id,omitempty"`
}

// Service handles admin writes
type Service struct {
	locations  repositories.LocationRepository
	machines   repositories.MachineRepository
	divisions  repositories.DivisionRepository
	users      repositories.UserRepository
	events     EventRecorder
	logger     *zap.Logger
	bcryptCost int
}

// NewService creates a new admin Service
func NewService(repos *repositories.Repositories, events EventRecorder, logger *zap.Logger) *Service {
	return &Service{
		locations:  repos.Locations,
		machines:   repos.Machines,
		divisions:  repos.Divisions,
		users:      repos.Users,
		events:     events,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// CreateLocation adds a location to the tenant
func (s *Service) CreateLocation(ctx context.Context, tenantID uuid.UUID, name string) (*models.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.NewFieldError("name", "name is required")
	}
	location := models.NewLocation(tenantID, name)
	if err := s.locations.Create(ctx, location); err != nil {
		return nil, s.failed("failed to create location", tenantID, err)
	}
	return location, nil
}

// ListLocations lists the tenant's locations
func (s *Service) ListLocations(ctx context.Context, tenantID uuid.UUID) ([]*models.Location, error) {
	locations, err := s.locations.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, s.failed("failed to list locations", tenantID, err)
	}
	return locations, nil
}

// CreateMachine adds a machine to one of the tenant's locations. Codes are
// unique within a tenant.
func (s *Service) CreateMachine(ctx context.Context, tenantID, actorID uuid.UUID, in CreateMachineInput) (*models.Machine, error) {
	name := strings.TrimSpace(in.Name)
	code := strings.TrimSpace(in.Code)
	if name == "" {
		return nil, services.NewFieldError("name", "name is required")
	}
	if code == "" {
		return nil, services.NewFieldError("code", "code is required")
	}

	location, err := s.locations.GetByID(ctx, tenantID, in.LocationID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrLocationNotFound
		}
		return nil, s.failed("failed to load location", tenantID, err)
	}

	machine := models.NewMachine(tenantID, location.ID, name, code)
	if err := s.machines.Create(ctx, machine); err != nil {
		if repositories.ConflictField(err) == "code" {
			return nil, services.NewConflictError(services.ErrDuplicateCode, "code", err)
		}
		return nil, s.failed("failed to create machine", tenantID, err)
	}
	machine.LocationName = location.Name

	s.logger.Info("machine created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("code", machine.Code))
	s.events.MachineCreated(ctx, machine, actorID)
	return machine, nil
}

// ListMachines lists the tenant's machines
func (s *Service) ListMachines(ctx context.Context, tenantID uuid.UUID) ([]*models.Machine, error) {
	machines, err := s.machines.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, s.failed("failed to list machines", tenantID, err)
	}
	return machines, nil
}

// CreateDivision adds a routing target to the tenant
func (s *Service) CreateDivision(ctx context.Context, tenantID uuid.UUID, name string) (*models.Division, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.NewFieldError("name", "name is required")
	}
	division := models.NewDivision(tenantID, name)
	if err := s.divisions.Create(ctx, division); err != nil {
		return nil, s.failed("failed to create division", tenantID, err)
	}
	return division, nil
}

// ListDivisions lists the tenant's divisions
func (s *Service) ListDivisions(ctx context.Context, tenantID uuid.UUID) ([]*models.Division, error) {
	divisions, err := s.divisions.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, s.failed("failed to list divisions", tenantID, err)
	}
	return divisions, nil
}

// CreateUser adds a staff account. Emails are unique across tenants.
func (s *Service) CreateUser(ctx context.Context, tenantID, actorID uuid.UUID, in CreateUserInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case name == "":
		return nil, services.NewFieldError("name", "name is required")
	case email == "":
		return nil, services.NewFieldError("email", "email is required")
	case len(in.Password) < MinPasswordLength:
		return nil, services.NewFieldError("password", "must be at least 8 characters")
	case !in.Role.Valid():
		return nil, services.ErrInvalidRole.WithDetail("role", "must be ADMIN or TEAM")
	}

	if in.DivisionID != nil {
		if _, err := s.divisions.GetByID(ctx, tenantID, *in.DivisionID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrDivisionNotFound
			}
			return nil, s.failed("failed to load division", tenantID, err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, services.WrapInternal("failed to hash password", err)
	}

	user := models.NewUser(tenantID, name, email, string(hash), in.Role, in.DivisionID)
	if err := s.users.Create(ctx, user); err != nil {
		if repositories.ConflictField(err) == "email" {
			return nil, services.NewConflictError(services.ErrDuplicateEmail, "email", err)
		}
		return nil, s.failed("failed to create user", tenantID, err)
	}

	s.logger.Info("user created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)))
	s.events.UserCreated(ctx, user, &actorID)
	return user, nil
}

// ListUsers lists the tenant's staff accounts
func (s *Service) ListUsers(ctx context.Context, tenantID uuid.UUID) ([]*models.User, error) {
	users, err := s.users.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, s.failed("failed to list users", tenantID, err)
	}
	return users, nil
}

func (s *Service) failed(msg string, tenantID uuid.UUID, err error) error {
	s.logger.Error(msg, zap.String("tenant_id", tenantID.String()), zap.Error(err))
	return services.WrapInternal(msg, err)
}

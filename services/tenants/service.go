// Package tenants resolves tenant slugs and registers new tenants.
package tenants

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

// MinPasswordLength applies to every staff password
const MinPasswordLength = 8

// Registration is the input of RegisterTenant
type Registration struct {
	Name          string `json:"name" validate:"required,max=200"`
	Slug          string `json:"slug" validate:"required,max=100"`
	AdminName     string `json:"admin_name" validate:"required,max=200"`
	AdminEmail    string `json:"admin_email" validate:"required,email"`
	AdminPassword string `json:"admin_password" validate:"required,min=8"`
}

// Registered is the outcome of RegisterTenant
type Registered struct {
	Tenant *models.Tenant `json:"tenant"`
	Admin  *models.User   `json:"admin"`
}

// UserRecorder receives user creation events for the call trail
type UserRecorder interface {
	UserCreated(ctx context.Context, user *models.User, actorID *uuid.UUID)
}

// Service is the tenant directory
type Service struct {
	tenants    repositories.TenantRepository
	users      repositories.UserRepository
	txMgr      repositories.TransactionManager
	events     UserRecorder
	cache      *SlugCache
	logger     *zap.Logger
	bcryptCost int
}

// NewService creates a new tenant directory Service
func NewService(repos *repositories.Repositories, txMgr repositories.TransactionManager, events UserRecorder, logger *zap.Logger) *Service {
	return &Service{
		tenants:    repos.Tenants,
		users:      repos.Users,
		txMgr:      txMgr,
		events:     events,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// WithCache makes ResolveTenant consult cache before the store
func (s *Service) WithCache(cache *SlugCache) *Service {
	s.cache = cache
	return s
}

// ResolveTenant maps a slug to its tenant. Unknown slugs are not found.
func (s *Service) ResolveTenant(ctx context.Context, slug string) (*models.Tenant, error) {
	if !models.ValidSlug(slug) {
		return nil, services.ErrTenantNotFound
	}
	if s.cache != nil {
		if tenant := s.cache.Get(slug); tenant != nil {
			return tenant, nil
		}
	}
	tenant, err := s.tenants.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrTenantNotFound
		}
		s.logger.Error("failed to resolve tenant", zap.String("slug", slug), zap.Error(err))
		return nil, services.WrapInternal("failed to resolve tenant", err)
	}
	if s.cache != nil {
		s.cache.Set(tenant)
	}
	return tenant, nil
}

// RegisterTenant creates a tenant and its first ADMIN in one transaction
func (s *Service) RegisterTenant(ctx context.Context, reg Registration) (*Registered, error) {
	slug := strings.ToLower(strings.TrimSpace(reg.Slug))
	if !models.ValidSlug(slug) {
		return nil, services.ErrInvalidSlug.WithDetail("slug", "use lowercase letters, digits and single hyphens")
	}
	if len(reg.AdminPassword) < MinPasswordLength {
		return nil, services.NewFieldError("admin_password", "must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.AdminPassword), s.bcryptCost)
	if err != nil {
		return nil, services.WrapInternal("failed to hash password", err)
	}

	tenant := models.NewTenant(strings.TrimSpace(reg.Name), slug)
	admin := models.NewUser(tenant.ID, strings.TrimSpace(reg.AdminName),
		strings.ToLower(strings.TrimSpace(reg.AdminEmail)), string(hash), models.RoleAdmin, nil)

	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) error {
		if err := s.tenants.Create(ctx, tenant); err != nil {
			return err
		}
		return s.users.Create(ctx, admin)
	})
	if err != nil {
		switch repositories.ConflictField(err) {
		case "slug":
			return nil, services.NewConflictError(services.ErrDuplicateSlug, "slug", err)
		case "email":
			return nil, services.NewConflictError(services.ErrDuplicateEmail, "admin_email", err)
		}
		s.logger.Error("failed to register tenant", zap.String("slug", slug), zap.Error(err))
		return nil, services.WrapInternal("failed to register tenant", err)
	}

	s.logger.Info("tenant registered",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("slug", tenant.Slug))
	s.events.UserCreated(ctx, admin, nil)

	return &Registered{Tenant: tenant, Admin: admin}, nil
}

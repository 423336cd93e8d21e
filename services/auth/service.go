// Package auth signs staff in with a bcrypt password check and issues HS256
// session tokens that the HTTP middleware validates.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/andon-board/config"
	"github.com/upb/andon-board/models"
	"github.com/upb/andon-board/repositories"
	"github.com/upb/andon-board/services"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Claims are the custom claims of a session token
type Claims struct {
	jwt.RegisteredClaims
	TenantID   string `json:"tenant_id"`
	Role       string `json:"role"`
	DivisionID string `json:"division_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Principal is the validated identity behind a request
type Principal struct {
	UserID     uuid.UUID       `json:"user_id"`
	TenantID   uuid.UUID       `json:"tenant_id"`
	Role       models.UserRole `json:"role"`
	DivisionID *uuid.UUID      `json:"division_id,omitempty"`
	Name       string          `json:"name,omitempty"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// IsAdmin returns true if the principal has the ADMIN role
func (p *Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// Session is returned by a successful login
type Session struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	User      *models.User   `json:"user"`
	Tenant    *models.Tenant `json:"tenant"`
}

// Service authenticates staff and validates their tokens
type Service struct {
	users   repositories.UserRepository
	tenants repositories.TenantRepository
	secret  []byte
	ttl     time.Duration
	issuer  string
	logger  *zap.Logger
	now     func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService creates a new auth Service
func NewService(repos *repositories.Repositories, cfg config.AuthConfig, logger *zap.Logger) *Service {
	return &Service{
		users:   repos.Users,
		tenants: repos.Tenants,
		secret:  []byte(cfg.JWTSecret),
		ttl:     cfg.TokenTTL,
		issuer:  cfg.Issuer,
		logger:  logger,
		now:     time.Now,
	}
}

// Login checks an email and password and issues a session token. Unknown
// emails and wrong passwords fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, services.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// keep the timing of unknown emails close to a real check
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			return nil, services.ErrInvalidCredentials
		}
		s.logger.Error("failed to load user for login", zap.Error(err))
		return nil, services.WrapInternal("failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login rejected", zap.String("user_id", user.ID.String()))
		return nil, services.ErrInvalidCredentials
	}

	tenant, err := s.tenants.GetByID(ctx, user.TenantID)
	if err != nil {
		s.logger.Error("failed to load tenant for login",
			zap.String("tenant_id", user.TenantID.String()),
			zap.Error(err))
		return nil, services.WrapInternal("failed to load tenant", err)
	}

	token, expiresAt, err := s.IssueToken(user)
	if err != nil {
		return nil, services.WrapInternal("failed to issue token", err)
	}

	s.logger.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("tenant_id", tenant.ID.String()))

	return &Session{Token: token, ExpiresAt: expiresAt, User: user, Tenant: tenant}, nil
}

// IssueToken signs a session token for user
func (s *Service) IssueToken(user *models.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TenantID: user.TenantID.String(),
		Role:     string(user.Role),
		Name:     user.Name,
	}
	if user.DivisionID != nil {
		claims.DivisionID = user.DivisionID.String()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt.Truncate(time.Second), nil
}

// ValidateToken verifies signature, issuer and expiry and returns the principal
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*Principal, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &Claims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}); err != nil {
		return nil, services.ErrInvalidToken.Wrap(err)
	}

	principal, err := parsePrincipal(claims)
	if err != nil {
		return nil, services.ErrInvalidToken.Wrap(err)
	}
	return principal, nil
}

func parsePrincipal(claims *Claims) (*Principal, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid sub: %w", err)
	}
	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil {
		return nil, fmt.Errorf("invalid tenant_id: %w", err)
	}
	role := models.UserRole(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", claims.Role)
	}

	principal := &Principal{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		Name:     claims.Name,
	}
	if claims.DivisionID != "" {
		divisionID, err := uuid.Parse(claims.DivisionID)
		if err != nil {
			return nil, fmt.Errorf("invalid division_id: %w", err)
		}
		principal.DivisionID = &divisionID
	}
	if claims.ExpiresAt != nil {
		principal.ExpiresAt = claims.ExpiresAt.Time
	}
	return principal, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("andon-dummy-password"), bcrypt.DefaultCost)
	})
	return s.dummyHash
}
